package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pricesync-backend/pkg/enums"
)

// Product is the canonical catalog row. Price and OriginalPrice are USD.
type Product struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	Price         float64        `gorm:"column:price;type:numeric(12,2);not null"`
	OriginalPrice *float64       `gorm:"column:original_price;type:numeric(12,2)"`
	Currency      enums.Currency `gorm:"column:currency;not null;default:USD"`
	Category      string         `gorm:"column:category"`
	Brand         string         `gorm:"column:brand"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	IsFeatured    bool           `gorm:"column:is_featured;not null;default:false"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = enums.CurrencyUSD
	}
	return nil
}
