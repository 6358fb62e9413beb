package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductMetadataOverlay holds the sparse per-product metadata document.
// Version is bumped on every write and used for compare-and-swap.
type ProductMetadataOverlay struct {
	ProductID uuid.UUID      `gorm:"column:product_id;type:uuid;primaryKey"`
	Data      datatypes.JSON `gorm:"column:data;not null"`
	Version   int64          `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

// ProductGalleryOverlay holds an ordered URL list for products whose
// relational gallery is unavailable.
type ProductGalleryOverlay struct {
	ProductID uuid.UUID      `gorm:"column:product_id;type:uuid;primaryKey"`
	URLs      datatypes.JSON `gorm:"column:urls;not null"`
	Version   int64          `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}
