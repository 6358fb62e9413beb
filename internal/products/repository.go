package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/pagination"
)

// ErrNotFound is returned when a product row does not exist.
var ErrNotFound = errors.New("product not found")

// Repository wraps relational product persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdatePrices writes the canonical USD price pair. A nil original clears
// the column.
func (r *Repository) UpdatePrices(ctx context.Context, id uuid.UUID, price float64, original *float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"price":          price,
			"original_price": original,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: update prices for %s: %w", pricing.ErrPersistence, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %w: %s", pricing.ErrPersistence, ErrNotFound, id)
	}
	return nil
}

// ListPage returns products ordered by (created_at, id) after the cursor.
func (r *Repository) ListPage(ctx context.Context, params pagination.Params) (pagination.Page[models.Product], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Product]{}, err
	}

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if cursor != nil {
		query = query.Where("(created_at > ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.NewPage(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// ListImages returns the relational gallery ordered by position.
func (r *Repository) ListImages(ctx context.Context, productID uuid.UUID) ([]string, error) {
	var rows []models.ProductImage
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		urls = append(urls, row.URL)
	}
	return urls, nil
}

// ReplaceImages rewrites the relational gallery in one transaction.
func (r *Repository) ReplaceImages(ctx context.Context, productID uuid.UUID, urls []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		if len(urls) == 0 {
			return nil
		}
		rows := make([]models.ProductImage, 0, len(urls))
		for i, u := range urls {
			rows = append(rows, models.ProductImage{ProductID: productID, URL: u, Position: i})
		}
		return tx.Create(&rows).Error
	})
}
