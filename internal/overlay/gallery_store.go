package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
)

// GalleryStore persists one versioned image URL list per product. It is the
// fallback used when the relational gallery table is unavailable.
type GalleryStore struct {
	db          *gorm.DB
	now         func() time.Time
	maxAttempts int
}

func NewGalleryStore(conn *gorm.DB) *GalleryStore {
	return &GalleryStore{
		db:          conn,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
}

var galleryRules = docRules[[]string]{
	normalize: NormalizeGallery,
	empty:     func(urls []string) bool { return len(urls) == 0 },
}

// Get returns the stored URLs, or nil for unknown products.
func (s *GalleryStore) Get(ctx context.Context, productID uuid.UUID) ([]string, error) {
	row, err := s.load(ctx, productID)
	if err != nil {
		return nil, persistenceErr("load", productID, err)
	}
	return row.value, nil
}

// All returns every stored gallery keyed by product id.
func (s *GalleryStore) All(ctx context.Context) (map[uuid.UUID][]string, error) {
	var rows []models.ProductGalleryOverlay
	if err := s.db.WithContext(ctx).Order("product_id").Find(&rows).Error; err != nil {
		return nil, persistenceErr("list", uuid.Nil, err)
	}
	out := make(map[uuid.UUID][]string, len(rows))
	for _, row := range rows {
		if urls := decodeGallery(row.URLs); len(urls) > 0 {
			out[row.ProductID] = urls
		}
	}
	return out, nil
}

// Put replaces the product's gallery. An empty list deletes the row.
func (s *GalleryStore) Put(ctx context.Context, productID uuid.UUID, urls []string) ([]string, error) {
	return casMutate[[]string](ctx, s, galleryRules, productID, s.maxAttempts, s.now, func([]string) []string {
		return urls
	})
}

func (s *GalleryStore) load(ctx context.Context, productID uuid.UUID) (rowState[[]string], error) {
	var row models.ProductGalleryOverlay
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rowState[[]string]{}, nil
	}
	if err != nil {
		return rowState[[]string]{}, err
	}
	return rowState[[]string]{value: decodeGallery(row.URLs), version: row.Version, found: true}, nil
}

func (s *GalleryStore) insert(ctx context.Context, productID uuid.UUID, urls []string, now time.Time) error {
	payload, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.ProductGalleryOverlay{
		ProductID: productID,
		URLs:      datatypes.JSON(payload),
		Version:   1,
		UpdatedAt: now.UTC(),
	}).Error
}

func (s *GalleryStore) update(ctx context.Context, productID uuid.UUID, urls []string, version int64, now time.Time) (bool, error) {
	payload, err := json.Marshal(urls)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).
		Model(&models.ProductGalleryOverlay{}).
		Where("product_id = ? AND version = ?", productID, version).
		UpdateColumns(map[string]any{
			"urls":       datatypes.JSON(payload),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *GalleryStore) remove(ctx context.Context, productID uuid.UUID, version int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("product_id = ? AND version = ?", productID, version).
		Delete(&models.ProductGalleryOverlay{})
	return res.RowsAffected == 1, res.Error
}

func decodeGallery(raw datatypes.JSON) []string {
	var urls []string
	if len(raw) == 0 || json.Unmarshal(raw, &urls) != nil {
		return nil
	}
	return NormalizeGallery(urls)
}
