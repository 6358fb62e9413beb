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

// MetadataStore persists one versioned MetadataOverlay row per product.
type MetadataStore struct {
	db          *gorm.DB
	now         func() time.Time
	maxAttempts int
}

func NewMetadataStore(conn *gorm.DB) *MetadataStore {
	return &MetadataStore{
		db:          conn,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
}

var metadataRules = docRules[MetadataOverlay]{
	normalize: Normalize,
	empty:     MetadataOverlay.IsEmpty,
}

// Get returns the normalized overlay, or an empty one for unknown products.
func (s *MetadataStore) Get(ctx context.Context, productID uuid.UUID) (MetadataOverlay, error) {
	row, err := s.load(ctx, productID)
	if err != nil {
		return MetadataOverlay{}, persistenceErr("load", productID, err)
	}
	return row.value, nil
}

// All returns every stored overlay keyed by product id.
func (s *MetadataStore) All(ctx context.Context) (map[uuid.UUID]MetadataOverlay, error) {
	var rows []models.ProductMetadataOverlay
	if err := s.db.WithContext(ctx).Order("product_id").Find(&rows).Error; err != nil {
		return nil, persistenceErr("list", uuid.Nil, err)
	}
	out := make(map[uuid.UUID]MetadataOverlay, len(rows))
	for _, row := range rows {
		doc := decodeMetadata(row.Data)
		if doc.IsEmpty() {
			continue
		}
		out[row.ProductID] = doc
	}
	return out, nil
}

// Put replaces the product's overlay with exactly the normalized record.
func (s *MetadataStore) Put(ctx context.Context, productID uuid.UUID, record MetadataOverlay) (MetadataOverlay, error) {
	return casMutate[MetadataOverlay](ctx, s, metadataRules, productID, s.maxAttempts, s.now, func(MetadataOverlay) MetadataOverlay {
		return record
	})
}

// Apply merges patch into the stored overlay under compare-and-swap.
func (s *MetadataStore) Apply(ctx context.Context, productID uuid.UUID, patch Patch) (MetadataOverlay, error) {
	return casMutate[MetadataOverlay](ctx, s, metadataRules, productID, s.maxAttempts, s.now, patch.Apply)
}

func (s *MetadataStore) load(ctx context.Context, productID uuid.UUID) (rowState[MetadataOverlay], error) {
	var row models.ProductMetadataOverlay
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rowState[MetadataOverlay]{}, nil
	}
	if err != nil {
		return rowState[MetadataOverlay]{}, err
	}
	return rowState[MetadataOverlay]{value: decodeMetadata(row.Data), version: row.Version, found: true}, nil
}

func (s *MetadataStore) insert(ctx context.Context, productID uuid.UUID, doc MetadataOverlay, now time.Time) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.ProductMetadataOverlay{
		ProductID: productID,
		Data:      datatypes.JSON(payload),
		Version:   1,
		UpdatedAt: now.UTC(),
	}).Error
}

func (s *MetadataStore) update(ctx context.Context, productID uuid.UUID, doc MetadataOverlay, version int64, now time.Time) (bool, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).
		Model(&models.ProductMetadataOverlay{}).
		Where("product_id = ? AND version = ?", productID, version).
		UpdateColumns(map[string]any{
			"data":       datatypes.JSON(payload),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *MetadataStore) remove(ctx context.Context, productID uuid.UUID, version int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("product_id = ? AND version = ?", productID, version).
		Delete(&models.ProductMetadataOverlay{})
	return res.RowsAffected == 1, res.Error
}

// decodeMetadata treats an unreadable payload as an empty document so the
// next write replaces it.
func decodeMetadata(raw datatypes.JSON) MetadataOverlay {
	var doc MetadataOverlay
	if len(raw) == 0 || json.Unmarshal(raw, &doc) != nil {
		return MetadataOverlay{}
	}
	return Normalize(doc)
}
