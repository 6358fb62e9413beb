package sale

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
)

type memProducts struct {
	rows      map[uuid.UUID]models.Product
	updateErr map[uuid.UUID]error
}

func newMemProducts() *memProducts {
	return &memProducts{rows: map[uuid.UUID]models.Product{}, updateErr: map[uuid.UUID]error{}}
}

func (m *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return &p, nil
}

func (m *memProducts) UpdatePrices(_ context.Context, id uuid.UUID, price float64, original *float64) error {
	if err := m.updateErr[id]; err != nil {
		return err
	}
	p, ok := m.rows[id]
	if !ok {
		return pricing.ErrPersistence
	}
	p.Price = price
	p.OriginalPrice = original
	m.rows[id] = p
	return nil
}

type memMetadata struct {
	rows map[uuid.UUID]overlay.MetadataOverlay
}

func newMemMetadata() *memMetadata {
	return &memMetadata{rows: map[uuid.UUID]overlay.MetadataOverlay{}}
}

func (m *memMetadata) All(context.Context) (map[uuid.UUID]overlay.MetadataOverlay, error) {
	out := make(map[uuid.UUID]overlay.MetadataOverlay, len(m.rows))
	for id, rec := range m.rows {
		out[id] = rec
	}
	return out, nil
}

func (m *memMetadata) Apply(_ context.Context, id uuid.UUID, patch overlay.Patch) (overlay.MetadataOverlay, error) {
	merged := patch.Apply(m.rows[id])
	if merged.IsEmpty() {
		delete(m.rows, id)
		return overlay.MetadataOverlay{}, nil
	}
	m.rows[id] = merged
	return merged, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []pricing.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event pricing.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func f64(v float64) *float64 { return &v }
