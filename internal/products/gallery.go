package product

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

type imageRepository interface {
	ListImages(ctx context.Context, productID uuid.UUID) ([]string, error)
	ReplaceImages(ctx context.Context, productID uuid.UUID, urls []string) error
}

type galleryOverlay interface {
	Get(ctx context.Context, productID uuid.UUID) ([]string, error)
	Put(ctx context.Context, productID uuid.UUID, urls []string) ([]string, error)
}

// Gallery is a product's ordered image list and where it was read from.
type Gallery struct {
	ProductID uuid.UUID `json:"productId"`
	URLs      []string  `json:"urls"`
	Source    string    `json:"source"`
}

const (
	GallerySourceRelational = "relational"
	GallerySourceOverlay    = "overlay"
)

// GalleryService reads and writes product galleries through the relational
// table, falling back to the overlay store only when the table or one of its
// columns is missing from the connected schema.
type GalleryService struct {
	repo    imageRepository
	overlay galleryOverlay
	logg    *logger.Logger
}

func NewGalleryService(repo imageRepository, store galleryOverlay, logg *logger.Logger) *GalleryService {
	return &GalleryService{repo: repo, overlay: store, logg: logg}
}

func (s *GalleryService) Get(ctx context.Context, productID uuid.UUID) (Gallery, error) {
	urls, err := s.repo.ListImages(ctx, productID)
	if err == nil {
		return Gallery{ProductID: productID, URLs: urls, Source: GallerySourceRelational}, nil
	}
	if !db.IsMissingRelation(err) {
		return Gallery{}, err
	}
	s.warnFallback(ctx, productID)

	urls, err = s.overlay.Get(ctx, productID)
	if err != nil {
		return Gallery{}, err
	}
	return Gallery{ProductID: productID, URLs: nonNil(urls), Source: GallerySourceOverlay}, nil
}

func (s *GalleryService) Set(ctx context.Context, productID uuid.UUID, urls []string) (Gallery, error) {
	normalized := overlay.NormalizeGallery(urls)

	err := s.repo.ReplaceImages(ctx, productID, normalized)
	if err == nil {
		return Gallery{ProductID: productID, URLs: nonNil(normalized), Source: GallerySourceRelational}, nil
	}
	if !db.IsMissingRelation(err) {
		return Gallery{}, err
	}
	s.warnFallback(ctx, productID)

	saved, err := s.overlay.Put(ctx, productID, normalized)
	if err != nil {
		return Gallery{}, err
	}
	return Gallery{ProductID: productID, URLs: nonNil(saved), Source: GallerySourceOverlay}, nil
}

func (s *GalleryService) warnFallback(ctx context.Context, productID uuid.UUID) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithProductID(ctx, productID.String())
	s.logg.Warn(ctx, "relational gallery unavailable, using overlay store")
}

func nonNil(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
