package catalog

import (
	"context"
	"strings"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	GetItem(ctx context.Context, id int64) (Item, error)
	GetItemByBarcode(ctx context.Context, barcode string) (Item, error)
	UpdateShelfSettings(ctx context.Context, id int64, settings ShelfSettings) error
	GetLocation(ctx context.Context, id string) (Location, error)
	ListLocations(ctx context.Context) ([]Location, error)
}

// Service exposes catalog lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrInvalidItemID
	}
	return s.repo.GetItem(ctx, id)
}

func (s *Service) GetItemByBarcode(ctx context.Context, barcode string) (Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Item{}, ErrBarcodeRequired
	}
	return s.repo.GetItemByBarcode(ctx, barcode)
}

// UpdateShelfSettings validates and stores the replenishment policy, returning
// the refreshed item.
func (s *Service) UpdateShelfSettings(ctx context.Context, id int64, settings ShelfSettings) (Item, error) {
	if id <= 0 {
		return Item{}, ErrInvalidItemID
	}
	if negative(settings.Threshold) || negative(settings.Average) {
		return Item{}, ErrInvalidSettings
	}
	if err := s.repo.UpdateShelfSettings(ctx, id, settings); err != nil {
		return Item{}, err
	}
	return s.repo.GetItem(ctx, id)
}

func (s *Service) GetLocation(ctx context.Context, id string) (Location, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Location{}, ErrLocationNotFound
	}
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

func negative(v *int) bool {
	return v != nil && *v < 0
}
