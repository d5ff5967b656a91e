package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/aluiziolira/motofit/metrics"
	"github.com/aluiziolira/motofit/models"
	"github.com/aluiziolira/motofit/recommend"
)

// Store publishes the current catalog to concurrent readers. A published
// catalog is never modified; reloads swap in a new one.
type Store struct {
	current  atomic.Pointer[models.Catalog]
	version  atomic.Uint64
	required []models.Column
	metrics  *metrics.Metrics
}

// NewStore returns an empty store that accepts only catalogs carrying every
// required column.
func NewStore(required []models.Column, m *metrics.Metrics) *Store {
	return &Store{
		required: append([]models.Column(nil), required...),
		metrics:  m,
	}
}

// Current returns the published catalog, or nil before the first Publish.
func (s *Store) Current() *models.Catalog {
	return s.current.Load()
}

// Version is the version of the published catalog, 0 when none.
func (s *Store) Version() uint64 {
	if cat := s.current.Load(); cat != nil {
		return cat.Version
	}
	return 0
}

// Publish negotiates cat's schema and makes it current, stamping it with
// the next version. On error the previous catalog stays published.
func (s *Store) Publish(cat *models.Catalog) (uint64, error) {
	if cat == nil {
		return 0, fmt.Errorf("publish: nil catalog")
	}
	if err := recommend.Negotiate(cat.Columns, s.required); err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	cat.Version = s.version.Add(1)
	s.current.Store(cat)
	s.metrics.SetCatalog(cat.Len(), cat.Version)
	return cat.Version, nil
}
