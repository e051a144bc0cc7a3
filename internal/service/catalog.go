package service

import (
	"context"
	"sync"

	"smmpanel/internal/model"
)

// ServicesFetcher lists the provider's current service catalog.
type ServicesFetcher interface {
	Services(ctx context.Context) ([]model.Service, error)
}

// Catalog holds the latest provider services snapshot in memory. The
// snapshot is replaced wholesale on Refresh and never mutated in place.
type Catalog struct {
	fetcher ServicesFetcher

	mu       sync.RWMutex
	services []model.Service
	byID     map[string]model.Service
}

func NewCatalog(fetcher ServicesFetcher) *Catalog {
	return &Catalog{fetcher: fetcher, byID: map[string]model.Service{}}
}

// Refresh replaces the snapshot with the provider's current catalog.
func (c *Catalog) Refresh(ctx context.Context) error {
	services, err := c.fetcher.Services(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]model.Service, len(services))
	for _, s := range services {
		byID[normalizeID(s.ID)] = s
	}

	c.mu.Lock()
	c.services = services
	c.byID = byID
	c.mu.Unlock()
	return nil
}

// Lookup finds a service by id. Comparison is string-normalized: the
// provider returns ids as strings or numbers and callers pass whichever
// form they have.
func (c *Catalog) Lookup(id string) (model.Service, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[normalizeID(id)]
	return s, ok
}

// List returns the current snapshot.
func (c *Catalog) List() []model.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Service, len(c.services))
	copy(out, c.services)
	return out
}

func normalizeID(id string) string {
	return model.NormalizeServiceID(id)
}
