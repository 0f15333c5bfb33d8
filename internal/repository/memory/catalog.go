package memory

import (
	"context"
	"sort"
	"sync"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
)

// Catalog is an in-memory repository.ProductRepository.
type Catalog struct {
	mu       sync.RWMutex
	products map[uuid.UUID]model.Product
}

func NewCatalog(products ...model.Product) *Catalog {
	c := &Catalog{products: make(map[uuid.UUID]model.Product)}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

// Put inserts or replaces p, assigning an id when missing.
func (c *Catalog) Put(p model.Product) model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c.products[p.ID] = p
	return p
}

func (c *Catalog) ListAvailable(context.Context) ([]model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, 0, len(c.products))
	for _, p := range c.products {
		if p.StockQuantity > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Catalog) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}
