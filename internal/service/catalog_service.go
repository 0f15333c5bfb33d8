package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"comandapos/internal/model"
	"comandapos/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogCacheKey = "catalog:available"

// CatalogService is the read-only product view. The available list is
// cached; single-product reads are not, because they feed the price
// snapshot of order items.
type CatalogService interface {
	ListAvailableProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

type catalogService struct {
	repo repository.ProductRepository
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCatalogService builds the catalog. rdb may be nil to disable caching.
func NewCatalogService(repo repository.ProductRepository, rdb redis.Cmdable, ttl time.Duration) CatalogService {
	return &catalogService{repo: repo, rdb: rdb, ttl: ttl}
}

func (s *catalogService) ListAvailableProducts(ctx context.Context) ([]model.Product, error) {
	if s.rdb != nil && s.ttl > 0 {
		if raw, err := s.rdb.Get(ctx, catalogCacheKey).Bytes(); err == nil {
			var cached []model.Product
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("catalog: cache read failed, falling back to database")
		}
	}

	products, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, opErr("list products", uuid.Nil, ErrStore, err)
	}

	if s.rdb != nil && s.ttl > 0 {
		if raw, err := json.Marshal(products); err == nil {
			if err := s.rdb.Set(ctx, catalogCacheKey, raw, s.ttl).Err(); err != nil {
				log.Warn().Err(err).Msg("catalog: cache write failed")
			}
		}
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("get product", id, err)
	}
	return p, nil
}
