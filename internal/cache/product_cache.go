package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repuestera/internal/domain"
	"repuestera/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notFoundMarker = "notfound"

// CachedProductRepository is a read-through decorator over the product
// repository. Lookups by id and code are cached with a TTL, absent rows are
// negative-cached briefly, and any mutation invalidates the affected keys.
// Redis failures degrade to the database.
type CachedProductRepository struct {
	repository.ProductRepository

	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository wraps repo with a Redis read-through cache.
func NewCachedProductRepository(repo repository.ProductRepository, redisClient *redis.Client, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		ProductRepository: repo,
		redis:             redisClient,
		ttl:               5 * time.Minute,
		logger:            logger,
	}
}

func idKey(id uuid.UUID) string      { return fmt.Sprintf("product:id:%s", id) }
func codeKey(code string) string     { return fmt.Sprintf("product:code:%s", code) }
func (c *CachedProductRepository) negativeTTL() time.Duration { return time.Minute }

// FindByID serves from cache when possible, falling back to the database and
// populating the cache on the way out.
func (c *CachedProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if product, err, served := c.lookup(ctx, idKey(id)); served {
		return product, err
	}

	product, err := c.ProductRepository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.setRaw(ctx, idKey(id), notFoundMarker, c.negativeTTL())
		}
		return nil, err
	}

	c.store(ctx, idKey(id), product)
	return product, nil
}

// FindByCode mirrors FindByID against the code key.
func (c *CachedProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	if product, err, served := c.lookup(ctx, codeKey(code)); served {
		return product, err
	}

	product, err := c.ProductRepository.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.setRaw(ctx, codeKey(code), notFoundMarker, c.negativeTTL())
		}
		return nil, err
	}

	c.store(ctx, codeKey(code), product)
	return product, nil
}

// Mutations delegate to the wrapped repository and invalidate cached entries.

func (c *CachedProductRepository) Update(ctx context.Context, product *domain.Product, fields map[string]interface{}) error {
	if err := c.ProductRepository.Update(ctx, product, fields); err != nil {
		return err
	}
	c.invalidate(ctx, product)
	return nil
}

func (c *CachedProductRepository) UpdateStock(ctx context.Context, product *domain.Product, newValue int) error {
	if err := c.ProductRepository.UpdateStock(ctx, product, newValue); err != nil {
		return err
	}
	c.invalidate(ctx, product)
	return nil
}

func (c *CachedProductRepository) ReduceStock(ctx context.Context, product *domain.Product, qty int) error {
	if err := c.ProductRepository.ReduceStock(ctx, product, qty); err != nil {
		return err
	}
	c.invalidate(ctx, product)
	return nil
}

func (c *CachedProductRepository) IncreaseStock(ctx context.Context, product *domain.Product, qty int) error {
	if err := c.ProductRepository.IncreaseStock(ctx, product, qty); err != nil {
		return err
	}
	c.invalidate(ctx, product)
	return nil
}

func (c *CachedProductRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := c.ProductRepository.Deactivate(ctx, id); err != nil {
		return err
	}
	c.invalidateByID(ctx, id)
	return nil
}

func (c *CachedProductRepository) Activate(ctx context.Context, id uuid.UUID) error {
	if err := c.ProductRepository.Activate(ctx, id); err != nil {
		return err
	}
	c.invalidateByID(ctx, id)
	return nil
}

// lookup returns (product, err, true) when the cache could answer, and
// served=false when the caller must hit the database.
func (c *CachedProductRepository) lookup(ctx context.Context, key string) (*domain.Product, error, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrProductNotFound, true
		}
		var product domain.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.logger.Warn("Failed to unmarshal cached product, falling back to DB", zap.Error(err))
			return nil, nil, false
		}
		return &product, nil, true

	case errors.Is(err, redis.Nil):
		return nil, nil, false

	default:
		c.logger.Warn("Redis error, falling back to DB", zap.Error(err))
		return nil, nil, false
	}
}

func (c *CachedProductRepository) store(ctx context.Context, key string, product *domain.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("Failed to marshal product for cache", zap.Error(err))
		return
	}
	c.setRaw(ctx, key, string(data), c.ttl)
}

func (c *CachedProductRepository) setRaw(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("Failed to write product cache entry", zap.Error(err))
	}
}

func (c *CachedProductRepository) invalidate(ctx context.Context, product *domain.Product) {
	keys := []string{idKey(product.ID)}
	if product.Code != nil {
		keys = append(keys, codeKey(*product.Code))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func (c *CachedProductRepository) invalidateByID(ctx context.Context, id uuid.UUID) {
	if err := c.redis.Del(ctx, idKey(id)).Err(); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}
