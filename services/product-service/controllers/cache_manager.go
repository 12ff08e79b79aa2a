package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/shopflow/services/product-service/models"
	"go.uber.org/zap"
)

const (
	ProductCachePrefix = "product:detail:"
	DefaultCacheTTL    = 10 * time.Minute
)

// CacheManager caches product details in Redis.
type CacheManager struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCacheManager(client *redis.Client, ttl time.Duration) *CacheManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CacheManager{redis: client, ttl: ttl}
}

// GetProduct returns a cached product. Misses and Redis errors both report false.
func (cm *CacheManager) GetProduct(ctx context.Context, productID string) (*models.Product, bool) {
	data, err := cm.redis.Get(ctx, ProductCachePrefix+productID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("Failed to read product cache", zap.Error(err), zap.String("product_id", productID))
		}
		return nil, false
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		zap.L().Warn("Failed to unmarshal cached product", zap.Error(err), zap.String("product_id", productID))
		return nil, false
	}
	return &product, true
}

// SetProduct caches a single product.
func (cm *CacheManager) SetProduct(ctx context.Context, productID string, product *models.Product) error {
	productJSON, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return cm.redis.Set(ctx, ProductCachePrefix+productID, productJSON, cm.ttl).Err()
}

// SetProductAsync caches a single product asynchronously
func (cm *CacheManager) SetProductAsync(productID string, product *models.Product) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := cm.SetProduct(bgCtx, productID, product); err != nil {
			zap.L().Warn("Failed to cache product", zap.Error(err), zap.String("product_id", productID))
		}
	}()
}
