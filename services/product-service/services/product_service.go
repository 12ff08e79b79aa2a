package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/events"
	"github.com/yashrajoria/shopflow/services/common/logger"
	"github.com/yashrajoria/shopflow/services/product-service/models"
	"go.uber.org/zap"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	List(ctx context.Context, page, perPage int) ([]models.Product, int64, error)
}

// Publisher is the write side of a broker channel.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// ProductCache is an optional read-through cache for product details.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, bool)
	SetProductAsync(id string, product *models.Product)
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
}

type ProductService struct {
	repo      ProductRepository
	publisher Publisher
	cache     ProductCache
	metrics   awspkg.Recorder
}

// NewProductService wires the catalog. cache and metrics may be nil.
func NewProductService(repo ProductRepository, publisher Publisher, cache ProductCache, metrics awspkg.Recorder) *ProductService {
	return &ProductService{repo: repo, publisher: publisher, cache: cache, metrics: metrics}
}

func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.ErrInvalidInput.WithMessage("name is required")
	}
	if in.Price.IsNegative() {
		return nil, apperrors.ErrInvalidInput.WithMessage("price must not be negative")
	}

	product := &models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Product created", zap.String("product_id", product.ID), zap.String("price", product.Price.String()))
	s.record(awspkg.MetricProductsCreated)
	return product, nil
}

// GetProduct reads through the cache when one is configured.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if s.cache != nil {
		if product, ok := s.cache.GetProduct(ctx, id); ok {
			s.record(awspkg.MetricCacheHits)
			return product, nil
		}
		s.record(awspkg.MetricCacheMisses)
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetProductAsync(id, product)
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, page, perPage int) (*models.ProductPage, error) {
	products, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &models.ProductPage{
		Products:   products,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// BuyProducts publishes a purchase intent for the caller and returns without
// waiting for the order. Repeated ids collapse to their first occurrence and
// unknown ids are left out; an intent is published even when nothing resolves.
func (s *ProductService) BuyProducts(ctx context.Context, ids []string, identity auth.Identity) (events.PurchaseIntent, error) {
	log := logger.For(ctx)
	unique := dedupe(ids)

	found, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return events.PurchaseIntent{}, err
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	products := make([]models.Product, 0, len(unique))
	for _, id := range unique {
		p, ok := byID[id]
		if !ok {
			log.Warn("Product not found, leaving it out of the order", zap.String("product_id", id))
			continue
		}
		products = append(products, p)
	}

	intent := events.PurchaseIntent{
		Products:  products,
		UserEmail: identity.Email,
		IntentID:  uuid.NewString(),
	}
	body, err := json.Marshal(intent)
	if err != nil {
		return events.PurchaseIntent{}, apperrors.ErrInternalServer.Wrap(err)
	}

	if err := s.publisher.Publish(ctx, broker.QueueOrder, body); err != nil {
		log.Error("Failed to publish purchase intent", zap.String("intent_id", intent.IntentID), zap.Error(err))
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return events.PurchaseIntent{}, err
		}
		return events.PurchaseIntent{}, apperrors.ErrPublishFailed.Wrap(err)
	}

	log.Info("Purchase intent published",
		zap.String("intent_id", intent.IntentID),
		zap.String("user", identity.Email),
		zap.Int("requested", len(ids)),
		zap.Int("products", len(products)),
	)
	s.record(awspkg.MetricPurchaseIntents)
	return intent, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *ProductService) record(metric string) {
	if s.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "product-service"})
	}()
}
