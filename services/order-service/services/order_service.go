package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/events"
	"github.com/yashrajoria/shopflow/services/order-service/models"
	"github.com/yashrajoria/shopflow/services/order-service/repository"
)

// ComputeTotal sums the product prices. An empty list totals zero.
func ComputeTotal(products []events.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

type OrderService struct {
	repo repository.OrderRepository
	now  func() time.Time
}

func NewOrderService(repo repository.OrderRepository) *OrderService {
	return &OrderService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrder builds an order from intent and stores it.
func (s *OrderService) CreateOrder(ctx context.Context, intent events.PurchaseIntent) (*models.Order, error) {
	products := intent.Products
	if products == nil {
		products = []events.Product{}
	}
	order := &models.Order{
		ID:         uuid.NewString(),
		Products:   products,
		User:       intent.UserEmail,
		TotalPrice: ComputeTotal(products),
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) FindByUser(ctx context.Context, email string) ([]models.Order, error) {
	return s.repo.FindByUser(ctx, email)
}

// FindByID hides orders that belong to someone else.
func (s *OrderService) FindByID(ctx context.Context, id, email string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.User != email {
		return nil, apperrors.ErrNotFound
	}
	return order, nil
}
