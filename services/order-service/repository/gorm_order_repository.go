package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/order-service/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Migrate creates the orders and order_items tables.
func (r *GormOrderRepository) Migrate() error {
	return r.db.AutoMigrate(&models.OrderRecord{}, &models.OrderItemRecord{})
}

// Create inserts the order and its items in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(models.ToRecord(order)).Error; err != nil {
		return apperrors.ErrWriteFailed.Wrap(err)
	}
	return nil
}

// FindByUser retrieves a user's orders, newest first
func (r *GormOrderRepository) FindByUser(ctx context.Context, email string) ([]models.Order, error) {
	var records []models.OrderRecord
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_email = ?", email).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}

	orders := make([]models.Order, 0, len(records))
	for i := range records {
		orders = append(orders, models.FromRecord(&records[i]))
	}
	return orders, nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var record models.OrderRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	order := models.FromRecord(&record)
	return &order, nil
}
