package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yashrajoria/shopflow/services/common/events"
)

// Order is the stored order document, identical to the one announced on PRODUCT.
type Order = events.Order

// OrderRecord is the relational form of an order, used when ORDER_STORE=postgres.
type OrderRecord struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	UserEmail  string            `gorm:"not null;index"`
	TotalPrice decimal.Decimal   `gorm:"type:numeric;not null"`
	CreatedAt  time.Time         `gorm:"not null;index"`
	Items      []OrderItemRecord `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderRecord) TableName() string { return "orders" }

// OrderItemRecord is one product snapshot of an order. Position keeps the
// order in which products were bought.
type OrderItemRecord struct {
	OrderID          string          `gorm:"type:uuid;primaryKey"`
	Position         int             `gorm:"primaryKey;autoIncrement:false"`
	ProductID        string          `gorm:"not null"`
	Name             string          `gorm:"not null"`
	Description      string
	Price            decimal.Decimal `gorm:"type:numeric;not null"`
	ProductCreatedAt time.Time
}

func (OrderItemRecord) TableName() string { return "order_items" }

// ToRecord converts an order to its relational form.
func ToRecord(o *Order) *OrderRecord {
	rec := &OrderRecord{
		ID:         o.ID,
		UserEmail:  o.User,
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
		Items:      make([]OrderItemRecord, 0, len(o.Products)),
	}
	for i, p := range o.Products {
		rec.Items = append(rec.Items, OrderItemRecord{
			OrderID:          o.ID,
			Position:         i,
			ProductID:        p.ID,
			Name:             p.Name,
			Description:      p.Description,
			Price:            p.Price,
			ProductCreatedAt: p.CreatedAt,
		})
	}
	return rec
}

// FromRecord converts a loaded record back. Items must be sorted by Position.
func FromRecord(rec *OrderRecord) Order {
	products := make([]events.Product, 0, len(rec.Items))
	for _, item := range rec.Items {
		products = append(products, events.Product{
			ID:          item.ProductID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			CreatedAt:   item.ProductCreatedAt,
		})
	}
	return Order{
		ID:         rec.ID,
		Products:   products,
		User:       rec.UserEmail,
		TotalPrice: rec.TotalPrice,
		CreatedAt:  rec.CreatedAt,
	}
}
