package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/events"
	productsvc "github.com/yashrajoria/shopflow/services/product-service/services"
)

type catalog map[string]events.Product

func (c catalog) Create(context.Context, *events.Product) error { return nil }

func (c catalog) FindByID(_ context.Context, id string) (*events.Product, error) {
	if p, ok := c[id]; ok {
		return &p, nil
	}
	return nil, apperrors.ErrNotFound
}

func (c catalog) FindByIDs(_ context.Context, ids []string) ([]events.Product, error) {
	out := []events.Product{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c catalog) List(context.Context, int, int) ([]events.Product, int64, error) {
	return nil, 0, nil
}

func TestBuyToOrderChoreography(t *testing.T) {
	mem := broker.NewMemory(1)
	h := startConsumer(t, mem, mem, &memoryOrders{}, defaultConfig())

	shelf := catalog{
		"p10": {ID: "p10", Name: "Ten", Price: decimal.NewFromInt(10)},
		"p15": {ID: "p15", Name: "Fifteen", Price: decimal.NewFromInt(15)},
	}
	products := productsvc.NewProductService(shelf, mem, nil, nil)

	intent, err := products.BuyProducts(context.Background(), []string{"p10", "p15"}, auth.Identity{Email: "b@x.com", Name: "B"})
	require.NoError(t, err)

	// A later price change must not reach the order built from the intent.
	repriced := shelf["p10"]
	repriced.Price = decimal.NewFromInt(99)
	shelf["p10"] = repriced

	o := h.next(t)
	require.Equal(t, OutcomeCreated, o.Kind)
	assert.Equal(t, "b@x.com", o.Order.User)
	assert.True(t, o.Order.TotalPrice.Equal(decimal.NewFromInt(25)), "got %s", o.Order.TotalPrice)
	assertSnapshots(t, intent.Products, o.Order.Products)
	assert.True(t, o.Order.Products[0].Price.Equal(decimal.NewFromInt(10)))

	orders, err := h.store.FindByUser(context.Background(), "b@x.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.Order.ID, orders[0].ID)
	assert.Equal(t, 1, mem.Depth(broker.QueueProduct))
}
