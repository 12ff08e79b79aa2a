package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/events"
	"github.com/yashrajoria/shopflow/services/product-service/models"
)

// --- Mock Repository ---
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, page, perPage int) ([]models.Product, int64, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

// --- Fake Cache ---
type fakeCache struct {
	items map[string]*models.Product
	sets  chan string
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string]*models.Product{}, sets: make(chan string, 4)}
}

func (f *fakeCache) GetProduct(_ context.Context, id string) (*models.Product, bool) {
	p, ok := f.items[id]
	return p, ok
}

func (f *fakeCache) SetProductAsync(id string, _ *models.Product) {
	f.sets <- id
}

func product(id, price string) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price)}
}

func publishedIntents(t *testing.T, mem *broker.Memory) []events.PurchaseIntent {
	t.Helper()
	var out []events.PurchaseIntent
	for _, body := range mem.Messages(broker.QueueOrder) {
		intent, err := events.DecodePurchaseIntent(body)
		require.NoError(t, err)
		out = append(out, intent)
	}
	return out
}

func TestBuyProducts_PublishesResolvedProductsInRequestOrder(t *testing.T) {
	repo := new(MockProductRepository)
	mem := broker.NewMemory(1)
	svc := NewProductService(repo, mem, nil, nil)

	// the store answers in its own order
	repo.On("FindByIDs", mock.Anything, []string{"p2", "p1", "missing"}).
		Return([]models.Product{product("p1", "10"), product("p2", "15")}, nil).Once()

	intent, err := svc.BuyProducts(context.Background(), []string{"p2", "p1", "p2", "missing"}, auth.Identity{Email: "b@x.com", Name: "B"})
	require.NoError(t, err)

	require.Len(t, intent.Products, 2)
	assert.Equal(t, "p2", intent.Products[0].ID)
	assert.Equal(t, "p1", intent.Products[1].ID)
	assert.Equal(t, "b@x.com", intent.UserEmail)
	assert.NotEmpty(t, intent.IntentID)

	published := publishedIntents(t, mem)
	require.Len(t, published, 1)
	assert.Equal(t, intent.IntentID, published[0].IntentID)
	assert.Equal(t, "b@x.com", published[0].UserEmail)
	require.Len(t, published[0].Products, 2)
	assert.True(t, published[0].Products[0].Price.Equal(decimal.NewFromInt(15)))
	repo.AssertExpectations(t)
}

func TestBuyProducts_EmptySelectionStillPublishes(t *testing.T) {
	repo := new(MockProductRepository)
	mem := broker.NewMemory(1)
	svc := NewProductService(repo, mem, nil, nil)

	repo.On("FindByIDs", mock.Anything, []string{}).Return([]models.Product{}, nil).Once()

	intent, err := svc.BuyProducts(context.Background(), nil, auth.Identity{Email: "b@x.com"})
	require.NoError(t, err)
	assert.Empty(t, intent.Products)

	published := publishedIntents(t, mem)
	require.Len(t, published, 1)
	assert.Empty(t, published[0].Products)
}

func TestBuyProducts_PublishFailure(t *testing.T) {
	repo := new(MockProductRepository)
	mem := broker.NewMemory(1)
	require.NoError(t, mem.Close())
	svc := NewProductService(repo, mem, nil, nil)

	repo.On("FindByIDs", mock.Anything, []string{"p1"}).Return([]models.Product{product("p1", "10")}, nil).Once()

	_, err := svc.BuyProducts(context.Background(), []string{"p1"}, auth.Identity{Email: "b@x.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPublishFailed)
	assert.Equal(t, 503, apperrors.From(err).Code)
}

func TestCreateProduct(t *testing.T) {
	t.Run("stores a trimmed product", func(t *testing.T) {
		repo := new(MockProductRepository)
		svc := NewProductService(repo, broker.NewMemory(1), nil, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
			return p.Name == "Pen" && p.ID != "" && p.Price.Equal(decimal.RequireFromString("1.25"))
		})).Return(nil).Once()

		p, err := svc.CreateProduct(context.Background(), CreateProductInput{Name: "  Pen ", Price: decimal.RequireFromString("1.25")})
		require.NoError(t, err)
		assert.Equal(t, "Pen", p.Name)
		assert.False(t, p.CreatedAt.IsZero())
		repo.AssertExpectations(t)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		repo := new(MockProductRepository)
		svc := NewProductService(repo, broker.NewMemory(1), nil, nil)

		_, err := svc.CreateProduct(context.Background(), CreateProductInput{Name: "Pen", Price: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		repo := new(MockProductRepository)
		svc := NewProductService(repo, broker.NewMemory(1), nil, nil)

		_, err := svc.CreateProduct(context.Background(), CreateProductInput{Name: "  "})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestGetProduct_ReadThroughCache(t *testing.T) {
	repo := new(MockProductRepository)
	cache := newFakeCache()
	svc := NewProductService(repo, broker.NewMemory(1), cache, nil)

	stored := product("p1", "10")
	repo.On("FindByID", mock.Anything, "p1").Return(&stored, nil).Once()

	got, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)

	select {
	case id := <-cache.sets:
		assert.Equal(t, "p1", id)
	case <-time.After(time.Second):
		t.Fatal("product was not cached")
	}

	cache.items["p1"] = &stored
	_, err = svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewProductService(repo, broker.NewMemory(1), nil, nil)
	repo.On("FindByID", mock.Anything, "nope").Return(nil, apperrors.ErrNotFound).Once()

	_, err := svc.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListProducts_Pages(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewProductService(repo, broker.NewMemory(1), nil, nil)
	repo.On("List", mock.Anything, 2, 10).Return([]models.Product{product("p11", "1")}, int64(11), nil).Once()

	page, err := svc.ListProducts(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(11), page.Total)
	assert.Len(t, page.Products, 1)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", " ", "c", "b"}))
	assert.Equal(t, []string{}, dedupe(nil))
}
