package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/order-service/models"
	"github.com/yashrajoria/shopflow/services/order-service/services"
)

type fixedOrders struct {
	orders []models.Order
}

func (f *fixedOrders) Create(context.Context, *models.Order) error { return nil }

func (f *fixedOrders) FindByUser(_ context.Context, email string) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.orders {
		if o.User == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fixedOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func setupRouter(t *testing.T) (*gin.Engine, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &fixedOrders{orders: []models.Order{
		{ID: "o1", User: "b@x.com", TotalPrice: decimal.NewFromInt(25), CreatedAt: time.Now().UTC()},
		{ID: "o2", User: "c@x.com", TotalPrice: decimal.NewFromInt(3), CreatedAt: time.Now().UTC()},
	}}
	tokens := auth.NewTokenService("this_is_secret", 0)
	oc := NewOrderController(services.NewOrderService(store))

	router := gin.New()
	orders := router.Group("/orders", middleware.RequireAuth(tokens))
	orders.GET("", oc.GetOrders)
	orders.GET("/:id", oc.GetOrderByID)
	return router, tokens
}

func get(t *testing.T, router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestGetOrders(t *testing.T) {
	router, tokens := setupRouter(t)
	token, err := tokens.IssueToken("b@x.com", "B")
	require.NoError(t, err)

	t.Run("Own orders only", func(t *testing.T) {
		recorder := get(t, router, "/orders", token)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"_id":"o1"`)
		assert.NotContains(t, recorder.Body.String(), `"_id":"o2"`)
		assert.Contains(t, recorder.Body.String(), `"total_price":25`)
	})

	t.Run("Missing token - 401", func(t *testing.T) {
		recorder := get(t, router, "/orders", "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestGetOrderByID(t *testing.T) {
	router, tokens := setupRouter(t)
	token, err := tokens.IssueToken("b@x.com", "B")
	require.NoError(t, err)

	own := get(t, router, "/orders/o1", token)
	assert.Equal(t, http.StatusOK, own.Code)

	other := get(t, router, "/orders/o2", token)
	assert.Equal(t, http.StatusNotFound, other.Code)

	missing := get(t, router, "/orders/o9", token)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
