package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/order-service/models"
)

type OrderReader interface {
	FindByUser(ctx context.Context, email string) ([]models.Order, error)
	FindByID(ctx context.Context, id, email string) (*models.Order, error)
}

type OrderController struct {
	orders OrderReader
}

func NewOrderController(orders OrderReader) *OrderController {
	return &OrderController{orders: orders}
}

// GetOrders returns the caller's orders, newest first
func (oc *OrderController) GetOrders(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	orders, err := oc.orders.FindByUser(c.Request.Context(), identity.Email)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrderByID returns one of the caller's orders. Other users' orders are 404.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	order, err := oc.orders.FindByID(c.Request.Context(), c.Param("id"), identity.Email)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
