package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/events"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/product-service/models"
	"github.com/yashrajoria/shopflow/services/product-service/services"
)

type ProductServiceAPI interface {
	CreateProduct(ctx context.Context, in services.CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, page, perPage int) (*models.ProductPage, error)
	BuyProducts(ctx context.Context, ids []string, identity auth.Identity) (events.PurchaseIntent, error)
}

type ProductController struct {
	service   ProductServiceAPI
	validator *RequestValidator
}

func NewProductController(service ProductServiceAPI) *ProductController {
	return &ProductController{service: service, validator: NewRequestValidator()}
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}
	if err := pc.validator.Struct(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}

	product, err := pc.service.CreateProduct(c.Request.Context(), services.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	product, err := pc.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) ListProducts(c *gin.Context) {
	page, perPage, err := pc.validator.ParsePagination(c)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.WithMessage(err.Error()))
		return
	}

	result, err := pc.service.ListProducts(c.Request.Context(), page, perPage)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BuyProducts queues a purchase for the caller. The order itself is created
// asynchronously by the order service.
func (pc *ProductController) BuyProducts(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	var req BuyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Abort(c, apperrors.ErrInvalidInput.Wrap(err))
			return
		}
	}

	if _, err := pc.service.BuyProducts(c.Request.Context(), req.IDs, identity); err != nil {
		apperrors.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order is being processed"})
}
