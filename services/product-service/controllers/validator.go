package controllers

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validation constants
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPageNumber   = 1000000
)

// CreateProductRequest defines the expected structure for creating a product
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

// BuyRequest lists the product ids to purchase. A missing list buys nothing.
type BuyRequest struct {
	IDs []string `json:"ids"`
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	// decimals are validated by their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &RequestValidator{validate: v}
}

// Struct validates s against its validate tags.
func (rv *RequestValidator) Struct(s interface{}) error {
	return rv.validate.Struct(s)
}

// ParsePagination validates and parses pagination parameters
func (rv *RequestValidator) ParsePagination(c *gin.Context) (int, int, error) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 || page > MaxPageNumber {
		return 0, 0, fmt.Errorf("page must be between 1 and %d", MaxPageNumber)
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("perPage", strconv.Itoa(DefaultPageSize)))
	if err != nil || perPage < 1 || perPage > MaxPageSize {
		return 0, 0, fmt.Errorf("perPage must be between 1 and %d", MaxPageSize)
	}

	return page, perPage, nil
}
