package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/auth-service/models"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/middleware"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, name string) (*models.User, error)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type AuthController struct {
	authService AuthServiceInterface
}

func NewAuthController(authService AuthServiceInterface) *AuthController {
	return &AuthController{authService: authService}
}

// Login exchanges credentials for a bearer token.
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}

	token, err := ac.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Register creates an account and returns it without the credential.
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}

	user, err := ac.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Me echoes the identity carried by the caller's token.
func (ac *AuthController) Me(c *gin.Context) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}
