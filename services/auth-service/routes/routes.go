package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/auth-service/controllers"
)

// RegisterRoutes mounts the /auth endpoints. limiter guards login and
// registration; requireAuth protects /auth/me.
func RegisterRoutes(r *gin.Engine, ac *controllers.AuthController, limiter, requireAuth gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", limiter, ac.Login)
		authGroup.POST("/register", limiter, ac.Register)
		authGroup.GET("/me", requireAuth, ac.Me)
	}
}
