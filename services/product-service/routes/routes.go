package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/product-service/controllers"
)

// RegisterProductRoutes mounts the catalog. Writes and purchases require a
// bearer token; reads are public.
func RegisterProductRoutes(r *gin.Engine, pc *controllers.ProductController, requireAuth gin.HandlerFunc) {
	productRoutes := r.Group("/product")
	{
		productRoutes.GET("", pc.ListProducts)
		productRoutes.GET("/:id", pc.GetProduct)
		productRoutes.POST("/create", requireAuth, pc.CreateProduct)
		productRoutes.POST("/buy", requireAuth, pc.BuyProducts)
	}
}
