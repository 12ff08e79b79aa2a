package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/order-service/controllers"
)

func RegisterOrderRoutes(r *gin.Engine, oc *controllers.OrderController, requireAuth gin.HandlerFunc) {
	orderRoutes := r.Group("/orders")
	orderRoutes.Use(requireAuth)
	orderRoutes.GET("", oc.GetOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)
}
