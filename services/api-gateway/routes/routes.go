package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/api-gateway/proxy"
)

type Upstreams struct {
	Auth    string
	Product string
	Order   string
}

// RegisterAllRoutes mounts the public API. requireAuth rejects bad tokens at
// the edge; the services still verify them.
func RegisterAllRoutes(r *gin.Engine, f *proxy.Forwarder, up Upstreams, requireAuth gin.HandlerFunc) {
	authProxy := f.To(up.Auth)
	r.POST("/auth/login", authProxy)
	r.POST("/auth/register", authProxy)
	r.GET("/auth/me", requireAuth, authProxy)

	products := f.To(up.Product)
	r.GET("/product", products)
	r.GET("/product/:id", products)
	r.POST("/product/create", requireAuth, products)
	r.POST("/product/buy", requireAuth, products)

	orders := f.To(up.Order)
	r.GET("/orders", requireAuth, orders)
	r.GET("/orders/:id", requireAuth, orders)
}
