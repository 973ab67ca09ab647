package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/postora/postora-server/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1/uploads")
	group.POST("/single", r.handlers.Upload.UploadSingle)
	group.POST("/multiple", r.handlers.Upload.UploadMultiple)
	group.GET("", r.handlers.Upload.List)
	group.GET("/policies", r.handlers.Upload.Policies)
	group.GET("/policies/schema", r.handlers.Upload.PolicySchema)
	group.GET("/:id", r.handlers.Upload.Get)
	group.DELETE("/:id", r.handlers.Upload.Delete)
}

// RegisterPublic attaches the static file route under prefix.
func (r *Routes) RegisterPublic(router gin.IRouter, prefix string) {
	router.GET(prefix+"/:category/:name", r.handlers.Upload.Serve)
	router.HEAD(prefix+"/:category/:name", r.handlers.Upload.Serve)
}
