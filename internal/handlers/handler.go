package handlers

import (
	"strings"

	"retrolock/internal/logger"
	"retrolock/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger

	// onFault is called once a hardware fault reaches the HTTP layer.
	onFault func(err error)
}

// Option customizes a Handler.
type Option func(*Handler)

// WithFaultHandler replaces the default hardware fault reaction, which logs
// at fatal level and exits the process.
func WithFaultHandler(fn func(err error)) Option {
	return func(h *Handler) {
		h.onFault = fn
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{services: services, log: log}
	h.onFault = func(err error) {
		h.log.Fatalw("hardware_fault_fatal", "err", err)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	h.registerDoorRoutes(router)

	return router
}

func (h *Handler) registerDoorRoutes(r *gin.Engine) {
	guarded := r.Group("/", h.authorize)
	{
		// Body example: {"state":"open"}
		guarded.POST("/gpio", h.setGPIO)
		guarded.GET("/status", h.getStatus)
		guarded.POST("/reset", h.reset)

		guarded.GET("/events", h.getEvents)
		guarded.GET("/ws", h.wsConnect)
	}
}

// operationName labels audit lines with the matched route.
func operationName(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return strings.TrimPrefix(p, "/")
	}
	return c.Request.URL.Path
}
