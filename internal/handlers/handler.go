package handlers

import (
	"net/http"

	"agrismart/internal/hub"
	"agrismart/internal/logger"
	"agrismart/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	events   *hub.Hub
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. events may be
// nil, in which case /ws only sends snapshots.
func NewHandler(services *service.Service, events *hub.Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{services: services, events: events, log: log}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestIDMiddleware, h.accessLogMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAPIRoutes(router)

	// Dashboard push channel on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		h.registerConnectionRoutes(api)
		h.registerWateringRoutes(api)
		h.registerCameraRoutes(api)
		h.registerSettingsRoutes(api)
		api.GET("/logs", h.getLogs)
	}
}

func (h *Handler) registerConnectionRoutes(api *gin.RouterGroup) {
	conn := api.Group("/connection")
	{
		conn.GET("", h.getConnection)
		conn.POST("/test", h.testConnection)
	}
}

func (h *Handler) registerWateringRoutes(api *gin.RouterGroup) {
	watering := api.Group("/watering")
	{
		watering.POST("/start", h.startWatering)
		watering.POST("/stop", h.stopWatering)
		// Body: {"enable": true}
		watering.POST("/auto", h.setAuto)
		watering.POST("/schedule", h.setSchedule)
	}
}

func (h *Handler) registerCameraRoutes(api *gin.RouterGroup) {
	camera := api.Group("/camera")
	{
		// Body: {"var": "brightness", "val": 1}
		camera.POST("/control", h.cameraControl)
		camera.GET("/control", h.cameraSettings)
		camera.GET("/capture", h.cameraCapture)
		camera.GET("/stream", h.cameraStream)
		camera.GET("/info", h.cameraInfo)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("", h.getSettings)
		settings.PUT("", h.saveSettings)
	}
}
