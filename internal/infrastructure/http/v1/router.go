// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"dairyops/internal/core/clock"
	"dairyops/internal/infrastructure/http/v1/handlers"
	"dairyops/internal/infrastructure/http/v1/middleware"
	"dairyops/pkg/logger"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	Logger  *logger.Logger
	Clock   clock.Clock
	Version string

	// Database backs the readiness and info probes.
	Database handlers.Database

	// Idempotency enables Idempotency-Key replay on POST when set.
	Idempotency middleware.IdempotencyStore

	Collection handlers.CollectionService
	Intake     handlers.IntakeService
	Production handlers.ProductionService
	Lab        handlers.LabService
	Storage    handlers.StorageService
	Inventory  handlers.InventoryService
	Sales      handlers.SalesService
	Audit      handlers.AuditHistory

	// Development keeps gin in debug mode.
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Database != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Operator())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerCollectionRoutes(api, handlers.NewCollectionHandler(cfg.Collection))
	registerIntakeRoutes(api, handlers.NewIntakeHandler(cfg.Intake, cfg.Clock))
	registerProductionRoutes(api, handlers.NewProductionHandler(cfg.Production))
	registerLabRoutes(api, handlers.NewLabHandler(cfg.Lab))
	registerStorageRoutes(api, handlers.NewStorageHandler(cfg.Storage))
	registerInventoryRoutes(api, handlers.NewInventoryHandler(cfg.Inventory))
	registerSalesRoutes(api, handlers.NewSalesHandler(cfg.Sales))
	if cfg.Audit != nil {
		api.GET("/audit/:entityType/:id", handlers.NewAuditHandler(cfg.Audit).History)
	}

	return router
}

func registerCollectionRoutes(api *gin.RouterGroup, h *handlers.CollectionHandler) {
	g := api.Group("/collection-windows")
	g.GET("", h.List)
	g.PUT("/:session", h.Set)
	g.DELETE("/:session", h.Delete)
}

func registerIntakeRoutes(api *gin.RouterGroup, h *handlers.IntakeHandler) {
	yields := api.Group("/yields")
	yields.POST("", h.RecordYield)
	yields.GET("/session-availability", h.SessionAvailability)
	yields.PATCH("/:id", h.EditYield)

	batches := api.Group("/batches")
	batches.GET("/current", h.CurrentBatch)
	batches.GET("/:id/volume", h.Volume)
	batches.POST("/:id/open", h.OpenBatch)
	batches.POST("/:id/close", h.CloseBatch)
	batches.POST("/:id/lock", h.LockBatch)
	batches.PUT("/:id/test", h.RecordTest)
	batches.POST("/:id/test/approve", h.ApproveTest)
	batches.POST("/:id/test/reject", h.RejectTest)
}

func registerProductionRoutes(api *gin.RouterGroup, h *handlers.ProductionHandler) {
	g := api.Group("/production-batches")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
}

func registerLabRoutes(api *gin.RouterGroup, h *handlers.LabHandler) {
	g := api.Group("/lab-approvals")
	g.GET("", h.List)
	g.GET("/:batchId", h.Get)
	g.PUT("/:batchId", h.Save)
	g.POST("/:batchId/expiry", h.SetExpiry)
}

func registerStorageRoutes(api *gin.RouterGroup, h *handlers.StorageHandler) {
	g := api.Group("/storage")
	g.GET("/locations", h.Locations)
	g.GET("/lots", h.Lots)
	g.DELETE("/lots/:id", h.DeleteLot)
	g.POST("/lots/:id/expire", h.ExpireLot)
	g.POST("/reconcile", h.Reconcile)
	g.POST("/sync", h.Sync)
}

func registerInventoryRoutes(api *gin.RouterGroup, h *handlers.InventoryHandler) {
	g := api.Group("/inventory")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/transactions", h.Transactions)
}

func registerSalesRoutes(api *gin.RouterGroup, h *handlers.SalesHandler) {
	g := api.Group("/sales")
	g.POST("", h.Record)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/refund", h.Refund)
}
