package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/rei-deal-drop/internal/auth"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, db SystemHealthChecker, svc *services.Services, cfg *config.Config) {
	authHandler := NewAuthHandler(svc.Auth)
	dealHandler := NewDealHandler(svc.Deal, svc.Export)
	pipelineConfig := services.PipelineConfig{
		BatchSize:       cfg.RescoreBatchSize,
		IntervalMinutes: cfg.RescoreIntervalMinutes,
		MaxConcurrent:   cfg.RescoreMaxConcurrent,
	}
	var providerHealth ProviderHealthReporter
	if reporter, ok := svc.Provider.(ProviderHealthReporter); ok {
		providerHealth = reporter
	}
	systemHandler := NewSystemHandler(db, svc.Rescore, pipelineConfig, providerHealth)

	r.GET("/health", systemHandler.Health)

	// Public routes
	public := r.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/refresh", authHandler.RefreshToken)
		public.POST("/auth/logout", authHandler.Logout)

		public.POST("/analyze", dealHandler.Analyze)
		public.GET("/public/deals", dealHandler.ListPublished)
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Use(auth.CSRFMiddleware())
	{
		protected.GET("/deals", dealHandler.ListDeals)
		protected.POST("/deals", dealHandler.CreateDeal)
		protected.POST("/deals/import", dealHandler.ImportListing)
		protected.GET("/deals/export", dealHandler.ExportDeals)
		protected.GET("/deals/:id", dealHandler.GetDeal)
		protected.PUT("/deals/:id", dealHandler.UpdateDeal)
		protected.DELETE("/deals/:id", dealHandler.DeleteDeal)

		protected.POST("/deals/:id/sold", dealHandler.MarkSold)
		protected.POST("/deals/:id/publish", dealHandler.Publish)
		protected.POST("/deals/:id/unpublish", dealHandler.Unpublish)
		protected.POST("/deals/:id/enrich", dealHandler.EnrichDeal)
	}

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(auth.RequirePermission(func(role string) bool {
		return models.UserRole(role).CanRescore()
	}))
	{
		admin.POST("/rescore", systemHandler.RunRescore)
		admin.GET("/rescore/status", systemHandler.RescoreStatus)
	}
}
