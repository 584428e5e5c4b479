package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ajharbinger/rei-deal-drop/internal/api"
	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/middleware"
	"github.com/ajharbinger/rei-deal-drop/internal/propertydata"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	appLog, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer appLog.Sync()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		appLog.Fatal("failed to run migrations", err)
	}

	policy, err := config.LoadScoringPolicy(cfg.ScoringPolicyPath)
	if err != nil {
		appLog.Fatal("failed to load scoring policy", err)
	}
	engine, err := scoring.NewScoringEngineWithPolicy(policy)
	if err != nil {
		appLog.Fatal("invalid scoring policy", err)
	}

	deps := services.Dependencies{
		Repos:  repository.NewRepositories(db),
		Engine: engine,
		Logger: appLog,
	}
	if cfg.HasPropertyDataCredentials() {
		client := propertydata.NewClient(cfg.PropertyDataEndpoint, cfg.PropertyDataAPIKey, cfg.PropertyDataRPS)
		defer client.Close()
		deps.Provider = client
	} else {
		appLog.Warn("property data provider not configured, enrichment disabled")
	}
	if hosts := cfg.GetListingHosts(); len(hosts) > 0 {
		listings := propertydata.NewClient(cfg.PropertyDataEndpoint, "", cfg.PropertyDataRPS)
		listings.AllowListingHosts(hosts...)
		defer listings.Close()
		deps.Listings = listings
	} else {
		appLog.Warn("no listing hosts allowed, listing import disabled")
	}
	svc := services.NewServices(deps, cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RecoveryMiddleware(appLog))
	r.Use(middleware.LoggingMiddleware(appLog))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.InputValidationMiddleware(cfg.MaxRequestSize))
	if cfg.EnableRateLimit {
		r.Use(middleware.RateLimitingMiddleware(middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)))
	}
	if err := r.SetTrustedProxies(cfg.GetTrustedProxies()); err != nil {
		appLog.Fatal("invalid trusted proxies", err)
	}

	api.SetupRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("server starting", "port", cfg.Port, "dialect", db.Dialect, "policy_version", engine.PolicyVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("server forced to shutdown", err)
	}
	if svc.Rescore.IsRunning() {
		_ = svc.Rescore.Stop()
	}
}
