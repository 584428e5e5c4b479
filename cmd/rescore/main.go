package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
	"github.com/ajharbinger/rei-deal-drop/pkg/config"
)

func main() {
	once := flag.Bool("once", false, "run a single rescore cycle and exit")
	flag.Parse()

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

	pipeline := services.NewRescorePipeline(repository.NewRepositories(db), engine, appLog)
	pipelineConfig := services.PipelineConfig{
		BatchSize:       cfg.RescoreBatchSize,
		IntervalMinutes: cfg.RescoreIntervalMinutes,
		MaxConcurrent:   cfg.RescoreMaxConcurrent,
	}

	fmt.Printf("Rescore pipeline (policy %s)\n", engine.PolicyVersion())
	fmt.Printf("   batch size:     %d deals\n", pipelineConfig.BatchSize)
	fmt.Printf("   interval:       %d minutes\n", pipelineConfig.IntervalMinutes)
	fmt.Printf("   max concurrent: %d\n", pipelineConfig.MaxConcurrent)

	if *once {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stats, err := pipeline.RunOnce(ctx, pipelineConfig)
		if err != nil {
			appLog.Fatal("rescore failed", err)
		}
		fmt.Printf("\nRescore completed in %v\n", stats.Duration.Round(time.Millisecond))
		fmt.Println(stats.Summary())
		return
	}

	if err := pipeline.Start(pipelineConfig); err != nil {
		appLog.Fatal("failed to start pipeline", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	fmt.Println("\nRescore pipeline is running, press Ctrl+C to stop")
	<-sigChan

	if err := pipeline.Stop(); err != nil {
		appLog.Error("error stopping pipeline", err)
		return
	}
	fmt.Println("Pipeline stopped")
}
