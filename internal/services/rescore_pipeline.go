package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/logger"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// RescorePipeline recomputes persisted scores that were produced under an
// older scoring policy version
type RescorePipeline struct {
	repos  *repository.Repositories
	engine *scoring.ScoringEngine
	log    logger.Logger

	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex

	lastMu   sync.RWMutex
	lastRun  *PipelineStats
	runCount int
}

// NewRescorePipeline creates a new rescore pipeline
func NewRescorePipeline(repos *repository.Repositories, engine *scoring.ScoringEngine, log logger.Logger) *RescorePipeline {
	return &RescorePipeline{
		repos:  repos,
		engine: engine,
		log:    log,
	}
}

// PipelineConfig contains configuration for the rescore pipeline
type PipelineConfig struct {
	BatchSize       int `json:"batch_size"`       // Deals loaded per cycle
	IntervalMinutes int `json:"interval_minutes"` // How often Start runs a cycle
	MaxConcurrent   int `json:"max_concurrent"`   // Concurrent score updates
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:       200,
		IntervalMinutes: 60,
		MaxConcurrent:   8,
	}
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	d := DefaultPipelineConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = d.IntervalMinutes
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	return c
}

// Start runs a cycle immediately and then every IntervalMinutes until Stop
func (p *RescorePipeline) Start(config PipelineConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("pipeline is already running")
	}

	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.isRunning = true

	p.wg.Add(1)
	go p.runPipeline(ctx, config)

	p.log.Info("rescore pipeline started",
		"batch_size", config.BatchSize,
		"interval_minutes", config.IntervalMinutes,
		"max_concurrent", config.MaxConcurrent,
	)
	return nil
}

// Stop cancels any in-flight cycle and waits for the loop to exit
func (p *RescorePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return fmt.Errorf("pipeline is not running")
	}

	p.cancel()
	p.wg.Wait()
	p.isRunning = false

	p.log.Info("rescore pipeline stopped")
	return nil
}

// IsRunning returns whether the pipeline is currently running
func (p *RescorePipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// RunOnce executes a single rescore cycle
func (p *RescorePipeline) RunOnce(ctx context.Context, config PipelineConfig) (*PipelineStats, error) {
	return p.executeCycle(ctx, config.withDefaults())
}

// Status reports whether the loop is running and the outcome of the last cycle
func (p *RescorePipeline) Status() PipelineStatus {
	running := p.IsRunning()

	p.lastMu.RLock()
	defer p.lastMu.RUnlock()

	status := PipelineStatus{
		IsRunning:     running,
		PolicyVersion: p.engine.PolicyVersion(),
		Runs:          p.runCount,
		Timestamp:     time.Now(),
	}
	if p.lastRun != nil {
		last := *p.lastRun
		status.LastRun = &last
	}
	return status
}

func (p *RescorePipeline) runPipeline(ctx context.Context, config PipelineConfig) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Duration(config.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		if stats, err := p.executeCycle(ctx, config); err != nil {
			if ctx.Err() == nil {
				p.log.Error("rescore cycle failed", err)
			}
		} else {
			p.log.Info("rescore cycle completed", "summary", stats.Summary())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// executeCycle loads one batch of stale deals and rescores them concurrently.
// Per-deal failures are counted, not returned; the deal stays stale and is
// picked up by a later cycle. A deal edited after the batch was loaded is
// skipped since the edit already stored a current score.
func (p *RescorePipeline) executeCycle(ctx context.Context, config PipelineConfig) (*PipelineStats, error) {
	version := p.engine.PolicyVersion()
	stats := &PipelineStats{
		StartTime:     time.Now(),
		BatchSize:     config.BatchSize,
		PolicyVersion: version,
	}

	deals, err := p.repos.Deal.ListStale(ctx, version, config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to load stale deals: %w", err)
	}
	stats.DealsFound = len(deals)

	var rescored, changed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.MaxConcurrent)

	for i := range deals {
		deal := deals[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			didChange, err := p.rescoreDeal(gctx, &deal)
			if errors.IsConflict(err) {
				skipped.Add(1)
				p.log.Debug("deal changed concurrently, skipping", "deal_id", deal.ID)
				return nil
			}
			if err != nil {
				failed.Add(1)
				p.log.Warn("failed to rescore deal", "deal_id", deal.ID, "error", err)
				return nil
			}
			rescored.Add(1)
			if didChange {
				changed.Add(1)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	stats.DealsRescored = int(rescored.Load())
	stats.DealsChanged = int(changed.Load())
	stats.DealsSkipped = int(skipped.Load())
	stats.DealsFailed = int(failed.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	p.lastMu.Lock()
	p.lastRun = stats
	p.runCount++
	p.lastMu.Unlock()

	if waitErr != nil {
		return stats, fmt.Errorf("rescore cycle interrupted: %w", waitErr)
	}
	return stats, nil
}

// rescoreDeal scores a loaded snapshot and stores the result against the
// snapshot's revision
func (p *RescorePipeline) rescoreDeal(ctx context.Context, deal *models.Deal) (bool, error) {
	result := p.engine.Score(deal.Financials())
	changed := result.Score != deal.DealScore || result.Verdict != deal.Verdict

	if err := p.repos.Deal.UpdateScore(ctx, deal.ID, deal.Revision, result.Score, result.Verdict, result.PolicyVersion); err != nil {
		return false, err
	}
	return changed, nil
}

// PipelineStats summarizes one rescore cycle
type PipelineStats struct {
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	BatchSize     int           `json:"batch_size"`
	PolicyVersion string        `json:"policy_version"`
	DealsFound    int           `json:"deals_found"`
	DealsRescored int           `json:"deals_rescored"`
	DealsChanged  int           `json:"deals_changed"`
	DealsSkipped  int           `json:"deals_skipped"`
	DealsFailed   int           `json:"deals_failed"`
}

// Summary renders the stats for log lines
func (s *PipelineStats) Summary() string {
	return fmt.Sprintf("found=%d, rescored=%d, changed=%d, skipped=%d, failed=%d, duration=%v",
		s.DealsFound, s.DealsRescored, s.DealsChanged, s.DealsSkipped, s.DealsFailed, s.Duration.Round(time.Millisecond))
}

// PipelineStatus is the pipeline's externally visible state
type PipelineStatus struct {
	IsRunning     bool           `json:"is_running"`
	PolicyVersion string         `json:"policy_version"`
	Runs          int            `json:"runs"`
	LastRun       *PipelineStats `json:"last_run,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
