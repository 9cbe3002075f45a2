package application

import (
	"fmt"

	"go.uber.org/zap"

	scanapp "github.com/khanhnv2901/idprecon/internal/application/scan"
	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/idprecon/internal/probe"
)

// Container holds everything one scan run needs.
// This is a simple dependency injection container
type Container struct {
	Config scan.ScanConfig

	// Infrastructure
	Stats      *probe.Stats
	Executor   *probe.Executor
	ReportRepo *json.ReportRepository

	// Services
	Orchestrator *scanapp.Orchestrator
}

// NewContainer wires the probe executor, report storage and orchestrator
// for cfg.
func NewContainer(cfg scan.ScanConfig, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	executor, err := probe.NewExecutor(probe.Options{
		Delay:      cfg.RateLimitDelay(),
		MaxRetries: cfg.MaxRetries(),
		MaxRPS:     cfg.MaxRPS(),
		Timeout:    cfg.RequestTimeout(),
		UserAgent:  cfg.UserAgent(),
		Proxy:      cfg.Proxy(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create probe executor: %w", err)
	}

	reportRepo, err := json.NewReportRepository(cfg.OutputDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create report repository: %w", err)
	}

	stats := executor.Stats()
	orchestrator := scanapp.NewOrchestrator(cfg, executor, logger).WithStats(stats)

	return &Container{
		Config:       cfg,
		Stats:        stats,
		Executor:     executor,
		ReportRepo:   reportRepo,
		Orchestrator: orchestrator,
	}, nil
}
