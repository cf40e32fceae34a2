// Package worker drives the execution loop: a single-threaded ticker that
// runs one due-reminder pass per interval until its context is cancelled.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"promptyoself/internal/scheduler"
)

// Executor runs one execution pass. Satisfied by *scheduler.Service.
type Executor interface {
	ExecuteDue(ctx context.Context) ([]scheduler.Outcome, error)
}

// Config holds worker settings.
type Config struct {
	PollInterval time.Duration
}

// Worker polls for due reminders at a fixed interval.
type Worker struct {
	executor Executor
	config   Config
	logger   *zap.Logger
}

// New creates a worker.
func New(executor Executor, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 60 * time.Second
	}

	return &Worker{
		executor: executor,
		config:   cfg,
		logger:   logger,
	}
}

// Start blocks, running one pass per tick until ctx is cancelled. Each
// pass is independent; a failed pass is logged and the next tick tries
// again.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("worker starting",
		zap.Duration("poll_interval", w.config.PollInterval),
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *Worker) runPass(ctx context.Context) {
	outcomes, err := w.executor.ExecuteDue(ctx)
	if err != nil {
		w.logger.Error("execution pass failed", zap.Error(err))
		return
	}
	if len(outcomes) > 0 {
		w.logger.Info("executed due reminders", zap.Int("count", len(outcomes)))
	}
}
