// Package scheduler runs the recurring maintenance jobs: baseline drift
// detection and migration-history rotation.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Detector is the detection job's entry point.
type Detector interface {
	DetectAndSave(ctx context.Context) error
}

// Rotator prunes history older than the cutoff.
type Rotator interface {
	RotateHistory(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds the cron expressions and retention window. Empty expressions
// disable the corresponding job.
type Config struct {
	// DetectSpec is a standard 5-field cron expression for detect-and-save.
	DetectSpec string
	// RotateSpec is the cron expression for history rotation.
	RotateSpec string
	// Retention is how long history entries are kept. Defaults to 90 days.
	Retention time.Duration
	// JobTimeout bounds one job run. Defaults to 30 minutes.
	JobTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Minute
	}
}

// Scheduler wraps a cron runner around the two jobs.
type Scheduler struct {
	cron     *cron.Cron
	detector Detector
	rotator  Rotator
	cfg      Config
	logger   *slog.Logger
}

// New builds a Scheduler and registers the configured jobs. Invalid cron
// expressions are returned as errors before anything starts.
func New(detector Detector, rotator Rotator, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	cfg.applyDefaults()
	s := &Scheduler{
		cron:     cron.New(),
		detector: detector,
		rotator:  rotator,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.DetectSpec != "" {
		if _, err := s.cron.AddFunc(cfg.DetectSpec, s.runDetect); err != nil {
			return nil, err
		}
	}
	if cfg.RotateSpec != "" {
		if _, err := s.cron.AddFunc(cfg.RotateSpec, s.runRotate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		"detect", s.cfg.DetectSpec, "rotate", s.cfg.RotateSpec,
		"retention", s.cfg.Retention.String())
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runDetect() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	start := time.Now()
	if err := s.detector.DetectAndSave(ctx); err != nil {
		s.logger.Error("scheduled detection failed", "error", err)
		return
	}
	s.logger.Info("scheduled detection finished", "duration", time.Since(start).String())
}

func (s *Scheduler) runRotate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	cutoff := time.Now().Add(-s.cfg.Retention)
	removed, err := s.rotator.RotateHistory(ctx, cutoff)
	if err != nil {
		s.logger.Error("history rotation failed", "error", err)
		return
	}
	s.logger.Info("history rotated", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
}
