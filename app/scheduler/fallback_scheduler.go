// Package scheduler runs the registry's periodic jobs
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/likebounty/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const runTimeout = 25 * time.Second

// FallbackRegistry is the part of the registry the fallback job drives
type FallbackRegistry interface {
	CampaignsAwaitingFallback(now time.Time) []uint64
	FallbackSelect(ctx context.Context, id uint64, now time.Time) (string, error)
}

// FallbackScheduler selects an applicant for campaigns whose sponsor let the
// selection grace period lapse
type FallbackScheduler struct {
	registry FallbackRegistry
	logger   *zap.Logger
	now      func() time.Time

	cron     *cron.Cron
	cronSpec string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFallbackScheduler creates a scheduler running on cronSpec (seconds field included)
func NewFallbackScheduler(registry FallbackRegistry, cronSpec string, logger *zap.Logger) (*FallbackScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FallbackScheduler{
		registry: registry,
		logger:   logger.Named("fallback"),
		now:      utils.UTCNow,
		cronSpec: cronSpec,
	}

	cronLogger := zapCronLogger{s.logger.Sugar()}
	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(cronSpec); err != nil {
		return nil, fmt.Errorf("invalid fallback schedule %q: %w", cronSpec, err)
	}
	return s, nil
}

// Start schedules the job and returns a stop function that waits for a
// running pass to finish
func (s *FallbackScheduler) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	_, err := s.cron.AddFunc(s.cronSpec, func() {
		rctx, rcancel := context.WithTimeout(ctx, runTimeout)
		defer rcancel()
		s.RunOnce(rctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule fallback job: %w", err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Fallback scheduler started", zap.String("cron_spec", s.cronSpec))

	return s.stop, nil
}

func (s *FallbackScheduler) stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.logger.Info("Fallback scheduler stopped")
}

// RunOnce performs one fallback pass and returns how many campaigns got an
// applicant
func (s *FallbackScheduler) RunOnce(ctx context.Context) int {
	now := s.now()
	ids := s.registry.CampaignsAwaitingFallback(now)
	if len(ids) == 0 {
		return 0
	}

	selected := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			s.logger.Warn("Fallback pass interrupted", zap.Error(ctx.Err()), zap.Int("remaining", len(ids)-i))
			break
		}
		applicant, err := s.registry.FallbackSelect(ctx, id, now)
		if err != nil {
			// a sponsor may select between the scan and the call
			s.logger.Warn("Fallback selection failed", zap.Uint64("campaign_id", id), zap.Error(err))
			continue
		}
		selected++
		s.logger.Info("Fallback applicant selected", zap.Uint64("campaign_id", id), zap.String("applicant", applicant))
	}
	return selected
}

type zapCronLogger struct {
	l *zap.SugaredLogger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...any) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	z.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
