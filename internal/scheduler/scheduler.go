package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	warmTimeout   = 1 * time.Minute
	priceTimeout  = 30 * time.Second
	reportTimeout = 2 * time.Minute
)

// Warmer preloads the catalogue cache.
type Warmer interface {
	Preload(ctx context.Context)
}

// PriceRefresher reloads prices and reports whether they changed.
type PriceRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// CacheInvalidator stales every catalogue slot.
type CacheInvalidator interface {
	InvalidateAll()
}

// Reporter sends the daily stock summary.
type Reporter interface {
	SendDailySummary(ctx context.Context) error
}

// Jobs lists the scheduled jobs. A job with a nil collaborator or an empty
// schedule is not registered.
type Jobs struct {
	WarmSchedule string
	Warmer       Warmer

	PriceSchedule string
	Prices        PriceRefresher
	Cache         CacheInvalidator

	ReportSchedule string
	Reporter       Reporter
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *zap.Logger
}

// NewScheduler creates a scheduler evaluating schedules in location.
func NewScheduler(jobs Jobs, location *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}

	cronLog := cronLogger{logger: logger.Sugar()}
	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers the configured jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if s.jobs.Warmer != nil && s.jobs.WarmSchedule != "" {
		if err := s.add("cache warm-up", s.jobs.WarmSchedule, s.warmCache); err != nil {
			return err
		}
	}
	if s.jobs.Prices != nil && s.jobs.PriceSchedule != "" {
		if err := s.add("price refresh", s.jobs.PriceSchedule, s.refreshPrices); err != nil {
			return err
		}
	}
	if s.jobs.Reporter != nil && s.jobs.ReportSchedule != "" {
		if err := s.add("stock summary", s.jobs.ReportSchedule, s.sendStockSummary); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) add(name, spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) warmCache() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	s.logger.Debug("warming catalogue cache")
	s.jobs.Warmer.Preload(ctx)
}

func (s *Scheduler) refreshPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), priceTimeout)
	defer cancel()

	changed, err := s.jobs.Prices.Refresh(ctx)
	if err != nil {
		s.logger.Error("failed to refresh prices", zap.Error(err))
		return
	}
	if !changed {
		return
	}

	s.logger.Info("prices changed, invalidating catalogue")
	if s.jobs.Cache != nil {
		s.jobs.Cache.InvalidateAll()
	}
}

func (s *Scheduler) sendStockSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := s.jobs.Reporter.SendDailySummary(ctx); err != nil {
		s.logger.Error("failed to send stock summary", zap.Error(err))
		return
	}
	s.logger.Info("stock summary sent successfully")
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
