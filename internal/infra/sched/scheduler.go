package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"log-archiver/internal/config"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/infra/metrics"
	"log-archiver/internal/infra/worker"
	"log-archiver/internal/usecase"
)

// runTimeout bounds any single trigger invocation so a wedged run
// cannot starve later ticks. Per-step fetch/upload deadlines live in
// the slot processor; this is just the outer guard.
const runTimeout = 15 * time.Minute

// Scheduler owns the recurring triggers: daily job creation, hourly
// slot processing, the retry scan, and the retention sweeps. Each fires
// on its own cron cadence in the configured timezone. Overlapping runs
// are safe; the per-slot compare-and-set in the store is what prevents
// double-processing, not this object.
type Scheduler struct {
	cron      *cron.Cron
	loc       *time.Location
	daily     usecase.DailyJobUseCase
	processor usecase.SlotProcessorUseCase
	retry     *worker.RetryProcessor
	retention usecase.RetentionUseCase
	dryRun    bool
	log       *zerolog.Logger
	now       func() time.Time // test seam

	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	cfg config.SchedulerConfig,
	daily usecase.DailyJobUseCase,
	processor usecase.SlotProcessorUseCase,
	retry *worker.RetryProcessor,
	retention usecase.RetentionUseCase,
	retentionDryRun bool,
	logger *zerolog.Logger,
) (*Scheduler, error) {
	loc := cfg.Location()
	l := logger.With().Str("component", "Scheduler").Logger()
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		loc:       loc,
		daily:     daily,
		processor: processor,
		retry:     retry,
		retention: retention,
		dryRun:    retentionDryRun,
		log:       &l,
		now:       time.Now,
	}

	entries := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"daily_job", cfg.DailyCron, s.runDaily},
		{"hourly_slot", cfg.HourlyCron, s.runHourly},
		{"retry_scan", cfg.RetryCron, s.runRetry},
		{"retention_sweep", cfg.RetentionCron, s.runRetention},
	}
	for _, e := range entries {
		e := e
		if _, err := s.cron.AddFunc(e.spec, func() { s.invoke(e.name, e.run) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", e.name, e.spec, err)
		}
	}
	return s, nil
}

// Start begins firing triggers. Calling Start twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	s.cron.Start()
	s.log.Info().Str("timezone", s.loc.String()).Msg("scheduler started")
}

// Stop cancels in-flight runs and waits for the cron runner to drain.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) invoke(name string, run func(context.Context)) {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()
	s.log.Debug().Str("trigger", name).Msg("trigger fired")
	run(ctx)
}

func (s *Scheduler) runDaily(ctx context.Context) {
	date := s.now().In(s.loc).Format(model.DateLayout)
	if _, err := s.daily.CreateDailyJob(ctx, date); err != nil {
		s.log.Error().Err(err).Str("date", date).Msg("daily job creation failed")
	}
}

// runHourly processes the hour window that just closed. The day's job
// is ensured first so the first tick after midnight (or after a gap in
// uptime) does not dead-letter on a missing job.
func (s *Scheduler) runHourly(ctx context.Context) {
	target := s.now().In(s.loc).Add(-time.Hour)
	date := target.Format(model.DateLayout)
	hourRange := model.HourRangeFor(target.Hour())

	if _, err := s.daily.CreateDailyJob(ctx, date); err != nil {
		s.log.Error().Err(err).Str("date", date).Msg("could not ensure daily job")
		return
	}
	if _, err := s.processor.ProcessSlot(ctx, date, hourRange); err != nil {
		s.log.Error().Err(err).Str("date", date).Str("hour", hourRange).Msg("hourly processing failed")
	}
}

func (s *Scheduler) runRetry(ctx context.Context) {
	s.retry.RunOnce(ctx)
}

func (s *Scheduler) runRetention(ctx context.Context) {
	db, err := s.retention.SweepDatabase(ctx, s.dryRun)
	if err != nil {
		s.log.Error().Err(err).Msg("database retention sweep failed")
	} else if !s.dryRun {
		metrics.AddRetentionDeleted("database", db.Deleted)
	}
	st, err := s.retention.SweepStorage(ctx, s.dryRun)
	if err != nil {
		s.log.Error().Err(err).Msg("storage retention sweep failed")
	} else if !s.dryRun {
		metrics.AddRetentionDeleted("storage", st.Deleted)
	}
}
