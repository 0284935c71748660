package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/repository"
	"log-archiver/internal/infra/metrics"
	"log-archiver/internal/usecase"
)

// RetryProcessor is the retry coordinator: on each run it reclaims
// processing slots abandoned by a crashed attempt, then re-drives every
// failed slot still under the attempt ceiling through the slot
// processor, fanned out over the pool. Completed and permanently failed
// slots are never touched (the retryable scan cannot return them).
type RetryProcessor struct {
	repo        repository.JobRepository
	processor   usecase.SlotProcessorUseCase
	pool        *Pool
	maxAttempts int
	staleAfter  time.Duration
	scanLimit   int
	log         *zerolog.Logger
}

func NewRetryProcessor(
	repo repository.JobRepository,
	processor usecase.SlotProcessorUseCase,
	pool *Pool,
	maxAttempts int,
	staleAfter time.Duration,
	logger *zerolog.Logger,
) *RetryProcessor {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	l := logger.With().Str("component", "RetryProcessor").Logger()
	return &RetryProcessor{
		repo:        repo,
		processor:   processor,
		pool:        pool,
		maxAttempts: maxAttempts,
		staleAfter:  staleAfter,
		scanLimit:   200,
		log:         &l,
	}
}

// RunOnce performs one reclaim-and-retry pass and blocks until every
// re-driven slot has finished. One slot's failure never blocks the rest.
func (p *RetryProcessor) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-p.staleAfter)
	reclaimed, err := p.repo.ReclaimStale(ctx, cutoff, p.maxAttempts)
	if err != nil {
		p.log.Error().Err(err).Msg("stale slot reclaim failed")
	} else if reclaimed > 0 {
		metrics.AddSlotsReclaimed(reclaimed)
		p.log.Warn().Int("count", reclaimed).Msg("reclaimed stale processing slots")
	}

	slots, err := p.repo.ListRetryable(ctx, p.maxAttempts, p.scanLimit)
	if err != nil {
		p.log.Error().Err(err).Msg("retryable scan failed")
		return
	}
	if len(slots) == 0 {
		return
	}
	p.log.Info().Int("count", len(slots)).Msg("retrying failed slots")

	var wg sync.WaitGroup
	for _, s := range slots {
		slot := s
		wg.Add(1)
		task := func(ctx context.Context) error {
			defer wg.Done()
			p.retryOne(ctx, slot)
			return nil
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			p.log.Warn().Err(err).Str("date", slot.JobDate).Str("hour", slot.HourRange).
				Msg("retry not scheduled; next scan will pick it up")
		}
	}
	wg.Wait()
}

func (p *RetryProcessor) retryOne(ctx context.Context, slot model.HourSlot) {
	// ProcessSlot records failures on the slot itself; an error here is
	// a claim/store problem, not a processing outcome.
	if _, err := p.processor.ProcessSlot(ctx, slot.JobDate, slot.HourRange); err != nil {
		p.log.Error().Err(err).Str("date", slot.JobDate).Str("hour", slot.HourRange).Msg("retry failed")
	}
}
