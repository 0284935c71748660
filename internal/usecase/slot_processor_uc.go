package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/adapter"
	"log-archiver/internal/domain/ports/repository"
)

// SlotProcessorUseCase is the atomic unit of work: claim the slot,
// fetch the hour window, write the artifact, ship it, persist the
// outcome. Invoked by the hourly trigger, the retry coordinator, and
// the manual trigger alike.
type SlotProcessorUseCase interface {
	// ProcessSlot runs one attempt for (date, hourRange) and returns the
	// resulting slot state. A slot already processing or completed is a
	// no-op that returns the current state with no error; all attempt
	// failures are recorded on the slot, never propagated.
	ProcessSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error)
}

type SlotProcessorConfig struct {
	Location      *time.Location
	MaxAttempts   int
	FetchTimeout  time.Duration
	UploadTimeout time.Duration
}

type slotProcessorUC struct {
	repo     repository.JobRepository
	fetcher  adapter.RecordFetcher
	writer   adapter.ArchiveWriter
	uploader adapter.Uploader
	cfg      SlotProcessorConfig
	log      *zerolog.Logger
}

func NewSlotProcessorUseCase(
	repo repository.JobRepository,
	fetcher adapter.RecordFetcher,
	writer adapter.ArchiveWriter,
	uploader adapter.Uploader,
	cfg SlotProcessorConfig,
	logger *zerolog.Logger,
) SlotProcessorUseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	l := logger.With().Str("component", "SlotProcessor").Logger()
	return &slotProcessorUC{repo: repo, fetcher: fetcher, writer: writer, uploader: uploader, cfg: cfg, log: &l}
}

func (uc *slotProcessorUC) ProcessSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	start, end, err := model.SlotWindow(date, hourRange, uc.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	slot, err := uc.repo.BeginAttempt(ctx, date, hourRange)
	if err != nil {
		if errors.Is(err, domain.ErrSlotBusy) {
			uc.log.Debug().Str("date", date).Str("hour", hourRange).
				Str("status", string(slot.Status)).Msg("slot not claimable, skipping")
			return slot, nil
		}
		// permanently failed, missing, or a store error
		return slot, err
	}

	log := uc.log.With().
		Str("date", date).Str("hour", hourRange).
		Int("attempt", slot.Attempts).
		Str("attempt_id", uuid.NewString()).Logger()
	log.Info().Time("window_start", start).Time("window_end", end).Msg("processing slot")

	records, err := uc.fetchWindow(ctx, start, end)
	if err != nil {
		return uc.fail(ctx, date, hourRange, slot, model.NewStepError(model.StepFetch, err), &log)
	}

	// Zero records is a legitimate hour; it still gets an artifact.
	path, err := uc.writer.Write(date, hourRange, records)
	if err != nil {
		return uc.fail(ctx, date, hourRange, slot, model.NewStepError(model.StepWrite, err), &log)
	}

	key := uc.writer.Key(date, hourRange)
	location, err := uc.uploadArtifact(ctx, path, key)
	if err != nil {
		return uc.fail(ctx, date, hourRange, slot, model.NewStepError(model.StepUpload, err), &log)
	}

	done, err := uc.repo.CompleteAttempt(ctx, date, hourRange, int64(len(records)), path, key, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("could not persist completion")
		return slot, err
	}
	log.Info().Int64("records", done.RecordCount).Str("location", location).Msg("slot completed")
	return done, nil
}

func (uc *slotProcessorUC) fetchWindow(ctx context.Context, start, end time.Time) ([]model.LogRecord, error) {
	if uc.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.FetchTimeout)
		defer cancel()
	}
	return uc.fetcher.Fetch(ctx, start, end)
}

func (uc *slotProcessorUC) uploadArtifact(ctx context.Context, path, key string) (string, error) {
	if uc.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.UploadTimeout)
		defer cancel()
	}
	return uc.uploader.Upload(ctx, path, key)
}

// fail records the attempt's outcome on the slot. The attempt counter
// was already advanced by BeginAttempt, so reaching the ceiling here
// makes the failure terminal.
func (uc *slotProcessorUC) fail(ctx context.Context, date, hourRange string, claimed *model.HourSlot, stepErr *model.StepError, log *zerolog.Logger) (*model.HourSlot, error) {
	permanent := claimed.Attempts >= uc.cfg.MaxAttempts

	slot, err := uc.repo.FailAttempt(ctx, date, hourRange, stepErr.Error(), permanent)
	if err != nil {
		log.Error().Err(err).Str("cause", stepErr.Error()).Msg("could not persist failure")
		return claimed, err
	}
	if permanent {
		log.Error().Str("step", string(stepErr.Step)).Err(stepErr.Err).
			Int("attempts", slot.Attempts).Msg("slot permanently failed")
	} else {
		log.Warn().Str("step", string(stepErr.Step)).Err(stepErr.Err).
			Int("attempts", slot.Attempts).Msg("slot attempt failed, eligible for retry")
	}
	return slot, nil
}
