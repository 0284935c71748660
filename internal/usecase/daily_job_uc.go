package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/repository"
)

// DailyJobUseCase creates and reads the per-date jobs.
type DailyJobUseCase interface {
	// CreateDailyJob is idempotent: an existing job for the date is
	// returned unchanged, otherwise the job and its 24 pending slots are
	// created atomically.
	CreateDailyJob(ctx context.Context, date string) (*model.Job, error)

	// GetJob returns the job with all slot statuses for the date.
	GetJob(ctx context.Context, date string) (*model.Job, error)
}

type dailyJobUC struct {
	repo repository.JobRepository
	tm   repository.TransactionManager
	log  *zerolog.Logger
}

func NewDailyJobUseCase(repo repository.JobRepository, tm repository.TransactionManager, logger *zerolog.Logger) DailyJobUseCase {
	l := logger.With().Str("component", "DailyJobUC").Logger()
	return &dailyJobUC{repo: repo, tm: tm, log: &l}
}

func (uc *dailyJobUC) CreateDailyJob(ctx context.Context, date string) (*model.Job, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	existing, err := uc.repo.FindByDate(ctx, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	job := model.NewJob(date, time.Now().UTC())
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.repo.Create(ctx, tx, job)
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a create race; the winner's job is just as good.
		return uc.repo.FindByDate(ctx, date)
	}
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("date", date).Msg("daily job created")
	return job, nil
}

func (uc *dailyJobUC) GetJob(ctx context.Context, date string) (*model.Job, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return uc.repo.FindByDate(ctx, date)
}
