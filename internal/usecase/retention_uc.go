package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/adapter"
	"log-archiver/internal/domain/ports/repository"
)

// SweepReport is what a retention sweep did, or would do in dry-run.
type SweepReport struct {
	Sweep   string   `json:"sweep"` // "database" | "storage"
	DryRun  bool     `json:"dry_run"`
	Cutoff  string   `json:"cutoff"`
	Deleted int      `json:"deleted"`
	Items   []string `json:"items"` // job dates or object keys
}

// RetentionUseCase deletes expired job records and archived artifacts.
// The two windows are independent; storage commonly outlives the
// job-tracking rows. Deletion is strictly older-than: the entity dated
// exactly at the threshold is retained.
type RetentionUseCase interface {
	SweepDatabase(ctx context.Context, dryRun bool) (*SweepReport, error)
	SweepStorage(ctx context.Context, dryRun bool) (*SweepReport, error)
}

type RetentionConfig struct {
	DBRetentionDays      int
	StorageRetentionDays int
	Location             *time.Location
}

type retentionUC struct {
	repo    repository.JobRepository
	backend adapter.StorageBackend
	cfg     RetentionConfig
	log     *zerolog.Logger
	now     func() time.Time // test seam
}

func NewRetentionUseCase(repo repository.JobRepository, backend adapter.StorageBackend, cfg RetentionConfig, logger *zerolog.Logger) RetentionUseCase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	l := logger.With().Str("component", "RetentionSweeper").Logger()
	return &retentionUC{repo: repo, backend: backend, cfg: cfg, log: &l, now: time.Now}
}

func (uc *retentionUC) SweepDatabase(ctx context.Context, dryRun bool) (*SweepReport, error) {
	today := uc.now().In(uc.cfg.Location)
	cutoff := today.AddDate(0, 0, -uc.cfg.DBRetentionDays).Format(model.DateLayout)
	report := &SweepReport{Sweep: "database", DryRun: dryRun, Cutoff: cutoff}

	dates, err := uc.repo.ListJobDatesBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report.Items = dates

	if dryRun {
		report.Deleted = len(dates)
		uc.log.Info().Str("cutoff", cutoff).Int("jobs", len(dates)).Msg("database sweep dry-run")
		return report, nil
	}

	n, err := uc.repo.DeleteJobsBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report.Deleted = n
	uc.log.Info().Str("cutoff", cutoff).Int("jobs", n).Msg("database sweep deleted expired jobs")
	return report, nil
}

func (uc *retentionUC) SweepStorage(ctx context.Context, dryRun bool) (*SweepReport, error) {
	olderThan := uc.now().AddDate(0, 0, -uc.cfg.StorageRetentionDays)
	report := &SweepReport{Sweep: "storage", DryRun: dryRun, Cutoff: olderThan.UTC().Format(time.RFC3339)}

	objects, err := uc.backend.List(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		report.Items = append(report.Items, obj.Key)
	}

	if dryRun {
		report.Deleted = len(objects)
		uc.log.Info().Str("cutoff", report.Cutoff).Int("objects", len(objects)).Msg("storage sweep dry-run")
		return report, nil
	}

	for _, obj := range objects {
		if err := uc.backend.Delete(ctx, obj.Key); err != nil {
			// Keep sweeping; the object stays listed for the next run.
			uc.log.Error().Err(err).Str("key", obj.Key).Msg("storage sweep delete failed")
			continue
		}
		report.Deleted++
	}
	uc.log.Info().Str("cutoff", report.Cutoff).Int("objects", report.Deleted).Msg("storage sweep deleted expired artifacts")
	return report, nil
}
