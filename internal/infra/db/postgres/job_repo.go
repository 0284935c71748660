package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/repository"
	"log-archiver/internal/infra/metrics"
)

// Ensure compile-time conformance
var _ repository.JobRepository = (*JobRepo)(nil)

const slotColumns = `job_date::text, hour_range, status, attempts, last_error,
record_count, file_path, storage_key, uploaded_at, created_at, updated_at`

// JobRepo implements the slot store on Postgres. The BeginAttempt
// conditional UPDATE is the per-slot compare-and-set the whole system
// leans on for overlap safety.
type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// executor lets repository methods run on either the pool or a tx handle.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *JobRepo) exec(tx repository.Tx) executor {
	if t, ok := tx.(pgx.Tx); ok && t != nil {
		return t
	}
	return r.pool
}

func (r *JobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	ex := r.exec(tx)

	const insertJob = `
INSERT INTO jobs (job_date, created_at, updated_at)
VALUES ($1::date, $2, $3);`
	if _, err := ex.Exec(ctx, insertJob, job.Date, job.CreatedAt, job.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres insert job: %w", err)
	}

	const insertSlot = `
INSERT INTO hour_slots (job_date, hour_range, status, attempts, last_error,
record_count, file_path, storage_key, created_at, updated_at)
VALUES ($1::date, $2, $3, 0, '', 0, '', '', $4, $5);`
	for _, s := range job.HourSlots {
		if _, err := ex.Exec(ctx, insertSlot, job.Date, s.HourRange, string(s.Status), s.CreatedAt, s.UpdatedAt); err != nil {
			return fmt.Errorf("postgres insert slot %s: %w", s.HourRange, err)
		}
	}
	return nil
}

func (r *JobRepo) FindByDate(ctx context.Context, date string) (*model.Job, error) {
	const jobQuery = `
SELECT job_date::text, created_at, updated_at
FROM jobs
WHERE job_date = $1::date;`

	var job model.Job
	row := r.pool.QueryRow(ctx, jobQuery, date)
	if err := row.Scan(&job.Date, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres find job: %w", err)
	}

	const slotsQuery = `
SELECT ` + slotColumns + `
FROM hour_slots
WHERE job_date = $1::date
ORDER BY hour_range;`
	rows, err := r.pool.Query(ctx, slotsQuery, date)
	if err != nil {
		return nil, fmt.Errorf("postgres list slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		job.HourSlots = append(job.HourSlots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres list slots: %w", err)
	}
	return &job, nil
}

func (r *JobRepo) FindSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	const q = `
SELECT ` + slotColumns + `
FROM hour_slots
WHERE job_date = $1::date AND hour_range = $2;`
	s, err := scanSlot(r.pool.QueryRow(ctx, q, date, hourRange))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *JobRepo) BeginAttempt(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	const claim = `
UPDATE hour_slots
SET status = 'processing', attempts = attempts + 1, updated_at = now()
WHERE job_date = $1::date AND hour_range = $2
  AND status IN ('pending', 'failed')
RETURNING ` + slotColumns + `;`

	s, err := scanSlot(r.pool.QueryRow(ctx, claim, date, hourRange))
	if err == nil {
		r.touchJob(ctx, date)
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The conditional write missed; classify why.
	cur, ferr := r.FindSlot(ctx, date, hourRange)
	if ferr != nil {
		return nil, ferr
	}
	if cur.Status == model.SlotStatusPermanentlyFailed {
		return cur, domain.ErrSlotTerminal
	}
	metrics.IncSlotOutcome("skipped")
	return cur, domain.ErrSlotBusy
}

func (r *JobRepo) CompleteAttempt(ctx context.Context, date, hourRange string, recordCount int64, filePath, storageKey string, uploadedAt time.Time) (*model.HourSlot, error) {
	const q = `
UPDATE hour_slots
SET status = 'completed', record_count = $3, file_path = $4, storage_key = $5,
    uploaded_at = $6, last_error = '', updated_at = now()
WHERE job_date = $1::date AND hour_range = $2 AND status = 'processing'
RETURNING ` + slotColumns + `;`

	s, err := scanSlot(r.pool.QueryRow(ctx, q, date, hourRange, recordCount, filePath, storageKey, uploadedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSlotBusy
		}
		return nil, err
	}
	metrics.IncSlotOutcome("completed")
	metrics.AddRecordsArchived(s.RecordCount)
	r.touchJob(ctx, date)
	return s, nil
}

func (r *JobRepo) FailAttempt(ctx context.Context, date, hourRange, lastError string, permanent bool) (*model.HourSlot, error) {
	status := model.SlotStatusFailed
	if permanent {
		status = model.SlotStatusPermanentlyFailed
	}
	const q = `
UPDATE hour_slots
SET status = $3, last_error = $4, updated_at = now()
WHERE job_date = $1::date AND hour_range = $2 AND status = 'processing'
RETURNING ` + slotColumns + `;`

	s, err := scanSlot(r.pool.QueryRow(ctx, q, date, hourRange, string(status), lastError))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSlotBusy
		}
		return nil, err
	}
	metrics.IncSlotOutcome(string(status))
	r.touchJob(ctx, date)
	return s, nil
}

func (r *JobRepo) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.HourSlot, error) {
	const q = `
SELECT ` + slotColumns + `
FROM hour_slots
WHERE status = 'failed' AND attempts < $1
LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres list retryable: %w", err)
	}
	defer rows.Close()

	var out []model.HourSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *JobRepo) ReclaimStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int, error) {
	const q = `
UPDATE hour_slots
SET status = CASE WHEN attempts >= $2 THEN 'permanently_failed' ELSE 'failed' END,
    last_error = 'reclaimed: processing attempt went stale',
    updated_at = now()
WHERE status = 'processing' AND updated_at < $1;`
	tag, err := r.pool.Exec(ctx, q, olderThan, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("postgres reclaim stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *JobRepo) ListJobDatesBefore(ctx context.Context, cutoff string) ([]string, error) {
	const q = `
SELECT j.job_date::text
FROM jobs j
WHERE j.job_date < $1::date
  AND NOT EXISTS (
    SELECT 1 FROM hour_slots s
    WHERE s.job_date = j.job_date AND s.status = 'processing'
  )
ORDER BY j.job_date;`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres list expired jobs: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("postgres scan expired job: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *JobRepo) DeleteJobsBefore(ctx context.Context, cutoff string) (int, error) {
	// hour_slots go with the job via ON DELETE CASCADE.
	const q = `
DELETE FROM jobs j
WHERE j.job_date < $1::date
  AND NOT EXISTS (
    SELECT 1 FROM hour_slots s
    WHERE s.job_date = j.job_date AND s.status = 'processing'
  );`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres delete expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// touchJob keeps the parent's updated_at in step with slot changes.
// Best effort: a miss here never fails the slot transition itself.
func (r *JobRepo) touchJob(ctx context.Context, date string) {
	const q = `UPDATE jobs SET updated_at = now() WHERE job_date = $1::date;`
	_, _ = r.pool.Exec(ctx, q, date)
}

func scanSlot(row pgx.Row) (*model.HourSlot, error) {
	var (
		s          model.HourSlot
		status     string
		uploadedAt *time.Time
	)
	if err := row.Scan(&s.JobDate, &s.HourRange, &status, &s.Attempts, &s.LastError,
		&s.RecordCount, &s.FilePath, &s.StorageKey, &uploadedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("postgres scan slot: %w", err)
	}
	s.Status = model.SlotStatus(status)
	s.UploadedAt = uploadedAt
	return &s, nil
}
