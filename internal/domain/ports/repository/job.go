package repository

import (
	"context"
	"time"

	"log-archiver/internal/domain/model"
)

// JobRepository is the slot store: it exclusively owns Job/HourSlot
// persistence. The slot processor and retry coordinator are the only
// writers of status/attempts/last_error, and every status mutation goes
// through the conditional transitions below.
type JobRepository interface {
	// Create persists a job together with all of its hour slots. Either
	// the whole job lands or none of it does; pass a tx from the
	// TransactionManager to get that atomicity. Returns
	// domain.ErrAlreadyExists when a job for the date is present.
	Create(ctx context.Context, tx Tx, job *model.Job) error

	// FindByDate loads a job with its slots ordered by hour range.
	// Returns domain.ErrNotFound if missing.
	FindByDate(ctx context.Context, date string) (*model.Job, error)

	// FindSlot loads a single slot. Returns domain.ErrNotFound if missing.
	FindSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error)

	// BeginAttempt atomically moves a pending or failed slot to
	// processing and increments its attempt counter, returning the
	// claimed slot. This compare-and-set is the system's sole
	// concurrency guard: a miss is classified as domain.ErrSlotBusy
	// (processing or completed), domain.ErrSlotTerminal
	// (permanently_failed), or domain.ErrNotFound.
	BeginAttempt(ctx context.Context, date, hourRange string) (*model.HourSlot, error)

	// CompleteAttempt marks a processing slot completed, recording the
	// archived record count and artifact locations and clearing last_error.
	CompleteAttempt(ctx context.Context, date, hourRange string, recordCount int64, filePath, storageKey string, uploadedAt time.Time) (*model.HourSlot, error)

	// FailAttempt marks a processing slot failed (or permanently_failed
	// when permanent is set) with the given reason.
	FailAttempt(ctx context.Context, date, hourRange, lastError string, permanent bool) (*model.HourSlot, error)

	// ListRetryable returns failed slots with attempts below maxAttempts,
	// up to limit. No ordering is guaranteed.
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.HourSlot, error)

	// ReclaimStale flips processing slots not updated since olderThan
	// back to failed (or permanently_failed once attempts reach
	// maxAttempts) so a crashed attempt becomes retryable. Returns the
	// number of reclaimed slots.
	ReclaimStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int, error)

	// ListJobDatesBefore returns dates of jobs strictly older than the
	// cutoff date that are safe to delete (no slot mid-processing).
	ListJobDatesBefore(ctx context.Context, cutoff string) ([]string, error)

	// DeleteJobsBefore deletes jobs (and, by cascade, their slots)
	// strictly older than the cutoff date, skipping any job with a slot
	// mid-processing. Returns the number of jobs deleted.
	DeleteJobsBefore(ctx context.Context, cutoff string) (int, error)
}
