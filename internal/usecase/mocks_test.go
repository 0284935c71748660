// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/adapter"
	"log-archiver/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testTime() time.Time { return time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC) }

// mockTxManager runs the callback without a real transaction.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memJobRepo is an in-memory slot store with the same compare-and-set
// semantics as the Postgres implementation.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	CreateFunc func(ctx context.Context, tx repository.Tx, job *model.Job) error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.Job)}
}

func copyJob(j *model.Job) *model.Job {
	cp := *j
	cp.HourSlots = append([]model.HourSlot(nil), j.HourSlots...)
	return &cp
}

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.Date]; ok {
		return domain.ErrAlreadyExists
	}
	m.jobs[job.Date] = copyJob(job)
	return nil
}

func (m *memJobRepo) FindByDate(ctx context.Context, date string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[date]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (m *memJobRepo) slot(date, hourRange string) *model.HourSlot {
	j, ok := m.jobs[date]
	if !ok {
		return nil
	}
	for i := range j.HourSlots {
		if j.HourSlots[i].HourRange == hourRange {
			return &j.HourSlots[i]
		}
	}
	return nil
}

func (m *memJobRepo) FindSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(date, hourRange)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memJobRepo) BeginAttempt(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(date, hourRange)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	switch s.Status {
	case model.SlotStatusPending, model.SlotStatusFailed:
		s.Status = model.SlotStatusProcessing
		s.Attempts++
		s.UpdatedAt = time.Now()
		cp := *s
		return &cp, nil
	case model.SlotStatusPermanentlyFailed:
		cp := *s
		return &cp, domain.ErrSlotTerminal
	default:
		cp := *s
		return &cp, domain.ErrSlotBusy
	}
}

func (m *memJobRepo) CompleteAttempt(ctx context.Context, date, hourRange string, recordCount int64, filePath, storageKey string, uploadedAt time.Time) (*model.HourSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(date, hourRange)
	if s == nil || s.Status != model.SlotStatusProcessing {
		return nil, domain.ErrSlotBusy
	}
	s.Status = model.SlotStatusCompleted
	s.RecordCount = recordCount
	s.FilePath = filePath
	s.StorageKey = storageKey
	s.UploadedAt = &uploadedAt
	s.LastError = ""
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memJobRepo) FailAttempt(ctx context.Context, date, hourRange, lastError string, permanent bool) (*model.HourSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(date, hourRange)
	if s == nil || s.Status != model.SlotStatusProcessing {
		return nil, domain.ErrSlotBusy
	}
	if permanent {
		s.Status = model.SlotStatusPermanentlyFailed
	} else {
		s.Status = model.SlotStatusFailed
	}
	s.LastError = lastError
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memJobRepo) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.HourSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.HourSlot
	for _, j := range m.jobs {
		for _, s := range j.HourSlots {
			if s.Status == model.SlotStatusFailed && s.Attempts < maxAttempts {
				out = append(out, s)
				if len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (m *memJobRepo) ReclaimStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		for i := range j.HourSlots {
			s := &j.HourSlots[i]
			if s.Status == model.SlotStatusProcessing && s.UpdatedAt.Before(olderThan) {
				if s.Attempts >= maxAttempts {
					s.Status = model.SlotStatusPermanentlyFailed
				} else {
					s.Status = model.SlotStatusFailed
				}
				s.LastError = "reclaimed: processing attempt went stale"
				s.UpdatedAt = time.Now()
				n++
			}
		}
	}
	return n, nil
}

func (m *memJobRepo) hasProcessing(j *model.Job) bool {
	for _, s := range j.HourSlots {
		if s.Status == model.SlotStatusProcessing {
			return true
		}
	}
	return false
}

func (m *memJobRepo) ListJobDatesBefore(ctx context.Context, cutoff string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for date, j := range m.jobs {
		if date < cutoff && !m.hasProcessing(j) {
			out = append(out, date)
		}
	}
	return out, nil
}

func (m *memJobRepo) DeleteJobsBefore(ctx context.Context, cutoff string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for date, j := range m.jobs {
		if date < cutoff && !m.hasProcessing(j) {
			delete(m.jobs, date)
			n++
		}
	}
	return n, nil
}

var _ repository.JobRepository = (*memJobRepo)(nil)

// memFetcher returns canned records, or whatever FetchFunc says.
type memFetcher struct {
	records   []model.LogRecord
	FetchFunc func(ctx context.Context, start, end time.Time) ([]model.LogRecord, error)
}

func (m *memFetcher) Fetch(ctx context.Context, start, end time.Time) ([]model.LogRecord, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, start, end)
	}
	return m.records, nil
}

// memWriter pretends to serialize; it records what it was asked to write.
type memWriter struct {
	mu        sync.Mutex
	written   map[string]int // key -> record count
	WriteFunc func(date, hourRange string, records []model.LogRecord) (string, error)
}

func newMemWriter() *memWriter {
	return &memWriter{written: make(map[string]int)}
}

func (m *memWriter) Key(date, hourRange string) string {
	return fmt.Sprintf("%s/%s_%s.jsonl", date, date, hourRange)
}

func (m *memWriter) Write(date, hourRange string, records []model.LogRecord) (string, error) {
	if m.WriteFunc != nil {
		return m.WriteFunc(date, hourRange, records)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written[m.Key(date, hourRange)] = len(records)
	return "/tmp/staging/" + m.Key(date, hourRange), nil
}

// memUploader counts uploads; UploadFunc can simulate backend failures.
type memUploader struct {
	mu         sync.Mutex
	calls      int
	keys       []string
	UploadFunc func(ctx context.Context, localPath, key string) (string, error)
}

func (m *memUploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, localPath, key)
	}
	return "mem://" + key, nil
}

func (m *memUploader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memBackend is an in-memory storage backend for retention tests.
type memBackend struct {
	mu      sync.Mutex
	objects map[string]adapter.ObjectInfo
	deleted []string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string]adapter.ObjectInfo)}
}

func (m *memBackend) put(key string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = adapter.ObjectInfo{Key: key, ModTime: modTime}
}

func (m *memBackend) Put(ctx context.Context, localPath, key string) (string, error) {
	m.put(key, time.Now())
	return "mem://" + key, nil
}

func (m *memBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memBackend) List(ctx context.Context, olderThan time.Time) ([]adapter.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.ObjectInfo
	for _, obj := range m.objects {
		if olderThan.IsZero() || obj.ModTime.Before(olderThan) {
			out = append(out, obj)
		}
	}
	return out, nil
}

var _ adapter.StorageBackend = (*memBackend)(nil)
