package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"log-archiver/internal/domain"
	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeSlotRepo serves the scan/reclaim calls the coordinator makes.
type fakeSlotRepo struct {
	mu        sync.Mutex
	slots     []model.HourSlot
	reclaimed int
}

func (f *fakeSlotRepo) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.HourSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.HourSlot
	for _, s := range f.slots {
		if s.Status == model.SlotStatusFailed && s.Attempts < maxAttempts && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) ReclaimStale(ctx context.Context, olderThan time.Time, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.slots {
		s := &f.slots[i]
		if s.Status == model.SlotStatusProcessing && s.UpdatedAt.Before(olderThan) {
			if s.Attempts >= maxAttempts {
				s.Status = model.SlotStatusPermanentlyFailed
			} else {
				s.Status = model.SlotStatusFailed
			}
			n++
		}
	}
	f.reclaimed += n
	return n, nil
}

func (f *fakeSlotRepo) slotStatus(i int) model.SlotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[i].Status
}

func (f *fakeSlotRepo) Create(context.Context, repository.Tx, *model.Job) error { return nil }
func (f *fakeSlotRepo) FindByDate(context.Context, string) (*model.Job, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSlotRepo) FindSlot(context.Context, string, string) (*model.HourSlot, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSlotRepo) BeginAttempt(context.Context, string, string) (*model.HourSlot, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSlotRepo) CompleteAttempt(context.Context, string, string, int64, string, string, time.Time) (*model.HourSlot, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSlotRepo) FailAttempt(context.Context, string, string, string, bool) (*model.HourSlot, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSlotRepo) ListJobDatesBefore(context.Context, string) ([]string, error) {
	return nil, nil
}
func (f *fakeSlotRepo) DeleteJobsBefore(context.Context, string) (int, error) { return 0, nil }

var _ repository.JobRepository = (*fakeSlotRepo)(nil)

// fakeProcessor records which slots were re-driven.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
}

func (f *fakeProcessor) ProcessSlot(ctx context.Context, date, hourRange string) (*model.HourSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, date+"/"+hourRange)
	return &model.HourSlot{JobDate: date, HourRange: hourRange, Status: model.SlotStatusCompleted}, nil
}

func (f *fakeProcessor) processedSlots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.processed...)
}

func TestRetryProcessor_RunOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("re-drives failed slots under the ceiling, skips exhausted and completed", func(t *testing.T) {
		repo := &fakeSlotRepo{slots: []model.HourSlot{
			{JobDate: "2025-08-25", HourRange: "01-02", Status: model.SlotStatusFailed, Attempts: 1},
			{JobDate: "2025-08-25", HourRange: "02-03", Status: model.SlotStatusFailed, Attempts: 2},
			{JobDate: "2025-08-25", HourRange: "03-04", Status: model.SlotStatusPermanentlyFailed, Attempts: 3},
			{JobDate: "2025-08-25", HourRange: "04-05", Status: model.SlotStatusCompleted, Attempts: 1},
		}}
		proc := &fakeProcessor{}
		pool := NewPool(2, testLogger())
		pool.Start(ctx)
		defer pool.Stop()

		rp := NewRetryProcessor(repo, proc, pool, 3, time.Hour, testLogger())
		rp.RunOnce(ctx)

		got := proc.processedSlots()
		if len(got) != 2 {
			t.Fatalf("expected 2 retried slots, got %d: %v", len(got), got)
		}
		for _, key := range got {
			if key == "2025-08-25/03-04" || key == "2025-08-25/04-05" {
				t.Errorf("must not touch terminal slot %s", key)
			}
		}
	})

	t.Run("reclaims stale processing slots and retries them in the same pass", func(t *testing.T) {
		repo := &fakeSlotRepo{slots: []model.HourSlot{
			{JobDate: "2025-08-24", HourRange: "22-23", Status: model.SlotStatusProcessing, Attempts: 1,
				UpdatedAt: time.Now().Add(-2 * time.Hour)},
		}}
		proc := &fakeProcessor{}
		pool := NewPool(1, testLogger())
		pool.Start(ctx)
		defer pool.Stop()

		rp := NewRetryProcessor(repo, proc, pool, 3, 30*time.Minute, testLogger())
		rp.RunOnce(ctx)

		if repo.reclaimed != 1 {
			t.Fatalf("expected 1 reclaimed slot, got %d", repo.reclaimed)
		}
		if got := proc.processedSlots(); len(got) != 1 || got[0] != "2025-08-24/22-23" {
			t.Fatalf("expected the reclaimed slot retried, got %v", got)
		}
	})

	t.Run("a stale slot with exhausted attempts reclaims terminal, never re-driven", func(t *testing.T) {
		repo := &fakeSlotRepo{slots: []model.HourSlot{
			{JobDate: "2025-08-24", HourRange: "06-07", Status: model.SlotStatusProcessing, Attempts: 3,
				UpdatedAt: time.Now().Add(-2 * time.Hour)},
		}}
		proc := &fakeProcessor{}
		pool := NewPool(1, testLogger())
		pool.Start(ctx)
		defer pool.Stop()

		rp := NewRetryProcessor(repo, proc, pool, 3, 30*time.Minute, testLogger())
		rp.RunOnce(ctx)

		if got := repo.slotStatus(0); got != model.SlotStatusPermanentlyFailed {
			t.Fatalf("expected permanently_failed after reclaim, got %s", got)
		}
		if got := proc.processedSlots(); len(got) != 0 {
			t.Fatalf("a terminal reclaim must not be retried, got %v", got)
		}
	})

	t.Run("a recent processing slot is left alone", func(t *testing.T) {
		repo := &fakeSlotRepo{slots: []model.HourSlot{
			{JobDate: "2025-08-25", HourRange: "11-12", Status: model.SlotStatusProcessing, Attempts: 1,
				UpdatedAt: time.Now()},
		}}
		proc := &fakeProcessor{}
		pool := NewPool(1, testLogger())
		pool.Start(ctx)
		defer pool.Stop()

		rp := NewRetryProcessor(repo, proc, pool, 3, 30*time.Minute, testLogger())
		rp.RunOnce(ctx)

		if repo.reclaimed != 0 {
			t.Fatalf("expected no reclaim, got %d", repo.reclaimed)
		}
		if got := proc.processedSlots(); len(got) != 0 {
			t.Fatalf("expected no retries, got %v", got)
		}
	})
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(3, testLogger())
	pool.Start(ctx)
	defer pool.Stop()

	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		if err != nil {
			wg.Done()
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if ran == 0 {
		t.Fatal("expected tasks to run")
	}
}
