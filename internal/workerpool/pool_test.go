package workerpool_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"siteops/internal/model"
	"siteops/internal/workerpool"
)

type fakeLoader struct {
	workers []model.Worker
	err     error
}

func (l *fakeLoader) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	return l.workers, l.err
}

func worker(id int64, spec string, status model.WorkerStatus) model.Worker {
	return model.Worker{ID: id, Name: "w", Specialization: spec, Status: status}
}

func TestWarm(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	loader := &fakeLoader{workers: []model.Worker{
		worker(1, "بناء", model.WorkerActive),
		worker(2, "حدادة", model.WorkerInactive),
	}}

	if err := pool.Warm(context.Background(), loader); err != nil {
		t.Fatalf("Warm returned error: %v", err)
	}
	if _, ok := pool.Worker(1); !ok {
		t.Fatalf("worker 1 missing after warm")
	}
	if _, ok := pool.Worker(2); !ok {
		t.Fatalf("inactive workers are kept in the pool too")
	}
}

func TestWarmPropagatesLoaderError(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	want := errors.New("db down")
	if err := pool.Warm(context.Background(), &fakeLoader{err: want}); !errors.Is(err, want) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestUpsertKeepsTrackedLoad(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	pool.Upsert(worker(1, "بناء", model.WorkerActive))
	pool.AddLoad(1, 2)

	// A roster refresh must not reset the load counter.
	refreshed := worker(1, "بناء", model.WorkerActive)
	refreshed.Name = "renamed"
	pool.Upsert(refreshed)

	w, ok := pool.Worker(1)
	if !ok {
		t.Fatalf("worker 1 missing")
	}
	if w.AssignedTasks != 2 {
		t.Fatalf("load reset on upsert, got %d", w.AssignedTasks)
	}
	if w.Name != "renamed" {
		t.Fatalf("roster fields not refreshed, got %q", w.Name)
	}
}

func TestActiveWorkersSortedAndFiltered(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	pool.Upsert(worker(3, "بناء", model.WorkerActive))
	pool.Upsert(worker(1, "حدادة", model.WorkerActive))
	pool.Upsert(worker(2, "بناء", model.WorkerInactive))

	active := pool.ActiveWorkers()
	if len(active) != 2 {
		t.Fatalf("expected 2 active workers, got %d", len(active))
	}
	if active[0].ID != 1 || active[1].ID != 3 {
		t.Fatalf("not sorted by id: %d, %d", active[0].ID, active[1].ID)
	}
}

func TestCandidatesForIncludesGenerals(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	pool.Upsert(worker(1, "بناء", model.WorkerActive))
	pool.Upsert(worker(2, model.SpecializationGeneral, model.WorkerActive))
	pool.Upsert(worker(3, "حدادة", model.WorkerActive))
	pool.Upsert(worker(4, "بناء", model.WorkerInactive))

	got := pool.CandidatesFor("بناء")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("unexpected candidates: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestAddLoadFloorsAtZero(t *testing.T) {
	t.Parallel()

	pool := workerpool.NewPool(zap.NewNop())
	pool.Upsert(worker(1, "بناء", model.WorkerActive))

	pool.AddLoad(1, -5)
	if w, _ := pool.Worker(1); w.AssignedTasks != 0 {
		t.Fatalf("load went negative: %d", w.AssignedTasks)
	}

	pool.AddLoad(99, 1) // unknown id is a no-op
	if _, ok := pool.Worker(99); ok {
		t.Fatalf("AddLoad created a worker")
	}
}
