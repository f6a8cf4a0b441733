package workerpool

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"siteops/internal/model"
)

// WorkerLoader seeds the pool from the persisted roster on startup.
type WorkerLoader interface {
	ListWorkers(ctx context.Context) ([]model.Worker, error)
}

// Pool is a read-mostly in-memory registry over the externally owned
// worker roster. Load counters track how many weekly tasks each worker is
// currently bound to and feed the auto-distribution ordering.
type Pool struct {
	mu      sync.RWMutex
	workers map[int64]model.Worker
	logger  *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		workers: make(map[int64]model.Worker),
		logger:  logger,
	}
}

// Warm loads the current roster from the store.
func (p *Pool) Warm(ctx context.Context, loader WorkerLoader) error {
	workers, err := loader.ListWorkers(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range workers {
		p.workers[w.ID] = w
	}

	p.logger.Info("Worker pool warmed", zap.Int("workers", len(workers)))
	return nil
}

// Upsert inserts or refreshes a roster entry, keeping the tracked load of
// an existing worker.
func (p *Pool) Upsert(w model.Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.workers[w.ID]; ok {
		w.AssignedTasks = cur.AssignedTasks
	}
	p.workers[w.ID] = w
}

// Worker returns the roster entry for an id.
func (p *Pool) Worker(id int64) (model.Worker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.workers[id]
	return w, ok
}

// ActiveWorkers returns the active roster sorted by id.
func (p *Pool) ActiveWorkers() []model.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Worker, 0, len(p.workers))
	for _, w := range p.workers {
		if w.Status == model.WorkerActive {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CandidatesFor returns the active workers able to fill a specialization
// slot, generals included, sorted by id.
func (p *Pool) CandidatesFor(specialization string) []model.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Worker, 0)
	for _, w := range p.workers {
		if w.Status == model.WorkerActive && w.Covers(specialization) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddLoad adjusts a worker's assigned-task counter. The counter never
// drops below zero.
func (p *Pool) AddLoad(workerID int64, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[workerID]
	if !ok {
		return
	}
	w.AssignedTasks += delta
	if w.AssignedTasks < 0 {
		w.AssignedTasks = 0
	}
	p.workers[workerID] = w
}
