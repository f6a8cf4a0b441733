package scheduling_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

type fakeDirectory struct {
	workers map[int64]model.Worker
}

func newFakeDirectory(workers ...model.Worker) *fakeDirectory {
	d := &fakeDirectory{workers: make(map[int64]model.Worker)}
	for _, w := range workers {
		d.workers[w.ID] = w
	}
	return d
}

func (d *fakeDirectory) Worker(id int64) (model.Worker, bool) {
	w, ok := d.workers[id]
	return w, ok
}

func (d *fakeDirectory) ActiveWorkers() []model.Worker {
	out := []model.Worker{}
	for i := int64(0); i < 1000; i++ {
		if w, ok := d.workers[i]; ok && w.Status == model.WorkerActive {
			out = append(out, w)
		}
	}
	return out
}

func (d *fakeDirectory) AddLoad(workerID int64, delta int) {
	w, ok := d.workers[workerID]
	if !ok {
		return
	}
	w.AssignedTasks += delta
	d.workers[workerID] = w
}

type fakeStore struct {
	mu     sync.Mutex
	tasks  map[int64]*model.WeeklyTask
	nextID int64
	// saveErr, when set, fails SaveTask for the given task id.
	saveErr map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:   make(map[int64]*model.WeeklyTask),
		nextID:  1,
		saveErr: make(map[int64]error),
	}
}

func cloneTask(t *model.WeeklyTask) *model.WeeklyTask {
	data, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	var out model.WeeklyTask
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (s *fakeStore) CreateTask(ctx context.Context, task *model.WeeklyTask) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	task.ID = id
	s.fillChildIDs(task)
	s.tasks[id] = cloneTask(task)
	return id, nil
}

func (s *fakeStore) GetTask(ctx context.Context, id int64) (*model.WeeklyTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", scheduling.ErrTaskNotFound, id)
	}
	return cloneTask(t), nil
}

func (s *fakeStore) ListTasks(ctx context.Context, status *model.TaskStatus) ([]*model.WeeklyTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.WeeklyTask{}
	for i := int64(1); i < s.nextID; i++ {
		t, ok := s.tasks[i]
		if !ok {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func (s *fakeStore) SaveTask(ctx context.Context, task *model.WeeklyTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.saveErr[task.ID]; ok {
		return err
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("%w: id %d", scheduling.ErrTaskNotFound, task.ID)
	}
	s.fillChildIDs(task)
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *fakeStore) fillChildIDs(task *model.WeeklyTask) {
	for i := range task.DailyTasks {
		if task.DailyTasks[i].ID == 0 {
			task.DailyTasks[i].ID = s.nextID
			s.nextID++
		}
		task.DailyTasks[i].TaskID = task.ID
	}
	for i := range task.ChangeRequests {
		if task.ChangeRequests[i].ID == 0 {
			task.ChangeRequests[i].ID = s.nextID
			s.nextID++
		}
		task.ChangeRequests[i].TaskID = task.ID
	}
}

type publishedEvent struct {
	RoutingKey string
	Payload    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (p *fakePublisher) byKey(routingKey string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []publishedEvent{}
	for _, e := range p.events {
		if e.RoutingKey == routingKey {
			out = append(out, e)
		}
	}
	return out
}

type fakeChecker struct {
	levels map[string]int
}

func (c *fakeChecker) Check(ctx context.Context, lines []model.MaterialRequirement) ([]model.MaterialRequirement, error) {
	out := make([]model.MaterialRequirement, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].Available = c.levels[out[i].MaterialID] >= out[i].Quantity
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestTask(id int64, status model.TaskStatus) *model.WeeklyTask {
	return &model.WeeklyTask{
		ID:        id,
		Title:     "foundation works",
		StartDate: date(2024, time.March, 4),
		EndDate:   date(2024, time.March, 10),
		Priority:  model.PriorityMedium,
		Status:    status,
		ManagerID: 7,
		RequiredWorkers: []model.WorkerRequirement{
			{Specialization: "بناء", Count: 2},
			{Specialization: "حدادة", Count: 1},
		},
	}
}

func activeWorker(id int64, specialization string, load int) model.Worker {
	return model.Worker{
		ID:             id,
		Name:           fmt.Sprintf("worker-%d", id),
		Specialization: specialization,
		Status:         model.WorkerActive,
		AssignedTasks:  load,
	}
}

func newTestService(t *testing.T, store *fakeStore, dir *fakeDirectory) (*scheduling.Service, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	checker := &fakeChecker{levels: map[string]int{}}
	svc := scheduling.NewService(store, dir, pub, checker, zap.NewNop())
	return svc, pub
}

func mustStoreTask(t *testing.T, store *fakeStore, task *model.WeeklyTask) int64 {
	t.Helper()
	id, err := store.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("failed to prepare task: %v", err)
	}
	return id
}
