package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/model"
	"siteops/pkg/metrics"
)

// storeTimeout bounds every discrete store round trip.
const storeTimeout = 5 * time.Second

// Store owns WeeklyTask aggregates keyed by id. SaveTask persists the
// whole aggregate and fills the ids of newly appended daily tasks and
// change requests.
type Store interface {
	CreateTask(ctx context.Context, task *model.WeeklyTask) (int64, error)
	GetTask(ctx context.Context, id int64) (*model.WeeklyTask, error)
	ListTasks(ctx context.Context, status *model.TaskStatus) ([]*model.WeeklyTask, error)
	SaveTask(ctx context.Context, task *model.WeeklyTask) error
}

// Publisher emits the scheduling event contracts.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// WorkerSource supplies roster entries for assignment decisions.
type WorkerSource interface {
	WorkerDirectory
	ActiveWorkers() []model.Worker
	AddLoad(workerID int64, delta int)
}

// Service serializes all mutations per weekly task: the transition and
// capacity checks run under the same per-task lock as the mutation they
// guard, so no second assignment can land between check and write.
type Service struct {
	store     Store
	workers   WorkerSource
	publisher Publisher
	checker   MaterialChecker
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// MaterialChecker reports advisory per-line availability. It never
// reserves stock.
type MaterialChecker interface {
	Check(ctx context.Context, lines []model.MaterialRequirement) ([]model.MaterialRequirement, error)
}

func NewService(store Store, workers WorkerSource, publisher Publisher, checker MaterialChecker, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		workers:   workers,
		publisher: publisher,
		checker:   checker,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (s *Service) taskLock(taskID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

func (s *Service) withStoreCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, storeTimeout)
}

// CreateTask validates and stores a new weekly task in draft status.
func (s *Service) CreateTask(ctx context.Context, task *model.WeeklyTask) (int64, error) {
	if strings.TrimSpace(task.Title) == "" {
		return 0, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if task.StartDate.IsZero() || task.EndDate.IsZero() {
		return 0, fmt.Errorf("%w: period is required", ErrValidation)
	}
	if dateOnly(task.EndDate).Before(dateOnly(task.StartDate)) {
		return 0, fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if task.Budget < 0 {
		return 0, fmt.Errorf("%w: budget must be non-negative", ErrValidation)
	}
	if task.ManagerID <= 0 {
		return 0, fmt.Errorf("%w: assigned manager is required", ErrValidation)
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Priority.Valid() {
		return 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, task.Priority)
	}
	seenSpecs := make(map[string]struct{}, len(task.RequiredWorkers))
	for _, r := range task.RequiredWorkers {
		if strings.TrimSpace(r.Specialization) == "" || r.Count <= 0 {
			return 0, fmt.Errorf("%w: worker requirement needs a specialization and a positive count", ErrValidation)
		}
		// One line per specialization, or the capacity math has two
		// answers for the same slot.
		if _, dup := seenSpecs[r.Specialization]; dup {
			return 0, fmt.Errorf("%w: duplicate specialization %q in worker requirements", ErrValidation, r.Specialization)
		}
		seenSpecs[r.Specialization] = struct{}{}
	}
	for _, m := range task.RequiredMaterials {
		if strings.TrimSpace(m.MaterialID) == "" || m.Quantity <= 0 {
			return 0, fmt.Errorf("%w: material requirement needs a material and a positive quantity", ErrValidation)
		}
	}

	now := time.Now()
	task.Status = model.StatusDraft
	task.Progress = 0
	task.CreatedAt = now
	task.UpdatedAt = now

	sctx, cancel := s.withStoreCtx(ctx)
	defer cancel()
	id, err := s.store.CreateTask(sctx, task)
	if err != nil {
		return 0, err
	}
	task.ID = id

	s.logger.Info("Weekly task created",
		zap.Int64("task_id", id),
		zap.String("title", task.Title),
		zap.Int64("manager_id", task.ManagerID),
	)
	return id, nil
}

func (s *Service) GetTask(ctx context.Context, id int64) (*model.WeeklyTask, error) {
	sctx, cancel := s.withStoreCtx(ctx)
	defer cancel()
	return s.store.GetTask(sctx, id)
}

func (s *Service) ListTasks(ctx context.Context, status *model.TaskStatus) ([]*model.WeeklyTask, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *status)
	}
	sctx, cancel := s.withStoreCtx(ctx)
	defer cancel()
	return s.store.ListTasks(sctx, status)
}

// mutateTask runs fn on the freshly loaded task under its lock and
// persists the result. fn mutates the task in memory only.
func (s *Service) mutateTask(ctx context.Context, taskID int64, fn func(task *model.WeeklyTask) error) (*model.WeeklyTask, error) {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := s.withStoreCtx(ctx)
	defer cancel()
	task, err := s.store.GetTask(sctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := fn(task); err != nil {
		return nil, err
	}

	task.UpdatedAt = time.Now()
	wctx, wcancel := s.withStoreCtx(ctx)
	defer wcancel()
	if err := s.store.SaveTask(wctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) publish(routingKey string, payload any) {
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		// The mutation is already persisted; the event is best effort.
		s.logger.Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

// ChangeStatus drives the weekly task state machine.
func (s *Service) ChangeStatus(ctx context.Context, taskID int64, target model.TaskStatus) (*model.WeeklyTask, error) {
	var old model.TaskStatus
	task, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		old = task.Status
		return Transition(task, target)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementTaskTransition(string(old), string(target))
	s.publish(mqcontracts.RoutingKeyTaskStatus, mqcontracts.TaskStatusEventPayload{
		TaskID:    taskID,
		OldStatus: string(old),
		NewStatus: string(target),
		Timestamp: time.Now(),
	})

	s.logger.Info("Task status changed",
		zap.Int64("task_id", taskID),
		zap.String("from", string(old)),
		zap.String("to", string(target)),
	)
	return task, nil
}

// SetProgress records the manually reported progress percentage.
func (s *Service) SetProgress(ctx context.Context, taskID int64, progress int) (*model.WeeklyTask, error) {
	if progress < 0 || progress > 100 {
		return nil, fmt.Errorf("%w: progress must be within [0,100], got %d", ErrValidation, progress)
	}
	return s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		task.Progress = progress
		return nil
	})
}

// Assign binds a worker to a task-level specialization slot.
func (s *Service) Assign(ctx context.Context, taskID int64, specialization string, workerID int64) error {
	engine := NewEngine(s.workers, s.logger)
	_, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		if !CanScheduleWork(task.Status) {
			return fmt.Errorf("%w: cannot assign on %s task %d", ErrInvalidTransition, task.Status, taskID)
		}
		return engine.Assign(task, specialization, workerID)
	})
	if err != nil {
		return err
	}

	s.workers.AddLoad(workerID, 1)
	metrics.IncrementAssignment("assigned", "manual")
	s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
		TaskID:   taskID,
		WorkerID: workerID,
		Action:   "assigned",
	})
	return nil
}

// Unassign removes a worker from the task-level slots.
func (s *Service) Unassign(ctx context.Context, taskID, workerID int64) error {
	engine := NewEngine(s.workers, s.logger)
	var lastTie bool
	_, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		if err := engine.Unassign(task, workerID); err != nil {
			return err
		}
		// Daily entries may still tie the worker to this task.
		lastTie = !task.WorkerAssigned(workerID)
		return nil
	})
	if err != nil {
		return err
	}

	if lastTie {
		s.workers.AddLoad(workerID, -1)
	}
	metrics.IncrementAssignment("unassigned", "manual")
	s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
		TaskID:   taskID,
		WorkerID: workerID,
		Action:   "unassigned",
	})
	return nil
}

// AssignDaily binds a worker to a single daily task.
func (s *Service) AssignDaily(ctx context.Context, taskID, dailyTaskID, workerID int64) error {
	engine := NewEngine(s.workers, s.logger)
	var newTie bool
	_, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		if !CanScheduleWork(task.Status) {
			return fmt.Errorf("%w: cannot assign on %s task %d", ErrInvalidTransition, task.Status, taskID)
		}
		newTie = !task.WorkerAssigned(workerID)
		return engine.AssignDaily(task, dailyTaskID, workerID)
	})
	if err != nil {
		return err
	}

	// The load counter tracks tasks, not daily entries: it moves only
	// when this was the worker's first tie to the task.
	if newTie {
		s.workers.AddLoad(workerID, 1)
	}
	metrics.IncrementAssignment("assigned", "manual")
	s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
		TaskID:      taskID,
		DailyTaskID: &dailyTaskID,
		WorkerID:    workerID,
		Action:      "assigned",
	})
	return nil
}

// UnassignDaily removes a worker from a single daily task.
func (s *Service) UnassignDaily(ctx context.Context, taskID, dailyTaskID, workerID int64) error {
	engine := NewEngine(s.workers, s.logger)
	var lastTie bool
	_, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		if err := engine.UnassignDaily(task, dailyTaskID, workerID); err != nil {
			return err
		}
		lastTie = !task.WorkerAssigned(workerID)
		return nil
	})
	if err != nil {
		return err
	}

	if lastTie {
		s.workers.AddLoad(workerID, -1)
	}
	metrics.IncrementAssignment("unassigned", "manual")
	s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
		TaskID:      taskID,
		DailyTaskID: &dailyTaskID,
		WorkerID:    workerID,
		Action:      "unassigned",
	})
	return nil
}

// AutoDistribute runs one load-balancing pass over the given tasks. Tasks
// are processed independently: one task failing to load or persist leaves
// its own result marked and the rest untouched.
func (s *Service) AutoDistribute(ctx context.Context, taskIDs []int64) []DistributionResult {
	started := time.Now()

	// Per-task locks taken in id order for the whole pass. Duplicate ids
	// collapse first: locking the same mutex twice would self-deadlock,
	// and a task gets one result per pass regardless of how often the
	// caller listed it.
	ids := append([]int64(nil), taskIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	uniq := ids[:0]
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		uniq = append(uniq, id)
	}
	ids = uniq
	for _, id := range ids {
		l := s.taskLock(id)
		l.Lock()
		defer l.Unlock()
	}

	workers := s.workers.ActiveWorkers()
	engine := NewEngine(s.workers, s.logger)

	results := make([]DistributionResult, 0, len(ids))
	tasks := make([]*model.WeeklyTask, 0, len(ids))
	for _, id := range ids {
		sctx, cancel := s.withStoreCtx(ctx)
		task, err := s.store.GetTask(sctx, id)
		cancel()
		if err != nil {
			results = append(results, DistributionResult{TaskID: id, Err: err, Error: err.Error()})
			continue
		}
		tasks = append(tasks, task)
	}

	passResults := engine.AutoDistribute(tasks, workers)

	failed := false
	for i := range passResults {
		res := &passResults[i]
		if res.Err != nil {
			failed = true
			continue
		}
		if len(res.Assigned) == 0 {
			continue // idempotent second pass: nothing to persist
		}

		task := tasks[i]
		task.UpdatedAt = time.Now()
		wctx, cancel := s.withStoreCtx(ctx)
		err := s.store.SaveTask(wctx, task)
		cancel()
		if err != nil {
			res.Err = err
			res.Error = err.Error()
			res.Assigned = nil
			failed = true
			continue
		}

		for _, a := range res.Assigned {
			s.workers.AddLoad(a.WorkerID, 1)
			metrics.IncrementAssignment("assigned", "auto")
			s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
				TaskID:   task.ID,
				WorkerID: a.WorkerID,
				Action:   "assigned",
			})
		}
	}
	results = append(results, passResults...)

	outcome := "ok"
	if failed {
		outcome = "partial"
	}
	metrics.RecordDistributionDuration(outcome, time.Since(started))

	s.logger.Info("Auto distribution pass finished",
		zap.Int("tasks", len(ids)),
		zap.String("outcome", outcome),
		zap.Duration("took", time.Since(started)),
	)
	return results
}

// CreateDailyTask decomposes one day of work out of the weekly task.
func (s *Service) CreateDailyTask(ctx context.Context, taskID int64, date time.Time, title, description, notes string, workerIDs []int64) (*model.DailyTask, error) {
	dec := NewDecomposer(s.workers)
	var newTies []int64
	task, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		if !CanScheduleWork(task.Status) {
			return fmt.Errorf("%w: cannot decompose %s task %d", ErrInvalidTransition, task.Status, taskID)
		}
		onTask := make(map[int64]bool, len(workerIDs))
		for _, id := range workerIDs {
			onTask[id] = task.WorkerAssigned(id)
		}
		daily, err := dec.CreateDailyTask(task, date, title, description, workerIDs)
		if err != nil {
			return err
		}
		daily.Notes = notes
		newTies = newTies[:0]
		for _, id := range daily.AssignedWorkers {
			if !onTask[id] {
				newTies = append(newTies, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, workerID := range newTies {
		s.workers.AddLoad(workerID, 1)
	}

	// SaveTask filled the new id.
	daily := &task.DailyTasks[len(task.DailyTasks)-1]
	for _, workerID := range daily.AssignedWorkers {
		id := daily.ID
		s.publish(mqcontracts.RoutingKeyAssignment, mqcontracts.AssignmentEventPayload{
			TaskID:      taskID,
			DailyTaskID: &id,
			WorkerID:    workerID,
			Action:      "assigned",
		})
	}

	s.logger.Info("Daily task created",
		zap.Int64("task_id", taskID),
		zap.Int64("daily_task_id", daily.ID),
		zap.String("date", daily.Date.Format("2006-01-02")),
		zap.Int("workers", len(daily.AssignedWorkers)),
	)
	return daily, nil
}

// SetDailyCompletion records or clears a daily task's completion.
func (s *Service) SetDailyCompletion(ctx context.Context, taskID, dailyTaskID int64, completed bool, by int64) (*model.DailyTask, error) {
	dec := NewDecomposer(s.workers)
	var daily *model.DailyTask
	task, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		daily = findDailyTask(task, dailyTaskID)
		if daily == nil {
			return fmt.Errorf("%w: id %d", ErrDailyTaskNotFound, dailyTaskID)
		}
		dec.SetCompletion(daily, completed, by, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findDailyTask(task, dailyTaskID), nil
}

// CreateChangeRequest attaches an extension or extra-resource request.
func (s *Service) CreateChangeRequest(ctx context.Context, taskID int64, reqType model.RequestType, magnitude int, reason string) (*model.ChangeRequest, error) {
	wf := NewWorkflow()
	task, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		_, err := wf.Create(task, reqType, magnitude, reason, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	req := &task.ChangeRequests[len(task.ChangeRequests)-1]
	metrics.IncrementChangeRequest(string(reqType), string(model.RequestPending))
	s.publish(mqcontracts.RoutingKeyChangeRequest, mqcontracts.ChangeRequestEventPayload{
		RequestID: req.ID,
		TaskID:    taskID,
		Status:    string(model.RequestPending),
	})
	return req, nil
}

// ResolveChangeRequest decides a pending request. As the workflow's
// caller, the service applies an approved extension to the task period.
func (s *Service) ResolveChangeRequest(ctx context.Context, taskID, requestID int64, decision model.RequestStatus) (*model.ChangeRequest, error) {
	wf := NewWorkflow()
	var reqType model.RequestType
	task, err := s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		req := FindRequest(task, requestID)
		if req == nil {
			return fmt.Errorf("%w: id %d", ErrRequestNotFound, requestID)
		}
		if err := wf.Resolve(req, decision, time.Now()); err != nil {
			return err
		}
		reqType = req.Type
		if decision == model.RequestApproved && req.Type == model.RequestExtension {
			task.EndDate = task.EndDate.AddDate(0, 0, req.Magnitude)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req := FindRequest(task, requestID)
	metrics.IncrementChangeRequest(string(reqType), string(decision))
	s.publish(mqcontracts.RoutingKeyChangeRequest, mqcontracts.ChangeRequestEventPayload{
		RequestID: requestID,
		TaskID:    taskID,
		Status:    string(decision),
	})

	s.logger.Info("Change request resolved",
		zap.Int64("task_id", taskID),
		zap.Int64("request_id", requestID),
		zap.String("decision", string(decision)),
	)
	return req, nil
}

// RefreshAvailability re-checks material availability against current
// stock. Advisory only: the check reserves nothing, and stock can move
// between a check and activation.
func (s *Service) RefreshAvailability(ctx context.Context, taskID int64) (*model.WeeklyTask, error) {
	return s.mutateTask(ctx, taskID, func(task *model.WeeklyTask) error {
		lines, err := s.checker.Check(ctx, task.RequiredMaterials)
		if err != nil {
			return err
		}
		task.RequiredMaterials = lines
		return nil
	})
}
