package scheduling

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"siteops/internal/model"
)

// WorkerDirectory resolves worker ids to roster entries. Implemented by
// the worker pool; tests use a map-backed fake.
type WorkerDirectory interface {
	Worker(id int64) (model.Worker, bool)
}

// Engine binds workers to weekly-task specialization slots or to
// individual daily tasks. All methods mutate the task in memory only; the
// caller persists and publishes.
type Engine struct {
	dir    WorkerDirectory
	logger *zap.Logger
}

func NewEngine(dir WorkerDirectory, logger *zap.Logger) *Engine {
	return &Engine{dir: dir, logger: logger}
}

// assignedBySpec counts the distinct workers on the task per
// specialization. A worker bound to a task-level slot counts against that
// slot's specialization; a worker only present on daily tasks counts
// against its own tag.
func (e *Engine) assignedBySpec(task *model.WeeklyTask) map[string]int {
	specOf := make(map[int64]string)
	for i := range task.DailyTasks {
		for _, id := range task.DailyTasks[i].AssignedWorkers {
			if _, seen := specOf[id]; seen {
				continue
			}
			if w, ok := e.dir.Worker(id); ok {
				specOf[id] = w.Specialization
			}
		}
	}
	// Task-level slots win over the worker's own tag.
	for _, a := range task.Assignments {
		specOf[a.WorkerID] = a.Specialization
	}

	counts := make(map[string]int)
	for _, spec := range specOf {
		counts[spec]++
	}
	return counts
}

// checkCapacity verifies that adding one worker under the given
// specialization keeps the per-specialization headcount within the demand
// schedule. Specializations outside the schedule are unconstrained.
func (e *Engine) checkCapacity(task *model.WeeklyTask, specialization string) error {
	if !task.RequiresSpecialization(specialization) {
		return nil
	}
	assigned := e.assignedBySpec(task)[specialization]
	if assigned >= task.RequiredCount(specialization) {
		return fmt.Errorf("%w: task %d already has %d of %d %q workers",
			ErrCapacityExceeded, task.ID, assigned, task.RequiredCount(specialization), specialization)
	}
	return nil
}

func (e *Engine) eligibleWorker(workerID int64, specialization string) (model.Worker, error) {
	w, ok := e.dir.Worker(workerID)
	if !ok {
		return model.Worker{}, fmt.Errorf("%w: id %d", ErrWorkerNotFound, workerID)
	}
	if w.Status != model.WorkerActive {
		return model.Worker{}, fmt.Errorf("%w: worker %d is inactive", ErrWorkerNotEligible, workerID)
	}
	if specialization != "" && !w.Covers(specialization) {
		return model.Worker{}, fmt.Errorf("%w: worker %d is %q, slot needs %q",
			ErrWorkerNotEligible, workerID, w.Specialization, specialization)
	}
	return w, nil
}

// Assign binds a worker to a task-level specialization slot.
func (e *Engine) Assign(task *model.WeeklyTask, specialization string, workerID int64) error {
	if !task.RequiresSpecialization(specialization) {
		return fmt.Errorf("%w: task %d has no %q slot", ErrValidation, task.ID, specialization)
	}
	if task.WorkerAssigned(workerID) {
		return fmt.Errorf("%w: worker %d on task %d", ErrDuplicateAssignment, workerID, task.ID)
	}
	if _, err := e.eligibleWorker(workerID, specialization); err != nil {
		return err
	}
	if err := e.checkCapacity(task, specialization); err != nil {
		return err
	}

	task.Assignments = append(task.Assignments, model.Assignment{
		WorkerID:       workerID,
		Specialization: specialization,
	})
	return nil
}

// Unassign removes a worker from the task-level slots. Always legal when
// the worker is currently assigned.
func (e *Engine) Unassign(task *model.WeeklyTask, workerID int64) error {
	for i, a := range task.Assignments {
		if a.WorkerID == workerID {
			task.Assignments = append(task.Assignments[:i], task.Assignments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: worker %d, task %d", ErrWorkerNotAssigned, workerID, task.ID)
}

// AssignDaily adds a worker to one daily task of the parent.
func (e *Engine) AssignDaily(task *model.WeeklyTask, dailyTaskID, workerID int64) error {
	daily := findDailyTask(task, dailyTaskID)
	if daily == nil {
		return fmt.Errorf("%w: id %d", ErrDailyTaskNotFound, dailyTaskID)
	}
	if daily.HasWorker(workerID) {
		return fmt.Errorf("%w: worker %d on daily task %d", ErrDuplicateAssignment, workerID, dailyTaskID)
	}

	w, err := e.eligibleWorker(workerID, "")
	if err != nil {
		return err
	}
	if w.Specialization != model.SpecializationGeneral && !task.RequiresSpecialization(w.Specialization) {
		return fmt.Errorf("%w: worker %d is %q, task %d needs none of that",
			ErrWorkerNotEligible, workerID, w.Specialization, task.ID)
	}
	// A worker new to the whole task consumes headcount for its own tag.
	if !task.WorkerAssigned(workerID) {
		if err := e.checkCapacity(task, w.Specialization); err != nil {
			return err
		}
	}

	daily.AssignedWorkers = append(daily.AssignedWorkers, workerID)
	return nil
}

// UnassignDaily removes a worker from one daily task.
func (e *Engine) UnassignDaily(task *model.WeeklyTask, dailyTaskID, workerID int64) error {
	daily := findDailyTask(task, dailyTaskID)
	if daily == nil {
		return fmt.Errorf("%w: id %d", ErrDailyTaskNotFound, dailyTaskID)
	}
	for i, id := range daily.AssignedWorkers {
		if id == workerID {
			daily.AssignedWorkers = append(daily.AssignedWorkers[:i], daily.AssignedWorkers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: worker %d, daily task %d", ErrWorkerNotAssigned, workerID, dailyTaskID)
}

func findDailyTask(task *model.WeeklyTask, dailyTaskID int64) *model.DailyTask {
	for i := range task.DailyTasks {
		if task.DailyTasks[i].ID == dailyTaskID {
			return &task.DailyTasks[i]
		}
	}
	return nil
}

// DistributionResult reports the outcome of one task within an
// auto-distribution pass. A failed task never blocks the others.
type DistributionResult struct {
	TaskID   int64              `json:"task_id"`
	Assigned []model.Assignment `json:"assigned"`
	Err      error              `json:"-"`
	Error    string             `json:"error,omitempty"`
}

// AutoDistribute fills empty specialization slots across the given tasks.
//
// Only slots with zero assigned workers are considered; partially filled
// slots are skipped entirely, never topped up or rebalanced. Candidates
// are active workers whose tag matches the slot (or who are general),
// taken least-loaded first with worker id as the deterministic tiebreak.
// Load counters update within the pass, so later slots see assignments
// made by earlier ones. Running the pass twice with no intervening change
// finds no empty slots and mutates nothing.
func (e *Engine) AutoDistribute(tasks []*model.WeeklyTask, workers []model.Worker) []DistributionResult {
	loads := make(map[int64]int, len(workers))
	for _, w := range workers {
		loads[w.ID] = w.AssignedTasks
	}

	results := make([]DistributionResult, 0, len(tasks))
	for _, task := range tasks {
		res := DistributionResult{TaskID: task.ID}

		if !CanScheduleWork(task.Status) {
			res.Err = fmt.Errorf("%w: cannot distribute on %s task %d", ErrInvalidTransition, task.Status, task.ID)
			res.Error = res.Err.Error()
			results = append(results, res)
			continue
		}

		counts := e.assignedBySpec(task)
		for _, slot := range task.RequiredWorkers {
			if counts[slot.Specialization] > 0 {
				continue // never top up a partially filled slot
			}

			candidates := make([]model.Worker, 0, len(workers))
			for _, w := range workers {
				if w.Status != model.WorkerActive || !w.Covers(slot.Specialization) {
					continue
				}
				if task.WorkerAssigned(w.ID) {
					continue
				}
				candidates = append(candidates, w)
			}

			sort.Slice(candidates, func(i, j int) bool {
				if loads[candidates[i].ID] != loads[candidates[j].ID] {
					return loads[candidates[i].ID] < loads[candidates[j].ID]
				}
				return candidates[i].ID < candidates[j].ID
			})

			n := slot.Count
			if n > len(candidates) {
				n = len(candidates)
			}
			for _, w := range candidates[:n] {
				a := model.Assignment{WorkerID: w.ID, Specialization: slot.Specialization}
				task.Assignments = append(task.Assignments, a)
				res.Assigned = append(res.Assigned, a)
				loads[w.ID]++
				// Keep counts current so a later slot line for the same
				// specialization sees this one as occupied.
				counts[slot.Specialization]++
			}

			if n < slot.Count && e.logger != nil {
				e.logger.Warn("Not enough candidates for slot",
					zap.Int64("task_id", task.ID),
					zap.String("specialization", slot.Specialization),
					zap.Int("required", slot.Count),
					zap.Int("assigned", n),
				)
			}
		}

		results = append(results, res)
	}

	return results
}
