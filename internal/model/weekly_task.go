package model

import "time"

type TaskStatus string

const (
	StatusDraft     TaskStatus = "draft"
	StatusPending   TaskStatus = "pending"
	StatusActive    TaskStatus = "active"
	StatusCompleted TaskStatus = "completed"
	StatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// MaterialRequirement is one line of a task's material demand. Available
// is advisory: it reflects the stock level at the last availability check
// and is never a reservation.
type MaterialRequirement struct {
	MaterialID string `json:"material_id"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
	Available  bool   `json:"available"`
}

// WorkerRequirement is a specialization slot: how many workers of a
// specialization the task needs.
type WorkerRequirement struct {
	Specialization string `json:"specialization"`
	Count          int    `json:"count"`
}

// Assignment binds a worker to a task-level specialization slot.
type Assignment struct {
	WorkerID       int64  `json:"worker_id"`
	Specialization string `json:"specialization"`
}

// WeeklyTask is the top-level schedulable unit: a contractor-defined work
// package scoped to a date period. It exclusively owns its daily tasks and
// change requests.
type WeeklyTask struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	// ProjectID scopes visibility; 0 means the task is not tied to a
	// registry project and everyone may see it.
	ProjectID         int64                 `json:"project_id"`
	Description       string                `json:"description"`
	StartDate         time.Time             `json:"start_date"`
	EndDate           time.Time             `json:"end_date"`
	Priority          Priority              `json:"priority"`
	Status            TaskStatus            `json:"status"`
	Budget            float64               `json:"budget"`
	ManagerID         int64                 `json:"manager_id"`
	RequiredMaterials []MaterialRequirement `json:"required_materials"`
	RequiredWorkers   []WorkerRequirement   `json:"required_workers"`
	// Progress is set manually; it is never derived from daily task
	// completion ratios.
	Progress       int             `json:"progress"`
	Assignments    []Assignment    `json:"assignments"`
	DailyTasks     []DailyTask     `json:"daily_tasks"`
	ChangeRequests []ChangeRequest `json:"change_requests"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RequiredCount returns the demanded headcount for a specialization, 0 if
// the specialization is not part of the demand schedule.
func (t *WeeklyTask) RequiredCount(specialization string) int {
	for _, r := range t.RequiredWorkers {
		if r.Specialization == specialization {
			return r.Count
		}
	}
	return 0
}

// RequiresSpecialization reports whether the demand schedule names the
// given specialization.
func (t *WeeklyTask) RequiresSpecialization(specialization string) bool {
	for _, r := range t.RequiredWorkers {
		if r.Specialization == specialization {
			return true
		}
	}
	return false
}

// HasPendingExtension reports whether an unresolved extension request is
// attached to the task.
func (t *WeeklyTask) HasPendingExtension() bool {
	for _, cr := range t.ChangeRequests {
		if cr.Type == RequestExtension && cr.Status == RequestPending {
			return true
		}
	}
	return false
}

// WorkerAssigned reports whether the worker is on the task, either on a
// task-level slot or on any daily task.
func (t *WeeklyTask) WorkerAssigned(workerID int64) bool {
	for _, a := range t.Assignments {
		if a.WorkerID == workerID {
			return true
		}
	}
	for i := range t.DailyTasks {
		for _, id := range t.DailyTasks[i].AssignedWorkers {
			if id == workerID {
				return true
			}
		}
	}
	return false
}
