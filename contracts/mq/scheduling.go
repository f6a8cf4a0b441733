package mq

import "time"

// Routing keys for produced scheduling events.
const (
	RoutingKeyTaskStatus    = "task.status_changed"
	RoutingKeyAssignment    = "task.assignment"
	RoutingKeyChangeRequest = "task.change_request"
)

// Routing keys for consumed feeds.
const (
	RoutingKeyRosterUpdated   = "worker.roster_updated"
	RoutingKeyStockChanged    = "inventory.stock_changed"
	RoutingKeyProjectRegistry = "project.registry_updated"
)

type TaskStatusEventPayload struct {
	TaskID    int64     `json:"task_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

type AssignmentEventPayload struct {
	TaskID      int64  `json:"task_id"`
	DailyTaskID *int64 `json:"daily_task_id,omitempty"`
	WorkerID    int64  `json:"worker_id"`
	Action      string `json:"action"` // assigned / unassigned
}

type ChangeRequestEventPayload struct {
	RequestID int64  `json:"request_id"`
	TaskID    int64  `json:"task_id"`
	Status    string `json:"status"`
}

// RosterWorker is one entry of the externally owned worker roster.
type RosterWorker struct {
	WorkerID       int64   `json:"worker_id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Active         bool    `json:"active"`
	Rating         float64 `json:"rating"`
}

type RosterUpdatedPayload struct {
	Workers []RosterWorker `json:"workers"`
}

type StockChangedPayload struct {
	MaterialID string `json:"material_id"`
	Level      int    `json:"level"`
}

// RegistryProject is one entry of the externally owned project registry.
type RegistryProject struct {
	ProjectID  int64   `json:"project_id"`
	Name       string  `json:"name"`
	ManagerIDs []int64 `json:"manager_ids"`
}

type ProjectRegistryPayload struct {
	Projects []RegistryProject `json:"projects"`
}
