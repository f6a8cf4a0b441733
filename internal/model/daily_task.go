package model

import "time"

// DailyTask is a date-scoped subdivision of a WeeklyTask. It never exists
// without a parent and its date must lie within the parent's period.
type DailyTask struct {
	ID              int64      `json:"id"`
	TaskID          int64      `json:"task_id"`
	Date            time.Time  `json:"date"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AssignedWorkers []int64    `json:"assigned_workers"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CompletedBy     *int64     `json:"completed_by,omitempty"`
	Notes           string     `json:"notes"`
}

// HasWorker reports whether the worker is already on the daily task.
func (d *DailyTask) HasWorker(workerID int64) bool {
	for _, id := range d.AssignedWorkers {
		if id == workerID {
			return true
		}
	}
	return false
}
