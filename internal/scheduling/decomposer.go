package scheduling

import (
	"fmt"
	"strings"
	"time"

	"siteops/internal/model"
)

// dateOnly strips the time-of-day so period checks compare calendar days.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WithinPeriod reports whether date falls inside the task's period,
// boundaries included.
func WithinPeriod(task *model.WeeklyTask, date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(task.StartDate)) && !d.After(dateOnly(task.EndDate))
}

// Decomposer splits a weekly task into dated daily tasks.
type Decomposer struct {
	dir WorkerDirectory
}

func NewDecomposer(dir WorkerDirectory) *Decomposer {
	return &Decomposer{dir: dir}
}

// CreateDailyTask appends a daily task to the parent. Worker ids are
// deduplicated; every worker must carry a specialization the parent
// demands, or the general tag. The parent's progress is left untouched.
func (d *Decomposer) CreateDailyTask(task *model.WeeklyTask, date time.Time, title, description string, workerIDs []int64) (*model.DailyTask, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: daily task title is required", ErrValidation)
	}
	if !WithinPeriod(task, date) {
		return nil, fmt.Errorf("%w: %s outside %s..%s",
			ErrDateOutOfRange,
			date.Format("2006-01-02"),
			task.StartDate.Format("2006-01-02"),
			task.EndDate.Format("2006-01-02"))
	}

	seen := make(map[int64]struct{}, len(workerIDs))
	assigned := make([]int64, 0, len(workerIDs))
	for _, id := range workerIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		w, ok := d.dir.Worker(id)
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrWorkerNotFound, id)
		}
		if w.Specialization != model.SpecializationGeneral && !task.RequiresSpecialization(w.Specialization) {
			return nil, fmt.Errorf("%w: worker %d is %q, task %d demands none of that",
				ErrWorkerNotEligible, id, w.Specialization, task.ID)
		}
		assigned = append(assigned, id)
	}

	daily := model.DailyTask{
		TaskID:          task.ID,
		Date:            dateOnly(date),
		Title:           title,
		Description:     description,
		AssignedWorkers: assigned,
	}
	task.DailyTasks = append(task.DailyTasks, daily)
	return &task.DailyTasks[len(task.DailyTasks)-1], nil
}

// SetCompletion flips the completion flag. Recording the value it already
// has is a no-op beyond a timestamp refresh.
func (d *Decomposer) SetCompletion(daily *model.DailyTask, completed bool, by int64, now time.Time) {
	daily.Completed = completed
	if completed {
		ts := now
		daily.CompletedAt = &ts
		daily.CompletedBy = &by
	} else {
		daily.CompletedAt = nil
		daily.CompletedBy = nil
	}
}
