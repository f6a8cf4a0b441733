package scheduling

import (
	"fmt"

	"siteops/internal/model"
)

// CheckTransition validates a status transition without applying it.
//
// The matrix: draft→pending→active→completed moves strictly forward, and
// cancelled is reachable from any non-terminal status. Completing a task
// additionally requires that no extension request is still pending, so an
// open schedule question is never silently closed.
func CheckTransition(task *model.WeeklyTask, target model.TaskStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	from := task.Status
	ok := false
	switch target {
	case model.StatusPending:
		ok = from == model.StatusDraft
	case model.StatusActive:
		ok = from == model.StatusPending
	case model.StatusCompleted:
		if from == model.StatusActive && task.HasPendingExtension() {
			return fmt.Errorf("%w: cannot complete task %d with a pending extension request", ErrInvalidTransition, task.ID)
		}
		ok = from == model.StatusActive
	case model.StatusCancelled:
		ok = !from.Terminal()
	case model.StatusDraft:
		ok = false
	}

	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}
	return nil
}

// Transition applies a validated status change to the task.
func Transition(task *model.WeeklyTask, target model.TaskStatus) error {
	if err := CheckTransition(task, target); err != nil {
		return err
	}
	task.Status = target
	return nil
}

// CanScheduleWork reports whether daily tasks and assignments may be
// created or changed at the given status.
func CanScheduleWork(status model.TaskStatus) bool {
	return status == model.StatusPending || status == model.StatusActive
}
