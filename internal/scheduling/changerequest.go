package scheduling

import (
	"fmt"
	"strings"
	"time"

	"siteops/internal/model"
)

// Workflow records and resolves change requests against a weekly task.
// Resolving records the decision only; applying an approved extension to
// the parent's period is the caller's responsibility, so the two concerns
// stay independently testable.
type Workflow struct{}

func NewWorkflow() *Workflow {
	return &Workflow{}
}

// Create attaches a new pending request to the task. Allowed only while
// the task is pending or active.
func (w *Workflow) Create(task *model.WeeklyTask, reqType model.RequestType, magnitude int, reason string, now time.Time) (*model.ChangeRequest, error) {
	if !CanScheduleWork(task.Status) {
		return nil, fmt.Errorf("%w: change requests need a pending or active task, task %d is %s",
			ErrInvalidTransition, task.ID, task.Status)
	}
	if !reqType.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrValidation, reqType)
	}
	if magnitude <= 0 {
		return nil, fmt.Errorf("%w: magnitude must be positive, got %d", ErrValidation, magnitude)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	req := model.ChangeRequest{
		TaskID:    task.ID,
		Type:      reqType,
		Magnitude: magnitude,
		Reason:    reason,
		Status:    model.RequestPending,
		CreatedAt: now,
	}
	task.ChangeRequests = append(task.ChangeRequests, req)
	return &task.ChangeRequests[len(task.ChangeRequests)-1], nil
}

// Resolve records a decision on a pending request. Resolved requests can
// never be reopened or re-decided.
func (w *Workflow) Resolve(req *model.ChangeRequest, decision model.RequestStatus, now time.Time) error {
	if decision != model.RequestApproved && decision != model.RequestRejected {
		return fmt.Errorf("%w: decision must be approved or rejected, got %q", ErrValidation, decision)
	}
	if req.Status != model.RequestPending {
		return fmt.Errorf("%w: request %d is %s", ErrRequestNotPending, req.ID, req.Status)
	}

	req.Status = decision
	ts := now
	req.ResolvedAt = &ts
	return nil
}

// FindRequest locates a change request on its parent task.
func FindRequest(task *model.WeeklyTask, requestID int64) *model.ChangeRequest {
	for i := range task.ChangeRequests {
		if task.ChangeRequests[i].ID == requestID {
			return &task.ChangeRequests[i]
		}
	}
	return nil
}
