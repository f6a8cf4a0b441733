package scheduling_test

import (
	"errors"
	"testing"
	"time"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

func TestCreateRequestOnPendingOrActiveOnly(t *testing.T) {
	t.Parallel()

	wf := scheduling.NewWorkflow()
	now := time.Now()

	for _, status := range []model.TaskStatus{model.StatusPending, model.StatusActive} {
		task := newTestTask(1, status)
		req, err := wf.Create(task, model.RequestExtension, 3, "rain delays", now)
		if err != nil {
			t.Fatalf("status %s: Create returned error: %v", status, err)
		}
		if req.Status != model.RequestPending {
			t.Fatalf("new request not pending: %s", req.Status)
		}
	}

	for _, status := range []model.TaskStatus{model.StatusDraft, model.StatusCompleted, model.StatusCancelled} {
		task := newTestTask(1, status)
		_, err := wf.Create(task, model.RequestExtension, 3, "rain delays", now)
		if !errors.Is(err, scheduling.ErrInvalidTransition) {
			t.Fatalf("status %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestCreateRequestValidation(t *testing.T) {
	t.Parallel()

	wf := scheduling.NewWorkflow()
	task := newTestTask(1, model.StatusActive)
	now := time.Now()

	if _, err := wf.Create(task, model.RequestType("shrink"), 1, "reason", now); !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("bad type: expected ErrValidation, got %v", err)
	}
	if _, err := wf.Create(task, model.RequestExtension, 0, "reason", now); !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("zero magnitude: expected ErrValidation, got %v", err)
	}
	if _, err := wf.Create(task, model.RequestExtension, 2, "  ", now); !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("blank reason: expected ErrValidation, got %v", err)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	t.Parallel()

	wf := scheduling.NewWorkflow()
	task := newTestTask(1, model.StatusActive)
	now := time.Now()

	req, err := wf.Create(task, model.RequestAdditionalWorkers, 2, "behind schedule", now)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := wf.Resolve(req, model.RequestApproved, now); err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	if req.Status != model.RequestApproved || req.ResolvedAt == nil {
		t.Fatalf("decision not recorded: %+v", req)
	}

	for _, decision := range []model.RequestStatus{model.RequestApproved, model.RequestRejected} {
		err := wf.Resolve(req, decision, now)
		if !errors.Is(err, scheduling.ErrRequestNotPending) {
			t.Fatalf("second resolve (%s): expected ErrRequestNotPending, got %v", decision, err)
		}
	}
	if req.Status != model.RequestApproved {
		t.Fatalf("decision overwritten: %s", req.Status)
	}
}

func TestResolveRejectsBadDecision(t *testing.T) {
	t.Parallel()

	wf := scheduling.NewWorkflow()
	req := &model.ChangeRequest{ID: 1, Status: model.RequestPending}

	err := wf.Resolve(req, model.RequestPending, time.Now())
	if !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// Resolving never touches the parent period itself; that is the caller's
// job.
func TestResolveDoesNotMutateParentPeriod(t *testing.T) {
	t.Parallel()

	wf := scheduling.NewWorkflow()
	task := newTestTask(1, model.StatusActive)
	end := task.EndDate
	now := time.Now()

	req, err := wf.Create(task, model.RequestExtension, 5, "rain delays", now)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := wf.Resolve(req, model.RequestApproved, now); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !task.EndDate.Equal(end) {
		t.Fatalf("workflow mutated the parent period: %v", task.EndDate)
	}
}
