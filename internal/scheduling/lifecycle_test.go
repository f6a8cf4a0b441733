package scheduling_test

import (
	"errors"
	"testing"
	"time"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

func TestTransitionMatrix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    model.TaskStatus
		to      model.TaskStatus
		allowed bool
	}{
		{model.StatusDraft, model.StatusPending, true},
		{model.StatusDraft, model.StatusActive, false},
		{model.StatusDraft, model.StatusCompleted, false},
		{model.StatusDraft, model.StatusCancelled, true},
		{model.StatusPending, model.StatusActive, true},
		{model.StatusPending, model.StatusPending, false},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusActive, model.StatusCompleted, true},
		{model.StatusActive, model.StatusPending, false},
		{model.StatusActive, model.StatusCancelled, true},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusActive, false},
		{model.StatusCancelled, model.StatusPending, false},
		{model.StatusCancelled, model.StatusCancelled, false},
		{model.StatusActive, model.StatusDraft, false},
	}

	for _, tc := range cases {
		task := newTestTask(1, tc.from)
		err := scheduling.Transition(task, tc.to)
		if tc.allowed {
			if err != nil {
				t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
			}
			if task.Status != tc.to {
				t.Errorf("%s -> %s: status not applied, got %s", tc.from, tc.to, task.Status)
			}
			continue
		}
		if !errors.Is(err, scheduling.ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if task.Status != tc.from {
			t.Errorf("%s -> %s: status mutated on rejected transition, got %s", tc.from, tc.to, task.Status)
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	t.Parallel()

	task := newTestTask(1, model.StatusDraft)
	err := scheduling.Transition(task, model.TaskStatus("archived"))
	if !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompleteBlockedByPendingExtension(t *testing.T) {
	t.Parallel()

	task := newTestTask(1, model.StatusActive)
	task.ChangeRequests = append(task.ChangeRequests, model.ChangeRequest{
		ID:        10,
		TaskID:    task.ID,
		Type:      model.RequestExtension,
		Magnitude: 3,
		Reason:    "rain delays",
		Status:    model.RequestPending,
		CreatedAt: time.Now(),
	})

	err := scheduling.Transition(task, model.StatusCompleted)
	if !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if task.Status != model.StatusActive {
		t.Fatalf("status mutated, got %s", task.Status)
	}
}

func TestCompleteAllowedAfterExtensionResolved(t *testing.T) {
	t.Parallel()

	task := newTestTask(1, model.StatusActive)
	task.ChangeRequests = append(task.ChangeRequests, model.ChangeRequest{
		ID:     10,
		Type:   model.RequestExtension,
		Status: model.RequestRejected,
	})
	// Pending requests of other types do not block completion.
	task.ChangeRequests = append(task.ChangeRequests, model.ChangeRequest{
		ID:     11,
		Type:   model.RequestAdditionalWorkers,
		Status: model.RequestPending,
	})

	if err := scheduling.Transition(task, model.StatusCompleted); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if task.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status)
	}
}
