package scheduling_test

import (
	"errors"
	"testing"
	"time"

	"siteops/internal/model"
	"siteops/internal/scheduling"
)

func TestCreateDailyTask(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, model.SpecializationGeneral, 0),
	)
	dec := scheduling.NewDecomposer(dir)
	task := newTestTask(1, model.StatusActive)

	daily, err := dec.CreateDailyTask(task, date(2024, time.March, 5), "pour slab", "section B", []int64{1, 2, 1})
	if err != nil {
		t.Fatalf("CreateDailyTask returned error: %v", err)
	}

	if len(task.DailyTasks) != 1 {
		t.Fatalf("expected 1 daily task, got %d", len(task.DailyTasks))
	}
	// Duplicate worker ids collapse into a set.
	if len(daily.AssignedWorkers) != 2 {
		t.Fatalf("expected 2 distinct workers, got %v", daily.AssignedWorkers)
	}
	if task.Progress != 0 {
		t.Fatalf("progress must not change on decomposition, got %d", task.Progress)
	}
}

func TestCreateDailyTaskDateOutOfRange(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dec := scheduling.NewDecomposer(dir)
	task := newTestTask(1, model.StatusActive)

	for _, d := range []time.Time{
		date(2024, time.March, 3),  // day before start
		date(2024, time.March, 11), // day after end
		date(2024, time.April, 1),
	} {
		_, err := dec.CreateDailyTask(task, d, "pour slab", "", nil)
		if !errors.Is(err, scheduling.ErrDateOutOfRange) {
			t.Fatalf("date %s: expected ErrDateOutOfRange, got %v", d.Format("2006-01-02"), err)
		}
	}
	if len(task.DailyTasks) != 0 {
		t.Fatalf("daily tasks appended on failure: %d", len(task.DailyTasks))
	}
}

func TestCreateDailyTaskPeriodBoundariesIncluded(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dec := scheduling.NewDecomposer(dir)
	task := newTestTask(1, model.StatusActive)

	if _, err := dec.CreateDailyTask(task, task.StartDate, "first day", "", nil); err != nil {
		t.Fatalf("start boundary rejected: %v", err)
	}
	if _, err := dec.CreateDailyTask(task, task.EndDate, "last day", "", nil); err != nil {
		t.Fatalf("end boundary rejected: %v", err)
	}
}

func TestCreateDailyTaskWorkerNotEligible(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(activeWorker(9, "نجارة", 0))
	dec := scheduling.NewDecomposer(dir)
	task := newTestTask(1, model.StatusActive)

	_, err := dec.CreateDailyTask(task, date(2024, time.March, 5), "pour slab", "", []int64{9})
	if !errors.Is(err, scheduling.ErrWorkerNotEligible) {
		t.Fatalf("expected ErrWorkerNotEligible, got %v", err)
	}
}

func TestCreateDailyTaskEmptyTitle(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dec := scheduling.NewDecomposer(dir)
	task := newTestTask(1, model.StatusActive)

	_, err := dec.CreateDailyTask(task, date(2024, time.March, 5), "   ", "", nil)
	if !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSetCompletionIdempotent(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dec := scheduling.NewDecomposer(dir)
	daily := &model.DailyTask{ID: 1, Title: "pour slab"}

	first := time.Date(2024, time.March, 5, 16, 0, 0, 0, time.UTC)
	dec.SetCompletion(daily, true, 7, first)
	if !daily.Completed || daily.CompletedAt == nil || *daily.CompletedBy != 7 {
		t.Fatalf("completion not recorded: %+v", daily)
	}

	// Recording the same value again only refreshes the timestamp.
	second := first.Add(2 * time.Hour)
	dec.SetCompletion(daily, true, 7, second)
	if !daily.Completed {
		t.Fatalf("completion lost on repeat")
	}
	if !daily.CompletedAt.Equal(second) {
		t.Fatalf("timestamp not refreshed, got %v", daily.CompletedAt)
	}

	dec.SetCompletion(daily, false, 7, second.Add(time.Hour))
	if daily.Completed || daily.CompletedAt != nil || daily.CompletedBy != nil {
		t.Fatalf("completion not cleared: %+v", daily)
	}
}
