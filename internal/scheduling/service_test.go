package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	mqcontracts "siteops/contracts/mq"
	"siteops/internal/model"
	"siteops/internal/scheduling"
)

func TestCreateTaskDefaults(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())

	task := newTestTask(0, model.StatusActive) // status is overwritten on create
	task.Progress = 40
	id, err := svc.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	stored, err := svc.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask returned error: %v", err)
	}
	if stored.Status != model.StatusDraft {
		t.Fatalf("new task must start in draft, got %s", stored.Status)
	}
	if stored.Progress != 0 {
		t.Fatalf("new task must start at 0%%, got %d", stored.Progress)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())
	ctx := context.Background()

	cases := map[string]*model.WeeklyTask{
		"empty title": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.Title = "  "
			return task
		}(),
		"end before start": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.EndDate = task.StartDate.AddDate(0, 0, -1)
			return task
		}(),
		"negative budget": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.Budget = -1
			return task
		}(),
		"no manager": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.ManagerID = 0
			return task
		}(),
		"zero-count slot": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.RequiredWorkers = []model.WorkerRequirement{{Specialization: "بناء", Count: 0}}
			return task
		}(),
		"duplicate specialization": func() *model.WeeklyTask {
			task := newTestTask(0, model.StatusDraft)
			task.RequiredWorkers = []model.WorkerRequirement{
				{Specialization: "بناء", Count: 2},
				{Specialization: "بناء", Count: 1},
			}
			return task
		}(),
	}

	for name, task := range cases {
		if _, err := svc.CreateTask(ctx, task); !errors.Is(err, scheduling.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestChangeStatusPersistsAndPublishes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, pub := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusDraft))

	task, err := svc.ChangeStatus(context.Background(), id, model.StatusPending)
	if err != nil {
		t.Fatalf("ChangeStatus returned error: %v", err)
	}
	if task.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", task.Status)
	}

	stored, _ := store.GetTask(context.Background(), id)
	if stored.Status != model.StatusPending {
		t.Fatalf("status not persisted, store has %s", stored.Status)
	}

	events := pub.byKey(mqcontracts.RoutingKeyTaskStatus)
	if len(events) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(events))
	}
	payload := events[0].Payload.(mqcontracts.TaskStatusEventPayload)
	if payload.TaskID != id || payload.OldStatus != "draft" || payload.NewStatus != "pending" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestChangeStatusRejectedPublishesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, pub := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusDraft))

	_, err := svc.ChangeStatus(context.Background(), id, model.StatusCompleted)
	if !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events published on rejected transition: %d", len(pub.events))
	}

	stored, _ := store.GetTask(context.Background(), id)
	if stored.Status != model.StatusDraft {
		t.Fatalf("store mutated on rejected transition: %s", stored.Status)
	}
}

func TestSetProgressBounds(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	if _, err := svc.SetProgress(ctx, id, 101); !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("101: expected ErrValidation, got %v", err)
	}
	if _, err := svc.SetProgress(ctx, id, -1); !errors.Is(err, scheduling.ErrValidation) {
		t.Fatalf("-1: expected ErrValidation, got %v", err)
	}

	task, err := svc.SetProgress(ctx, id, 60)
	if err != nil {
		t.Fatalf("SetProgress returned error: %v", err)
	}
	if task.Progress != 60 {
		t.Fatalf("expected 60, got %d", task.Progress)
	}
}

func TestServiceAssignTracksLoadAndPublishes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(activeWorker(1, "بناء", 0))
	svc, pub := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	if err := svc.Assign(ctx, id, "بناء", 1); err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 1 {
		t.Fatalf("load not incremented, got %d", w.AssignedTasks)
	}

	events := pub.byKey(mqcontracts.RoutingKeyAssignment)
	if len(events) != 1 {
		t.Fatalf("expected 1 assignment event, got %d", len(events))
	}
	payload := events[0].Payload.(mqcontracts.AssignmentEventPayload)
	if payload.TaskID != id || payload.WorkerID != 1 || payload.Action != "assigned" || payload.DailyTaskID != nil {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if err := svc.Unassign(ctx, id, 1); err != nil {
		t.Fatalf("Unassign returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 0 {
		t.Fatalf("load not decremented, got %d", w.AssignedTasks)
	}
}

func TestServiceAssignGatedByStatus(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(activeWorker(1, "بناء", 0))
	svc, pub := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusDraft))

	err := svc.Assign(context.Background(), id, "بناء", 1)
	if !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events published on rejected assign: %d", len(pub.events))
	}
}

func TestResolveApprovedExtensionExtendsEndDate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, pub := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	req, err := svc.CreateChangeRequest(ctx, id, model.RequestExtension, 3, "rain delays")
	if err != nil {
		t.Fatalf("CreateChangeRequest returned error: %v", err)
	}
	if req.ID == 0 {
		t.Fatalf("request id not assigned by the store")
	}

	resolved, err := svc.ResolveChangeRequest(ctx, id, req.ID, model.RequestApproved)
	if err != nil {
		t.Fatalf("ResolveChangeRequest returned error: %v", err)
	}
	if resolved.Status != model.RequestApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}

	stored, _ := store.GetTask(ctx, id)
	want := date(2024, time.March, 13) // 10th + 3 days
	if !stored.EndDate.Equal(want) {
		t.Fatalf("end date not extended: got %s, want %s",
			stored.EndDate.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	events := pub.byKey(mqcontracts.RoutingKeyChangeRequest)
	if len(events) != 2 {
		t.Fatalf("expected create+resolve events, got %d", len(events))
	}
	last := events[1].Payload.(mqcontracts.ChangeRequestEventPayload)
	if last.RequestID != req.ID || last.Status != "approved" {
		t.Fatalf("unexpected payload: %+v", last)
	}
}

func TestResolveRejectedLeavesPeriodAlone(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	req, err := svc.CreateChangeRequest(ctx, id, model.RequestExtension, 3, "rain delays")
	if err != nil {
		t.Fatalf("CreateChangeRequest returned error: %v", err)
	}
	if _, err := svc.ResolveChangeRequest(ctx, id, req.ID, model.RequestRejected); err != nil {
		t.Fatalf("ResolveChangeRequest returned error: %v", err)
	}

	stored, _ := store.GetTask(ctx, id)
	if !stored.EndDate.Equal(date(2024, time.March, 10)) {
		t.Fatalf("rejected extension moved the end date: %s", stored.EndDate.Format("2006-01-02"))
	}

	_, err = svc.ResolveChangeRequest(ctx, id, req.ID, model.RequestApproved)
	if !errors.Is(err, scheduling.ErrRequestNotPending) {
		t.Fatalf("re-resolve: expected ErrRequestNotPending, got %v", err)
	}
}

func TestServiceAutoDistributePersistsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, "بناء", 0),
		activeWorker(3, "حدادة", 0),
	)
	svc, pub := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	results := svc.AutoDistribute(ctx, []int64{id})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(results[0].Assigned) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(results[0].Assigned))
	}

	stored, _ := store.GetTask(ctx, id)
	if len(stored.Assignments) != 3 {
		t.Fatalf("assignments not persisted: %d", len(stored.Assignments))
	}
	if got := len(pub.byKey(mqcontracts.RoutingKeyAssignment)); got != 3 {
		t.Fatalf("expected 3 assignment events, got %d", got)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 1 {
		t.Fatalf("load not incremented, got %d", w.AssignedTasks)
	}

	// Second pass finds every slot occupied and changes nothing.
	results = svc.AutoDistribute(ctx, []int64{id})
	if len(results[0].Assigned) != 0 {
		t.Fatalf("second pass assigned workers: %+v", results[0].Assigned)
	}
	if got := len(pub.byKey(mqcontracts.RoutingKeyAssignment)); got != 3 {
		t.Fatalf("second pass published events, total %d", got)
	}
}

func TestServiceAutoDistributeDuplicateTaskIDs(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, "بناء", 0),
		activeWorker(3, "حدادة", 0),
	)
	svc, pub := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	// A repeated id must collapse to one lock acquisition, or the pass
	// hangs on its own mutex.
	done := make(chan []scheduling.DistributionResult, 1)
	go func() {
		done <- svc.AutoDistribute(ctx, []int64{id, id, id})
	}()

	var results []scheduling.DistributionResult
	select {
	case results = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AutoDistribute did not return with repeated task ids")
	}

	if len(results) != 1 {
		t.Fatalf("expected one result for one distinct task, got %d", len(results))
	}
	if results[0].Err != nil || len(results[0].Assigned) != 3 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	stored, _ := store.GetTask(ctx, id)
	if len(stored.Assignments) != 3 {
		t.Fatalf("assignments persisted %d times over", len(stored.Assignments)-3)
	}
	if got := len(pub.byKey(mqcontracts.RoutingKeyAssignment)); got != 3 {
		t.Fatalf("expected 3 assignment events, got %d", got)
	}
}

func TestServiceAutoDistributeIsolatesSaveFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, "بناء", 0),
		activeWorker(3, "بناء", 0),
		activeWorker(4, "بناء", 0),
		activeWorker(5, "حدادة", 0),
		activeWorker(6, "حدادة", 0),
	)
	svc, pub := newTestService(t, store, dir)
	healthy := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	broken := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	store.saveErr[broken] = scheduling.ErrStoreUnavailable
	ctx := context.Background()

	results := svc.AutoDistribute(ctx, []int64{healthy, broken})

	byID := make(map[int64]scheduling.DistributionResult, len(results))
	for _, r := range results {
		byID[r.TaskID] = r
	}

	if r := byID[healthy]; r.Err != nil || len(r.Assigned) != 3 {
		t.Fatalf("healthy task failed: %+v", r)
	}
	if r := byID[broken]; !errors.Is(r.Err, scheduling.ErrStoreUnavailable) || len(r.Assigned) != 0 {
		t.Fatalf("broken task not isolated: %+v", r)
	}

	// Only the persisted task's assignments produce events and load.
	if got := len(pub.byKey(mqcontracts.RoutingKeyAssignment)); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	stored, _ := store.GetTask(ctx, broken)
	if len(stored.Assignments) != 0 {
		t.Fatalf("broken task persisted assignments: %d", len(stored.Assignments))
	}
}

func TestServiceCreateDailyTaskGatedOnDraft(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusDraft))

	_, err := svc.CreateDailyTask(context.Background(), id, date(2024, time.March, 5), "pour slab", "", "", nil)
	if !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestServiceCreateDailyTaskPublishesPerWorker(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, "حدادة", 0),
	)
	svc, pub := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))

	daily, err := svc.CreateDailyTask(context.Background(), id, date(2024, time.March, 5), "pour slab", "section B", "bring the mixer", []int64{1, 2})
	if err != nil {
		t.Fatalf("CreateDailyTask returned error: %v", err)
	}
	if daily.ID == 0 {
		t.Fatalf("daily task id not assigned by the store")
	}
	if daily.Notes != "bring the mixer" {
		t.Fatalf("notes not recorded: %q", daily.Notes)
	}

	events := pub.byKey(mqcontracts.RoutingKeyAssignment)
	if len(events) != 2 {
		t.Fatalf("expected 2 assignment events, got %d", len(events))
	}
	for _, e := range events {
		payload := e.Payload.(mqcontracts.AssignmentEventPayload)
		if payload.DailyTaskID == nil || *payload.DailyTaskID != daily.ID {
			t.Fatalf("event missing the daily task id: %+v", payload)
		}
	}
}

func TestServiceDailyAssignmentTracksLoad(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	dir := newFakeDirectory(
		activeWorker(1, "بناء", 0),
		activeWorker(2, "بناء", 0),
	)
	svc, _ := newTestService(t, store, dir)
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	// First tie to the task, even through a daily entry, counts as load.
	first, err := svc.CreateDailyTask(ctx, id, date(2024, time.March, 5), "pour slab", "", "", []int64{1})
	if err != nil {
		t.Fatalf("CreateDailyTask returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 1 {
		t.Fatalf("daily tie not counted, got %d", w.AssignedTasks)
	}

	second, err := svc.CreateDailyTask(ctx, id, date(2024, time.March, 6), "cure slab", "", "", nil)
	if err != nil {
		t.Fatalf("CreateDailyTask returned error: %v", err)
	}

	// A second tie to the same task moves nothing.
	if err := svc.AssignDaily(ctx, id, second.ID, 1); err != nil {
		t.Fatalf("AssignDaily returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 1 {
		t.Fatalf("same-task daily assign double-counted, got %d", w.AssignedTasks)
	}

	if err := svc.AssignDaily(ctx, id, first.ID, 2); err != nil {
		t.Fatalf("AssignDaily returned error: %v", err)
	}
	if w, _ := dir.Worker(2); w.AssignedTasks != 1 {
		t.Fatalf("daily tie not counted, got %d", w.AssignedTasks)
	}

	// Dropping one of two ties leaves the load, dropping the last clears it.
	if err := svc.UnassignDaily(ctx, id, first.ID, 1); err != nil {
		t.Fatalf("UnassignDaily returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 1 {
		t.Fatalf("load dropped while still tied, got %d", w.AssignedTasks)
	}
	if err := svc.UnassignDaily(ctx, id, second.ID, 1); err != nil {
		t.Fatalf("UnassignDaily returned error: %v", err)
	}
	if w, _ := dir.Worker(1); w.AssignedTasks != 0 {
		t.Fatalf("load not released with the last tie, got %d", w.AssignedTasks)
	}
}

func TestServiceSetDailyCompletion(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestService(t, store, newFakeDirectory())
	id := mustStoreTask(t, store, newTestTask(0, model.StatusActive))
	ctx := context.Background()

	daily, err := svc.CreateDailyTask(ctx, id, date(2024, time.March, 5), "pour slab", "", "", nil)
	if err != nil {
		t.Fatalf("CreateDailyTask returned error: %v", err)
	}

	done, err := svc.SetDailyCompletion(ctx, id, daily.ID, true, 7)
	if err != nil {
		t.Fatalf("SetDailyCompletion returned error: %v", err)
	}
	if !done.Completed || done.CompletedBy == nil || *done.CompletedBy != 7 {
		t.Fatalf("completion not recorded: %+v", done)
	}

	_, err = svc.SetDailyCompletion(ctx, id, 9999, true, 7)
	if !errors.Is(err, scheduling.ErrDailyTaskNotFound) {
		t.Fatalf("expected ErrDailyTaskNotFound, got %v", err)
	}
}

func TestRefreshAvailability(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	checker := &fakeChecker{levels: map[string]int{"cement": 100, "rebar": 5}}
	svc := scheduling.NewService(store, newFakeDirectory(), &fakePublisher{}, checker, zap.NewNop())

	task := newTestTask(0, model.StatusPending)
	task.RequiredMaterials = []model.MaterialRequirement{
		{MaterialID: "cement", Quantity: 80},
		{MaterialID: "rebar", Quantity: 20},
	}
	id := mustStoreTask(t, store, task)

	refreshed, err := svc.RefreshAvailability(context.Background(), id)
	if err != nil {
		t.Fatalf("RefreshAvailability returned error: %v", err)
	}
	if !refreshed.RequiredMaterials[0].Available {
		t.Fatalf("cement should be available")
	}
	if refreshed.RequiredMaterials[1].Available {
		t.Fatalf("rebar should be short")
	}
}
