package tasks

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewMemoryStore(), WithClock(newStepClock().Now))
}

func mustCreate(t *testing.T, m *Manager, title string, status TaskStatus, priority TaskPriority) Task {
	t.Helper()
	req := CreateRequest{Title: Some(title)}
	if status != "" {
		req.Status = Some(status)
	}
	if priority != "" {
		req.Priority = Some(priority)
	}
	task, err := m.Create(req)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", title, err)
	}
	return task
}

func TestManagerCreateAppliesDefaults(t *testing.T) {
	m := newTestManager(t)

	task, err := m.Create(CreateRequest{Title: Some("T"), Priority: Some(TaskPriorityHigh)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if task.ID != 1 {
		t.Fatalf("task.ID = %d, want 1", task.ID)
	}
	if task.Status != TaskStatusPending {
		t.Fatalf("task.Status = %q, want %q", task.Status, TaskStatusPending)
	}
	if task.Priority != TaskPriorityHigh {
		t.Fatalf("task.Priority = %q, want %q", task.Priority, TaskPriorityHigh)
	}
	if task.Description != nil || task.DueDate != nil {
		t.Fatalf("optional fields set on bare create: %+v", task)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("created_at = %v, updated_at = %v, want equal", task.CreatedAt, task.UpdatedAt)
	}
}

func TestManagerCreateRejectsInvalidWithoutMutation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(CreateRequest{Title: Some("")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Create(empty title) error = %v, want ErrValidation", err)
	}
	if got := m.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}

	task := mustCreate(t, m, "after failure", "", "")
	if task.ID != 1 {
		t.Fatalf("first successful id = %d, want 1", task.ID)
	}
}

func TestManagerIDsNeverReused(t *testing.T) {
	m := newTestManager(t)

	a := mustCreate(t, m, "a", "", "")
	b := mustCreate(t, m, "b", "", "")
	if b.ID <= a.ID {
		t.Fatalf("b.ID = %d, want > %d", b.ID, a.ID)
	}

	if _, err := m.Delete(b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(b.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrTaskNotFound", err)
	}

	c := mustCreate(t, m, "c", "", "")
	if c.ID == b.ID || c.ID <= b.ID {
		t.Fatalf("c.ID = %d, want fresh id > %d", c.ID, b.ID)
	}
}

func TestManagerGetNotFoundMessage(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(42)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Get() error = %v, want *NotFoundError", err)
	}
	if got, want := err.Error(), "Task with ID 42 not found"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

func TestManagerUpdateAppliesOnlySuppliedFields(t *testing.T) {
	m := newTestManager(t)
	desc := "keep me"
	created, err := m.Create(CreateRequest{
		Title:       Some("original"),
		Description: Some(desc),
		Priority:    Some(TaskPriorityLow),
		DueDate:     Some("2026-12-31T23:59:59Z"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := m.Update(created.ID, Patch{Status: Some(TaskStatusInProgress)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Status != TaskStatusInProgress {
		t.Fatalf("Status = %q, want %q", updated.Status, TaskStatusInProgress)
	}
	if updated.Title != created.Title || updated.Priority != created.Priority {
		t.Fatalf("unspecified fields changed: before %+v after %+v", created, updated)
	}
	if updated.Description == nil || *updated.Description != desc {
		t.Fatalf("Description = %v, want %q", updated.Description, desc)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(*created.DueDate) {
		t.Fatalf("DueDate = %v, want %v", updated.DueDate, created.DueDate)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("CreatedAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("UpdatedAt = %v, want after %v", updated.UpdatedAt, created.UpdatedAt)
	}
}

func TestManagerUpdateExplicitNullClearsOptionalFields(t *testing.T) {
	m := newTestManager(t)
	created, err := m.Create(CreateRequest{
		Title:       Some("t"),
		Description: Some("d"),
		DueDate:     Some("2026-05-01"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := m.Update(created.ID, Patch{
		Description: Null[string](),
		DueDate:     Null[string](),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Description != nil || updated.DueDate != nil {
		t.Fatalf("explicit null did not clear fields: %+v", updated)
	}
}

func TestManagerUpdateValidatesBeforeLookup(t *testing.T) {
	m := newTestManager(t)
	created := mustCreate(t, m, "t", "", "")

	_, err := m.Update(created.ID, Patch{Status: Some(TaskStatus("archived"))})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Update(bad status) error = %v, want ErrValidation", err)
	}
	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != created.Status || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("task mutated by rejected update: %+v", got)
	}

	_, err = m.Update(999, Patch{Title: Some("")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Update(missing id, bad title) error = %v, want ErrValidation", err)
	}
	_, err = m.Update(999, Patch{Title: Some("ok")})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Update(missing id) error = %v, want ErrTaskNotFound", err)
	}
}

func TestManagerListFiltersAndPaginates(t *testing.T) {
	m := newTestManager(t)
	mustCreate(t, m, "a", TaskStatusPending, TaskPriorityHigh)
	mustCreate(t, m, "b", TaskStatusCompleted, TaskPriorityHigh)
	mustCreate(t, m, "c", TaskStatusPending, TaskPriorityLow)
	mustCreate(t, m, "d", TaskStatusPending, TaskPriorityHigh)
	mustCreate(t, m, "e", TaskStatusPending, TaskPriorityHigh)

	pending, err := m.List(ListQuery{Status: TaskStatusPending, Limit: DefaultListLimit})
	if err != nil {
		t.Fatalf("List(pending) error = %v", err)
	}
	if got := titles(pending); got != "acde" {
		t.Fatalf("List(pending) titles = %q, want %q", got, "acde")
	}

	both, err := m.List(ListQuery{Status: TaskStatusPending, Priority: TaskPriorityHigh, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List(pending, high) error = %v", err)
	}
	if got := titles(both); got != "de" {
		t.Fatalf("List(pending, high, 2, 1) titles = %q, want %q", got, "de")
	}

	cases := []struct {
		limit, offset, want int
	}{
		{limit: 10, offset: 0, want: 5},
		{limit: 2, offset: 0, want: 2},
		{limit: 2, offset: 4, want: 1},
		{limit: 3, offset: 5, want: 0},
		{limit: 100, offset: 50, want: 0},
	}
	for _, tc := range cases {
		got, err := m.List(ListQuery{Limit: tc.limit, Offset: tc.offset})
		if err != nil {
			t.Fatalf("List(limit=%d, offset=%d) error = %v", tc.limit, tc.offset, err)
		}
		if len(got) != tc.want {
			t.Fatalf("List(limit=%d, offset=%d) len = %d, want %d", tc.limit, tc.offset, len(got), tc.want)
		}
		if got == nil {
			t.Fatalf("List(limit=%d, offset=%d) returned nil slice", tc.limit, tc.offset)
		}
	}
}

func TestManagerListRejectsOutOfRangeWindow(t *testing.T) {
	m := newTestManager(t)
	for _, q := range []ListQuery{
		{Limit: 0},
		{Limit: 101},
		{Limit: 10, Offset: -1},
		{Limit: 10, Status: "done"},
		{Limit: 10, Priority: "urgent"},
	} {
		if _, err := m.List(q); !errors.Is(err, ErrValidation) {
			t.Fatalf("List(%+v) error = %v, want ErrValidation", q, err)
		}
	}
}

func TestManagerSummary(t *testing.T) {
	m := newTestManager(t)

	empty := m.Summary()
	if empty.Total != 0 || len(empty.ByStatus) != 0 || len(empty.ByPriority) != 0 {
		t.Fatalf("empty Summary() = %+v, want zero total and empty maps", empty)
	}
	if empty.ByStatus == nil || empty.ByPriority == nil {
		t.Fatalf("empty Summary() maps must be non-nil so they encode as {}")
	}

	mustCreate(t, m, "a", TaskStatusPending, TaskPriorityHigh)
	mustCreate(t, m, "b", TaskStatusInProgress, "")
	mustCreate(t, m, "c", TaskStatusCompleted, TaskPriorityHigh)

	s := m.Summary()
	if s.Total != 3 {
		t.Fatalf("Total = %d, want 3", s.Total)
	}
	wantStatus := map[TaskStatus]int{
		TaskStatusPending:    1,
		TaskStatusInProgress: 1,
		TaskStatusCompleted:  1,
		TaskStatusCancelled:  0,
	}
	for k, v := range wantStatus {
		got, ok := s.ByStatus[k]
		if !ok || got != v {
			t.Fatalf("ByStatus[%q] = %d (present %v), want %d", k, got, ok, v)
		}
	}
	wantPriority := map[TaskPriority]int{
		TaskPriorityLow:      0,
		TaskPriorityMedium:   1,
		TaskPriorityHigh:     2,
		TaskPriorityCritical: 0,
	}
	for k, v := range wantPriority {
		got, ok := s.ByPriority[k]
		if !ok || got != v {
			t.Fatalf("ByPriority[%q] = %d (present %v), want %d", k, got, ok, v)
		}
	}
}

func TestManagerPublishesLifecycleEvents(t *testing.T) {
	m := newTestManager(t)
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	task := mustCreate(t, m, "watched", "", "")
	if _, err := m.Update(task.ID, Patch{Priority: Some(TaskPriorityCritical)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := m.Delete(task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []EventType{EventTaskCreated, EventTaskUpdated, EventTaskDeleted}
	for i, typ := range want {
		select {
		case evt := <-events:
			if evt.Type != typ {
				t.Fatalf("event[%d].Type = %q, want %q", i, evt.Type, typ)
			}
			if evt.TaskID != task.ID || evt.Task == nil {
				t.Fatalf("event[%d] = %+v, want task %d snapshot", i, evt, task.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %q", typ)
		}
	}
}

func TestManagerSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	var dropped int
	m := NewManager(NewMemoryStore(), WithSubscriberBuffer(1), WithDropHook(func(Event) { dropped++ }))
	_, unsubscribe := m.Subscribe()
	defer unsubscribe()

	mustCreate(t, m, "one", "", "")
	mustCreate(t, m, "two", "", "")
	mustCreate(t, m, "three", "", "")

	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
}

func TestManagerUnsubscribeClosesChannel(t *testing.T) {
	m := newTestManager(t)
	events, unsubscribe := m.Subscribe()
	if got := m.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}
	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	if got := m.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", got)
	}
}

func TestManagerConcurrentMutations(t *testing.T) {
	m := NewManager(NewMemoryStore())
	const n = 50

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := m.Create(CreateRequest{Title: Some("concurrent")})
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			ids <- task.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}

	var deleted, missing int
	var mu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Delete(1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				deleted++
			case errors.Is(err, ErrTaskNotFound):
				missing++
			default:
				t.Errorf("Delete() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if deleted != 1 || missing != 3 {
		t.Fatalf("deleted = %d, missing = %d, want 1 and 3", deleted, missing)
	}
	if got := m.Count(); got != n-1 {
		t.Fatalf("Count() = %d, want %d", got, n-1)
	}
}

func titles(list []Task) string {
	out := ""
	for _, t := range list {
		out += t.Title
	}
	return out
}
