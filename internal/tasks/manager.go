package tasks

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrTaskNotFound = errors.New("task not found")

// NotFoundError names the missing id and matches ErrTaskNotFound.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Task with ID %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound
}

const defaultSubscriberBuffer = 64

type Option func(*Manager)

// WithClock replaces time.Now for timestamping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber event channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.subscriberBuffer = n
		}
	}
}

// WithDropHook is called for every event a slow subscriber misses.
func WithDropHook(hook func(Event)) Option {
	return func(m *Manager) {
		m.onDrop = hook
	}
}

// Manager is the only reader and writer of its Store. Mutations run their
// find-then-write sequence under the write lock.
type Manager struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time

	subscriberBuffer int
	subscribers      map[int]chan Event
	nextSubID        int
	onDrop           func(Event)
}

func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		store:            store,
		now:              time.Now,
		subscriberBuffer: defaultSubscriberBuffer,
		subscribers:      make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	ch := make(chan Event, m.subscriberBuffer)
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(c)
			}
		})
	}
}

func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

func (m *Manager) Create(req CreateRequest) (Task, error) {
	draft, err := ValidateCreate(req)
	if err != nil {
		return Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timestamp()
	task := Task{
		ID:          m.store.NextID(),
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.store.Insert(task)
	m.publishLocked(EventTaskCreated, task, now)
	return task.Clone(), nil
}

func (m *Manager) Get(id int64) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(id)
}

// List filters by status and priority (both when given), then windows the
// matches by offset and limit. Insertion order is preserved.
func (m *Manager) List(q ListQuery) ([]Task, error) {
	q, err := ValidateListQuery(q)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	all := m.store.All()
	m.mu.RUnlock()

	matched := make([]Task, 0, len(all))
	for _, t := range all {
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if q.Priority != "" && t.Priority != q.Priority {
			continue
		}
		matched = append(matched, t)
	}

	if q.Offset >= len(matched) {
		return []Task{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], nil
}

func (m *Manager) Update(id int64, patch Patch) (Task, error) {
	changes, err := ValidatePatch(patch)
	if err != nil {
		return Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.findLocked(id)
	if err != nil {
		return Task{}, err
	}
	changes.apply(&task)
	now := m.timestamp()
	if now.Before(task.CreatedAt) {
		now = task.CreatedAt
	}
	task.UpdatedAt = now
	if err := m.store.Replace(task); err != nil {
		return Task{}, m.storeError(id, err)
	}
	m.publishLocked(EventTaskUpdated, task, now)
	return task.Clone(), nil
}

// Delete removes the task and returns the record as it was.
func (m *Manager) Delete(id int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.findLocked(id)
	if err != nil {
		return Task{}, err
	}
	if err := m.store.Remove(id); err != nil {
		return Task{}, m.storeError(id, err)
	}
	m.publishLocked(EventTaskDeleted, task, m.timestamp())
	return task, nil
}

// Summary counts every stored task. An empty store yields empty maps;
// otherwise every status and priority key is present, zero-filled.
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	all := m.store.All()
	m.mu.RUnlock()

	out := Summary{
		Total:      len(all),
		ByStatus:   make(map[TaskStatus]int),
		ByPriority: make(map[TaskPriority]int),
	}
	if len(all) == 0 {
		return out
	}
	for _, s := range TaskStatuses {
		out.ByStatus[s] = 0
	}
	for _, p := range TaskPriorities {
		out.ByPriority[p] = 0
	}
	for _, t := range all {
		out.ByStatus[t.Status]++
		out.ByPriority[t.Priority]++
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}

func (m *Manager) findLocked(id int64) (Task, error) {
	task, err := m.store.Find(id)
	if err != nil {
		return Task{}, m.storeError(id, err)
	}
	return task, nil
}

func (m *Manager) storeError(id int64, err error) error {
	if errors.Is(err, ErrStoreNotFound) {
		return &NotFoundError{ID: id}
	}
	return fmt.Errorf("task store: %w", err)
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC()
}

func (m *Manager) publishLocked(typ EventType, task Task, at time.Time) {
	if len(m.subscribers) == 0 {
		return
	}
	snapshot := task.Clone()
	evt := Event{
		Type:   typ,
		TaskID: task.ID,
		Task:   &snapshot,
		At:     at,
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
			if m.onDrop != nil {
				m.onDrop(evt)
			}
		}
	}
}
