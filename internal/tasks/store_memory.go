package tasks

import "sync"

// MemoryStore keeps tasks in insertion order for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	lastID int64
	tasks  []Task
	index  map[int64]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[int64]int)}
}

// NextID never returns the same value twice, even after the task that held it
// is removed.
func (s *MemoryStore) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

func (s *MemoryStore) Insert(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[task.ID] = len(s.tasks)
	s.tasks = append(s.tasks, task.Clone())
}

func (s *MemoryStore) Find(id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return Task{}, ErrStoreNotFound
	}
	return s.tasks[pos].Clone(), nil
}

func (s *MemoryStore) Replace(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[task.ID]
	if !ok {
		return ErrStoreNotFound
	}
	s.tasks[pos] = task.Clone()
	return nil
}

func (s *MemoryStore) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return ErrStoreNotFound
	}
	copy(s.tasks[pos:], s.tasks[pos+1:])
	s.tasks[len(s.tasks)-1] = Task{}
	s.tasks = s.tasks[:len(s.tasks)-1]
	delete(s.index, id)
	for i := pos; i < len(s.tasks); i++ {
		s.index[s.tasks[i].ID] = i
	}
	return nil
}

// All returns a snapshot in insertion order.
func (s *MemoryStore) All() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
