package tasks

import "errors"

var ErrStoreNotFound = errors.New("task not found in store")

// Store holds task records and issues their ids. Implementations must hand
// out copies so callers never alias stored records.
type Store interface {
	NextID() int64
	Insert(task Task)
	Find(id int64) (Task, error)
	Replace(task Task) error
	Remove(id int64) error
	All() []Task
	Len() int
}
