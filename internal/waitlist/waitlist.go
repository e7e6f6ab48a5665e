// Package waitlist keeps the per-resource FIFO of users waiting for a
// resource to become free. It holds no business logic: ordering and
// idempotency only.
package waitlist

import (
	"sync"
	"sync/atomic"
)

// Entry is a single waiting request for a resource.
type Entry struct {
	ResourceID string
	UserID     string
	Sequence   uint64
}

type resourceQueue struct {
	mu      sync.Mutex
	entries []Entry
}

// Store maps resource ids to their waiting queues. Operations on the same
// resource serialize on that resource's own lock; operations on different
// resources do not block each other.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*resourceQueue
	seq    atomic.Uint64
}

func NewStore() *Store {
	return &Store{
		queues: make(map[string]*resourceQueue),
	}
}

func (s *Store) queueFor(resourceID string) *resourceQueue {
	s.mu.RLock()
	q, ok := s.queues[resourceID]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok = s.queues[resourceID]; ok {
		return q
	}
	q = &resourceQueue{}
	s.queues[resourceID] = q
	return q
}

// Enqueue appends the user to the resource's queue and returns the 1-based
// position. A (resource, user) pair is queued at most once: repeating the
// call returns the existing position without mutating the queue.
func (s *Store) Enqueue(resourceID, userID string) int {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID {
			return i + 1
		}
	}

	q.entries = append(q.entries, Entry{
		ResourceID: resourceID,
		UserID:     userID,
		Sequence:   s.seq.Add(1),
	})
	return len(q.entries)
}

// DequeueNext removes and returns the earliest-enqueued entry for the
// resource. The second result is false when the queue is empty.
func (s *Store) DequeueNext(resourceID string) (Entry, bool) {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}

	head := q.entries[0]
	q.entries = append(q.entries[:0], q.entries[1:]...)
	return head, true
}

// PeekNext returns the head of the resource's queue without removing it.
func (s *Store) PeekNext(resourceID string) (Entry, bool) {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// Remove deletes a specific (resource, user) entry. It reports whether an
// entry was present.
func (s *Store) Remove(resourceID, userID string) bool {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the 1-based queue position of the user, or 0 when the
// user is not queued for the resource.
func (s *Store) Position(resourceID, userID string) int {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Length returns the number of waiting entries for the resource.
func (s *Store) Length(resourceID string) int {
	q := s.queueFor(resourceID)

	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// HasPending reports whether anyone is waiting for the resource.
func (s *Store) HasPending(resourceID string) bool {
	return s.Length(resourceID) > 0
}
