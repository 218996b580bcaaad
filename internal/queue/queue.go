// Package queue implements the in-memory priority queue: a cache of
// pending Entries ordered (priority asc, created_at asc), kept in
// lockstep with the Store's queue table. A blocking Pop waits on a notify
// channel that Push signals; priority/FIFO ordering has no channel
// analogue, so it is built on container/heap — no third-party
// priority-queue library turned up anywhere in the dependency surface
// this module draws on (see DESIGN.md).
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"tsapi/internal/models"
	"tsapi/internal/store"
)

// ErrEmpty is returned by Pop when no Entry became available before the
// timeout elapsed, letting the Scheduler periodically re-evaluate capacity.
var ErrEmpty = errors.New("queue: empty")

type item struct {
	entry    *models.Entry
	priority int32
	created  time.Time
	index    int
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].created.Before(h[j].created)
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is the single priority queue shared by concurrent producers
// (submission) and a single consumer (the Scheduler).
type Queue struct {
	st store.Store

	mu     sync.Mutex
	heap   itemHeap
	byUID  map[string]*item
	notify chan struct{}
}

// New creates an empty Queue backed by st.
func New(st store.Store) *Queue {
	q := &Queue{
		st:     st,
		byUID:  make(map[string]*item),
		notify: make(chan struct{}, 1),
	}
	heap.Init(&q.heap)
	return q
}

// Push admits entry into the queue at priority, reflecting the change into
// the Store within the same critical region. Duplicate entries are
// rejected — Queue is the cache of Entries whose status is Queued, and a
// uid can only ever be queued once.
func (q *Queue) Push(entry *models.Entry, priority int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byUID[entry.UID]; exists {
		return store.ErrConflict("job " + entry.UID + " already queued")
	}
	if err := q.st.Enqueue(entry.UID, priority); err != nil {
		return err
	}

	it := &item{entry: entry, priority: priority, created: entry.CreatedAt}
	heap.Push(&q.heap, it)
	q.byUID[entry.UID] = it

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Restore rebuilds the in-memory heap from a Store snapshot at startup,
// without re-touching the Store (it is already the source of truth).
func (q *Queue) Restore(refs []models.QueueRef, entries map[string]*models.Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ref := range refs {
		entry, ok := entries[ref.JobUID]
		if !ok {
			continue
		}
		it := &item{entry: entry, priority: ref.Priority, created: ref.AddedAt}
		heap.Push(&q.heap, it)
		q.byUID[entry.UID] = it
	}
}

// Pop blocks up to timeout waiting for the highest-priority Entry, removing
// it from both the heap and the Store's queue table. Returns ErrEmpty on
// timeout.
func (q *Queue) Pop(timeout time.Duration) (*models.Entry, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if q.heap.Len() > 0 {
			it := heap.Pop(&q.heap).(*item)
			delete(q.byUID, it.entry.UID)
			err := q.st.RemoveFromQueue(it.entry.UID)
			q.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return it.entry, nil
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrEmpty
		}
		wait := remaining
		if wait > 200*time.Millisecond {
			wait = 200 * time.Millisecond
		}
		select {
		case <-q.notify:
		case <-time.After(wait):
		}
	}
}

// Remove drops uid from the queue (e.g. DELETE while still Queued),
// reflecting the removal into the Store.
func (q *Queue) Remove(uid string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.byUID[uid]
	if !ok {
		return nil
	}
	heap.Remove(&q.heap, it.index)
	delete(q.byUID, uid)
	return q.st.RemoveFromQueue(uid)
}

// Len reports the current queue length, consulted by the self-care
// admission gate.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
