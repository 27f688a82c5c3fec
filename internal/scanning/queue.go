package scanning

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// JobQueue orders jobs waiting for a worker slot: higher priority first,
// first-in first-out within a priority.
type JobQueue struct {
	mu     sync.Mutex
	items  queueHeap
	index  map[string]*queueItem
	seq    uint64
	notify chan struct{}
	closed bool
}

type queueItem struct {
	id       string
	priority int
	seq      uint64
	pos      int
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		index:  make(map[string]*queueItem),
		notify: make(chan struct{}),
	}
}

// Push queues id. Pushing an id that is already queued is a no-op.
func (q *JobQueue) Push(id string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("job queue is closed")
	}
	if _, exists := q.index[id]; exists {
		return nil
	}
	q.seq++
	it := &queueItem{id: id, priority: priority, seq: q.seq}
	heap.Push(&q.items, it)
	q.index[id] = it
	q.wakeLocked()
	return nil
}

// Pop blocks until a job is available, the queue is closed, or ctx ends.
func (q *JobQueue) Pop(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return "", fmt.Errorf("job queue is closed")
		}
		if q.items.Len() > 0 {
			it := heap.Pop(&q.items).(*queueItem)
			delete(q.index, it.id)
			q.mu.Unlock()
			return it.id, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Remove drops id from the queue and reports whether it was queued.
func (q *JobQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.index[id]
	if !ok {
		return false
	}
	heap.Remove(&q.items, it.pos)
	delete(q.index, id)
	return true
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close wakes every waiter and rejects further pushes.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	q.index = make(map[string]*queueItem)
	q.wakeLocked()
}

// wakeLocked releases every goroutine blocked in Pop.
func (q *JobQueue) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}

type queueHeap []*queueItem

func (h queueHeap) Len() int { return len(h) }

func (h queueHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *queueHeap) Push(x any) {
	it := x.(*queueItem)
	it.pos = len(*h)
	*h = append(*h, it)
}

func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
