package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxCapacity is the largest supported queue capacity.
const MaxCapacity = 1 << 16

// ErrInvalidCapacity is returned by NewQueue for a capacity outside 1..MaxCapacity.
var ErrInvalidCapacity = errors.New("event: invalid queue capacity")

// Queue is a bounded FIFO of events for one producer and one consumer.
//
// Push and the pop methods may run concurrently with each other; neither
// takes a lock or allocates. When the queue is full, Push drops the oldest
// queued event so the newest input is always kept. Dropped reports how many
// events were lost that way.
//
// At most one goroutine may push and at most one may pop at a time.
type Queue struct {
	slots []atomic.Uint64
	head  atomic.Uint64 // next position to pop
	tail  atomic.Uint64 // next position to push

	dropped atomic.Uint64
	wake    chan struct{}
}

// NewQueue returns an empty queue holding up to capacity events.
func NewQueue(capacity int) (*Queue, error) {
	if capacity < 1 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Queue{
		slots: make([]atomic.Uint64, capacity),
		wake:  make(chan struct{}, 1),
	}, nil
}

// Push appends ev, dropping the oldest event if the queue is full.
func (q *Queue) Push(ev Event) {
	n := uint64(len(q.slots))
	t := q.tail.Load()
	if h := q.head.Load(); t-h >= n {
		// A failed swap means the consumer freed the slot first.
		if q.head.CompareAndSwap(h, h+1) {
			q.dropped.Add(1)
		}
	}
	q.slots[t%n].Store(ev.pack())
	q.tail.Store(t + 1)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest event. ok is false when the queue
// is empty.
func (q *Queue) TryPop() (ev Event, ok bool) {
	n := uint64(len(q.slots))
	for {
		h := q.head.Load()
		if h == q.tail.Load() {
			return Event{}, false
		}
		v := q.slots[h%n].Load()
		// The producer moves head when it drops the oldest event; the slot
		// read above may then belong to a newer event.
		if q.head.CompareAndSwap(h, h+1) {
			return unpack(v), true
		}
	}
}

// Pop removes and returns the oldest event, waiting until one is pushed or
// ctx is done.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, nil
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Empty reports whether the queue holds no events. It is safe to call from
// either side.
func (q *Queue) Empty() bool {
	return q.head.Load() == q.tail.Load()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	h := q.head.Load()
	t := q.tail.Load()
	if t < h {
		return 0
	}
	return int(min(t-h, uint64(len(q.slots))))
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return len(q.slots)
}

// Dropped returns the number of events dropped on overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
