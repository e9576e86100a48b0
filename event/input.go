package event

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrOutOfBounds is returned for pointer events outside the display.
	ErrOutOfBounds = errors.New("event: pointer outside display bounds")
	// ErrInvalidEvent is returned for events of an unknown or empty kind.
	ErrInvalidEvent = errors.New("event: invalid event")
	// ErrNilCallback is returned when registering a nil callback.
	ErrNilCallback = errors.New("event: nil callback")
)

// DefaultCapacity is the queue capacity used when InputOpts.Capacity is 0.
const DefaultCapacity = 32

// Source is a board level event source. Next blocks until the next raw
// event is available or ctx is done. A source that returns io.EOF is
// exhausted; other errors stop Input.Run.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Event, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) (Event, error) {
	return f(ctx)
}

// InputOpts configures an Input.
type InputOpts struct {
	Bounds   image.Rectangle // Display bounds pointer events must fall in
	Capacity int             // Queue capacity (default: DefaultCapacity)
	Logger   *slog.Logger    // Logger for rejected events (default: slog.Default())
}

// Input validates events from the producer side and queues them for the
// dispatch loop.
type Input struct {
	q      *Queue
	bounds image.Rectangle
	log    *slog.Logger

	mu     sync.Mutex // serializes callback registration
	nextID uint64
	cbs    atomic.Pointer[[]callback]
}

type callback struct {
	id uint64
	fn func()
}

// NewInput returns an Input with an empty queue.
func NewInput(opts InputOpts) (*Input, error) {
	if opts.Bounds.Empty() {
		return nil, fmt.Errorf("event: empty display bounds %v", opts.Bounds)
	}
	// The saturated coordinates of Pointer must stay outside the bounds.
	if b := opts.Bounds; b.Min.X <= math.MinInt16 || b.Min.Y <= math.MinInt16 ||
		b.Max.X > math.MaxInt16 || b.Max.Y > math.MaxInt16 {
		return nil, fmt.Errorf("event: display bounds %v exceed the event coordinate range", opts.Bounds)
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	q, err := NewQueue(opts.Capacity)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Input{q: q, bounds: opts.Bounds, log: opts.Logger}, nil
}

// Bounds returns the display bounds used to validate pointer events.
func (in *Input) Bounds() image.Rectangle {
	return in.bounds
}

// Queue returns the underlying queue.
func (in *Input) Queue() *Queue {
	return in.q
}

// Push validates ev, queues it and runs the registered callbacks. It is the
// producer side: only one goroutine may call it at a time.
func (in *Input) Push(ev Event) error {
	if err := in.validate(ev); err != nil {
		return err
	}
	in.q.Push(ev)
	if cbs := in.cbs.Load(); cbs != nil {
		for _, cb := range *cbs {
			cb.fn()
		}
	}
	return nil
}

func (in *Input) validate(ev Event) error {
	switch {
	case !ev.Kind.Valid():
		return fmt.Errorf("%w: kind %s", ErrInvalidEvent, ev.Kind)
	case ev.Kind == ButtonPress && ev.Button == NoButton:
		return fmt.Errorf("%w: button press without a button", ErrInvalidEvent)
	case ev.Kind.IsPointer() && !ev.Point().In(in.bounds):
		return fmt.Errorf("%w: %v", ErrOutOfBounds, ev.Point())
	}
	return nil
}

// RegisterEventCallback registers fn to run after each accepted event, on
// the producer goroutine. fn must not block.
//
// The returned function unregisters fn; calling it more than once is a no-op.
func (in *Input) RegisterEventCallback(fn func()) (unregister func(), err error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.nextID++
	id := in.nextID
	in.store(append(in.snapshot(), callback{id: id, fn: fn}))

	var once sync.Once
	unregister = func() {
		once.Do(func() {
			in.mu.Lock()
			defer in.mu.Unlock()
			old := in.snapshot()
			next := make([]callback, 0, len(old))
			for _, cb := range old {
				if cb.id != id {
					next = append(next, cb)
				}
			}
			in.store(next)
		})
	}
	return unregister, nil
}

// snapshot returns a copy of the callback list. in.mu must be held.
func (in *Input) snapshot() []callback {
	p := in.cbs.Load()
	if p == nil {
		return nil
	}
	return append([]callback(nil), *p...)
}

func (in *Input) store(cbs []callback) {
	in.cbs.Store(&cbs)
}

// PopEvent returns the next event, waiting until one is available or ctx is
// done. It is the consumer side.
func (in *Input) PopEvent(ctx context.Context) (Event, error) {
	return in.q.Pop(ctx)
}

// TryPopEvent returns the next event without waiting.
func (in *Input) TryPopEvent() (Event, bool) {
	return in.q.TryPop()
}

// Empty reports whether no event is waiting.
func (in *Input) Empty() bool {
	return in.q.Empty()
}

// Run reads every source concurrently and pushes their events from a single
// goroutine, so any number of sources share the one producer slot. Events
// failing validation are logged and skipped.
//
// Run returns nil once every source is exhausted, and otherwise when ctx is
// done or a source fails.
func (in *Input) Run(ctx context.Context, sources ...Source) error {
	g, ctx := errgroup.WithContext(ctx)
	events := make(chan Event)

	var producers sync.WaitGroup
	for _, src := range sources {
		src := src
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			for {
				ev, err := src.Next(ctx)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("event: source: %w", err)
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	go func() {
		producers.Wait()
		close(events)
	}()

	g.Go(func() error {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := in.Push(ev); err != nil {
					in.log.Warn("dropping input event", "event", ev, "err", err)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}
