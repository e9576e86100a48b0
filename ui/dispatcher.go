package ui

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/flavioheleno/lcdkit/event"
)

// State is the dispatcher state.
type State uint32

const (
	Idle State = iota
	Dispatching
)

func (s State) String() string {
	if s == Dispatching {
		return "Dispatching"
	}
	return "Idle"
}

// DispatcherOpts configures a Dispatcher.
type DispatcherOpts struct {
	// StopWhen, when set, ends Run without error on the first event it
	// matches. That event is not dispatched.
	StopWhen func(event.Event) bool
	Logger   *slog.Logger // Default: slog.Default()
}

// Dispatcher drains an Input and routes each event through a Window.
//
// It does not repaint after dispatching: widgets invalidate themselves and
// the application decides when to call Window.Repaint.
type Dispatcher struct {
	in   *event.Input
	win  *Window
	stop func(event.Event) bool
	log  *slog.Logger

	state      atomic.Uint32
	dispatched atomic.Uint64
}

// NewDispatcher returns an idle dispatcher. opts can be nil.
func NewDispatcher(in *event.Input, win *Window, opts *DispatcherOpts) *Dispatcher {
	var o DispatcherOpts
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Dispatcher{in: in, win: win, stop: o.StopWhen, log: o.Logger}
}

// State returns the current state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Dispatched returns how many events were routed.
func (d *Dispatcher) Dispatched() uint64 {
	return d.dispatched.Load()
}

// Dispatch routes one event. Errors from widget actions and the default
// handler are returned unchanged.
func (d *Dispatcher) Dispatch(ev event.Event) error {
	d.state.Store(uint32(Dispatching))
	defer d.state.Store(uint32(Idle))
	d.dispatched.Add(1)
	return d.win.Deliver(ev)
}

// Run pops and dispatches events until ctx is done, the StopWhen predicate
// matches, or an action fails. Waiting for the next event is the loop's only
// suspension point.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Debug("dispatcher started")
	for {
		ev, err := d.in.PopEvent(ctx)
		if err != nil {
			return err
		}
		if d.stop != nil && d.stop(ev) {
			d.log.Debug("dispatcher stopped", "event", ev, "dispatched", d.Dispatched())
			return nil
		}
		if err := d.Dispatch(ev); err != nil {
			d.log.Debug("dispatch failed", "event", ev, "err", err)
			return err
		}
	}
}
