// Package ui provides widgets, a window and the event dispatch loop for an
// lcdkit display.
//
// Everything in this package runs on the dispatch goroutine: widgets and
// windows are not safe for concurrent use.
package ui

import (
	"fmt"
	"image"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/event"
)

// Trigger selects which notification a widget callback is registered for.
type Trigger uint8

const (
	OnPointerDown Trigger = iota + 1
	OnPointerMove
	OnPointerUp
	OnButtonPress
	// SelectionChanged is synthesized by widgets with a selection.
	SelectionChanged
	// TextChanged is synthesized when a widget's text is replaced.
	TextChanged
)

func (t Trigger) String() string {
	switch t {
	case OnPointerDown:
		return "PointerDown"
	case OnPointerMove:
		return "PointerMove"
	case OnPointerUp:
		return "PointerUp"
	case OnButtonPress:
		return "ButtonPress"
	case SelectionChanged:
		return "SelectionChanged"
	case TextChanged:
		return "TextChanged"
	}
	return fmt.Sprintf("Trigger(%d)", uint8(t))
}

// TriggerFor returns the trigger matching events of kind k, or 0.
func TriggerFor(k event.Kind) Trigger {
	switch k {
	case event.PointerDown:
		return OnPointerDown
	case event.PointerMove:
		return OnPointerMove
	case event.PointerUp:
		return OnPointerUp
	case event.ButtonPress:
		return OnButtonPress
	}
	return 0
}

// Action is a widget callback. An error returned by an action stops the
// dispatch loop and is returned by Dispatcher.Run.
type Action func() error

// Widget is a UI element placed in a Window.
//
// Widgets are built by embedding Base, which ties them to their window and
// holds their callback table.
type Widget interface {
	Bounds() image.Rectangle
	// Draw renders the widget through an open drawing context.
	Draw(c *lcdkit.Context) error
	// HandleEvent reports whether the widget handled ev. A widget that
	// declines returns false so the event moves on to the window.
	HandleEvent(ev event.Event) (bool, error)
	Focusable() bool

	base() *Base
}

// Base implements the parts common to all widgets.
type Base struct {
	win   *Window // not owned
	rect  image.Rectangle
	cbs   map[Trigger]*Registration
	dirty bool
}

// Registration is the handle of one registered callback.
type Registration struct {
	b       *Base
	trigger Trigger
	action  Action
}

// Init binds b to win and sets its region. Widget constructors call it
// before adding the widget to the window.
func (b *Base) Init(win *Window, r image.Rectangle) {
	b.win = win
	b.rect = r
	b.dirty = true
}

func (b *Base) base() *Base { return b }

// Bounds returns the widget region.
func (b *Base) Bounds() image.Rectangle { return b.rect }

// Window returns the owning window.
func (b *Base) Window() *Window { return b.win }

// Focusable reports false; widgets that take focus override it.
func (b *Base) Focusable() bool { return false }

// Focused reports whether the widget holds the window focus.
func (b *Base) Focused() bool {
	return b.win != nil && b.win.focused != nil && b.win.focused.base() == b
}

// SetCallback registers action for t, replacing any earlier registration
// for the same trigger. A nil action clears the trigger.
func (b *Base) SetCallback(t Trigger, action Action) *Registration {
	if b.cbs == nil {
		b.cbs = map[Trigger]*Registration{}
	}
	if action == nil {
		delete(b.cbs, t)
		return &Registration{}
	}
	r := &Registration{b: b, trigger: t, action: action}
	b.cbs[t] = r
	return r
}

// Remove unregisters the callback. It is a no-op if the registration was
// replaced, already removed, or its widget was removed from the window.
func (r *Registration) Remove() {
	if r.b == nil {
		return
	}
	if r.b.cbs[r.trigger] == r {
		delete(r.b.cbs, r.trigger)
	}
	r.b = nil
}

// Fire runs the action registered for t. handled is false when no action is
// registered.
func (b *Base) Fire(t Trigger) (handled bool, err error) {
	r, ok := b.cbs[t]
	if !ok {
		return false, nil
	}
	return true, r.action()
}

// HandleEvent runs the callback registered for the event kind.
func (b *Base) HandleEvent(ev event.Event) (bool, error) {
	return b.Fire(TriggerFor(ev.Kind))
}

// Invalidate marks the widget for drawing on the next Window.Repaint.
func (b *Base) Invalidate() { b.dirty = true }

// clear drops every callback and detaches the widget from its window.
func (b *Base) clear() {
	for _, r := range b.cbs {
		r.b = nil
	}
	b.cbs = nil
	b.win = nil
}
