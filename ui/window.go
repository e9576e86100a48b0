package ui

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/event"
	"github.com/flavioheleno/lcdkit/rgb565"
)

var (
	// ErrNotInWindow is returned for widgets that do not belong to the window.
	ErrNotInWindow = errors.New("ui: widget not in window")
	// ErrNotFocusable is returned by Focus for widgets that cannot take focus.
	ErrNotFocusable = errors.New("ui: widget not focusable")
	// ErrClosed is returned by operations on a closed window.
	ErrClosed = errors.New("ui: window closed")
)

// WindowOpts configures a Window.
type WindowOpts struct {
	Background rgb565.Color // Fill for areas no widget covers
	Logger     *slog.Logger // Default: slog.Default()
}

// Window owns widgets on a display, tracks the focused widget and routes
// events to them.
type Window struct {
	dev *lcdkit.Dev
	bg  rgb565.Color
	log *slog.Logger
	def func(event.Event) error

	widgets []Widget
	focused Widget
	damage  []image.Rectangle
	cleared bool
	closed  bool
}

// NewWindow returns an empty window covering dev. opts can be nil.
func NewWindow(dev *lcdkit.Dev, opts *WindowOpts) *Window {
	var o WindowOpts
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Window{dev: dev, bg: o.Background, log: o.Logger}
}

// Bounds returns the display bounds.
func (w *Window) Bounds() image.Rectangle {
	return w.dev.Bounds()
}

// add places wd in the window. Its region must lie within the display.
func (w *Window) add(wd Widget) error {
	if w.closed {
		return ErrClosed
	}
	if err := lcdkit.ValidateRegion(wd.Bounds(), w.Bounds()); err != nil {
		return err
	}
	w.widgets = append(w.widgets, wd)
	return nil
}

// Widgets returns the widgets in insertion order.
func (w *Window) Widgets() []Widget {
	return slices.Clone(w.widgets)
}

// Remove takes wd out of the window and drops its callbacks.
func (w *Window) Remove(wd Widget) error {
	i := slices.Index(w.widgets, wd)
	if i < 0 {
		return ErrNotInWindow
	}
	w.widgets = slices.Delete(w.widgets, i, i+1)
	if w.focused == wd {
		w.focused = nil
	}
	w.damage = append(w.damage, wd.Bounds())
	wd.base().clear()
	return nil
}

// Focus gives wd the input focus. Only one widget is focused at a time.
func (w *Window) Focus(wd Widget) error {
	if !slices.Contains(w.widgets, wd) {
		return ErrNotInWindow
	}
	if !wd.Focusable() {
		return ErrNotFocusable
	}
	if w.focused == wd {
		return nil
	}
	if w.focused != nil {
		w.focused.base().Invalidate()
	}
	w.focused = wd
	wd.base().Invalidate()
	return nil
}

// Blur clears the input focus.
func (w *Window) Blur() {
	if w.focused != nil {
		w.focused.base().Invalidate()
	}
	w.focused = nil
}

// Focused returns the focused widget or nil.
func (w *Window) Focused() Widget {
	return w.focused
}

// WidgetAt returns the topmost widget containing p, or nil.
func (w *Window) WidgetAt(p image.Point) Widget {
	for i := len(w.widgets) - 1; i >= 0; i-- {
		if p.In(w.widgets[i].Bounds()) {
			return w.widgets[i]
		}
	}
	return nil
}

// SetDefaultHandler sets the handler for events no focused widget handled.
func (w *Window) SetDefaultHandler(h func(event.Event) error) {
	w.def = h
}

// Deliver routes ev: the focused widget sees it first, and when it declines
// or nothing is focused the default handler runs.
func (w *Window) Deliver(ev event.Event) error {
	if w.closed {
		return ErrClosed
	}
	if f := w.focused; f != nil {
		handled, err := f.HandleEvent(ev)
		if err != nil || handled {
			return err
		}
	}
	if w.def != nil {
		return w.def(ev)
	}
	return nil
}

// DeliverAt offers a pointer event to the topmost widget under the pointer.
// Default handlers use it to let unfocused widgets react to taps.
func (w *Window) DeliverAt(ev event.Event) (bool, error) {
	if !ev.Kind.IsPointer() {
		return false, nil
	}
	wd := w.WidgetAt(ev.Point())
	if wd == nil || wd == w.focused {
		return false, nil
	}
	return wd.HandleEvent(ev)
}

// Repaint draws the widgets marked dirty inside one drawing context, in
// insertion order. Areas left by removed widgets are cleared first.
func (w *Window) Repaint() error {
	if w.closed {
		return ErrClosed
	}
	if !w.needsRepaint() {
		return nil
	}
	c, err := w.dev.Acquire()
	if err != nil {
		return err
	}
	defer c.Release()

	if !w.cleared {
		w.damage = append(w.damage[:0], w.Bounds())
		w.cleared = true
	}
	for _, r := range w.damage {
		if err := c.Fill(r, w.bg); err != nil {
			return fmt.Errorf("ui: clear %v: %w", r, err)
		}
	}
	damage := w.damage
	w.damage = nil

	for _, wd := range w.widgets {
		b := wd.base()
		if !b.dirty && !overlaps(wd.Bounds(), damage) {
			continue
		}
		if err := wd.Draw(c); err != nil {
			return fmt.Errorf("ui: draw %v: %w", wd.Bounds(), err)
		}
		b.dirty = false
	}
	return nil
}

func (w *Window) needsRepaint() bool {
	if !w.cleared || len(w.damage) > 0 {
		return true
	}
	for _, wd := range w.widgets {
		if wd.base().dirty {
			return true
		}
	}
	return false
}

func overlaps(r image.Rectangle, rs []image.Rectangle) bool {
	for _, o := range rs {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// Close removes every widget and its callbacks. Further calls are no-ops.
func (w *Window) Close() {
	if w.closed {
		return
	}
	for _, wd := range w.widgets {
		wd.base().clear()
	}
	w.widgets = nil
	w.focused = nil
	w.def = nil
	w.closed = true
	w.log.Debug("window closed")
}
