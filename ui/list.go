package ui

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/event"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// ListOpts are the presentation parameters of a List.
type ListOpts struct {
	ItemHeight int // Row height in pixels (default: 16, minimum: font height)
	FG, BG     rgb565.Color // Both zero: white on black
	SelectedBG rgb565.Color // Background of the selected row (default: blue)
}

// List shows selectable rows of text.
//
// A tap on a row or a Next/Prev/Select button press selects a row, gives
// the list the focus and runs the SelectionChanged callback.
type List struct {
	Base
	opts     ListOpts
	items    []string
	selected int
	top      int // first visible row
	img      *rgb565.Image
}

// NewList adds an empty list covering r to win.
func NewList(win *Window, r image.Rectangle, opts ListOpts) (*List, error) {
	if opts.ItemHeight == 0 {
		opts.ItemHeight = 16
	}
	if h := face.Metrics().Height.Ceil(); opts.ItemHeight < h {
		return nil, fmt.Errorf("ui: item height %d below font height %d", opts.ItemHeight, h)
	}
	if opts.FG == 0 && opts.BG == 0 {
		opts.FG, opts.BG = rgb565.White, rgb565.Black
	}
	if opts.SelectedBG == 0 {
		opts.SelectedBG = rgb565.Blue
	}
	l := &List{opts: opts, selected: -1, img: rgb565.NewImage(r)}
	l.Init(win, r)
	if err := win.add(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Focusable reports true.
func (l *List) Focusable() bool { return true }

// AddItem appends a row.
func (l *List) AddItem(s string) {
	l.items = append(l.items, s)
	l.Invalidate()
}

// Items returns the rows.
func (l *List) Items() []string {
	return append([]string(nil), l.items...)
}

// Selected returns the selected row index, or -1 when nothing is selected.
func (l *List) Selected() int {
	return l.selected
}

// SetSelected selects row i, or clears the selection for -1. It does not run
// the SelectionChanged callback.
func (l *List) SetSelected(i int) error {
	if i < -1 || i >= len(l.items) {
		return fmt.Errorf("ui: selection %d out of range [-1, %d)", i, len(l.items))
	}
	if i != l.selected {
		l.selected = i
		l.scrollTo(i)
		l.Invalidate()
	}
	return nil
}

// HandleEvent implements Widget.
func (l *List) HandleEvent(ev event.Event) (bool, error) {
	switch {
	case ev.Kind == event.PointerUp:
		if i := l.rowAt(ev.Point()); i >= 0 {
			return l.choose(i)
		}
	case ev.Kind == event.ButtonPress && len(l.items) > 0:
		switch ev.Button {
		case event.ButtonNext:
			return l.choose(min(l.selected+1, len(l.items)-1))
		case event.ButtonPrev:
			return l.choose(max(l.selected-1, 0))
		case event.ButtonSelect:
			return l.choose(max(l.selected, 0))
		}
	}
	return l.Base.HandleEvent(ev)
}

// choose selects row i, takes the focus and runs the SelectionChanged
// callback. The event counts as handled with or without a callback.
func (l *List) choose(i int) (bool, error) {
	if err := l.SetSelected(i); err != nil {
		return false, err
	}
	if win := l.Window(); win != nil {
		if err := win.Focus(l); err != nil {
			return false, err
		}
	}
	_, err := l.Fire(SelectionChanged)
	return true, err
}

// rowAt returns the row under p, or -1.
func (l *List) rowAt(p image.Point) int {
	if !p.In(l.rect) {
		return -1
	}
	i := l.top + (p.Y-l.rect.Min.Y)/l.opts.ItemHeight
	if i >= len(l.items) {
		return -1
	}
	return i
}

// visibleRows returns how many full rows fit in the list.
func (l *List) visibleRows() int {
	return max(l.rect.Dy()/l.opts.ItemHeight, 1)
}

// scrollTo moves the view so row i is visible.
func (l *List) scrollTo(i int) {
	if i < 0 {
		return
	}
	n := l.visibleRows()
	switch {
	case i < l.top:
		l.top = i
	case i >= l.top+n:
		l.top = i - n + 1
	}
}

// Draw renders the visible rows.
func (l *List) Draw(c *lcdkit.Context) error {
	l.img.Fill(l.opts.BG)
	h := l.opts.ItemHeight
	for row, n := 0, l.visibleRows(); row < n; row++ {
		i := l.top + row
		if i >= len(l.items) {
			break
		}
		y := l.rect.Min.Y + row*h
		r := image.Rect(l.rect.Min.X, y, l.rect.Max.X, min(y+h, l.rect.Max.Y))
		if i == l.selected {
			draw.Draw(l.img, r, image.NewUniform(l.opts.SelectedBG), image.Point{}, draw.Src)
		}
		drawText(l.img, r, l.items[i], l.opts.FG)
	}
	return c.Draw(l.rect, l.img, l.rect.Min)
}
