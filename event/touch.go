package event

import (
	"errors"
	"image"
)

// ErrUnsupported is returned by NewTouch on platforms without evdev.
var ErrUnsupported = errors.New("event: touch input not supported on this platform")

// Linux input event types and codes used by single-touch controllers.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0

	btnTouch = 0x014a

	absX            = 0x00
	absY            = 0x01
	absMTPositionX  = 0x35
	absMTPositionY  = 0x36
	absMTTrackingID = 0x39
)

// Axis is the raw range reported by a touch controller for one axis.
type Axis struct {
	Min, Max int32
}

// TouchDecoder turns a stream of raw input events into pointer events.
//
// Events are committed on each SYN_REPORT: a frame yields at most one
// pointer event. Contact is tracked through BTN_TOUCH or the multi-touch
// tracking id; positions through ABS_X/ABS_Y or their multi-touch variants.
type TouchDecoder struct {
	bounds image.Rectangle
	ax, ay Axis

	cur, last      image.Point
	down, lastDown bool
	hasPos         bool
}

// NewTouchDecoder returns a decoder mapping raw axis ranges ax and ay onto
// bounds.
func NewTouchDecoder(bounds image.Rectangle, ax, ay Axis) *TouchDecoder {
	if ax.Max <= ax.Min {
		ax.Max = ax.Min + 1
	}
	if ay.Max <= ay.Min {
		ay.Max = ay.Min + 1
	}
	return &TouchDecoder{bounds: bounds, ax: ax, ay: ay}
}

// Feed processes one raw event. ok is true when the event completed a frame
// that produced a pointer event.
func (d *TouchDecoder) Feed(typ, code uint16, value int32) (ev Event, ok bool) {
	switch typ {
	case evAbs:
		switch code {
		case absX, absMTPositionX:
			d.cur.X = d.bounds.Min.X + mapAxis(value, d.ax, d.bounds.Dx())
			d.hasPos = true
		case absY, absMTPositionY:
			d.cur.Y = d.bounds.Min.Y + mapAxis(value, d.ay, d.bounds.Dy())
			d.hasPos = true
		case absMTTrackingID:
			d.down = value >= 0
		}
	case evKey:
		if code == btnTouch {
			d.down = value != 0
		}
	case evSyn:
		if code == synReport {
			return d.commit()
		}
	}
	return Event{}, false
}

func (d *TouchDecoder) commit() (Event, bool) {
	if !d.hasPos && d.down == d.lastDown {
		return Event{}, false
	}
	k := PointerMove
	switch {
	case d.down && !d.lastDown:
		k = PointerDown
	case !d.down && d.lastDown:
		k = PointerUp
	case !d.down:
		// Hover reports from controllers that track position without contact.
		d.hasPos = false
		return Event{}, false
	}
	if k == PointerMove && d.cur == d.last {
		d.hasPos = false
		return Event{}, false
	}
	d.lastDown = d.down
	d.last = d.cur
	d.hasPos = false
	return Pointer(k, d.cur.X, d.cur.Y), true
}

// mapAxis scales v from a onto 0..out-1.
func mapAxis(v int32, a Axis, out int) int {
	if out <= 1 {
		return 0
	}
	v = max(a.Min, min(v, a.Max))
	return int(int64(v-a.Min) * int64(out-1) / int64(a.Max-a.Min))
}
