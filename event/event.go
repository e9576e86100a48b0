// Package event carries input from board sources to the dispatch loop.
//
// Producers (touch controllers, buttons) feed an Input, which validates each
// event and stores it in a bounded single-producer/single-consumer Queue. The
// UI dispatch loop is the single consumer.
package event

import (
	"fmt"
	"image"
	"math"
)

// Kind is the event variant.
type Kind uint8

const (
	None Kind = iota
	PointerDown
	PointerMove
	PointerUp
	ButtonPress

	numKinds
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case PointerDown:
		return "PointerDown"
	case PointerMove:
		return "PointerMove"
	case PointerUp:
		return "PointerUp"
	case ButtonPress:
		return "ButtonPress"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a deliverable event kind.
func (k Kind) Valid() bool {
	return k > None && k < numKinds
}

// IsPointer reports whether events of kind k carry coordinates.
func (k Kind) IsPointer() bool {
	return k == PointerDown || k == PointerMove || k == PointerUp
}

// Button identifies a hardware key.
type Button uint8

const (
	NoButton Button = iota
	ButtonSelect
	ButtonNext
	ButtonPrev
	ButtonBack
)

func (b Button) String() string {
	switch b {
	case NoButton:
		return "none"
	case ButtonSelect:
		return "select"
	case ButtonNext:
		return "next"
	case ButtonPrev:
		return "prev"
	case ButtonBack:
		return "back"
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// Event is a single input occurrence. Two events are the same event when
// they compare equal.
//
// X and Y are display coordinates for pointer kinds. Button is set for
// ButtonPress.
type Event struct {
	Kind   Kind
	X, Y   int16
	Button Button
}

// Pointer returns a pointer event of kind k at (x, y). Coordinates outside
// the int16 range saturate to its limits, which no Input accepts.
func Pointer(k Kind, x, y int) Event {
	return Event{Kind: k, X: coord(x), Y: coord(y)}
}

func coord(v int) int16 {
	return int16(max(math.MinInt16, min(v, math.MaxInt16)))
}

// Press returns a ButtonPress event for b.
func Press(b Button) Event {
	return Event{Kind: ButtonPress, Button: b}
}

// Point returns the event coordinates.
func (e Event) Point() image.Point {
	return image.Pt(int(e.X), int(e.Y))
}

func (e Event) String() string {
	switch {
	case e.Kind.IsPointer():
		return fmt.Sprintf("%s@(%d,%d)", e.Kind, e.X, e.Y)
	case e.Kind == ButtonPress:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Button)
	}
	return e.Kind.String()
}

// pack encodes e into one word so a queue slot can be written atomically.
func (e Event) pack() uint64 {
	return uint64(e.Kind)<<56 | uint64(e.Button)<<48 | uint64(uint16(e.X))<<16 | uint64(uint16(e.Y))
}

func unpack(v uint64) Event {
	return Event{
		Kind:   Kind(v >> 56),
		Button: Button(v >> 48),
		X:      int16(uint16(v >> 16)),
		Y:      int16(uint16(v)),
	}
}
