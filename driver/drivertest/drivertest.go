// Package drivertest provides a recording driver.Transport for host tests.
package drivertest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flavioheleno/lcdkit/driver"
)

// ErrInjected is the fault returned once FailAfter bytes were exchanged.
var ErrInjected = errors.New("drivertest: injected bus fault")

// OpKind is the kind of a recorded operation.
type OpKind uint8

const (
	OpAssert OpKind = iota
	OpDeassert
	OpByte
)

// Op is one recorded transport operation.
//
// For OpByte, CS and DC hold the signal states when the byte was sent:
// CS is true while chip-select is asserted and DC is true in command mode.
type Op struct {
	Kind   OpKind
	Signal driver.Signal
	Byte   byte
	CS     bool
	DC     bool
}

func (o Op) String() string {
	switch o.Kind {
	case OpAssert:
		switch o.Signal {
		case driver.ChipSelect:
			return "CS↓"
		case driver.DataCommand:
			return "DC=cmd"
		}
		return o.Signal.String() + "↓"
	case OpDeassert:
		switch o.Signal {
		case driver.ChipSelect:
			return "CS↑"
		case driver.DataCommand:
			return "DC=data"
		}
		return o.Signal.String() + "↑"
	default:
		return fmt.Sprintf("0x%02X", o.Byte)
	}
}

// Recorder is a driver.Transport that records every operation.
//
// FailAfter, when positive, makes the exchange of byte number FailAfter+1
// fail with ErrInjected, standing in for a bus that never completes.
// Recv, when set, supplies the byte returned by each exchange.
type Recorder struct {
	mu        sync.Mutex
	Ops       []Op
	FailAfter int
	Recv      func(sent byte) byte

	asserted map[driver.Signal]int
	bytes    int
	streams  int
}

// NoStream returns a view of r without the Streamer fast path, so every
// data byte goes through Exchange.
func NoStream(r *Recorder) driver.Transport {
	return noStream{r: r}
}

type noStream struct {
	r *Recorder
}

func (n noStream) Exchange(b byte) (byte, error) { return n.r.Exchange(b) }
func (n noStream) Assert(s driver.Signal)        { n.r.Assert(s) }
func (n noStream) Deassert(s driver.Signal)      { n.r.Deassert(s) }

// Exchange implements driver.Transport.
func (r *Recorder) Exchange(b byte) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exchangeLocked(b)
}

// Stream implements driver.Streamer by recording each byte.
func (r *Recorder) Stream(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams++
	for _, b := range p {
		if _, err := r.exchangeLocked(b); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) exchangeLocked(b byte) (byte, error) {
	if r.FailAfter > 0 && r.bytes >= r.FailAfter {
		return 0, ErrInjected
	}
	r.bytes++
	r.Ops = append(r.Ops, Op{
		Kind: OpByte,
		Byte: b,
		CS:   r.asserted[driver.ChipSelect] > 0,
		DC:   r.asserted[driver.DataCommand] > 0,
	})
	if r.Recv != nil {
		return r.Recv(b), nil
	}
	return 0, nil
}

// Assert implements driver.Transport.
func (r *Recorder) Assert(s driver.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.asserted == nil {
		r.asserted = map[driver.Signal]int{}
	}
	r.asserted[s]++
	r.Ops = append(r.Ops, Op{Kind: OpAssert, Signal: s})
}

// Deassert implements driver.Transport.
func (r *Recorder) Deassert(s driver.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.asserted[s] > 0 {
		r.asserted[s]--
	}
	r.Ops = append(r.Ops, Op{Kind: OpDeassert, Signal: s})
}

// Asserted reports whether s is currently asserted.
func (r *Recorder) Asserted(s driver.Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.asserted[s] > 0
}

// Count returns how many times s was asserted and deasserted.
func (r *Recorder) Count(s driver.Signal) (asserts, deasserts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Ops {
		if o.Signal != s || o.Kind == OpByte {
			continue
		}
		if o.Kind == OpAssert {
			asserts++
		} else {
			deasserts++
		}
	}
	return asserts, deasserts
}

// Bytes returns the exchanged bytes in order.
func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, o := range r.Ops {
		if o.Kind == OpByte {
			out = append(out, o.Byte)
		}
	}
	return out
}

// Streams returns the number of Stream calls.
func (r *Recorder) Streams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams
}

// Reset clears the recorded operations, keeping signal state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = nil
	r.bytes = 0
	r.streams = 0
}

// String renders the trace, e.g. "CS↓ DC=cmd 0x2A DC=data 0x00 CS↑".
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := make([]string, len(r.Ops))
	for i, o := range r.Ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}
