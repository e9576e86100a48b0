package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultPoll bounds how long a ButtonSource waits for an edge before it
// checks its context again.
const DefaultPoll = 100 * time.Millisecond

// ButtonOpts configures a ButtonSource.
type ButtonOpts struct {
	Poll     time.Duration // Edge wait slice (default: DefaultPoll)
	Debounce time.Duration // Presses closer than this to the previous one are ignored
}

// ButtonSource reports presses of one active-low push button wired to a GPIO.
type ButtonSource struct {
	pin    gpio.PinIn
	button Button
	opts   ButtonOpts
	last   time.Time
}

// NewButtonSource configures pin as an input with pull-up and falling edge
// detection, reporting presses as b.
func NewButtonSource(pin gpio.PinIn, b Button, opts *ButtonOpts) (*ButtonSource, error) {
	if pin == nil {
		return nil, errors.New("event: button pin is required")
	}
	if b == NoButton {
		return nil, errors.New("event: button identity is required")
	}
	var o ButtonOpts
	if opts != nil {
		o = *opts
	}
	if o.Poll <= 0 {
		o.Poll = DefaultPoll
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("event: button %s on %s: %w", b, pin, err)
	}
	return &ButtonSource{pin: pin, button: b, opts: o}, nil
}

// Next waits for the next press.
func (s *ButtonSource) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if !s.pin.WaitForEdge(s.opts.Poll) {
			continue
		}
		if s.pin.Read() != gpio.Low {
			continue
		}
		now := time.Now()
		if s.opts.Debounce > 0 && !s.last.IsZero() && now.Sub(s.last) < s.opts.Debounce {
			continue
		}
		s.last = now
		return Press(s.button), nil
	}
}

// String returns the button and pin names.
func (s *ButtonSource) String() string {
	return fmt.Sprintf("ButtonSource{%s, %s}", s.button, s.pin)
}
