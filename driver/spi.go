package driver

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// DefaultSPIFrequency is used by NewSPITransport when no frequency is given.
const DefaultSPIFrequency = 10 * physic.MegaHertz

// SPITransport is a Transport over a periph.io SPI port and GPIO pins.
//
// All three signals are active low. When cs is nil the controller is assumed
// to have its chip-select tied low and ChipSelect becomes a no-op; otherwise
// the port is opened with spi.NoCS so the kernel does not toggle chip-select
// around each transfer.
type SPITransport struct {
	c   spi.Conn
	dc  gpio.PinOut
	cs  gpio.PinOut
	rst gpio.PinOut

	maxTx int
	err   error // latched pin failure
}

// NewSPITransport connects to p and configures the control pins.
//
// dc is required; cs and rst can be nil.
func NewSPITransport(p spi.Port, f physic.Frequency, dc, cs, rst gpio.PinOut) (*SPITransport, error) {
	if dc == nil {
		return nil, errors.New("driver: data/command pin is required")
	}
	if f == 0 {
		f = DefaultSPIFrequency
	}
	mode := spi.Mode0
	if cs != nil {
		mode |= spi.NoCS
	}
	c, err := p.Connect(f, mode, 8)
	if err != nil {
		return nil, fmt.Errorf("driver: spi connect: %w", err)
	}

	t := &SPITransport{c: c, dc: dc, cs: cs, rst: rst, maxTx: chunkSize}
	if l, ok := c.(conn.Limits); ok {
		if n := l.MaxTxSize(); n > 0 {
			t.maxTx = n
		}
	}

	// Idle levels: deselected, data mode, out of reset.
	for _, pin := range []gpio.PinOut{cs, dc, rst} {
		if pin == nil {
			continue
		}
		if err := pin.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("driver: %s idle level: %w", pin, err)
		}
	}
	return t, nil
}

// Exchange implements Transport.
func (t *SPITransport) Exchange(b byte) (byte, error) {
	if err := t.takeErr(); err != nil {
		return 0, err
	}
	w := [1]byte{b}
	var r [1]byte
	if err := t.c.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Stream implements Streamer, splitting p to the port's transfer limit.
func (t *SPITransport) Stream(p []byte) error {
	if err := t.takeErr(); err != nil {
		return err
	}
	for len(p) > 0 {
		n := min(len(p), t.maxTx)
		if err := t.c.Tx(p[:n], nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Assert implements Transport.
func (t *SPITransport) Assert(s Signal) {
	t.drive(s, gpio.Low)
}

// Deassert implements Transport.
func (t *SPITransport) Deassert(s Signal) {
	t.drive(s, gpio.High)
}

// String returns the underlying connection name.
func (t *SPITransport) String() string {
	return fmt.Sprintf("driver.SPITransport{%s}", t.c)
}

func (t *SPITransport) drive(s Signal, l gpio.Level) {
	var pin gpio.PinOut
	switch s {
	case ChipSelect:
		pin = t.cs
	case DataCommand:
		pin = t.dc
	case Reset:
		pin = t.rst
	}
	if pin == nil {
		return
	}
	if err := pin.Out(l); err != nil && t.err == nil {
		t.err = fmt.Errorf("drive %s %s: %w", s, l, err)
	}
}

func (t *SPITransport) takeErr() error {
	err := t.err
	t.err = nil
	return err
}
