package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/flavioheleno/lcdkit/rgb565"
)

var (
	// ErrTransport marks a failed byte exchange. The bus state is unknown
	// afterwards and the controller needs a reset.
	ErrTransport = errors.New("driver: transport fault")
	// ErrInvalidParameter is returned for arguments rejected at the call boundary.
	ErrInvalidParameter = errors.New("driver: invalid parameter")
)

// chunkSize bounds the scratch buffer used to encode pixel data phases.
const chunkSize = 4096

// Opts configures a Driver.
type Opts struct {
	ResetPulse  time.Duration // Time Reset is held asserted (default: 10ms)
	ResetSettle time.Duration // Wait after releasing Reset (default: 120ms)
}

// Driver sequences register writes over a Transport.
//
// A Driver is not safe for concurrent use; the display that owns it
// serializes access through its drawing context.
type Driver struct {
	t       Transport
	s       Streamer // nil when the transport cannot stream
	opts    Opts
	scratch []byte
}

// New returns a Driver using t. opts can be nil to use defaults.
func New(t Transport, opts *Opts) *Driver {
	o := Opts{ResetPulse: 10 * time.Millisecond, ResetSettle: 120 * time.Millisecond}
	if opts != nil {
		o = *opts
	}
	d := &Driver{t: t, opts: o}
	if s, ok := t.(Streamer); ok {
		d.s = s
	}
	return d
}

// Transport returns the underlying transport.
func (d *Driver) Transport() Transport {
	return d.t
}

// Exchange performs one full-duplex byte transfer and returns the received byte.
//
// It does not touch any signal; callers framing their own transaction must
// hold the guards themselves.
func (d *Driver) Exchange(b byte) (byte, error) {
	r, err := d.t.Exchange(b)
	if err != nil {
		return 0, fmt.Errorf("%w: exchange 0x%02X: %w", ErrTransport, b, err)
	}
	return r, nil
}

// WriteRegister writes opcode op followed by the parameter bytes in data.
//
// Chip-select stays asserted for the whole call. The opcode is sent with
// data/command in command mode, which is released before the first parameter.
func (d *Driver) WriteRegister(op byte, data ...byte) error {
	cs := Acquire(d.t, ChipSelect)
	defer cs.Release()

	if err := d.writeOpcode(op); err != nil {
		return err
	}
	for _, b := range data {
		if _, err := d.Exchange(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegisterN writes opcode op followed by the first n bytes of data.
//
// A nil data slice writes the opcode only, whatever n is. n must otherwise be
// between 0 and len(data); other values are rejected before the bus is touched.
func (d *Driver) WriteRegisterN(op byte, data []byte, n int) error {
	if data == nil {
		return d.WriteRegister(op)
	}
	if n < 0 || n > len(data) {
		return fmt.Errorf("%w: length %d for %d data bytes", ErrInvalidParameter, n, len(data))
	}
	return d.WriteRegister(op, data[:n]...)
}

// WritePixels writes opcode op followed by pix, each pixel big-endian.
func (d *Driver) WritePixels(op byte, pix []rgb565.Color) error {
	cs := Acquire(d.t, ChipSelect)
	defer cs.Release()

	if err := d.writeOpcode(op); err != nil {
		return err
	}
	if d.scratch == nil {
		d.scratch = make([]byte, chunkSize)
	}
	for len(pix) > 0 {
		n := min(len(pix), chunkSize/2)
		buf := d.scratch[:2*n]
		for i, c := range pix[:n] {
			buf[2*i], buf[2*i+1] = c.Bytes()
		}
		if err := d.writeData(buf); err != nil {
			return err
		}
		pix = pix[n:]
	}
	return nil
}

// WritePixelBytes writes opcode op followed by already encoded RGB565 pixel
// data. The length of p must be even; a partial pixel is never sent.
func (d *Driver) WritePixelBytes(op byte, p []byte) error {
	if len(p)%2 != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of pixels", ErrInvalidParameter, len(p))
	}
	cs := Acquire(d.t, ChipSelect)
	defer cs.Release()

	if err := d.writeOpcode(op); err != nil {
		return err
	}
	return d.writeData(p)
}

// Reset pulses the reset line.
func (d *Driver) Reset() error {
	rst := Acquire(d.t, Reset)
	time.Sleep(d.opts.ResetPulse)
	rst.Release()
	time.Sleep(d.opts.ResetSettle)
	return nil
}

// writeOpcode sends op in command mode and leaves data/command in data mode.
// The caller must hold chip-select.
func (d *Driver) writeOpcode(op byte) error {
	dc := Acquire(d.t, DataCommand)
	defer dc.Release()
	_, err := d.Exchange(op)
	return err
}

// writeData sends p in data mode. The caller must hold chip-select.
func (d *Driver) writeData(p []byte) error {
	if d.s != nil {
		if err := d.s.Stream(p); err != nil {
			return fmt.Errorf("%w: stream %d bytes: %w", ErrTransport, len(p), err)
		}
		return nil
	}
	for _, b := range p {
		if _, err := d.Exchange(b); err != nil {
			return err
		}
	}
	return nil
}
