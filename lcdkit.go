package lcdkit

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/flavioheleno/lcdkit/driver"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// Controller opcodes.
const (
	cmdSoftReset    = 0x01
	cmdSleepIn      = 0x10
	cmdSleepOut     = 0x11
	cmdNormalMode   = 0x13
	cmdInvertOff    = 0x20
	cmdInvertOn     = 0x21
	cmdDisplayOff   = 0x28
	cmdDisplayOn    = 0x29
	cmdColumnAddr   = 0x2A
	cmdPageAddr     = 0x2B
	cmdMemoryWrite  = 0x2C
	cmdScrollArea   = 0x33
	cmdMemoryAccess = 0x36
	cmdScrollStart  = 0x37
	cmdPixelFormat  = 0x3A
	cmdBrightness   = 0x51
)

// maxSide is the largest supported panel dimension.
const maxSide = 320

var (
	// ErrInvalidRegion is returned for empty regions or regions that do not fit the panel.
	ErrInvalidRegion = errors.New("lcdkit: invalid region")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("lcdkit: halted")
	// ErrBusy is returned by TryAcquire while another drawing context is open.
	ErrBusy = errors.New("lcdkit: drawing context busy")
	// ErrReleased is returned by drawing context methods after Release.
	ErrReleased = errors.New("lcdkit: drawing context released")
)

// Rotation selects the panel orientation.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Memory access control bits.
const (
	madMY  = 0x80
	madMX  = 0x40
	madMV  = 0x20
	madBGR = 0x08
)

// madctl returns the memory access control byte for the rotation.
func (r Rotation) madctl(bgr bool) byte {
	var v byte
	switch r {
	case Rotation90:
		v = madMV
	case Rotation180:
		v = madMY
	case Rotation270:
		v = madMX | madMY | madMV
	default:
		v = madMX
	}
	if bgr {
		v |= madBGR
	}
	return v
}

// Opts is the configuration for the panel.
type Opts struct {
	// Display dimensions in pixels, after rotation
	W int // Width (default: 240, must be ≤320)
	H int // Height (default: 320, must be ≤320)

	Rotation Rotation
	BGR      bool // Panel wired blue-green-red

	// Wait after software reset and sleep out (default: 120ms, negative for none)
	WakeDelay time.Duration
}

// Dev is the device handle for the panel.
type Dev struct {
	drv  *driver.Driver
	rect image.Rectangle

	mu     sync.Mutex // held by the open drawing context
	frame  *rgb565.Image
	next   *rgb565.Image
	halted bool

	scrollTop, scrollBottom int
	scrolling               bool
}

var _ display.Drawer = (*Dev)(nil)

// ValidateRegion checks that r is non-empty and lies within bounds.
func ValidateRegion(r, bounds image.Rectangle) error {
	if r.Empty() {
		return fmt.Errorf("%w: %v is empty", ErrInvalidRegion, r)
	}
	if !r.In(bounds) {
		return fmt.Errorf("%w: %v outside %v", ErrInvalidRegion, r, bounds)
	}
	return nil
}

// NewSPI creates a panel connected to an SPI port.
//
// dc is required. cs and rst are optional: pass nil when chip-select is tied
// low or the reset line is not wired. f of 0 uses driver.DefaultSPIFrequency.
//
// opts can be nil to use defaults (240x320 portrait).
func NewSPI(p spi.Port, f physic.Frequency, dc, cs, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	t, err := driver.NewSPITransport(p, f, dc, cs, rst)
	if err != nil {
		return nil, err
	}
	return New(driver.New(t, nil), opts)
}

// New initializes the panel behind d.
func New(d *driver.Driver, opts *Opts) (*Dev, error) {
	o := Opts{W: 240, H: 320}
	if opts != nil {
		o = *opts
	}
	if o.W <= 0 || o.W > maxSide {
		return nil, errors.New("lcdkit: width must be between 1 and 320")
	}
	if o.H <= 0 || o.H > maxSide {
		return nil, errors.New("lcdkit: height must be between 1 and 320")
	}
	if o.WakeDelay == 0 {
		o.WakeDelay = 120 * time.Millisecond
	}

	rect := image.Rect(0, 0, o.W, o.H)
	dev := &Dev{
		drv:   d,
		rect:  rect,
		frame: rgb565.NewImage(rect),
		next:  rgb565.NewImage(rect),
	}
	if err := dev.init(&o); err != nil {
		return nil, err
	}
	return dev, nil
}

// init sends the initialization sequence to the panel.
func (d *Dev) init(opts *Opts) error {
	if err := d.drv.Reset(); err != nil {
		return fmt.Errorf("lcdkit: hardware reset: %w", err)
	}

	steps := []struct {
		op    byte
		data  []byte
		delay bool
	}{
		{cmdSoftReset, nil, true},
		{cmdSleepOut, nil, true},
		{cmdPixelFormat, []byte{0x55}, false}, // 16 bits per pixel
		{cmdMemoryAccess, []byte{opts.Rotation.madctl(opts.BGR)}, false},
		{cmdInvertOff, nil, false},
		{cmdNormalMode, nil, false},
	}
	for _, s := range steps {
		if err := d.drv.WriteRegister(s.op, s.data...); err != nil {
			return fmt.Errorf("lcdkit: init 0x%02X: %w", s.op, err)
		}
		if s.delay && opts.WakeDelay > 0 {
			time.Sleep(opts.WakeDelay)
		}
	}

	// Clear display RAM, then turn the panel on.
	if err := d.writeRect(d.rect, d.frame); err != nil {
		return err
	}
	return d.drv.WriteRegister(cmdDisplayOn)
}

// setWindow sets the column and page address window to r.
func (d *Dev) setWindow(r image.Rectangle) error {
	x0, x1 := r.Min.X, r.Max.X-1
	y0, y1 := r.Min.Y, r.Max.Y-1
	if err := d.drv.WriteRegister(cmdColumnAddr, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return d.drv.WriteRegister(cmdPageAddr, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
}

// writeRect writes the pixels of src inside r to the same region of the panel.
func (d *Dev) writeRect(r image.Rectangle, src *rgb565.Image) error {
	if err := d.setWindow(r); err != nil {
		return err
	}
	return d.drv.WritePixelBytes(cmdMemoryWrite, extractRegion(src, r))
}

// extractRegion copies the rows of r out of img.
func extractRegion(img *rgb565.Image, r image.Rectangle) []byte {
	rowBytes := 2 * r.Dx()
	out := make([]byte, 0, rowBytes*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[i:i+rowBytes]...)
	}
	return out
}

// ColorModel returns the color model of the panel.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the image bounds of the panel.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw implements display.Drawer by opening a drawing context for a single
// differential update.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	c, err := d.Acquire()
	if err != nil {
		return err
	}
	defer c.Release()
	return c.Draw(dst, src, sp)
}

// Write writes a full frame of big-endian RGB565 pixel data.
// The data must be exactly W * H * 2 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	c, err := d.Acquire()
	if err != nil {
		return 0, err
	}
	defer c.Release()
	if len(pixels) != len(d.frame.Pix) {
		return 0, errors.New("lcdkit: invalid buffer size")
	}
	copy(d.next.Pix, pixels)
	if err := c.flush(d.rect); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// SetBrightness sets the display brightness (0-255).
func (d *Dev) SetBrightness(level byte) error {
	return d.command(cmdBrightness, level)
}

// Invert inverts the display colors.
func (d *Dev) Invert(invert bool) error {
	op := byte(cmdInvertOff)
	if invert {
		op = cmdInvertOn
	}
	return d.command(op)
}

// ScrollVertical defines a vertical scrolling area between a fixed top area of
// top lines and a fixed bottom area of bottom lines.
func (d *Dev) ScrollVertical(top, bottom int) error {
	h := d.rect.Dy()
	if top < 0 || bottom < 0 || top+bottom >= h {
		return errors.New("lcdkit: scroll area out of range")
	}
	area := h - top - bottom
	if err := d.command(cmdScrollArea,
		byte(top>>8), byte(top),
		byte(area>>8), byte(area),
		byte(bottom>>8), byte(bottom),
	); err != nil {
		return err
	}
	d.mu.Lock()
	d.scrollTop, d.scrollBottom, d.scrolling = top, bottom, true
	d.mu.Unlock()
	return nil
}

// SetScroll sets the first line shown at the top of the scrolling area.
// ScrollVertical must have been called first.
func (d *Dev) SetScroll(line int) error {
	d.mu.Lock()
	top, bottom, on := d.scrollTop, d.scrollBottom, d.scrolling
	d.mu.Unlock()
	if !on {
		return errors.New("lcdkit: scroll area not defined")
	}
	if line < top || line >= d.rect.Dy()-bottom {
		return errors.New("lcdkit: scroll line out of range")
	}
	return d.command(cmdScrollStart, byte(line>>8), byte(line))
}

// StopScroll returns the panel to normal display mode.
func (d *Dev) StopScroll() error {
	if err := d.command(cmdNormalMode); err != nil {
		return err
	}
	d.mu.Lock()
	d.scrolling = false
	d.mu.Unlock()
	return nil
}

// Halt turns the display off and puts the controller to sleep.
// After a successful Halt, the device rejects further operations. A Halt
// that failed can be retried.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil
	}
	if err := d.drv.WriteRegister(cmdDisplayOff); err != nil {
		return err
	}
	if err := d.drv.WriteRegister(cmdSleepIn); err != nil {
		return err
	}
	d.halted = true
	return nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("lcdkit.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// command writes one register outside any drawing context.
func (d *Dev) command(op byte, data ...byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	return d.drv.WriteRegister(op, data...)
}
