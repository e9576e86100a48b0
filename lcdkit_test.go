package lcdkit

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/flavioheleno/lcdkit/driver"
	"github.com/flavioheleno/lcdkit/driver/drivertest"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// newTestDev returns an initialized device over a recorder with no delays.
// The recorder is cleared after init.
func newTestDev(t *testing.T, w, h int) (*Dev, *drivertest.Recorder) {
	t.Helper()
	rec := &drivertest.Recorder{}
	dev, err := New(driver.New(rec, &driver.Opts{}), &Opts{W: w, H: h, WakeDelay: -1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec.Reset()
	return dev, rec
}

func TestOptsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		wantErr bool
	}{
		{"nil options (uses defaults)", nil, false},
		{"valid 240x320", &Opts{W: 240, H: 320, WakeDelay: -1}, false},
		{"valid 320x240", &Opts{W: 320, H: 240, Rotation: Rotation90, WakeDelay: -1}, false},
		{"valid 1x1 (minimum)", &Opts{W: 1, H: 1, WakeDelay: -1}, false},
		{"width zero", &Opts{W: 0, H: 64}, true},
		{"width > 320", &Opts{W: 480, H: 64}, true},
		{"height zero", &Opts{W: 240, H: 0}, true},
		{"height > 320", &Opts{W: 240, H: 400}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if opts == nil {
				// The default wake delay would make this test slow.
				if testing.Short() {
					t.Skip("default init waits for the panel")
				}
			}
			rec := &drivertest.Recorder{}
			_, err := New(driver.New(rec, &driver.Opts{}), opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && len(rec.Ops) != 0 {
				t.Errorf("rejected options touched the bus: %d ops", len(rec.Ops))
			}
		})
	}
}

func TestInitSequence(t *testing.T) {
	rec := &drivertest.Recorder{}
	if _, err := New(driver.New(rec, &driver.Opts{}), &Opts{W: 2, H: 1, BGR: true, WakeDelay: -1}); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []byte{
		0x01,       // software reset
		0x11,       // sleep out
		0x3A, 0x55, // 16 bits per pixel
		0x36, 0x48, // MX | BGR
		0x20,                   // inversion off
		0x13,                   // normal mode
		0x2A, 0x00, 0x00, 0x00, 0x01, // columns 0-1
		0x2B, 0x00, 0x00, 0x00, 0x00, // page 0
		0x2C, 0x00, 0x00, 0x00, 0x00, // clear RAM
		0x29, // display on
	}
	if got := rec.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("init bytes =\n% X\nwant\n% X", got, want)
	}
	if !strings.HasPrefix(rec.String(), "RST↓ RST↑ CS↓") {
		t.Errorf("init does not start with a hardware reset: %s", rec)
	}
}

func TestRotationMADCTL(t *testing.T) {
	tests := []struct {
		r    Rotation
		bgr  bool
		want byte
	}{
		{Rotation0, false, 0x40},
		{Rotation0, true, 0x48},
		{Rotation90, true, 0x28},
		{Rotation180, true, 0x88},
		{Rotation270, true, 0xE8},
	}
	for _, tt := range tests {
		if got := tt.r.madctl(tt.bgr); got != tt.want {
			t.Errorf("Rotation(%d).madctl(%v) = 0x%02X, want 0x%02X", tt.r, tt.bgr, got, tt.want)
		}
	}
}

func TestColumnAddressFraming(t *testing.T) {
	dev, rec := newTestDev(t, 240, 2)

	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer c.Release()
	if err := c.Fill(image.Rect(0, 0, 240, 1), rgb565.White); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	want := "CS↓ DC=cmd 0x2A DC=data 0x00 0x00 0x00 0xEF CS↑ CS↓ DC=cmd 0x2B DC=data 0x00 0x00 0x00 0x00 CS↑"
	if got := rec.String(); !strings.HasPrefix(got, want) {
		t.Errorf("trace starts %q, want prefix %q", got[:min(len(got), len(want))], want)
	}
}

func TestDevBounds(t *testing.T) {
	dev := &Dev{rect: image.Rect(0, 0, 240, 320)}
	want := image.Rect(0, 0, 240, 320)
	if got := dev.Bounds(); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
}

func TestDevColorModel(t *testing.T) {
	dev := &Dev{}
	if dev.ColorModel() != rgb565.Model {
		t.Error("ColorModel() did not return rgb565.Model")
	}
}

func TestDevString(t *testing.T) {
	dev := &Dev{rect: image.Rect(0, 0, 240, 320)}
	want := "lcdkit.Dev{240x320}"
	if got := dev.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDevHalt(t *testing.T) {
	dev, rec := newTestDev(t, 4, 4)

	if err := dev.Halt(); err != nil {
		t.Fatalf("Halt() error = %v", err)
	}
	if got := rec.Bytes(); !bytes.Equal(got, []byte{0x28, 0x10}) {
		t.Errorf("Halt bytes = % X, want 28 10", got)
	}
	if err := dev.Halt(); err != nil {
		t.Errorf("second Halt() error = %v", err)
	}

	if err := dev.SetBrightness(100); !errors.Is(err, ErrHalted) {
		t.Errorf("SetBrightness error = %v, want ErrHalted", err)
	}
	if err := dev.Invert(true); !errors.Is(err, ErrHalted) {
		t.Errorf("Invert error = %v, want ErrHalted", err)
	}
	if _, err := dev.Write(make([]byte, 4*4*2)); !errors.Is(err, ErrHalted) {
		t.Errorf("Write error = %v, want ErrHalted", err)
	}
	if err := dev.Draw(dev.Bounds(), image.NewRGBA(dev.Bounds()), image.Point{}); !errors.Is(err, ErrHalted) {
		t.Errorf("Draw error = %v, want ErrHalted", err)
	}
	if _, err := dev.Acquire(); !errors.Is(err, ErrHalted) {
		t.Errorf("Acquire error = %v, want ErrHalted", err)
	}
	if _, err := dev.TryAcquire(); !errors.Is(err, ErrHalted) {
		t.Errorf("TryAcquire error = %v, want ErrHalted", err)
	}
	if err := dev.StopScroll(); !errors.Is(err, ErrHalted) {
		t.Errorf("StopScroll error = %v, want ErrHalted", err)
	}
}

func TestDevHaltRetry(t *testing.T) {
	dev, rec := newTestDev(t, 4, 4)
	rec.FailAfter = 1

	if err := dev.Halt(); !errors.Is(err, driver.ErrTransport) {
		t.Fatalf("Halt() error = %v, want ErrTransport", err)
	}
	if err := dev.SetBrightness(100); errors.Is(err, ErrHalted) {
		t.Error("failed Halt left the device halted")
	}

	rec.Reset()
	rec.FailAfter = 0
	if err := dev.Halt(); err != nil {
		t.Fatalf("retried Halt() error = %v", err)
	}
	if got := rec.Bytes(); !bytes.Equal(got, []byte{0x28, 0x10}) {
		t.Errorf("retried Halt bytes = % X, want 28 10", got)
	}
	if err := dev.SetBrightness(100); !errors.Is(err, ErrHalted) {
		t.Errorf("SetBrightness error = %v, want ErrHalted", err)
	}
}

func TestDevCommands(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Dev) error
		want []byte
	}{
		{"brightness", func(d *Dev) error { return d.SetBrightness(0x80) }, []byte{0x51, 0x80}},
		{"invert on", func(d *Dev) error { return d.Invert(true) }, []byte{0x21}},
		{"invert off", func(d *Dev) error { return d.Invert(false) }, []byte{0x20}},
		{"scroll area", func(d *Dev) error { return d.ScrollVertical(10, 20) }, []byte{0x33, 0x00, 0x0A, 0x01, 0x22, 0x00, 0x14}},
		{"stop scroll", func(d *Dev) error { return d.StopScroll() }, []byte{0x13}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, rec := newTestDev(t, 240, 320)
			if err := tt.fn(dev); err != nil {
				t.Fatalf("error = %v", err)
			}
			if got := rec.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("bytes = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestScrollValidation(t *testing.T) {
	dev, rec := newTestDev(t, 4, 16)

	if err := dev.SetScroll(2); err == nil {
		t.Error("SetScroll before ScrollVertical should fail")
	}
	if err := dev.ScrollVertical(8, 8); err == nil {
		t.Error("ScrollVertical with no scrolling lines should fail")
	}
	if err := dev.ScrollVertical(-1, 0); err == nil {
		t.Error("ScrollVertical with negative top should fail")
	}
	if len(rec.Ops) != 0 {
		t.Fatalf("rejected scroll calls touched the bus: %s", rec)
	}

	if err := dev.ScrollVertical(2, 2); err != nil {
		t.Fatalf("ScrollVertical() error = %v", err)
	}
	if err := dev.SetScroll(1); err == nil {
		t.Error("SetScroll inside the fixed top area should fail")
	}
	if err := dev.SetScroll(14); err == nil {
		t.Error("SetScroll inside the fixed bottom area should fail")
	}
	rec.Reset()
	if err := dev.SetScroll(5); err != nil {
		t.Fatalf("SetScroll() error = %v", err)
	}
	if got := rec.Bytes(); !bytes.Equal(got, []byte{0x37, 0x00, 0x05}) {
		t.Errorf("SetScroll bytes = % X, want 37 00 05", got)
	}
	if err := dev.StopScroll(); err != nil {
		t.Fatalf("StopScroll() error = %v", err)
	}
	if err := dev.SetScroll(5); err == nil {
		t.Error("SetScroll after StopScroll should fail")
	}
}

func TestWriteInvalidBufferSize(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		bufferSize int
	}{
		{"too small", 8, 4, 8*4*2 - 1},
		{"too large", 8, 4, 8*4*2 + 1},
		{"pixel count instead of bytes", 8, 4, 8 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, rec := newTestDev(t, tt.width, tt.height)
			_, err := dev.Write(make([]byte, tt.bufferSize))
			if err == nil || err.Error() != "lcdkit: invalid buffer size" {
				t.Errorf("Write error = %v, want 'lcdkit: invalid buffer size'", err)
			}
			if len(rec.Ops) != 0 {
				t.Errorf("rejected Write touched the bus")
			}
		})
	}
}

func TestWriteFullFrame(t *testing.T) {
	dev, rec := newTestDev(t, 2, 1)

	n, err := dev.Write([]byte{0xF8, 0x00, 0x00, 0x1F})
	if err != nil || n != 4 {
		t.Fatalf("Write() = %d, %v, want 4, nil", n, err)
	}
	want := []byte{0x2A, 0x00, 0x00, 0x00, 0x01, 0x2B, 0x00, 0x00, 0x00, 0x00, 0x2C, 0xF8, 0x00, 0x00, 0x1F}
	if got := rec.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("bytes = % X, want % X", got, want)
	}
	if got := dev.frame.RGB565At(1, 0); got != rgb565.Blue {
		t.Errorf("shadow frame pixel = %#04x, want Blue", got)
	}
}

func TestDrawingContextExclusive(t *testing.T) {
	dev, _ := newTestDev(t, 4, 4)

	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := dev.TryAcquire(); !errors.Is(err, ErrBusy) {
		t.Errorf("TryAcquire() while open error = %v, want ErrBusy", err)
	}

	acquired := make(chan *Context)
	go func() {
		c2, err := dev.Acquire()
		if err != nil {
			t.Errorf("second Acquire() error = %v", err)
			close(acquired)
			return
		}
		acquired <- c2
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned while the first context was open")
	case <-time.After(20 * time.Millisecond):
	}

	c.Release()
	c.Release() // second release must not unlock someone else's context

	select {
	case c2 := <-acquired:
		if c2 == nil {
			return
		}
		if _, err := dev.TryAcquire(); !errors.Is(err, ErrBusy) {
			t.Errorf("TryAcquire() after double release error = %v, want ErrBusy", err)
		}
		c2.Release()
	case <-time.After(time.Second):
		t.Fatal("second Acquire did not return after Release")
	}
}

func TestContextAfterRelease(t *testing.T) {
	dev, rec := newTestDev(t, 4, 4)
	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	c.Release()

	if err := c.Fill(dev.Bounds(), rgb565.Red); !errors.Is(err, ErrReleased) {
		t.Errorf("Fill after Release error = %v, want ErrReleased", err)
	}
	if err := c.Draw(dev.Bounds(), image.NewRGBA(dev.Bounds()), image.Point{}); !errors.Is(err, ErrReleased) {
		t.Errorf("Draw after Release error = %v, want ErrReleased", err)
	}
	if len(rec.Ops) != 0 {
		t.Error("released context touched the bus")
	}
}

func TestInvalidRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 240, 320)
	tests := []struct {
		name    string
		r       image.Rectangle
		wantErr bool
	}{
		{"full panel", bounds, false},
		{"single pixel", image.Rect(239, 319, 240, 320), false},
		{"zero width", image.Rect(10, 10, 10, 20), true},
		{"zero height", image.Rect(10, 10, 20, 10), true},
		{"past right edge", image.Rect(200, 0, 241, 10), true},
		{"negative origin", image.Rect(-1, 0, 10, 10), true},
		{"past bottom edge", image.Rect(0, 319, 1, 321), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegion(tt.r, bounds)
			if tt.wantErr != errors.Is(err, ErrInvalidRegion) {
				t.Errorf("ValidateRegion(%v) error = %v, wantErr %v", tt.r, err, tt.wantErr)
			}
		})
	}
}

func TestContextRejectsInvalidRegion(t *testing.T) {
	dev, rec := newTestDev(t, 8, 8)
	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer c.Release()

	outside := image.Rect(4, 4, 12, 12)
	if err := c.Fill(outside, rgb565.Red); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("Fill(outside) error = %v, want ErrInvalidRegion", err)
	}
	if err := c.Draw(outside, image.NewRGBA(outside), outside.Min); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("Draw(outside) error = %v, want ErrInvalidRegion", err)
	}
	if err := c.WritePixels(image.Rect(0, 0, 2, 2), make([]rgb565.Color, 3)); !errors.Is(err, driver.ErrInvalidParameter) {
		t.Errorf("WritePixels(short) error = %v, want ErrInvalidParameter", err)
	}
	if len(rec.Ops) != 0 {
		t.Error("rejected calls touched the bus")
	}
}

func TestWritePixelsRegion(t *testing.T) {
	dev, rec := newTestDev(t, 4, 4)
	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer c.Release()

	r := image.Rect(1, 2, 3, 3)
	if err := c.WritePixels(r, []rgb565.Color{rgb565.Red, rgb565.Green}); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	want := []byte{0x2A, 0x00, 0x01, 0x00, 0x02, 0x2B, 0x00, 0x02, 0x00, 0x02, 0x2C, 0xF8, 0x00, 0x07, 0xE0}
	if got := rec.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("bytes = % X, want % X", got, want)
	}
}

func TestDrawDifferential(t *testing.T) {
	dev, rec := newTestDev(t, 4, 2)

	img := rgb565.NewImage(dev.Bounds())
	img.SetRGB565(2, 1, rgb565.Red)
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	want := []byte{0x2A, 0x00, 0x02, 0x00, 0x02, 0x2B, 0x00, 0x01, 0x00, 0x01, 0x2C, 0xF8, 0x00}
	if got := rec.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("bytes = % X, want % X", got, want)
	}

	// Drawing the same image again transmits nothing.
	rec.Reset()
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		t.Fatalf("second Draw() error = %v", err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("unchanged Draw sent %s", rec)
	}
}

func TestDrawFaultRollsBack(t *testing.T) {
	dev, rec := newTestDev(t, 2, 2)
	rec.FailAfter = 3

	c, err := dev.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	err = c.Fill(dev.Bounds(), rgb565.White)
	c.Release()
	if !errors.Is(err, driver.ErrTransport) {
		t.Fatalf("Fill() error = %v, want ErrTransport", err)
	}
	if rec.Asserted(driver.ChipSelect) {
		t.Error("chip-select left asserted after fault")
	}

	// The failed pixels were not recorded as shown, so they are sent again.
	rec.Reset()
	rec.FailAfter = 0
	img := rgb565.NewImage(dev.Bounds())
	img.Fill(rgb565.White)
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if got := len(rec.Bytes()); got != 5+5+1+8 {
		t.Errorf("retry sent %d bytes, want a full 2x2 update (19)", got)
	}
}

func TestCalculateDiffNoChanges(t *testing.T) {
	r := image.Rect(0, 0, 4, 2)
	cur, next := rgb565.NewImage(r), rgb565.NewImage(r)

	if d := calculateDiff(cur, next, r); !d.Empty() {
		t.Errorf("calculateDiff() = %v, want empty", d)
	}
}

func TestCalculateDiffWithChanges(t *testing.T) {
	r := image.Rect(0, 0, 8, 4)
	cur, next := rgb565.NewImage(r), rgb565.NewImage(r)
	next.SetRGB565(1, 1, rgb565.White)
	next.SetRGB565(5, 2, rgb565.Red)

	want := image.Rect(1, 1, 6, 3)
	if d := calculateDiff(cur, next, r); d != want {
		t.Errorf("calculateDiff() = %v, want %v", d, want)
	}

	// Changes outside the scanned area are ignored.
	area := image.Rect(0, 0, 4, 2)
	if d := calculateDiff(cur, next, area); d != image.Rect(1, 1, 2, 2) {
		t.Errorf("calculateDiff(area) = %v, want %v", d, image.Rect(1, 1, 2, 2))
	}
}

func TestExtractRegion(t *testing.T) {
	img := &rgb565.Image{
		Pix:    []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B},
		Stride: 6,
		Rect:   image.Rect(0, 0, 3, 2),
	}

	got := extractRegion(img, image.Rect(1, 0, 3, 2))
	want := []byte{0x02, 0x03, 0x04, 0x05, 0x08, 0x09, 0x0A, 0x0B}
	if !bytes.Equal(got, want) {
		t.Errorf("extractRegion() = % X, want % X", got, want)
	}
}
