package driver_test

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/flavioheleno/lcdkit/driver"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// flakyPin fails every Out call once armed.
type flakyPin struct {
	gpiotest.Pin
	armed bool
}

func (p *flakyPin) Out(l gpio.Level) error {
	if p.armed {
		return errors.New("flakyPin: stuck")
	}
	return p.Pin.Out(l)
}

func TestNewSPITransportRequiresDC(t *testing.T) {
	port := &spitest.Playback{}
	if _, err := driver.NewSPITransport(port, 0, nil, nil, nil); err == nil {
		t.Error("NewSPITransport without a DC pin should fail")
	}
}

func TestSPITransportIdleLevels(t *testing.T) {
	port := &spitest.Playback{}
	dc := &gpiotest.Pin{N: "DC"}
	cs := &gpiotest.Pin{N: "CS"}
	rst := &gpiotest.Pin{N: "RST"}

	if _, err := driver.NewSPITransport(port, 8*physic.MegaHertz, dc, cs, rst); err != nil {
		t.Fatalf("NewSPITransport() error = %v", err)
	}
	for _, p := range []*gpiotest.Pin{dc, cs, rst} {
		if p.L != gpio.High {
			t.Errorf("%s idle level = %s, want High", p.N, p.L)
		}
	}
}

func TestSPITransportWriteRegister(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x3A}, R: []byte{0x00}},
				{W: []byte{0x55}, R: []byte{0x00}},
			},
			DontPanic: true,
		},
	}
	dc := &gpiotest.Pin{N: "DC"}
	cs := &gpiotest.Pin{N: "CS"}

	tr, err := driver.NewSPITransport(port, 0, dc, cs, nil)
	if err != nil {
		t.Fatalf("NewSPITransport() error = %v", err)
	}
	d := driver.New(tr, nil)
	if err := d.WriteRegister(0x3A, 0x55); err != nil {
		t.Fatalf("WriteRegister() error = %v", err)
	}
	if cs.L != gpio.High || dc.L != gpio.High {
		t.Errorf("after transaction CS = %s, DC = %s, want both High", cs.L, dc.L)
	}
	if err := port.Close(); err != nil {
		t.Errorf("playback not fully consumed: %v", err)
	}
}

func TestSPITransportStream(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x2C}, R: []byte{0x00}},
				{W: []byte{0xF8, 0x00, 0x00, 0x1F}},
			},
			DontPanic: true,
		},
	}
	dc := &gpiotest.Pin{N: "DC"}

	tr, err := driver.NewSPITransport(port, 0, dc, nil, nil)
	if err != nil {
		t.Fatalf("NewSPITransport() error = %v", err)
	}
	d := driver.New(tr, nil)
	if err := d.WritePixels(0x2C, []rgb565.Color{rgb565.Red, rgb565.Blue}); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	if err := port.Close(); err != nil {
		t.Errorf("playback not fully consumed: %v", err)
	}
}

func TestSPITransportLatchesPinFault(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{{W: []byte{0x29}, R: []byte{0x00}}},
			DontPanic: true,
		},
	}
	dc := &flakyPin{Pin: gpiotest.Pin{N: "DC"}}

	tr, err := driver.NewSPITransport(port, 0, dc, nil, nil)
	if err != nil {
		t.Fatalf("NewSPITransport() error = %v", err)
	}
	d := driver.New(tr, nil)

	dc.armed = true
	if err := d.WriteRegister(0x29); !errors.Is(err, driver.ErrTransport) {
		t.Fatalf("WriteRegister() error = %v, want ErrTransport", err)
	}

	// Releasing DC failed too; that failure surfaces on the next call.
	dc.armed = false
	if err := d.WriteRegister(0x29); !errors.Is(err, driver.ErrTransport) {
		t.Fatalf("second WriteRegister() error = %v, want the latched release fault", err)
	}
	if err := d.WriteRegister(0x29); err != nil {
		t.Fatalf("WriteRegister() after recovery error = %v", err)
	}
	if err := port.Close(); err != nil {
		t.Errorf("playback not fully consumed: %v", err)
	}
}
