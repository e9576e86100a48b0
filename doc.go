// Package lcdkit controls ILI9341-class RGB565 TFT panels and, with its
// sub-packages, forms a small UI toolkit for resource constrained boards.
//
// # Packages
//
//   - driver: chip-select and data/command framing over any Transport.
//   - rgb565: the 16-bit pixel format and an image type in wire order.
//   - event: input events, the lossy single-producer queue and input sources.
//   - ui: widgets, windows and the dispatch loop.
//   - config: JSON board configuration.
//
// # Hardware Connection
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCK         → SPI Clock (SCLK)
//	SDI/MOSI    → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	CS          → GPIO, or GND if always selected
//	RESET       → Optional: GPIO for hardware reset
//
// Chip-select is driven as a GPIO so that it stays asserted for a whole
// command and its parameters; the SPI port is opened with spi.NoCS.
//
// # Basic Usage
//
//	host.Init()
//	port, _ := spireg.Open("")
//	dev, _ := lcdkit.NewSPI(port, 0,
//		gpioreg.ByName("GPIO25"), // DC
//		gpioreg.ByName("GPIO8"),  // CS
//		gpioreg.ByName("GPIO24"), // RESET
//		&lcdkit.Opts{W: 240, H: 320})
//	defer dev.Halt()
//
//	c, _ := dev.Acquire()
//	c.Fill(dev.Bounds(), rgb565.Blue)
//	c.Release()
//
// # Drawing Contexts
//
// All drawing goes through a Context obtained from Acquire. Only one Context
// can be open per device; a second Acquire blocks until the first is
// released, and TryAcquire reports ErrBusy instead. Regions passed to a
// Context must be non-empty and inside the panel, otherwise ErrInvalidRegion
// is returned: coordinates are never clamped.
//
// Context.Draw keeps a shadow copy of the panel RAM and only transmits the
// smallest rectangle that changed.
//
// # Errors
//
// Bus failures wrap driver.ErrTransport. There is no retry: the panel state
// is unknown after such a failure and the application should reset it.
//
// # Compatibility with periph.io
//
// Dev implements display.Drawer from periph.io/x/conn/v3/display.
package lcdkit
