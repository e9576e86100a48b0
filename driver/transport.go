// Package driver implements the chip-independent display driver protocol.
//
// A display controller is driven through a Transport: a full-duplex byte
// exchange plus three signal lines (chip-select, data/command and reset).
// Driver frames every register write as one chip-select transaction with the
// opcode sent in command mode and the parameters in data mode. Boards differ
// only by the Transport they supply.
package driver

import "fmt"

// Signal identifies a control line owned by the driver.
type Signal uint8

const (
	// ChipSelect selects the controller on the bus.
	ChipSelect Signal = iota
	// DataCommand selects command mode while asserted and data mode otherwise.
	DataCommand
	// Reset holds the controller in hardware reset while asserted.
	Reset
)

func (s Signal) String() string {
	switch s {
	case ChipSelect:
		return "CS"
	case DataCommand:
		return "DC"
	case Reset:
		return "RST"
	default:
		return fmt.Sprintf("Signal(%d)", uint8(s))
	}
}

// Transport is the board support contract consumed by Driver.
//
// Assert drives a signal to its active level and Deassert releases it. They
// do not report errors: a transport that fails to drive a pin must latch the
// failure and return it from the next Exchange.
type Transport interface {
	// Exchange sends b and returns the byte clocked in at the same time.
	// It blocks until the transfer completes.
	Exchange(b byte) (byte, error)
	Assert(s Signal)
	Deassert(s Signal)
}

// Streamer is implemented by transports that can send a data phase in bulk.
// Received bytes are discarded.
type Streamer interface {
	Stream(p []byte) error
}
