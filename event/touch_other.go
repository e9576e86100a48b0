//go:build !linux

package event

import (
	"context"
	"image"
)

// Touch is unavailable on this platform.
type Touch struct{}

// NewTouch returns ErrUnsupported.
func NewTouch(path string, bounds image.Rectangle) (*Touch, error) {
	return nil, ErrUnsupported
}

// Next returns ErrUnsupported.
func (t *Touch) Next(ctx context.Context) (Event, error) {
	return Event{}, ErrUnsupported
}

// Close does nothing.
func (t *Touch) Close() error {
	return nil
}

func (t *Touch) String() string {
	return "Touch{unsupported}"
}
