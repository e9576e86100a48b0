package ui

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/event"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// SystemOpts configures a System.
type SystemOpts struct {
	Capacity   int                    // Event queue capacity when the System creates the Input
	Background rgb565.Color           // Window background
	StopWhen   func(event.Event) bool // See DispatcherOpts.StopWhen
	Logger     *slog.Logger           // Default: slog.Default()
}

// System ties a display, its input and one window together. It is built
// once at startup and passed to whatever needs it.
type System struct {
	Display    *lcdkit.Dev
	Input      *event.Input
	Window     *Window
	Dispatcher *Dispatcher

	log *slog.Logger
}

// NewSystem returns a System for dev. When in is nil, an Input bounded by
// the display is created. opts can be nil.
func NewSystem(dev *lcdkit.Dev, in *event.Input, opts *SystemOpts) (*System, error) {
	if dev == nil {
		return nil, errors.New("ui: display is required")
	}
	var o SystemOpts
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if in == nil {
		var err error
		in, err = event.NewInput(event.InputOpts{
			Bounds:   dev.Bounds(),
			Capacity: o.Capacity,
			Logger:   o.Logger,
		})
		if err != nil {
			return nil, err
		}
	}
	win := NewWindow(dev, &WindowOpts{Background: o.Background, Logger: o.Logger})
	return &System{
		Display: dev,
		Input:   in,
		Window:  win,
		Dispatcher: NewDispatcher(in, win, &DispatcherOpts{
			StopWhen: o.StopWhen,
			Logger:   o.Logger,
		}),
		log: o.Logger,
	}, nil
}

// Run paints the window, then feeds the input from sources and runs the
// dispatch loop until the loop ends. A loop ended by StopWhen returns nil.
func (s *System) Run(ctx context.Context, sources ...event.Source) error {
	if err := s.Window.Repaint(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.Input.Run(gctx, sources...)
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return s.Dispatcher.Run(gctx)
	})
	err := g.Wait()
	s.log.Info("ui stopped", "dispatched", s.Dispatcher.Dispatched(), "dropped", s.Input.Queue().Dropped(), "err", err)
	return err
}

// Close closes the window and halts the display.
func (s *System) Close() error {
	s.Window.Close()
	return s.Display.Halt()
}
