// Package config loads the board description used by lcdkit applications:
// which SPI port and pins drive the panel, where input comes from and how
// to log.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/event"
)

// Config is the application configuration.
type Config struct {
	Display DisplayConfig `json:"display"`
	Input   InputConfig   `json:"input"`
	Log     LogConfig     `json:"log"`
}

// DisplayConfig describes the panel wiring.
type DisplayConfig struct {
	SPI      string `json:"spi"`      // SPI port name, empty for the first port
	Hz       int64  `json:"hz"`       // SPI clock
	DC       string `json:"dc"`       // Data/command GPIO
	CS       string `json:"cs"`       // Chip-select GPIO, empty when tied low
	Reset    string `json:"reset"`    // Reset GPIO, empty when not wired
	Width    int    `json:"width"`    // Pixels after rotation
	Height   int    `json:"height"`   // Pixels after rotation
	Rotation int    `json:"rotation"` // Degrees: 0, 90, 180 or 270
	BGR      bool   `json:"bgr"`
}

// InputConfig describes the input sources.
type InputConfig struct {
	Capacity int `json:"capacity"` // Event queue capacity
	// Touch is the evdev node of the touch panel. Empty selects one
	// automatically and "none" disables touch input.
	Touch      string     `json:"touch"`
	Buttons    ButtonPins `json:"buttons"`
	DebounceMS int        `json:"debounce_ms"`
}

// ButtonPins names the GPIO of each button. Empty entries are not wired.
type ButtonPins struct {
	Select string `json:"select"`
	Next   string `json:"next"`
	Prev   string `json:"prev"`
	Back   string `json:"back"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn or error
	Format string `json:"format"` // text or json
}

// TouchDisabled is the InputConfig.Touch value that turns touch input off.
const TouchDisabled = "none"

// Default returns the configuration of a 240x320 panel on the first SPI port.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Hz:     int64(10 * physic.MegaHertz / physic.Hertz),
			DC:     "GPIO25",
			CS:     "GPIO8",
			Reset:  "GPIO24",
			Width:  240,
			Height: 320,
		},
		Input: InputConfig{
			Capacity:   event.DefaultCapacity,
			DebounceMS: 30,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the JSON file at path over the defaults. A missing file yields
// the defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks the values a board cannot run with.
func (c *Config) Validate() error {
	d := c.Display
	switch {
	case d.DC == "":
		return errors.New("display.dc is required")
	case d.Width < 1 || d.Width > 320 || d.Height < 1 || d.Height > 320:
		return fmt.Errorf("display size %dx%d out of range", d.Width, d.Height)
	case d.Hz < 0:
		return fmt.Errorf("display.hz %d is negative", d.Hz)
	}
	if _, err := rotation(d.Rotation); err != nil {
		return err
	}
	if q := c.Input.Capacity; q < 1 || q > event.MaxCapacity {
		return fmt.Errorf("input.capacity %d out of range", q)
	}
	if c.Input.DebounceMS < 0 {
		return fmt.Errorf("input.debounce_ms %d is negative", c.Input.DebounceMS)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

// Frequency returns the SPI clock.
func (d DisplayConfig) Frequency() physic.Frequency {
	return physic.Frequency(d.Hz) * physic.Hertz
}

// Opts returns the panel options.
func (d DisplayConfig) Opts() (*lcdkit.Opts, error) {
	r, err := rotation(d.Rotation)
	if err != nil {
		return nil, err
	}
	return &lcdkit.Opts{W: d.Width, H: d.Height, Rotation: r, BGR: d.BGR}, nil
}

func rotation(deg int) (lcdkit.Rotation, error) {
	switch deg {
	case 0:
		return lcdkit.Rotation0, nil
	case 90:
		return lcdkit.Rotation90, nil
	case 180:
		return lcdkit.Rotation180, nil
	case 270:
		return lcdkit.Rotation270, nil
	}
	return 0, fmt.Errorf("display.rotation %d is not 0, 90, 180 or 270", deg)
}

// Debounce returns the button debounce interval.
func (i InputConfig) Debounce() time.Duration {
	return time.Duration(i.DebounceMS) * time.Millisecond
}

// Pins returns the wired buttons and their GPIO names.
func (b ButtonPins) Pins() map[event.Button]string {
	m := map[event.Button]string{}
	for btn, name := range map[event.Button]string{
		event.ButtonSelect: b.Select,
		event.ButtonNext:   b.Next,
		event.ButtonPrev:   b.Prev,
		event.ButtonBack:   b.Back,
	} {
		if name != "" {
			m[btn] = name
		}
	}
	return m
}

func (l LogConfig) level() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level %q is unknown", l.Level)
}

// NewLogger returns a logger writing to w with the configured handler.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
