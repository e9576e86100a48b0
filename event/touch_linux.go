//go:build linux

package event

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Touch reads a single-touch controller through a Linux evdev node such as
// /dev/input/event0.
type Touch struct {
	fd   int
	path string
	dec  *TouchDecoder
	poll int // milliseconds
}

// inputEvent mirrors struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// inputAbsInfo mirrors struct input_absinfo.
type inputAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// NewTouch opens the evdev node at path and maps its axes onto bounds. An
// empty path picks the first device whose name looks like a touch panel.
func NewTouch(path string, bounds image.Rectangle) (*Touch, error) {
	if path == "" {
		p, err := findTouchDevice()
		if err != nil {
			return nil, err
		}
		path = p
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("event: open %s: %w", path, err)
	}

	ax := Axis{0, int32(bounds.Dx() - 1)}
	ay := Axis{0, int32(bounds.Dy() - 1)}
	if info, err := absInfo(fd, absMTPositionX); err == nil {
		ax = Axis{info.Minimum, info.Maximum}
	} else if info, err := absInfo(fd, absX); err == nil {
		ax = Axis{info.Minimum, info.Maximum}
	}
	if info, err := absInfo(fd, absMTPositionY); err == nil {
		ay = Axis{info.Minimum, info.Maximum}
	} else if info, err := absInfo(fd, absY); err == nil {
		ay = Axis{info.Minimum, info.Maximum}
	}

	return &Touch{
		fd:   fd,
		path: path,
		dec:  NewTouchDecoder(bounds, ax, ay),
		poll: int(DefaultPoll.Milliseconds()),
	}, nil
}

// Next returns the next pointer event.
func (t *Touch) Next(ctx context.Context) (Event, error) {
	var raw inputEvent
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&raw)), unsafe.Sizeof(raw))
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		n, err := unix.Read(t.fd, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			if err := t.wait(); err != nil {
				return Event{}, err
			}
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("event: read %s: %w", t.path, err)
		}
		if n != len(buf) {
			continue
		}
		if ev, ok := t.dec.Feed(raw.Type, raw.Code, raw.Value); ok {
			return ev, nil
		}
	}
}

// wait blocks until the device is readable or the poll slice elapses.
func (t *Touch) wait() error {
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	if _, err := unix.Poll(fds, t.poll); err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("event: poll %s: %w", t.path, err)
	}
	return nil
}

// Close closes the device.
func (t *Touch) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

func (t *Touch) String() string {
	return "Touch{" + t.path + "}"
}

func findTouchDevice() (string, error) {
	cands, _ := filepath.Glob("/dev/input/event*")
	best := ""
	for _, p := range cands {
		fd, err := unix.Open(p, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		name, err := deviceName(fd)
		unix.Close(fd)
		if err != nil {
			continue
		}
		low := strings.ToLower(name)
		if strings.Contains(low, "touch") || strings.Contains(low, "goodix") ||
			strings.Contains(low, "ft5") || strings.Contains(low, "xpt2046") {
			return p, nil
		}
		if best == "" {
			best = p
		}
	}
	if best != "" {
		return best, nil
	}
	return "", errors.New("event: no touch device under /dev/input")
}

// ioctl request encoding from linux/ioctl.h.
func ioc(dir, typ, nr, size uintptr) uintptr {
	const (
		nrShift   = 0
		typeShift = nrShift + 8
		sizeShift = typeShift + 8
		dirShift  = sizeShift + 14
	)
	return dir<<dirShift | typ<<typeShift | nr<<nrShift | size<<sizeShift
}

const iocRead = 2

func deviceName(fd int) (string, error) {
	buf := make([]byte, 256)
	req := ioc(iocRead, 'E', 0x06, uintptr(len(buf)))
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0]))); errno != 0 {
		return "", errno
	}
	return unix.ByteSliceToString(buf), nil
}

func absInfo(fd int, axis uintptr) (*inputAbsInfo, error) {
	var info inputAbsInfo
	req := ioc(iocRead, 'E', 0x40+axis, unsafe.Sizeof(info))
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&info))); errno != 0 {
		return nil, errno
	}
	return &info, nil
}
