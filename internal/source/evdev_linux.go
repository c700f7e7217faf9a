//go:build linux

package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"penwheel/internal/pen"
)

// Linux input event types and codes we care about.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	absX        = 0x00
	absY        = 0x01
	absPressure = 0x18

	synReport = 0x00

	btnToolRubber = 0x141
	btnStylus     = 0x14b
	btnStylus2    = 0x14c
)

// inputEventSize is sizeof(struct input_event) on 64-bit kernels.
const inputEventSize = 24

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

func eviocgAbs(abs uint32) uintptr {
	// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
	return ioc(iocRead, 'E', 0x40+abs, uint32(unsafe.Sizeof(absInfo{})))
}

func eviocgName(size uint32) uintptr {
	// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
	return ioc(iocRead, 'E', 0x06, size)
}

func eviocgBit(ev, size uint32) uintptr {
	// EVIOCGBIT(ev, len) = _IOC(_IOC_READ, 'E', 0x20 + ev, len)
	return ioc(iocRead, 'E', 0x20+ev, size)
}

func ioctlPtr(fd int, req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

// Evdev reads a Linux tablet device directly from /dev/input. A single
// kernel event updates only one axis; the source accumulates partial
// updates and emits a complete pen sample on each SYN_REPORT, with
// positions normalized by the device's advertised absolute ranges.
type Evdev struct {
	f    *os.File
	name string
	log  zerolog.Logger

	xInfo absInfo
	yInfo absInfo

	x        int32
	y        int32
	pressure int32
	buttons  uint8

	closed atomic.Bool
}

// NewEvdev opens the preferred tablet by name, or the first device that
// advertises X, Y and pressure axes when no preference is set.
func NewEvdev(preferred string, log zerolog.Logger) (*Evdev, error) {
	devices, err := EnumerateTablets()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("evdev source: no tablet devices found")
	}

	chosen := devices[0]
	if preferred != "" {
		found := false
		for _, d := range devices {
			if strings.Contains(d.Name, preferred) {
				chosen = d
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("evdev source: preferred tablet %q not found", preferred)
		}
	}

	f, err := os.OpenFile(chosen.Path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("evdev source: open %s: %w", chosen.Path, err)
	}

	e := &Evdev{f: f, name: chosen.Name, log: log}
	fd := int(f.Fd())

	if err := ioctlPtr(fd, eviocgAbs(absX), unsafe.Pointer(&e.xInfo)); err != nil {
		f.Close()
		return nil, fmt.Errorf("evdev source: read X range: %w", err)
	}
	if err := ioctlPtr(fd, eviocgAbs(absY), unsafe.Pointer(&e.yInfo)); err != nil {
		f.Close()
		return nil, fmt.Errorf("evdev source: read Y range: %w", err)
	}

	e.x = e.xInfo.Value
	e.y = e.yInfo.Value

	log.Info().Str("device", chosen.Name).Str("path", chosen.Path).
		Msg("evdev source: opened")

	return e, nil
}

// Name returns the kernel-advertised device name.
func (e *Evdev) Name() string {
	return e.name
}

// Next blocks until a SYN_REPORT completes a pen sample.
func (e *Evdev) Next() (pen.Sample, error) {
	var buf [inputEventSize]byte
	for {
		if _, err := io.ReadFull(e.f, buf[:]); err != nil {
			if e.closed.Load() {
				return pen.Sample{}, ErrDisconnected
			}
			e.log.Warn().Err(err).Msg("evdev source: device lost")
			return pen.Sample{}, ErrDisconnected
		}

		etype := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))

		switch etype {
		case evAbs:
			switch code {
			case absX:
				e.x = value
			case absY:
				e.y = value
			case absPressure:
				e.pressure = value
			}

		case evKey:
			var bit uint8
			switch code {
			case btnStylus:
				bit = pen.ButtonLower
			case btnStylus2:
				bit = pen.ButtonUpper
			case btnToolRubber:
				bit = pen.ButtonEraser
			default:
				continue
			}
			if value != 0 {
				e.buttons |= bit
			} else {
				e.buttons &^= bit
			}

		case evSyn:
			if code != synReport {
				continue
			}
			p := e.pressure
			if p < 0 {
				p = 0
			}
			return pen.Sample{
				X:        normalize(e.x, e.xInfo),
				Y:        normalize(e.y, e.yInfo),
				Pressure: uint32(p),
				Buttons:  e.buttons,
			}, nil
		}
	}
}

// Close releases the device, interrupting a blocked Next.
func (e *Evdev) Close() error {
	e.closed.Store(true)
	return e.f.Close()
}

// normalize maps a raw axis value into [-1, 1] using the advertised
// range.
func normalize(v int32, info absInfo) float32 {
	if info.Max <= info.Min {
		return 0
	}
	return 2*float32(v-info.Min)/float32(info.Max-info.Min) - 1
}

// EnumerateTablets lists /dev/input devices that advertise absolute X,
// Y and pressure axes.
func EnumerateTablets() ([]DeviceInfo, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("evdev source: scan /dev/input: %w", err)
	}

	var devices []DeviceInfo
	for _, path := range paths {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			continue
		}

		info, ok := probeTablet(int(f.Fd()), path)
		f.Close()
		if ok {
			devices = append(devices, info)
		}
	}

	return devices, nil
}

func probeTablet(fd int, path string) (DeviceInfo, bool) {
	var evBits [4]byte // EV_MAX/8 rounded up
	if err := ioctlPtr(fd, eviocgBit(0, uint32(len(evBits))), unsafe.Pointer(&evBits[0])); err != nil {
		return DeviceInfo{}, false
	}
	if !bitSet(evBits[:], evAbs) {
		return DeviceInfo{}, false
	}

	var absBits [8]byte // ABS_MAX/8 rounded up
	if err := ioctlPtr(fd, eviocgBit(evAbs, uint32(len(absBits))), unsafe.Pointer(&absBits[0])); err != nil {
		return DeviceInfo{}, false
	}
	if !bitSet(absBits[:], absX) || !bitSet(absBits[:], absY) || !bitSet(absBits[:], absPressure) {
		return DeviceInfo{}, false
	}

	var name [256]byte
	if err := ioctlPtr(fd, eviocgName(uint32(len(name))), unsafe.Pointer(&name[0])); err != nil {
		return DeviceInfo{}, false
	}

	return DeviceInfo{
		Path: path,
		Name: strings.TrimRight(string(name[:]), "\x00"),
	}, true
}

func bitSet(bits []byte, n int) bool {
	if n/8 >= len(bits) {
		return false
	}
	return bits[n/8]&(1<<(n%8)) != 0
}
