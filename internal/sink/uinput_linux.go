//go:build linux

package sink

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"penwheel/internal/config"
	"penwheel/internal/pen"
)

// Event types, codes and force-feedback constants from linux/input.h.
const (
	evSyn     = 0x00
	evKey     = 0x01
	evAbs     = 0x03
	evFF      = 0x15
	evUInput  = 0x0101
	synReport = 0x00

	absX = 0x00

	btnSouth  = 0x130
	btnEast   = 0x131
	btnNorth  = 0x133
	btnWest   = 0x134
	btnThumbL = 0x13d
	btnThumbR = 0x13e

	ffRumble     = 0x50
	ffPeriodic   = 0x51
	ffConstant   = 0x52
	ffSpring     = 0x53
	ffFriction   = 0x54
	ffDamper     = 0x55
	ffInertia    = 0x56
	ffRamp       = 0x57
	ffSquare     = 0x58
	ffTriangle   = 0x59
	ffSine       = 0x5a
	ffSawUp      = 0x5b
	ffSawDown    = 0x5c
	ffGain       = 0x60
	ffAutocenter = 0x61

	ffUpload = 1
	ffErase  = 2

	busUSB = 0x03

	maxEffects = 16

	inputEventSize = 24
)

// ioctl request encoding (Linux _IOC macro).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, 4)
	uiSetAbsBit  = ioc(iocWrite, 'U', 103, 4)
	uiSetFFBit   = ioc(iocWrite, 'U', 107, 4)

	uiBeginFFUpload = ioc(iocRead|iocWrite, 'U', 200, uint32(unsafe.Sizeof(ffUploadReq{})))
	uiEndFFUpload   = ioc(iocWrite, 'U', 201, uint32(unsafe.Sizeof(ffUploadReq{})))
	uiBeginFFErase  = ioc(iocRead|iocWrite, 'U', 202, uint32(unsafe.Sizeof(ffEraseReq{})))
	uiEndFFErase    = ioc(iocWrite, 'U', 203, uint32(unsafe.Sizeof(ffEraseReq{})))
)

// ffEffect mirrors struct ff_effect. The trailing bytes are the
// effect-type union; for FF_CONSTANT the level is the leading int16.
type ffEffect struct {
	Type      uint16
	ID        int16
	Direction uint16
	Trigger   struct{ Button, Interval uint16 }
	Replay    struct{ Length, Delay uint16 }
	_         [2]byte  // union is pointer-aligned
	Union     [32]byte // largest member: ff_periodic_effect
}

// ffUploadReq mirrors struct uinput_ff_upload.
type ffUploadReq struct {
	RequestID uint32
	Retval    int32
	Effect    ffEffect
	Old       ffEffect
}

// ffEraseReq mirrors struct uinput_ff_erase.
type ffEraseReq struct {
	RequestID uint32
	Retval    int32
	EffectID  uint32
}

// userDev mirrors struct uinput_user_dev for the legacy device setup.
type userDev struct {
	Name         [80]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// UInput presents a virtual steering wheel through /dev/uinput: an
// absolute X axis for the wheel, the horn on BTN_THUMBR, stylus buttons
// on the face buttons, and advertised force-feedback support. Games
// upload constant-force effects; the active effect levels are surfaced
// through PollFeedback as a torque for the physics model.
type UInput struct {
	fd         int
	resolution float64
	maxTorque  float64
	log        zerolog.Logger

	gain    float64
	effects map[int16]int16 // effect id -> constant level
	playing map[int16]bool
	nextID  int16
}

// NewUInput creates the virtual device. maxTorque scales uploaded
// effect levels into model torque units.
func NewUInput(dev config.DeviceConfig, maxTorque float64, log zerolog.Logger) (*UInput, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput sink: open /dev/uinput: %w", err)
	}

	u := &UInput{
		fd:         fd,
		resolution: float64(dev.Resolution),
		maxTorque:  maxTorque,
		log:        log,
		gain:       1,
		effects:    make(map[int16]int16),
		playing:    make(map[int16]bool),
	}

	if err := u.setup(dev); err != nil {
		unix.Close(fd)
		return nil, err
	}

	log.Info().Str("name", dev.Name).Uint32("resolution", dev.Resolution).
		Msg("uinput sink: virtual device created")

	return u, nil
}

func (u *UInput) setup(dev config.DeviceConfig) error {
	// Horn plus a few face buttons; the extras help applications
	// recognize the virtual device as a game controller.
	if err := u.ioctlInt(uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("uinput sink: set key events: %w", err)
	}
	for _, key := range []int{btnThumbR, btnThumbL, btnSouth, btnEast, btnNorth, btnWest} {
		if err := u.ioctlInt(uiSetKeyBit, key); err != nil {
			return fmt.Errorf("uinput sink: set key bit %#x: %w", key, err)
		}
	}

	// Steering wheel absolute axis.
	if err := u.ioctlInt(uiSetEvBit, evAbs); err != nil {
		return fmt.Errorf("uinput sink: set abs events: %w", err)
	}
	if err := u.ioctlInt(uiSetAbsBit, absX); err != nil {
		return fmt.Errorf("uinput sink: set abs X: %w", err)
	}

	// Advertise force feedback. Constant force is the one we honor;
	// the rest just help with detection.
	if err := u.ioctlInt(uiSetEvBit, evFF); err != nil {
		return fmt.Errorf("uinput sink: set ff events: %w", err)
	}
	ffBits := []int{
		ffConstant, ffAutocenter, ffPeriodic, ffRumble, ffDamper,
		ffInertia, ffRamp, ffSine, ffSquare, ffTriangle, ffSawUp, ffSawDown,
	}
	for _, bit := range ffBits {
		if err := u.ioctlInt(uiSetFFBit, bit); err != nil {
			return fmt.Errorf("uinput sink: set ff bit %#x: %w", bit, err)
		}
	}

	var ud userDev
	copy(ud.Name[:], dev.Name)
	ud.Bustype = busUSB
	ud.Vendor = dev.Vendor
	ud.Product = dev.Product
	ud.Version = dev.Version
	ud.FFEffectsMax = maxEffects
	ud.AbsMin[absX] = -int32(dev.Resolution)
	ud.AbsMax[absX] = int32(dev.Resolution)

	buf := (*[unsafe.Sizeof(userDev{})]byte)(unsafe.Pointer(&ud))[:]
	if _, err := unix.Write(u.fd, buf); err != nil {
		return fmt.Errorf("uinput sink: write device setup: %w", err)
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiDevCreate, 0); errno != 0 {
		return fmt.Errorf("uinput sink: create device: %w", errno)
	}

	return nil
}

func (u *UInput) ioctlInt(req uintptr, val int) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), req, uintptr(val)); errno != 0 {
		return errno
	}
	return nil
}

// Send writes the wheel axis, horn and button states followed by a sync
// report. A write failure means the device is gone and is terminal.
func (u *UInput) Send(f Frame) error {
	half := f.Range * math.Pi / 180 / 2
	var fraction float64
	if half > 0 {
		fraction = f.Angle / half
	}
	axis := int32(math.RoundToEven(fraction * u.resolution))

	events := make([]byte, 0, 8*inputEventSize)
	events = appendEvent(events, evAbs, absX, axis)
	events = appendEvent(events, evKey, btnThumbR, boolVal(f.Horn))
	events = appendEvent(events, evKey, btnSouth, boolVal(f.Buttons&pen.ButtonTip != 0))
	events = appendEvent(events, evKey, btnEast, boolVal(f.Buttons&pen.ButtonLower != 0))
	events = appendEvent(events, evKey, btnNorth, boolVal(f.Buttons&pen.ButtonUpper != 0))
	events = appendEvent(events, evKey, btnWest, boolVal(f.Buttons&pen.ButtonEraser != 0))
	events = appendEvent(events, evSyn, synReport, 0)

	if _, err := unix.Write(u.fd, events); err != nil {
		return fmt.Errorf("uinput sink: write events: %w", err)
	}
	return nil
}

// PollFeedback drains pending device events (effect uploads, erases,
// gain and play commands) and reports the resulting constant-force
// torque when anything changed.
func (u *UInput) PollFeedback() (float64, bool) {
	changed := false
	var buf [inputEventSize]byte

	for {
		n, err := unix.Read(u.fd, buf[:])
		if err != nil || n < inputEventSize {
			break // EAGAIN: nothing pending
		}

		etype := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))

		switch etype {
		case evUInput:
			switch code {
			case ffUpload:
				if u.handleUpload(uint32(value)) {
					changed = true
				}
			case ffErase:
				if u.handleErase(uint32(value)) {
					changed = true
				}
			}

		case evFF:
			if code == ffGain {
				u.gain = float64(value) / 0xffff
				changed = true
				continue
			}
			// Otherwise code is an effect id and value the play count.
			id := int16(code)
			if _, ok := u.effects[id]; ok {
				u.playing[id] = value > 0
				changed = true
			}
		}
	}

	if !changed {
		return 0, false
	}
	return u.torque(), true
}

// handleUpload performs the UI_BEGIN/END_FF_UPLOAD dance and records
// the effect.
func (u *UInput) handleUpload(requestID uint32) bool {
	var req ffUploadReq
	req.RequestID = requestID

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiBeginFFUpload, uintptr(unsafe.Pointer(&req))); errno != 0 {
		u.log.Warn().Err(errno).Msg("uinput sink: begin ff upload failed")
		return false
	}

	accepted := false
	if req.Effect.Type == ffConstant {
		id := req.Effect.ID
		if id < 0 {
			id = u.nextID
			u.nextID = (u.nextID + 1) % maxEffects
			req.Effect.ID = id
		}
		level := int16(binary.LittleEndian.Uint16(req.Effect.Union[0:2]))
		u.effects[id] = level
		accepted = true
	}
	req.Retval = 0

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiEndFFUpload, uintptr(unsafe.Pointer(&req))); errno != 0 {
		u.log.Warn().Err(errno).Msg("uinput sink: end ff upload failed")
	}

	return accepted
}

// handleErase performs the UI_BEGIN/END_FF_ERASE dance and drops the
// effect.
func (u *UInput) handleErase(requestID uint32) bool {
	var req ffEraseReq
	req.RequestID = requestID

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiBeginFFErase, uintptr(unsafe.Pointer(&req))); errno != 0 {
		u.log.Warn().Err(errno).Msg("uinput sink: begin ff erase failed")
		return false
	}

	id := int16(req.EffectID)
	_, existed := u.effects[id]
	delete(u.effects, id)
	delete(u.playing, id)
	req.Retval = 0

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiEndFFErase, uintptr(unsafe.Pointer(&req))); errno != 0 {
		u.log.Warn().Err(errno).Msg("uinput sink: end ff erase failed")
	}

	return existed
}

// torque sums the playing constant-force levels, scaled by gain into
// model torque units.
func (u *UInput) torque() float64 {
	var sum float64
	for id, on := range u.playing {
		if !on {
			continue
		}
		sum += float64(u.effects[id]) / 0x7fff
	}
	return sum * u.gain * u.maxTorque
}

// Close destroys the virtual device.
func (u *UInput) Close() error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), uiDevDestroy, 0); errno != 0 {
		u.log.Warn().Err(errno).Msg("uinput sink: device destroy failed")
	}
	return unix.Close(u.fd)
}

func appendEvent(buf []byte, etype, code uint16, value int32) []byte {
	var ev [inputEventSize]byte
	binary.LittleEndian.PutUint16(ev[16:18], etype)
	binary.LittleEndian.PutUint16(ev[18:20], code)
	binary.LittleEndian.PutUint32(ev[20:24], uint32(value))
	return append(buf, ev[:]...)
}

func boolVal(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
