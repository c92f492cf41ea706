//go:build linux

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Event tap: exclusive device grab + virtual output device
// ============================================================================
// The tap is how scrollflip interposes on the event delivery path: each
// configured device is opened and grabbed exclusively (EVIOCGRAB), so its
// events reach only this process, and a uinput virtual device re-emits the
// forwarded (possibly inverted) stream to the rest of the system.
//
// Failure to grab a device or to create the virtual device is fatal at
// startup: re-establishing the tap needs user action (permissions, the
// 'input' group, /dev/uinput access), so there is no retry loop.
// ============================================================================

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

func evioCGrab() uintptr {
	// EVIOCGRAB = _IOW('E', 0x90, int)
	return ioc(iocWrite, 'E', 0x90, uint32(unsafe.Sizeof(int32(0))))
}

func evioCGBit(evType, size uint32) uintptr {
	// EVIOCGBIT(ev, len) = _IOC(_IOC_READ, 'E', 0x20 + ev, len)
	return ioc(iocRead, 'E', 0x20+evType, size)
}

// uinput ioctls (from <linux/uinput.h>, ioctl base 'U')
func uiSetEvBit() uintptr  { return ioc(iocWrite, 'U', 100, uint32(unsafe.Sizeof(int32(0)))) }
func uiSetKeyBit() uintptr { return ioc(iocWrite, 'U', 101, uint32(unsafe.Sizeof(int32(0)))) }
func uiSetRelBit() uintptr { return ioc(iocWrite, 'U', 102, uint32(unsafe.Sizeof(int32(0)))) }
func uiDevSetup() uintptr {
	return ioc(iocWrite, 'U', 3, uint32(unsafe.Sizeof(uinputSetup{})))
}
func uiDevCreate() uintptr  { return ioc(iocNone, 'U', 1, 0) }
func uiDevDestroy() uintptr { return ioc(iocNone, 'U', 2, 0) }

// struct uinput_setup { struct input_id id; char name[80]; __u32 ff_effects_max; }
type uinputSetup struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
	Name    [80]byte
	FFMax   uint32
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlInt(fd int, req uintptr, val int32) error {
	return ioctlPtr(fd, req, unsafe.Pointer(&val))
}

// ============================================================================
// Grabbed source devices
// ============================================================================

// TapDevice is one grabbed physical input device.
type TapDevice struct {
	File *os.File

	// Continuous marks the device as a pixel-granularity continuous
	// scroller: it advertises hi-res scroll axes without the classic
	// detent axes. Per-event detection still applies on top (non-detent
	// hi-res deltas), so this is a hint, not an identity claim.
	Continuous bool
}

// OpenTapDevice opens and exclusively grabs an evdev device.
func OpenTapDevice(path string) (*TapDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fd := int(f.Fd())
	var one int32 = 1
	if err := ioctlPtr(fd, evioCGrab(), unsafe.Pointer(&one)); err != nil {
		f.Close()
		return nil, fmt.Errorf("grab %s: %w (is another grabber running?)", path, err)
	}

	return &TapDevice{
		File:       f,
		Continuous: probeContinuous(fd),
	}, nil
}

// Release ungrabs and closes the device.
func (d *TapDevice) Release() {
	if d == nil || d.File == nil {
		return
	}
	var zero int32 = 0
	_ = ioctlPtr(int(d.File.Fd()), evioCGrab(), unsafe.Pointer(&zero))
	_ = d.File.Close()
}

// probeContinuous inspects the device's advertised EV_REL axes. A device
// exposing hi-res scroll without the detent wheel axis delivers
// pixel-granular continuous scrolling.
func probeContinuous(fd int) bool {
	var bits [2]uint64 // covers REL_MAX (0x0f)
	if err := ioctlPtr(fd, evioCGBit(EV_REL, uint32(len(bits)*8)), unsafe.Pointer(&bits[0])); err != nil {
		return false
	}
	has := func(code uint) bool {
		return bits[code/64]&(1<<(code%64)) != 0
	}
	return has(REL_WHEEL_HI_RES) && !has(REL_WHEEL)
}

// ============================================================================
// Virtual output device (uinput)
// ============================================================================

// UinputSink is the virtual input device the daemon re-emits events through.
// It implements EventSink.
type UinputSink struct {
	f *os.File
}

// NewUinputSink creates and registers the virtual device.
func NewUinputSink(name string) (*UinputSink, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}
	fd := int(f.Fd())

	fail := func(step string, err error) (*UinputSink, error) {
		f.Close()
		return nil, fmt.Errorf("uinput %s: %w", step, err)
	}

	if err := ioctlInt(fd, uiSetEvBit(), EV_KEY); err != nil {
		return fail("set EV_KEY", err)
	}
	if err := ioctlInt(fd, uiSetEvBit(), EV_REL); err != nil {
		return fail("set EV_REL", err)
	}
	if err := ioctlInt(fd, uiSetEvBit(), EV_SYN); err != nil {
		return fail("set EV_SYN", err)
	}

	// Declare every key and relative axis the grabbed devices might emit;
	// the sink forwards arbitrary passthrough events.
	for code := int32(0); code < 0x300; code++ {
		if err := ioctlInt(fd, uiSetKeyBit(), code); err != nil {
			return fail("set key bit", err)
		}
	}
	for code := int32(0); code <= REL_HWHEEL_HI_RES; code++ {
		if err := ioctlInt(fd, uiSetRelBit(), code); err != nil {
			return fail("set rel bit", err)
		}
	}

	setup := uinputSetup{
		BusType: 0x06, // BUS_VIRTUAL
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	copy(setup.Name[:], name)
	if err := ioctlPtr(fd, uiDevSetup(), unsafe.Pointer(&setup)); err != nil {
		return fail("dev setup", err)
	}
	if err := ioctlPtr(fd, uiDevCreate(), nil); err != nil {
		return fail("dev create", err)
	}

	return &UinputSink{f: f}, nil
}

// Close destroys the virtual device.
func (s *UinputSink) Close() error {
	if s == nil || s.f == nil {
		return nil
	}
	_ = ioctlPtr(int(s.f.Fd()), uiDevDestroy(), nil)
	return s.f.Close()
}

// WriteRaw forwards one untouched device event.
func (s *UinputSink) WriteRaw(ev inputEvent) error {
	return s.write(ev)
}

// WriteScroll re-emits a scroll frame: one REL event per nonzero axis, then
// SYN_REPORT.
func (s *UinputSink) WriteScroll(sc ScrollEvent) error {
	axes := []struct {
		code  uint16
		value int32
	}{
		{REL_HWHEEL, sc.LineDeltaX},
		{REL_WHEEL, sc.LineDeltaY},
		{REL_DIAL, sc.LineDeltaZ},
		{REL_HWHEEL_HI_RES, sc.PixelDeltaX},
		{REL_WHEEL_HI_RES, sc.PixelDeltaY},
	}
	for _, a := range axes {
		if a.value == 0 {
			continue
		}
		if err := s.write(inputEvent{Type: EV_REL, Code: a.code, Value: a.value}); err != nil {
			return err
		}
	}
	return s.write(inputEvent{Type: EV_SYN, Code: SYN_REPORT})
}

func (s *UinputSink) write(ev inputEvent) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &ev); err != nil {
		return fmt.Errorf("encode input event: %w", err)
	}
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write to uinput: %w", err)
	}
	return nil
}
