package input

import (
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Linux's struct input_event on a 64-bit kernel: a 16-byte timeval (two
// 8-byte fields) followed by a 2-byte type, a 2-byte code and a 4-byte
// value. No public Go constant for this exists outside the kernel uapi
// headers, so the layout is hand-decoded (spec §4.6, §6).
const (
	inputEventSize = 24
	evKey          = 0x01
	keyPressed     = 1
)

// device is one open /dev/input event node. A reader goroutine decodes raw
// input_event records and forwards pressed-transition key codes.
type device struct {
	path string
	f    *os.File
	stop chan struct{}
}

func openDevice(path string, keys chan<- int) (*device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	d := &device{path: path, f: f, stop: make(chan struct{})}
	go d.readLoop(keys)
	return d, nil
}

func (d *device) close() {
	close(d.stop)
	d.f.Close()
}

// readLoop decodes key-press events and forwards them until close is
// called. Read errors and short reads are skipped and the read is retried
// (spec §4.6 step 4): the device file can vanish between a dispatcher
// wakeup and the read that follows it.
func (d *device) readLoop(keys chan<- int) {
	buf := make([]byte, inputEventSize)
	fd := int(d.f.Fd())
	for {
		n, err := unix.Read(fd, buf)
		if err != nil || n < inputEventSize {
			select {
			case <-d.stop:
				return
			default:
				continue
			}
		}
		evType := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))
		if evType != evKey || value != keyPressed {
			continue
		}
		select {
		case keys <- int(code):
		case <-d.stop:
			return
		}
	}
}

// readDeviceName reads the kernel-reported name of the device backing an
// event node via sysfs, e.g. /dev/input/event3 -> /sys/class/input/event3/
// device/name. No pyudev equivalent exists in the Go ecosystem; sysfs is
// the stable, dependency-free substitute.
func readDeviceName(devicePath string) (string, error) {
	base := filepath.Base(devicePath)
	data, err := os.ReadFile(filepath.Join("/sys/class/input", base, "device", "name"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func logDeviceWarning(path string, err error) {
	slog.Warn("input device error", "path", path, "error", err)
}
