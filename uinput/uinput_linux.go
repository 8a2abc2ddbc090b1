//go:build linux

package uinput

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit   = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit  = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate  = 0x5501     // UI_DEV_CREATE
	uiDevDestroy = 0x5502     // UI_DEV_DESTROY
)

const (
	EvSyn = 0x00
	EvKey = 0x01
	EvMsc = 0x04
)

const busUSB = 0x03

// EventSize is the size of struct input_event on 64-bit kernels.
const EventSize = 24

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// Device is one virtual keyboard. Writes are serialised.
type Device struct {
	mu sync.Mutex
	f  *os.File
}

// Create registers a virtual keyboard with every standard key so udev
// classifies it as a keyboard.
func Create(name string, product uint16) (*Device, error) {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	fd := int(f.Fd())
	for _, ev := range []int{EvKey, EvSyn, EvMsc} {
		if err := unix.IoctlSetInt(fd, uiSetEvbit, ev); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
	}
	for i := 0; i < 256; i++ {
		if err := unix.IoctlSetInt(fd, uiSetKeybit, i); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_KEYBIT: %w", err)
		}
	}
	dev := uinputUserDev{}
	copy(dev.Name[:], name)
	dev.ID = inputID{Bustype: busUSB, Vendor: 0x1234, Product: product, Version: 1}
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		f.Close()
		return nil, err
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return &Device{f: f}, nil
}

// Emit writes one raw event without a sync report.
func (d *Device) Emit(typ, code uint16, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emit(typ, code, value)
}

// Key writes a key event followed by a sync report.
func (d *Device) Key(code uint16, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.emit(EvKey, code, value); err != nil {
		return err
	}
	return d.emit(EvSyn, 0, 0)
}

func (d *Device) emit(typ, code uint16, value int32) error {
	if d.f == nil {
		return os.ErrClosed
	}
	return binary.Write(d.f, binary.LittleEndian, &inputEvent{Type: typ, Code: code, Value: value})
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	unix.IoctlSetInt(int(d.f.Fd()), uiDevDestroy, 0)
	err := d.f.Close()
	d.f = nil
	return err
}

// DeviceName reads the kernel name of /dev/input/<event>.
func DeviceName(event string) string {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", event, "device", "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// FindEvdev returns the /dev/input node of the device called name.
func FindEvdev(name string) (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if DeviceName(e.Name()) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("%s evdev device not found", name)
}
