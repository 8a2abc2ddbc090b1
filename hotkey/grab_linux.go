//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"dictate/log"
	"dictate/uinput"
)

const (
	eviocgrab       = 0x40044590 // EVIOCGRAB
	passthroughName = "dictate-keys"
)

// evdevGrabber takes exclusive hold of every keyboard while keys are
// armed. Overlay keys are swallowed and reported; everything else is
// replayed through a virtual keyboard so typing keeps working.
type evdevGrabber struct {
	out   *uinput.Device
	files []*os.File
	keys  chan OverlayKey
	once  sync.Once

	mu      sync.Mutex
	filter  *grabFilter
	grabbed bool
}

// NewGrabber opens the keyboards and creates the passthrough device. Call
// it before starting the trigger Listener so the trigger key is still
// heard through the passthrough while a grab is held.
func NewGrabber() (KeyGrabber, error) {
	paths, err := findKeyboards()
	if err != nil {
		return nil, fmt.Errorf("finding keyboards: %w", err)
	}
	g := &evdevGrabber{
		keys:   make(chan OverlayKey, 8),
		filter: newGrabFilter(),
	}
	for _, path := range paths {
		if strings.HasPrefix(uinput.DeviceName(filepath.Base(path)), "dictate-") {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		g.files = append(g.files, f)
	}
	if len(g.files) == 0 {
		return nil, errors.New("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	g.out, err = uinput.Create(passthroughName, 0x567a)
	if err != nil {
		g.closeFiles()
		return nil, fmt.Errorf("passthrough keyboard: %w", err)
	}
	// let udev publish the node before anyone scans for keyboards
	time.Sleep(200 * time.Millisecond)
	for _, f := range g.files {
		go g.read(f)
	}
	return g, nil
}

func (g *evdevGrabber) Keys() <-chan OverlayKey {
	return g.keys
}

func (g *evdevGrabber) Arm(keys ...OverlayKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.arm(keys)
	want := len(keys) > 0
	if want == g.grabbed {
		return nil
	}
	v := 0
	if want {
		v = 1
	}
	var errs []error
	for _, f := range g.files {
		if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, v); err != nil {
			errs = append(errs, fmt.Errorf("EVIOCGRAB %s: %w", f.Name(), err))
		}
	}
	g.grabbed = want
	if !want {
		for _, code := range g.filter.release() {
			if err := g.out.Key(code, keyRelease); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (g *evdevGrabber) read(f *os.File) {
	buf := make([]byte, uinput.EventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		g.mu.Lock()
		for i := 0; i+uinput.EventSize <= n; i += uinput.EventSize {
			typ := binary.LittleEndian.Uint16(buf[i+16:])
			code := binary.LittleEndian.Uint16(buf[i+18:])
			value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			g.handle(typ, code, value)
		}
		g.mu.Unlock()
	}
}

// handle runs with mu held.
func (g *evdevGrabber) handle(typ, code uint16, value int32) {
	if !g.grabbed {
		if typ == uinput.EvKey {
			g.filter.track(code, value)
		}
		return
	}
	if typ == uinput.EvKey {
		k, pass := g.filter.key(code, value)
		if k != 0 {
			select {
			case g.keys <- k:
			default:
				log.Warnf("hotkey: dropped overlay key %v", k)
			}
		}
		if !pass {
			return
		}
	}
	if err := g.out.Emit(typ, code, value); err != nil {
		log.Warnf("hotkey: passthrough write failed: %v", err)
	}
}

func (g *evdevGrabber) Close() {
	g.once.Do(func() {
		if err := g.Arm(); err != nil {
			log.Warnf("hotkey: release grab: %v", err)
		}
		g.closeFiles()
		g.out.Close()
	})
}

func (g *evdevGrabber) closeFiles() {
	for _, f := range g.files {
		f.Close()
	}
}
