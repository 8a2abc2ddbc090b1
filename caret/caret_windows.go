//go:build windows

package caret

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procGetWindowRect  = user32.NewProc("GetWindowRect")
	procClientToScreen = user32.NewProc("ClientToScreen")
)

type point struct{ X, Y int32 }

type win32Locator struct{}

func New() Locator { return win32Locator{} }

func (win32Locator) CurrentAnchor(_ context.Context) (Anchor, error) {
	now := time.Now()
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return Anchor{At: now}, ErrNoTarget
	}
	a := Anchor{Window: fmt.Sprintf("%#x", uintptr(hwnd)), At: now}

	var r windows.Rect
	if ok, _, _ := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r))); ok != 0 {
		a.Bounds = Rect{X: int(r.Left), Y: int(r.Top), W: int(r.Right - r.Left), H: int(r.Bottom - r.Top)}
	}

	title := make([]uint16, 256)
	if n, err := windows.GetWindowText(hwnd, &title[0], int32(len(title))); err == nil {
		a.Title = windows.UTF16ToString(title[:n])
	}
	class := make([]uint16, 64)
	if n, err := windows.GetClassName(hwnd, &class[0], int32(len(class))); err == nil {
		a.PasteOnly = windows.UTF16ToString(class[:n]) == "ConsoleWindowClass"
	}

	tid, err := windows.GetWindowThreadProcessId(hwnd, nil)
	if err != nil {
		return a, nil
	}
	var info windows.GUIThreadInfo
	info.Size = uint32(unsafe.Sizeof(info))
	if err := windows.GetGUIThreadInfo(tid, &info); err != nil || info.CaretHandle == 0 {
		return a, nil
	}
	p := point{X: info.CaretRect.Left, Y: info.CaretRect.Top}
	if ok, _, _ := procClientToScreen.Call(uintptr(info.CaretHandle), uintptr(unsafe.Pointer(&p))); ok == 0 {
		return a, nil
	}
	a.Caret = Rect{
		X: int(p.X),
		Y: int(p.Y),
		W: int(info.CaretRect.Right - info.CaretRect.Left),
		H: int(info.CaretRect.Bottom - info.CaretRect.Top),
	}
	a.HasCaret = true
	return a, nil
}
