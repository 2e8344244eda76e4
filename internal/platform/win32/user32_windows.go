//go:build windows

package win32

import (
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	moduser32 = windows.NewLazySystemDLL("user32.dll")

	procSetWinEventHook      = moduser32.NewProc("SetWinEventHook")
	procUnhookWinEvent       = moduser32.NewProc("UnhookWinEvent")
	procGetMessageW          = moduser32.NewProc("GetMessageW")
	procTranslateMessage     = moduser32.NewProc("TranslateMessage")
	procDispatchMessageW     = moduser32.NewProc("DispatchMessageW")
	procPostThreadMessageW   = moduser32.NewProc("PostThreadMessageW")
	procSetTimer             = moduser32.NewProc("SetTimer")
	procKillTimer            = moduser32.NewProc("KillTimer")
	procGetForegroundWindow  = moduser32.NewProc("GetForegroundWindow")
	procGetWindowTextW       = moduser32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = moduser32.NewProc("GetWindowTextLengthW")
)

var (
	winEventCallback     uintptr
	winEventCallbackOnce sync.Once
)

// winEventProc is the WINEVENTPROC shared by every hook in the process.
func winEventProc(hook, event, hwnd, idObject, idChild, eventThread, eventTime uintptr) uintptr {
	dispatchWinEvent(Handle(hook), uint32(event), HWND(hwnd), int32(idObject))
	return 0
}

type nativeUser32 struct{}

func systemUser32() user32 {
	return nativeUser32{}
}

func (nativeUser32) SetWinEventHook(eventMin, eventMax, flags uint32) (Handle, error) {
	winEventCallbackOnce.Do(func() {
		winEventCallback = windows.NewCallback(winEventProc)
	})
	r, _, err := procSetWinEventHook.Call(
		uintptr(eventMin),
		uintptr(eventMax),
		0,
		winEventCallback,
		0,
		0,
		uintptr(flags),
	)
	if r == 0 {
		return 0, errors.Wrap(err, "SetWinEventHook returned NULL")
	}
	return Handle(r), nil
}

func (nativeUser32) UnhookWinEvent(h Handle) error {
	r, _, err := procUnhookWinEvent.Call(uintptr(h))
	if r == 0 {
		return err
	}
	return nil
}

func (nativeUser32) GetMessage(msg *Msg) (int32, error) {
	r, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(msg)), 0, 0, 0)
	ret := int32(r)
	if ret == -1 {
		return ret, err
	}
	return ret, nil
}

func (nativeUser32) TranslateMessage(msg *Msg) {
	procTranslateMessage.Call(uintptr(unsafe.Pointer(msg)))
}

func (nativeUser32) DispatchMessage(msg *Msg) {
	procDispatchMessageW.Call(uintptr(unsafe.Pointer(msg)))
}

func (nativeUser32) PostThreadMessage(threadID, msg uint32) error {
	r, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(msg), 0, 0)
	if r == 0 {
		return err
	}
	return nil
}

func (nativeUser32) SetTimer(interval time.Duration) (uintptr, error) {
	r, _, err := procSetTimer.Call(0, 0, uintptr(interval.Milliseconds()), 0)
	if r == 0 {
		return 0, err
	}
	return r, nil
}

func (nativeUser32) KillTimer(id uintptr) error {
	r, _, err := procKillTimer.Call(0, id)
	if r == 0 {
		return err
	}
	return nil
}

func (nativeUser32) GetForegroundWindow() HWND {
	r, _, _ := procGetForegroundWindow.Call()
	return HWND(r)
}

func (nativeUser32) GetWindowText(hwnd HWND) (string, error) {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return "", nil
	}

	buf := make([]uint16, n+1)
	r, _, err := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return "", errors.Wrapf(err, "GetWindowTextW(0x%x)", uintptr(hwnd))
	}
	return windows.UTF16ToString(buf[:r]), nil
}

func (nativeUser32) CurrentThreadID() uint32 {
	return windows.GetCurrentThreadId()
}
