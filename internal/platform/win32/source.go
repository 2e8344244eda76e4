// Package win32 watches the foreground window through an out-of-context
// WinEvent hook serviced by a thread message loop.
package win32

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const name = "windows"

// DefaultWakeInterval is how often the message loop rechecks for
// cancellation when no other message arrives.
const DefaultWakeInterval = 250 * time.Millisecond

const (
	eventSystemForeground = 0x0003
	eventObjectNameChange = 0x800C

	winEventOutOfContext   = 0x0000
	winEventSkipOwnProcess = 0x0002

	objidWindow = 0

	wmQuit  = 0x0012
	wmTimer = 0x0113
)

// Handle is an HWINEVENTHOOK.
type Handle uintptr

// HWND is a window handle.
type HWND uintptr

// Msg mirrors the Win32 MSG structure.
type Msg struct {
	Hwnd    HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// user32 is the part of user32.dll the loop uses. Event hooks registered
// through it report to dispatchWinEvent.
type user32 interface {
	SetWinEventHook(eventMin, eventMax, flags uint32) (Handle, error)
	UnhookWinEvent(h Handle) error
	GetMessage(msg *Msg) (int32, error)
	TranslateMessage(msg *Msg)
	DispatchMessage(msg *Msg)
	PostThreadMessage(threadID, msg uint32) error
	SetTimer(interval time.Duration) (uintptr, error)
	KillTimer(id uintptr) error
	GetForegroundWindow() HWND
	GetWindowText(hwnd HWND) (string, error)
	CurrentThreadID() uint32
}

// Options configures a Source.
type Options struct {
	// WakeInterval defaults to DefaultWakeInterval.
	WakeInterval time.Duration

	Logger *zerolog.Logger
}

// Source is the Win32 focus event source.
type Source struct {
	api  user32
	opts Options
	log  zerolog.Logger

	// tid is the pump thread, read by Interrupt from other goroutines.
	tid   atomic.Uint32
	hook  Handle
	timer uintptr
}

// New creates a Source over the system user32.dll.
func New(opts Options) *Source {
	return newSource(opts, systemUser32())
}

func newSource(opts Options, api user32) *Source {
	if opts.WakeInterval <= 0 {
		opts.WakeInterval = DefaultWakeInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("win32")
	}
	return &Source{api: api, opts: opts, log: *log}
}

// Name returns the backend name
func (s *Source) Name() string {
	return name
}

// Open pins the calling goroutine to its thread and installs the WinEvent
// hook and the wake timer on it.
func (s *Source) Open() error {
	if s.api == nil {
		return &focus.PlatformError{Reason: "Win32 is only available on Windows"}
	}

	runtime.LockOSThread()

	h, err := s.api.SetWinEventHook(
		eventSystemForeground,
		eventObjectNameChange,
		winEventOutOfContext|winEventSkipOwnProcess,
	)
	if err != nil {
		runtime.UnlockOSThread()
		return focus.Hook(name, "SetWinEventHook", err)
	}

	timer, err := s.api.SetTimer(s.opts.WakeInterval)
	if err != nil {
		if uerr := s.api.UnhookWinEvent(h); uerr != nil {
			s.log.Warn().Err(uerr).Msg("Failed to remove event hook")
		}
		runtime.UnlockOSThread()
		return focus.Initialization(name, "SetTimer", err)
	}

	s.hook = h
	s.timer = timer
	s.tid.Store(s.api.CurrentThreadID())

	s.log.Debug().
		Uint32("thread", s.tid.Load()).
		Dur("wake_interval", s.opts.WakeInterval).
		Msg("Installed WinEvent hook")
	return nil
}

// Serve pumps the thread's message queue until sink is done or WM_QUIT
// arrives after cancellation.
func (s *Source) Serve(sink focus.Sink) error {
	unbind := bind(s.hook, s, sink)
	defer unbind()

	s.submitWindow(sink, s.api.GetForegroundWindow())

	var msg Msg
	for {
		if focus.Stopped(sink) {
			return nil
		}

		ret, err := s.api.GetMessage(&msg)
		switch ret {
		case -1:
			return focus.Native(name, "GetMessage", err)
		case 0:
			if focus.Stopped(sink) {
				return nil
			}
			// Left over from an earlier run on this thread.
			s.log.Debug().Msg("Ignoring WM_QUIT without a stop request")
			continue
		}

		if msg.Message == wmTimer && msg.Hwnd == 0 {
			continue
		}
		s.api.TranslateMessage(&msg)
		s.api.DispatchMessage(&msg)
	}
}

// handleEvent runs on the pump thread, inside GetMessage.
func (s *Source) handleEvent(sink focus.Sink, event uint32, hwnd HWND, idObject int32) {
	switch event {
	case eventSystemForeground:
	case eventObjectNameChange:
		if idObject != objidWindow || hwnd != s.api.GetForegroundWindow() {
			return
		}
	default:
		return
	}
	s.submitWindow(sink, hwnd)
}

func (s *Source) submitWindow(sink focus.Sink, hwnd HWND) {
	if hwnd == 0 {
		return
	}
	title, err := s.api.GetWindowText(hwnd)
	if err != nil {
		s.log.Debug().Err(err).Uint64("hwnd", uint64(hwnd)).Msg("Failed to read window title")
		return
	}
	sink.Submit(title)
}

// Interrupt posts WM_QUIT to the pump thread. Before Open it does nothing.
func (s *Source) Interrupt() error {
	tid := s.tid.Load()
	if tid == 0 {
		return nil
	}
	if err := s.api.PostThreadMessage(tid, wmQuit); err != nil {
		return focus.Stop(name, "PostThreadMessage", err)
	}
	return nil
}

// Close kills the timer, removes the hook and unpins the thread.
func (s *Source) Close() error {
	if s.hook == 0 {
		return nil
	}
	defer runtime.UnlockOSThread()

	s.tid.Store(0)

	var errs []error
	if err := s.api.KillTimer(s.timer); err != nil {
		errs = append(errs, errors.Wrap(err, "KillTimer"))
	}
	if err := s.api.UnhookWinEvent(s.hook); err != nil {
		errs = append(errs, errors.Wrap(err, "UnhookWinEvent"))
	}
	s.hook = 0
	s.timer = 0

	if len(errs) > 0 {
		return focus.Native(name, "release hook", errs[0])
	}
	s.log.Debug().Msg("Removed WinEvent hook")
	return nil
}

type binding struct {
	src  *Source
	sink focus.Sink
}

// bindings maps each live hook handle to the run it reports to. WinEvent
// callbacks carry no user data, so this is their only route to a sink.
var bindings = struct {
	sync.Mutex
	m map[Handle]binding
}{m: make(map[Handle]binding)}

func bind(h Handle, src *Source, sink focus.Sink) (unbind func()) {
	bindings.Lock()
	bindings.m[h] = binding{src: src, sink: sink}
	bindings.Unlock()

	return func() {
		bindings.Lock()
		delete(bindings.m, h)
		bindings.Unlock()
	}
}

// dispatchWinEvent routes a WinEvent callback to its run. Events for hooks
// without a live run are dropped.
func dispatchWinEvent(h Handle, event uint32, hwnd HWND, idObject int32) {
	bindings.Lock()
	b, ok := bindings.m[h]
	bindings.Unlock()
	if !ok {
		return
	}
	b.src.handleEvent(b.sink, event, hwnd, idObject)
}
