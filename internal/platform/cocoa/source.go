// Package cocoa watches the frontmost application's window through
// NSWorkspace notifications and the Accessibility API.
//
// The source must be driven from the process main thread, which receives the
// workspace notifications.
package cocoa

import (
	"runtime"
	"sync"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const name = "macos"

// DefaultSlice is how long one run-loop slice may block.
const DefaultSlice = 100 * time.Millisecond

// subscription is one live registration with the workspace notification
// center.
type subscription interface {
	// Wake stops the run loop slice currently blocking the subscribing
	// thread. Safe from any thread.
	Wake()

	// Unsubscribe removes the registration. No callback runs afterwards.
	Unsubscribe()
}

// workspace is the part of AppKit and the Accessibility API the source uses.
type workspace interface {
	// Subscribe calls onChange on the current thread's run loop whenever the
	// active application or space changes.
	Subscribe(onChange func()) (subscription, error)

	// RunSlice runs the current thread's run loop for at most d.
	RunSlice(d time.Duration)

	// FrontmostTitle returns the frontmost application's main (or focused)
	// window title.
	FrontmostTitle() (string, bool)
}

// Options configures a Source.
type Options struct {
	// Slice defaults to DefaultSlice.
	Slice time.Duration

	Logger *zerolog.Logger
}

// Source is the Cocoa focus event source.
type Source struct {
	ws   workspace
	opts Options
	log  zerolog.Logger

	// mu guards sub against Interrupt racing Close.
	mu   sync.Mutex
	sub  subscription
	sink focus.Sink
}

// New creates a Source over the running AppKit session.
func New(opts Options) *Source {
	return newSource(opts, systemWorkspace())
}

func newSource(opts Options, ws workspace) *Source {
	if opts.Slice <= 0 {
		opts.Slice = DefaultSlice
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent("cocoa")
	}
	return &Source{ws: ws, opts: opts, log: *log}
}

// Name returns the backend name
func (s *Source) Name() string {
	return name
}

// Open subscribes to application activation and space changes.
func (s *Source) Open() error {
	if s.ws == nil {
		return &focus.PlatformError{Reason: "macOS support requires cgo"}
	}

	runtime.LockOSThread()

	sub, err := s.ws.Subscribe(s.changed)
	if err != nil {
		runtime.UnlockOSThread()
		return focus.Hook(name, "subscribe workspace notifications", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	s.log.Debug().Msg("Subscribed to workspace notifications")
	return nil
}

// changed runs on the run loop, inside RunSlice.
func (s *Source) changed() {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	if sink == nil || focus.Stopped(sink) {
		return
	}
	s.submitFrontmost(sink)
}

// Serve runs the run loop in slices until sink is done.
func (s *Source) Serve(sink focus.Sink) error {
	if s.sub == nil {
		return focus.Native(name, "serve", errors.New("source is not open"))
	}

	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sink = nil
		s.mu.Unlock()
	}()

	s.submitFrontmost(sink)

	for !focus.Stopped(sink) {
		s.ws.RunSlice(s.opts.Slice)
	}
	return nil
}

func (s *Source) submitFrontmost(sink focus.Sink) {
	title, ok := s.ws.FrontmostTitle()
	if !ok {
		s.log.Trace().Msg("Frontmost application has no titled window")
		return
	}
	sink.Submit(title)
}

// Interrupt ends the current run loop slice early. Before Open it does
// nothing.
func (s *Source) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Wake()
	}
	return nil
}

// Close unsubscribes and unpins the thread.
func (s *Source) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	sub.Unsubscribe()
	runtime.UnlockOSThread()

	s.log.Debug().Msg("Unsubscribed from workspace notifications")
	return nil
}
