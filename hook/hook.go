// Package hook watches the host's window focus and reports each change of the
// focused window's title to a single observer.
//
// A Hook binds one observer for its whole life. Run blocks the calling
// goroutine while the platform backend services native notifications; Stop,
// usually called from another goroutine (a signal handler, say), asks the
// running loop to return.
//
//	h := hook.New(focus.ObserverFunc(func(title string) {
//		fmt.Println("focused:", title)
//	}))
//	go func() {
//		<-interrupted
//		h.Stop()
//	}()
//	if err := h.Run(); err != nil {
//		log.Fatal(err)
//	}
package hook

import (
	"context"
	"sync"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/rs/zerolog"
)

// Backend is the platform adapter a Hook drives. Open, Serve and Close are
// always called on the same goroutine, in that order; Interrupt may be called
// from any goroutine once the run's sink has been cancelled.
type Backend interface {
	// Name returns the backend name (e.g., "x11", "windows", "macos")
	Name() string

	// Open acquires the native connection and notification registration.
	// On error nothing acquired so far may remain held.
	Open() error

	// Serve blocks, submitting resolved titles to sink, until sink.Done()
	// is closed.
	Serve(sink focus.Sink) error

	// Interrupt wakes a Serve blocked in a native wait.
	Interrupt() error

	// Close releases everything acquired by Open.
	Close() error
}

// Option configures a Hook.
type Option func(*Hook)

// WithBackend replaces the platform backend selection.
func WithBackend(newBackend func() (Backend, error)) Option {
	return func(h *Hook) {
		h.newBackend = newBackend
	}
}

// PlatformOptions tunes the built-in platform backends.
type PlatformOptions struct {
	// X11Display selects the X display; empty uses $DISPLAY.
	X11Display string

	// WakeInterval bounds how long the win32 message pump and the cocoa
	// run loop stay blocked before rechecking for cancellation.
	WakeInterval time.Duration
}

// WithPlatformOptions keeps the platform backend selection but tunes it.
func WithPlatformOptions(opts PlatformOptions) Option {
	return func(h *Hook) {
		h.newBackend = func() (Backend, error) {
			return platformBackend(opts)
		}
	}
}

// WithLogger sets the logger used for lifecycle and delivery messages.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hook) {
		h.log = l
	}
}

// Hook delivers window focus changes to one observer.
type Hook struct {
	observer   focus.Observer
	newBackend func() (Backend, error)
	log        zerolog.Logger

	// deliverMu serializes observer calls across native callback threads.
	deliverMu sync.Mutex

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	backend Backend
	sess    *session
}

// New creates an idle hook bound to observer.
func New(observer focus.Observer, opts ...Option) *Hook {
	h := &Hook{
		observer:   observer,
		newBackend: func() (Backend, error) { return platformBackend(PlatformOptions{}) },
		log:        *logger.WithComponent("hook"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log.Debug().Msg("Created window focus hook")
	return h
}

// Run blocks until Stop is called, delivering focus changes to the observer.
// It returns nil after a clean stop, or an error if the platform backend could
// not be set up.
func (h *Hook) Run() error {
	return h.RunContext(context.Background())
}

// RunContext is Run with ctx cancellation acting as Stop.
func (h *Hook) RunContext(ctx context.Context) error {
	h.mu.Lock()
	if h.active != nil {
		h.mu.Unlock()
		return focus.ErrAlreadyRunning
	}

	backend, err := h.newBackend()
	if err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Msg("No window focus backend available")
		return err
	}

	run := &activeRun{
		backend: backend,
		sess:    newSession(h.observer, &h.deliverMu, h.log),
	}
	h.active = run
	h.mu.Unlock()

	log := h.log.With().Str("backend", backend.Name()).Logger()
	log.Debug().Msg("Running window focus hook")

	defer func() {
		h.mu.Lock()
		h.active = nil
		h.mu.Unlock()
	}()

	if err := backend.Open(); err != nil {
		log.Error().Err(err).Msg("Failed to set up window focus backend")
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release window focus backend")
		}
		log.Debug().Msg("Window focus hook stopped")
	}()

	stopOnCancel := context.AfterFunc(ctx, func() {
		if err := h.cancel(run); err != nil {
			log.Warn().Err(err).Msg("Failed to stop on context cancellation")
		}
	})
	defer stopOnCancel()

	return backend.Serve(run.sess)
}

// Stop signals a running Run to return. It does not wait for teardown.
// Without an active run it returns focus.ErrNotRunning.
func (h *Hook) Stop() error {
	h.log.Debug().Msg("Stopping window focus hook")

	h.mu.Lock()
	run := h.active
	h.mu.Unlock()

	if run == nil {
		return focus.ErrNotRunning
	}
	return h.cancel(run)
}

// Running reports whether a Run is active.
func (h *Hook) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active != nil
}

func (h *Hook) cancel(run *activeRun) error {
	if !run.sess.cancel() {
		return nil
	}
	if err := run.backend.Interrupt(); err != nil {
		h.log.Error().Err(err).Str("backend", run.backend.Name()).Msg("Failed to send interrupt signal")
		return err
	}
	h.log.Debug().Str("backend", run.backend.Name()).Msg("Stop signal sent")
	return nil
}
