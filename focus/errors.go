package focus

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInitialization = errors.New("failed to initialize hook")
	ErrHook           = errors.New("failed to set event hook")
	ErrStop           = errors.New("failed to stop hook")
	ErrPlatform       = errors.New("platform-specific error")

	ErrNotRunning     = fmt.Errorf("%w: hook is not running", ErrStop)
	ErrAlreadyRunning = errors.New("hook is already running")
)

// Error is a failure of a native operation, tagged with one of the error
// kinds above. Err holds the native cause and may be nil.
type Error struct {
	Kind     error
	Platform string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Platform + " error"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Platform != "" && e.Kind != nil {
		msg = e.Platform + ": " + msg
	}
	return msg
}

// Unwrap exposes both the kind and the native cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Initialization reports that a native connection or resource could not be acquired.
func Initialization(platform, op string, err error) error {
	return &Error{Kind: ErrInitialization, Platform: platform, Op: op, Err: err}
}

// Hook reports that native notification registration failed.
func Hook(platform, op string, err error) error {
	return &Error{Kind: ErrHook, Platform: platform, Op: op, Err: err}
}

// Stop reports that the cancellation signal could not be delivered.
func Stop(platform, op string, err error) error {
	return &Error{Kind: ErrStop, Platform: platform, Op: op, Err: err}
}

// Native wraps a native failure that has no more specific kind.
func Native(platform, op string, err error) error {
	return &Error{Platform: platform, Op: op, Err: err}
}

// PlatformError is returned when no backend exists for the current host.
type PlatformError struct {
	Reason string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform-specific error: %s", e.Reason)
}

// Is makes errors.Is(err, ErrPlatform) match.
func (e *PlatformError) Is(target error) bool {
	return target == ErrPlatform
}
