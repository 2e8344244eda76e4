// Package focus defines the contract between window-focus event sources and
// the code that consumes focus changes.
//
// An Observer receives the title of the newly focused window each time the
// focus (or the focused window's title) changes. Event sources never call an
// Observer directly; they hand resolved titles to a Sink, which filters
// consecutive duplicates and serializes the observer calls.
package focus

// Observer is notified with the focused window's title whenever focus changes.
// Calls for one hook instance never overlap.
type Observer interface {
	OnFocusChange(title string)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(title string)

// OnFocusChange calls f(title).
func (f ObserverFunc) OnFocusChange(title string) {
	f(title)
}

// Sink is the per-run handoff between an event source and the observer.
type Sink interface {
	// Submit offers a resolved window title. Duplicates of the last
	// delivered title are dropped.
	Submit(title string)

	// Done is closed exactly once, when the run has been asked to stop.
	Done() <-chan struct{}
}

// Stopped reports whether sink has been cancelled, without blocking.
func Stopped(sink Sink) bool {
	select {
	case <-sink.Done():
		return true
	default:
		return false
	}
}
