package hook

import (
	"sync"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/rs/zerolog"
)

// session is the context of one Run. Backends reach the observer only through
// it, so nothing outlives the run that created it.
type session struct {
	observer focus.Observer
	log      zerolog.Logger

	// mu guards dedup and every observer call.
	mu    *sync.Mutex
	dedup focus.Dedup

	done     chan struct{}
	stopOnce sync.Once
}

func newSession(observer focus.Observer, mu *sync.Mutex, log zerolog.Logger) *session {
	return &session{
		observer: observer,
		log:      log,
		mu:       mu,
		done:     make(chan struct{}),
	}
}

// Submit delivers title unless it repeats the last delivered one.
func (s *session) Submit(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, _ := s.dedup.Last()
	if !s.dedup.Offer(title) {
		s.log.Trace().Str("title", title).Msg("Window title unchanged")
		return
	}

	s.log.Debug().Msgf("Window focus changed: '%s' -> '%s'", last, title)
	s.observer.OnFocusChange(title)
}

// Done is closed once the run has been cancelled.
func (s *session) Done() <-chan struct{} {
	return s.done
}

// cancel closes done. It reports false if the session was already cancelled.
func (s *session) cancel() bool {
	cancelled := false
	s.stopOnce.Do(func() {
		close(s.done)
		cancelled = true
	})
	return cancelled
}
