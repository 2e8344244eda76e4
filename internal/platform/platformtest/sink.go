// Package platformtest provides a recording focus.Sink for event source tests.
package platformtest

import (
	"sync"

	"github.com/bryanchriswhite/winshift/focus"
)

// Sink records every submitted title, without deduplication.
type Sink struct {
	mu     sync.Mutex
	titles []string
	done   chan struct{}
	once   sync.Once

	// OnSubmit, when set, runs after a title is recorded.
	OnSubmit func(title string)
}

var _ focus.Sink = (*Sink)(nil)

// NewSink returns an open Sink.
func NewSink() *Sink {
	return &Sink{done: make(chan struct{})}
}

func (s *Sink) Submit(title string) {
	s.mu.Lock()
	s.titles = append(s.titles, title)
	onSubmit := s.OnSubmit
	s.mu.Unlock()

	if onSubmit != nil {
		onSubmit(title)
	}
}

func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Cancel closes the done channel. Safe to call more than once.
func (s *Sink) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Titles returns a copy of everything submitted so far.
func (s *Sink) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

// Len returns the number of submissions so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titles)
}
