// Package tracker is the command-line observer: it logs every focus change and
// forwards it to downstream observers.
package tracker

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/rs/zerolog"
)

// Tracker records the current title and fans changes out in order.
type Tracker struct {
	log        zerolog.Logger
	downstream []focus.Observer
	now        func() time.Time

	mu         sync.RWMutex
	current    string
	changed    bool
	lastChange time.Time
}

// New creates a Tracker forwarding to downstream, in the given order.
func New(downstream ...focus.Observer) *Tracker {
	return &Tracker{
		log:        *logger.WithComponent("tracker"),
		downstream: downstream,
		now:        time.Now,
	}
}

// OnFocusChange implements focus.Observer.
func (t *Tracker) OnFocusChange(title string) {
	now := t.now()

	t.mu.Lock()
	prev := t.current
	t.current = title
	t.changed = true
	t.lastChange = now
	t.mu.Unlock()

	if title == "" {
		t.log.Warn().Str("previous", prev).Msg("Focused window has an empty title")
	} else {
		t.log.Info().Msgf("Focus: '%s' -> '%s'", prev, title)
	}

	for _, o := range t.downstream {
		o.OnFocusChange(title)
	}
}

// Current returns the last reported title, and false before the first change.
func (t *Tracker) Current() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.changed
}

// LastChange returns when the last change was reported.
func (t *Tracker) LastChange() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastChange
}
