// Package x11 watches the focused window on an X11 display through EWMH root
// window properties.
package x11

import (
	"bytes"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	name = "x11"

	rootEventMask   = xproto.EventMaskPropertyChange | xproto.EventMaskSubstructureNotify
	clientEventMask = xproto.EventMaskPropertyChange
)

// Options configures a Source.
type Options struct {
	// Display to connect to; empty uses $DISPLAY.
	Display string

	// Dial opens the connection. Defaults to Dial.
	Dial func(display string) (Conn, error)

	Logger *zerolog.Logger
}

type atoms struct {
	activeWindow xproto.Atom
	netWMName    xproto.Atom
	wmName       xproto.Atom
	utf8String   xproto.Atom
}

type event struct {
	ev  xgb.Event
	err xgb.Error
}

// Source is the X11 focus event source.
type Source struct {
	opts Options
	log  zerolog.Logger

	conn   Conn
	root   xproto.Window
	atoms  atoms
	active xproto.Window

	events     chan event
	quit       chan struct{}
	readerDone chan struct{}
}

// New creates a Source. Nothing is opened until Open.
func New(opts Options) *Source {
	if opts.Dial == nil {
		opts.Dial = Dial
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithComponent(name)
	}
	return &Source{opts: opts, log: *log}
}

// Name returns the backend name
func (s *Source) Name() string {
	return name
}

// Open connects to the display and subscribes to root window changes.
func (s *Source) Open() error {
	conn, err := s.opts.Dial(s.opts.Display)
	if err != nil {
		return focus.Initialization(name, "open display", err)
	}

	var a atoms
	for _, atom := range []struct {
		name string
		dst  *xproto.Atom
	}{
		{"_NET_ACTIVE_WINDOW", &a.activeWindow},
		{"_NET_WM_NAME", &a.netWMName},
		{"WM_NAME", &a.wmName},
		{"UTF8_STRING", &a.utf8String},
	} {
		*atom.dst, err = conn.Atom(atom.name)
		if err != nil {
			conn.Close()
			return focus.Initialization(name, "intern atoms", err)
		}
	}

	root := conn.Root()
	if err := conn.SelectInput(root, rootEventMask); err != nil {
		conn.Close()
		return focus.Hook(name, "select root window events", err)
	}

	s.conn = conn
	s.root = root
	s.atoms = a
	s.active = 0
	s.events = make(chan event, 64)
	s.quit = make(chan struct{})
	s.readerDone = make(chan struct{})

	go s.read()

	s.log.Debug().Uint32("root", uint32(root)).Msg("Connected to X server")
	return nil
}

// read pumps the connection's event queue until it is closed.
func (s *Source) read() {
	defer close(s.readerDone)
	defer close(s.events)

	for {
		ev, xerr := s.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		select {
		case s.events <- event{ev: ev, err: xerr}:
		case <-s.quit:
			return
		}
	}
}

// Serve submits the focused title on start and after every relevant event
// until sink is done.
func (s *Source) Serve(sink focus.Sink) error {
	s.refreshActive()
	s.submitActive(sink)

	for {
		select {
		case <-sink.Done():
			return nil
		case e, ok := <-s.events:
			if !ok {
				return focus.Native(name, "read events", errors.New("X connection closed"))
			}
			if focus.Stopped(sink) {
				return nil
			}
			if e.err != nil {
				// Usually BadWindow for a window that went away between
				// the notification and our request.
				s.log.Debug().Str("error", e.err.Error()).Msg("Ignoring X protocol error")
				continue
			}
			s.handle(sink, e.ev)
		}
	}
}

func (s *Source) handle(sink focus.Sink, ev xgb.Event) {
	switch ev := ev.(type) {
	case xproto.PropertyNotifyEvent:
		switch {
		case ev.Window == s.root && ev.Atom == s.atoms.activeWindow:
			s.refreshActive()
			s.submitActive(sink)
		case ev.Window == s.active && (ev.Atom == s.atoms.netWMName || ev.Atom == s.atoms.wmName):
			s.submitActive(sink)
		}
	case xproto.CreateNotifyEvent, xproto.DestroyNotifyEvent:
		s.refreshActive()
		s.submitActive(sink)
	}
}

// refreshActive re-reads _NET_ACTIVE_WINDOW and moves the title
// subscription to the new active window.
func (s *Source) refreshActive() {
	win := s.activeWindow()
	if win == s.active {
		return
	}

	prev := s.active
	s.active = win
	s.log.Debug().
		Uint32("previous", uint32(prev)).
		Uint32("window", uint32(win)).
		Msg("Active window changed")

	if prev != 0 && prev != s.root {
		// The previous window may already be destroyed.
		_ = s.conn.SelectInput(prev, xproto.EventMaskNoEvent)
	}
	if win != 0 && win != s.root {
		if err := s.conn.SelectInput(win, clientEventMask); err != nil {
			s.log.Debug().Err(err).Uint32("window", uint32(win)).Msg("Failed to watch active window title")
		}
	}
}

func (s *Source) activeWindow() xproto.Window {
	value, exists, err := s.conn.Property(s.root, s.atoms.activeWindow, xproto.AtomWindow)
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to read _NET_ACTIVE_WINDOW")
		return s.active
	}
	if !exists || len(value) < 4 {
		return 0
	}
	return xproto.Window(xgb.Get32(value))
}

func (s *Source) submitActive(sink focus.Sink) {
	if s.active == 0 {
		return
	}
	title, ok := s.title(s.active)
	if !ok {
		s.log.Trace().Uint32("window", uint32(s.active)).Msg("Active window has no title")
		return
	}
	sink.Submit(title)
}

// title resolves a window's title from _NET_WM_NAME, then WM_NAME.
func (s *Source) title(win xproto.Window) (string, bool) {
	value, exists, err := s.conn.Property(win, s.atoms.netWMName, s.atoms.utf8String)
	if err != nil {
		s.log.Debug().Err(err).Uint32("window", uint32(win)).Msg("Failed to read _NET_WM_NAME")
		return "", false
	}
	if exists {
		return string(bytes.TrimRight(value, "\x00")), true
	}

	value, exists, err = s.conn.Property(win, s.atoms.wmName, xproto.GetPropertyTypeAny)
	if err != nil {
		s.log.Debug().Err(err).Uint32("window", uint32(win)).Msg("Failed to read WM_NAME")
		return "", false
	}
	if exists {
		return string(bytes.TrimRight(value, "\x00")), true
	}
	return "", false
}

// Interrupt is a no-op: Serve selects on the sink's done channel.
func (s *Source) Interrupt() error {
	return nil
}

// Close drops the connection and waits for the event reader to exit.
func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	close(s.quit)
	s.conn.Close()
	<-s.readerDone
	s.conn = nil

	s.log.Debug().Msg("Disconnected from X server")
	return nil
}
