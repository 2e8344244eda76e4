package x11

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/platform/platformtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootWin     xproto.Window = 1
	terminalWin xproto.Window = 10
	editorWin   xproto.Window = 20
)

type fakeProp struct {
	typ   xproto.Atom
	value []byte
}

type fakeXError struct{ msg string }

func (e fakeXError) SequenceId() uint16 { return 0 }
func (e fakeXError) BadId() uint32      { return 0 }
func (e fakeXError) Error() string      { return e.msg }

type fakeConn struct {
	mu       sync.Mutex
	atoms    map[string]xproto.Atom
	props    map[xproto.Window]map[xproto.Atom]fakeProp
	selected map[xproto.Window]uint32

	atomErr   error
	selectErr error

	events chan event
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	c := &fakeConn{
		atoms:    map[string]xproto.Atom{},
		props:    map[xproto.Window]map[xproto.Atom]fakeProp{},
		selected: map[xproto.Window]uint32{},
		events:   make(chan event, 16),
		closed:   make(chan struct{}),
	}
	for i, n := range []string{"_NET_ACTIVE_WINDOW", "_NET_WM_NAME", "WM_NAME", "UTF8_STRING"} {
		c.atoms[n] = xproto.Atom(100 + i)
	}
	return c
}

func (c *fakeConn) atom(n string) xproto.Atom { return c.atoms[n] }

func (c *fakeConn) setActive(win xproto.Window) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(win))
	c.setProp(rootWin, c.atom("_NET_ACTIVE_WINDOW"), xproto.AtomWindow, buf)
}

func (c *fakeConn) setNetName(win xproto.Window, title string) {
	c.setProp(win, c.atom("_NET_WM_NAME"), c.atom("UTF8_STRING"), []byte(title))
}

func (c *fakeConn) setWMName(win xproto.Window, title string) {
	c.setProp(win, c.atom("WM_NAME"), xproto.AtomString, []byte(title))
}

func (c *fakeConn) setProp(win xproto.Window, atom, typ xproto.Atom, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.props[win] == nil {
		c.props[win] = map[xproto.Atom]fakeProp{}
	}
	c.props[win][atom] = fakeProp{typ: typ, value: value}
}

func (c *fakeConn) mask(win xproto.Window) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected[win]
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Root() xproto.Window { return rootWin }

func (c *fakeConn) Atom(n string) (xproto.Atom, error) {
	if c.atomErr != nil {
		return 0, c.atomErr
	}
	return c.atoms[n], nil
}

func (c *fakeConn) SelectInput(win xproto.Window, mask uint32) error {
	if win == rootWin && c.selectErr != nil {
		return c.selectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected[win] = mask
	return nil
}

func (c *fakeConn) Property(win xproto.Window, atom, typ xproto.Atom) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.props[win][atom]
	if !ok {
		return nil, false, nil
	}
	if typ != xproto.GetPropertyTypeAny && p.typ != typ {
		return nil, false, nil
	}
	return p.value, true, nil
}

func (c *fakeConn) WaitForEvent() (xgb.Event, xgb.Error) {
	select {
	case e := <-c.events:
		return e.ev, e.err
	case <-c.closed:
		return nil, nil
	}
}

func (c *fakeConn) Close() {
	c.once.Do(func() { close(c.closed) })
}

func newTestSource(conn *fakeConn) *Source {
	log := zerolog.Nop()
	return New(Options{
		Dial:   func(string) (Conn, error) { return conn, nil },
		Logger: &log,
	})
}

// serve runs Serve in the background and returns a func that stops it and
// returns its error.
func serve(t *testing.T, src *Source, sink *platformtest.Sink) func() error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- src.Serve(sink) }()
	return func() error {
		sink.Cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
			return nil
		}
	}
}

func waitTitles(t *testing.T, sink *platformtest.Sink, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool { return sink.Len() >= len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, sink.Titles())
}

func TestOpenErrors(t *testing.T) {
	t.Run("dial failure", func(t *testing.T) {
		log := zerolog.Nop()
		src := New(Options{
			Dial:   func(string) (Conn, error) { return nil, errors.New("no display") },
			Logger: &log,
		})
		err := src.Open()
		assert.ErrorIs(t, err, focus.ErrInitialization)
		assert.NoError(t, src.Close())
	})

	t.Run("atom failure closes connection", func(t *testing.T) {
		conn := newFakeConn()
		conn.atomErr = errors.New("bad alloc")
		err := newTestSource(conn).Open()
		assert.ErrorIs(t, err, focus.ErrInitialization)
		assert.True(t, conn.isClosed())
	})

	t.Run("root select failure closes connection", func(t *testing.T) {
		conn := newFakeConn()
		conn.selectErr = errors.New("bad access")
		err := newTestSource(conn).Open()
		assert.ErrorIs(t, err, focus.ErrHook)
		assert.True(t, conn.isClosed())
	})
}

func TestOpenSelectsRootEvents(t *testing.T) {
	conn := newFakeConn()
	src := newTestSource(conn)
	require.NoError(t, src.Open())
	defer src.Close()

	assert.Equal(t, uint32(rootEventMask), conn.mask(rootWin))
	assert.Equal(t, "x11", src.Name())
}

func TestServeSnapshotAndChanges(t *testing.T) {
	conn := newFakeConn()
	conn.setActive(terminalWin)
	conn.setNetName(terminalWin, "Terminal\x00")
	conn.setNetName(editorWin, "Editor")

	src := newTestSource(conn)
	require.NoError(t, src.Open())
	sink := platformtest.NewSink()
	stop := serve(t, src, sink)

	waitTitles(t, sink, "Terminal")
	assert.Equal(t, uint32(clientEventMask), conn.mask(terminalWin))

	conn.setActive(editorWin)
	conn.events <- event{ev: xproto.PropertyNotifyEvent{Window: rootWin, Atom: conn.atom("_NET_ACTIVE_WINDOW")}}
	waitTitles(t, sink, "Terminal", "Editor")
	assert.Equal(t, uint32(clientEventMask), conn.mask(editorWin))
	assert.Equal(t, uint32(xproto.EventMaskNoEvent), conn.mask(terminalWin))

	// Title change on a window that is no longer active is ignored.
	conn.setNetName(terminalWin, "Terminal - vim")
	conn.events <- event{ev: xproto.PropertyNotifyEvent{Window: terminalWin, Atom: conn.atom("_NET_WM_NAME")}}

	conn.setNetName(editorWin, "Editor - main.go")
	conn.events <- event{ev: xproto.PropertyNotifyEvent{Window: editorWin, Atom: conn.atom("_NET_WM_NAME")}}
	waitTitles(t, sink, "Terminal", "Editor", "Editor - main.go")

	require.NoError(t, stop())
	require.NoError(t, src.Close())
	assert.True(t, conn.isClosed())
}

func TestServeFallsBackToWMName(t *testing.T) {
	conn := newFakeConn()
	conn.setActive(terminalWin)
	conn.setWMName(terminalWin, "xterm")

	src := newTestSource(conn)
	require.NoError(t, src.Open())
	defer src.Close()
	sink := platformtest.NewSink()
	stop := serve(t, src, sink)

	waitTitles(t, sink, "xterm")
	require.NoError(t, stop())
}

func TestServeUntitledWindowIsNoOp(t *testing.T) {
	conn := newFakeConn()
	conn.setActive(terminalWin)
	conn.setNetName(terminalWin, "Terminal")

	src := newTestSource(conn)
	require.NoError(t, src.Open())
	defer src.Close()
	sink := platformtest.NewSink()
	stop := serve(t, src, sink)
	waitTitles(t, sink, "Terminal")

	// No title at all: nothing is submitted.
	conn.setActive(editorWin)
	conn.events <- event{ev: xproto.PropertyNotifyEvent{Window: rootWin, Atom: conn.atom("_NET_ACTIVE_WINDOW")}}

	// Protocol errors are skipped.
	conn.events <- event{err: fakeXError{msg: "BadWindow"}}

	// Window creation forces re-resolution of the active window.
	conn.setNetName(editorWin, "Editor")
	conn.events <- event{ev: xproto.CreateNotifyEvent{Parent: rootWin, Window: 30}}
	waitTitles(t, sink, "Terminal", "Editor")

	require.NoError(t, stop())
}

func TestServeDestroyNotifyReResolves(t *testing.T) {
	conn := newFakeConn()
	conn.setActive(terminalWin)
	conn.setNetName(terminalWin, "Terminal")
	conn.setNetName(editorWin, "Editor")

	src := newTestSource(conn)
	require.NoError(t, src.Open())
	defer src.Close()
	sink := platformtest.NewSink()
	stop := serve(t, src, sink)
	waitTitles(t, sink, "Terminal")

	conn.setActive(editorWin)
	conn.events <- event{ev: xproto.DestroyNotifyEvent{Event: rootWin, Window: terminalWin}}
	waitTitles(t, sink, "Terminal", "Editor")

	require.NoError(t, stop())
}

func TestServeClosedConnection(t *testing.T) {
	conn := newFakeConn()
	src := newTestSource(conn)
	require.NoError(t, src.Open())

	sink := platformtest.NewSink()
	errCh := make(chan error, 1)
	go func() { errCh <- src.Serve(sink) }()

	conn.Close()
	select {
	case err := <-errCh:
		var ferr *focus.Error
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "x11", ferr.Platform)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after connection closed")
	}
	assert.Empty(t, sink.Titles())
	require.NoError(t, src.Close())
}

func TestInterruptIsNoOp(t *testing.T) {
	src := newTestSource(newFakeConn())
	assert.NoError(t, src.Interrupt())
}
