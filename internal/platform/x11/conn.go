package x11

import (
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// Conn is the slice of an X connection the event source needs.
type Conn interface {
	// Root returns the default screen's root window.
	Root() xproto.Window

	// Atom interns name.
	Atom(name string) (xproto.Atom, error)

	// SelectInput replaces the event mask this client holds on win.
	SelectInput(win xproto.Window, mask uint32) error

	// Property reads a whole property of type typ (or any type for
	// xproto.GetPropertyTypeAny). exists is false when the window has no
	// such property of that type.
	Property(win xproto.Window, atom, typ xproto.Atom) (value []byte, exists bool, err error)

	// WaitForEvent blocks for the next event or protocol error. Both nil
	// means the connection is closed.
	WaitForEvent() (xgb.Event, xgb.Error)

	Close()
}

type xgbConn struct {
	conn      *xgb.Conn
	root      xproto.Window
	closeOnce sync.Once
}

// Dial connects to display, or to $DISPLAY when display is empty.
func Dial(display string) (Conn, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to X server %q", display)
	}

	return newXgbConn(conn), nil
}

func newXgbConn(conn *xgb.Conn) *xgbConn {
	setup := xproto.Setup(conn)
	return &xgbConn{
		conn: conn,
		root: setup.DefaultScreen(conn).Root,
	}
}

func (c *xgbConn) Root() xproto.Window {
	return c.root
}

func (c *xgbConn) Atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "intern atom %s", name)
	}
	return reply.Atom, nil
}

func (c *xgbConn) SelectInput(win xproto.Window, mask uint32) error {
	err := xproto.ChangeWindowAttributesChecked(
		c.conn,
		win,
		xproto.CwEventMask,
		[]uint32{mask},
	).Check()
	if err != nil {
		return errors.Wrapf(err, "select input on window 0x%x", uint32(win))
	}
	return nil
}

func (c *xgbConn) Property(win xproto.Window, atom, typ xproto.Atom) ([]byte, bool, error) {
	reply, err := xproto.GetProperty(
		c.conn,
		false,
		win,
		atom,
		typ,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, false, errors.Wrapf(err, "get property %d of window 0x%x", uint32(atom), uint32(win))
	}

	// A missing property comes back with type None; a type mismatch comes
	// back with the real type and no data.
	if reply.Type == xproto.AtomNone {
		return nil, false, nil
	}
	if typ != xproto.GetPropertyTypeAny && reply.Type != typ {
		return nil, false, nil
	}
	return reply.Value, true, nil
}

func (c *xgbConn) WaitForEvent() (xgb.Event, xgb.Error) {
	return c.conn.WaitForEvent()
}

// Close may be called more than once, including after the server has gone
// away.
func (c *xgbConn) Close() {
	c.closeOnce.Do(c.conn.Close)
}
