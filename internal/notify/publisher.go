// Package notify republishes focus changes on the D-Bus session bus.
package notify

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/winshift/internal/logger"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// D-Bus names
const (
	BusName    = "io.github.winshift"
	ObjectPath = dbus.ObjectPath("/io/github/winshift/Focus")
	Interface  = "io.github.winshift.Focus"
	Signal     = Interface + ".Changed"
)

// busConn is the part of *dbus.Conn the publisher uses.
type busConn interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Close() error
}

// Publisher emits a Changed(title) signal for every focus change and answers
// Current() calls with the last title.
type Publisher struct {
	conn busConn
	log  zerolog.Logger

	mu      sync.RWMutex
	current string
}

// NewPublisher connects to the session bus and exports the focus object.
func NewPublisher() (*Publisher, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	p, err := newPublisher(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(conn busConn) (*Publisher, error) {
	p := &Publisher{
		conn: conn,
		log:  *logger.WithComponent("dbus"),
	}

	if err := conn.Export(focusObject{p}, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", ObjectPath, err)
	}

	// Signals work without the well-known name, so losing it is not fatal.
	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	switch {
	case err != nil:
		p.log.Warn().Err(err).Str("name", BusName).Msg("Failed to request bus name")
	case reply != dbus.RequestNameReplyPrimaryOwner:
		p.log.Warn().Str("name", BusName).Msg("Bus name already owned, publishing signals only")
	default:
		p.log.Info().Str("name", BusName).Msg("Publishing focus changes on D-Bus")
	}
	return p, nil
}

// OnFocusChange implements focus.Observer. Emission failures are logged only.
func (p *Publisher) OnFocusChange(title string) {
	p.mu.Lock()
	p.current = title
	p.mu.Unlock()

	if err := p.conn.Emit(ObjectPath, Signal, title); err != nil {
		p.log.Error().Err(err).Str("title", title).Msg("Failed to emit focus signal")
	}
}

// Close disconnects from the bus.
func (p *Publisher) Close() error {
	return p.conn.Close()
}

// focusObject holds the exported methods, keeping OnFocusChange and Close
// off the bus.
type focusObject struct {
	p *Publisher
}

// Current returns the last published title.
func (o focusObject) Current() (string, *dbus.Error) {
	o.p.mu.RLock()
	defer o.p.mu.RUnlock()
	return o.p.current, nil
}
