package x11

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/platform/platformtest"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Request opcodes the fake server answers with a reply.
var replyOpcodes = map[byte]bool{
	16: true, // InternAtom
	20: true, // GetProperty
	43: true, // GetInputFocus
}

// fakeXServer completes the connection setup on conn and then answers every
// request that expects a reply with an empty one, until conn is closed.
func fakeXServer(t *testing.T, conn net.Conn, root xproto.Window) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})

	go func() {
		defer close(done)

		head := make([]byte, 12)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		authLen := xgb.Pad(int(xgb.Get16(head[6:]))) + xgb.Pad(int(xgb.Get16(head[8:])))
		if _, err := io.ReadFull(conn, make([]byte, authLen)); err != nil {
			return
		}

		setup := make([]byte, 40)
		setup[0] = 1
		xgb.Put16(setup[2:], 11)
		xgb.Put32(setup[12:], 0x00400000)
		xgb.Put32(setup[16:], 0x001fffff)
		setup[28] = 1
		setup = append(setup, xproto.ScreenInfo{Root: root}.Bytes()...)
		xgb.Put16(setup[6:], uint16((len(setup)-8)/4))
		if _, err := conn.Write(setup); err != nil {
			return
		}

		var seq uint16
		for {
			req := make([]byte, 4)
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}
			body := int(xgb.Get16(req[2:]))*4 - 4
			if _, err := io.ReadFull(conn, make([]byte, body)); err != nil {
				return
			}
			seq++
			if !replyOpcodes[req[0]] {
				continue
			}

			reply := make([]byte, 32)
			reply[0] = 1
			xgb.Put16(reply[2:], seq)
			if req[0] == 16 {
				xgb.Put32(reply[8:], uint32(100+seq))
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()

	return done
}

func TestServerDisconnectEndsServe(t *testing.T) {
	t.Setenv("XAUTHORITY", filepath.Join(t.TempDir(), "Xauthority"))

	client, server := net.Pipe()
	serverDone := fakeXServer(t, server, 0x1e2)

	var conn *xgbConn
	log := zerolog.Nop()
	src := New(Options{
		Dial: func(string) (Conn, error) {
			xc, err := xgb.NewConnNet(client)
			if err != nil {
				return nil, err
			}
			conn = newXgbConn(xc)
			return conn, nil
		},
		Logger: &log,
	})
	require.NoError(t, src.Open())
	assert.Equal(t, xproto.Window(0x1e2), conn.Root())

	require.NoError(t, server.Close())
	<-serverDone

	sink := platformtest.NewSink()
	errCh := make(chan error, 1)
	go func() { errCh <- src.Serve(sink) }()

	select {
	case err := <-errCh:
		var ferr *focus.Error
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "x11", ferr.Platform)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the X server went away")
	}
	assert.Empty(t, sink.Titles())

	assert.NotPanics(t, func() {
		assert.NoError(t, src.Close())
		conn.Close()
	})
}
