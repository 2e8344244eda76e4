package cocoa

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/winshift/focus"
	"github.com/bryanchriswhite/winshift/internal/platform/platformtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	ws           *fakeWorkspace
	unsubscribed atomic.Bool
}

func (s *fakeSubscription) Wake() {
	s.ws.wakes.Add(1)
	select {
	case s.ws.wake <- struct{}{}:
	default:
	}
}

func (s *fakeSubscription) Unsubscribe() {
	s.unsubscribed.Store(true)
	s.ws.mu.Lock()
	s.ws.onChange = nil
	s.ws.mu.Unlock()
}

// fakeWorkspace delivers notifications only from inside RunSlice, like a
// run loop.
type fakeWorkspace struct {
	mu       sync.Mutex
	title    string
	hasTitle bool
	onChange func()

	subscribeErr error
	sub          *fakeSubscription

	notifications chan string
	wake          chan struct{}
	wakes         atomic.Int32
	slices        atomic.Int32
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{
		notifications: make(chan string, 16),
		wake:          make(chan struct{}, 1),
	}
}

func (w *fakeWorkspace) activate(title string) {
	w.notifications <- title
}

func (w *fakeWorkspace) Subscribe(onChange func()) (subscription, error) {
	if w.subscribeErr != nil {
		return nil, w.subscribeErr
	}
	w.mu.Lock()
	w.onChange = onChange
	w.mu.Unlock()
	w.sub = &fakeSubscription{ws: w}
	return w.sub, nil
}

func (w *fakeWorkspace) RunSlice(d time.Duration) {
	w.slices.Add(1)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case title := <-w.notifications:
		w.mu.Lock()
		w.title, w.hasTitle = title, title != "-"
		onChange := w.onChange
		w.mu.Unlock()
		if onChange != nil {
			onChange()
		}
	case <-w.wake:
	case <-timer.C:
	}
}

func (w *fakeWorkspace) FrontmostTitle() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title, w.hasTitle
}

func newTestSource(ws *fakeWorkspace, slice time.Duration) *Source {
	log := zerolog.Nop()
	return newSource(Options{Slice: slice, Logger: &log}, ws)
}

func start(t *testing.T, src *Source, sink focus.Sink) <-chan error {
	t.Helper()
	opened := make(chan error, 1)
	errCh := make(chan error, 1)
	go func() {
		if err := src.Open(); err != nil {
			opened <- err
			return
		}
		opened <- nil
		err := src.Serve(sink)
		assert.NoError(t, src.Close())
		errCh <- err
	}()
	require.NoError(t, <-opened)
	return errCh
}

func wait(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestServeSnapshotAndActivations(t *testing.T) {
	ws := newFakeWorkspace()
	ws.title, ws.hasTitle = "Finder", true

	src := newTestSource(ws, time.Hour)
	sink := platformtest.NewSink()
	errCh := start(t, src, sink)

	ws.activate("Safari - Apple")
	ws.activate("-") // no titled window: nothing delivered
	ws.activate("Terminal")
	require.Eventually(t, func() bool { return sink.Len() >= 3 }, 2*time.Second, 5*time.Millisecond)

	sink.Cancel()
	require.NoError(t, src.Interrupt())
	require.NoError(t, wait(t, errCh))

	assert.Equal(t, []string{"Finder", "Safari - Apple", "Terminal"}, sink.Titles())
	assert.True(t, ws.sub.unsubscribed.Load())
	assert.Equal(t, int32(1), ws.wakes.Load())
}

func TestServeChecksCancellationBetweenSlices(t *testing.T) {
	ws := newFakeWorkspace()
	src := newTestSource(ws, 5*time.Millisecond)
	sink := platformtest.NewSink()
	errCh := start(t, src, sink)

	require.Eventually(t, func() bool { return ws.slices.Load() > 1 }, 2*time.Second, time.Millisecond)

	// No wake: the slice timeout alone ends the loop.
	sink.Cancel()
	require.NoError(t, wait(t, errCh))
	assert.Empty(t, sink.Titles())
}

func TestOpenSubscribeFailure(t *testing.T) {
	ws := newFakeWorkspace()
	ws.subscribeErr = errors.New("no window server")

	err := newTestSource(ws, time.Hour).Open()
	assert.ErrorIs(t, err, focus.ErrHook)
}

func TestOpenWithoutAppKit(t *testing.T) {
	log := zerolog.Nop()
	src := newSource(Options{Logger: &log}, nil)
	assert.ErrorIs(t, src.Open(), focus.ErrPlatform)
}

func TestInterruptAndCloseBeforeOpen(t *testing.T) {
	src := newTestSource(newFakeWorkspace(), time.Hour)
	assert.NoError(t, src.Interrupt())
	assert.NoError(t, src.Close())
}

func TestNotificationAfterStopIsDropped(t *testing.T) {
	ws := newFakeWorkspace()
	src := newTestSource(ws, time.Hour)
	sink := platformtest.NewSink()
	src.sink = sink

	sink.Cancel()
	src.changed()
	assert.Empty(t, sink.Titles())
}
