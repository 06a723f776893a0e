package netmon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker returns a scripted sequence of states, repeating the last one.
type fakeChecker struct {
	mu     sync.Mutex
	states []State
	errs   []error
	idx    int
}

func (f *fakeChecker) Check(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.idx
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	f.idx++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.states[i], err
}

func online() State {
	return State{Connected: true, Reachable: true, Type: "wifi", CheckedAt: time.Now()}
}

func captivePortal() State {
	return State{Connected: true, Reachable: false, Type: "wifi", CheckedAt: time.Now()}
}

func TestOnlineRequiresBothLinkAndReachability(t *testing.T) {
	assert.True(t, online().Online())
	assert.False(t, captivePortal().Online())
	assert.False(t, State{Connected: false, Reachable: true}.Online())
	assert.False(t, State{}.Online())
}

func TestIsAvailableFalseOnCheckerError(t *testing.T) {
	m := NewMonitor(&fakeChecker{
		states: []State{online()},
		errs:   []error{errors.New("probe exploded")},
	}, time.Minute)

	assert.False(t, m.IsAvailable(context.Background()))
}

func TestGetStateConservativeDefaultOnError(t *testing.T) {
	m := NewMonitor(&fakeChecker{
		states: []State{online()},
		errs:   []error{errors.New("probe exploded")},
	}, time.Minute)

	state := m.GetState(context.Background())
	assert.False(t, state.Connected)
	assert.False(t, state.Reachable)
	assert.Equal(t, "unknown", state.Type)
}

func TestEdgeTriggeredTransitions(t *testing.T) {
	checker := &fakeChecker{states: []State{
		captivePortal(), // seed: offline
		online(),        // -> online
		online(),        // still online: no duplicate callback
		captivePortal(), // -> offline
	}}
	m := NewMonitor(checker, time.Minute)

	var mu sync.Mutex
	var onlines, offlines int
	unsub := m.Subscribe(
		func() { mu.Lock(); onlines++; mu.Unlock() },
		func() { mu.Lock(); offlines++; mu.Unlock() },
	)
	defer unsub()

	for i := 0; i < 4; i++ {
		m.poll()
	}
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, onlines, "already-online state must not re-fire online")
	assert.Equal(t, 2, offlines, "initial offline seed plus the later drop")
}

func TestOnDemandCheckFiresTransition(t *testing.T) {
	checker := &fakeChecker{states: []State{
		captivePortal(), // seed: offline
		online(),        // observed by GetState between ticks
		online(),        // next poll: same edge, no duplicate callback
	}}
	m := NewMonitor(checker, time.Minute)

	var mu sync.Mutex
	var onlines int
	unsub := m.Subscribe(func() { mu.Lock(); onlines++; mu.Unlock() }, nil)
	defer unsub()

	m.poll()
	require.True(t, m.GetState(context.Background()).Online())

	mu.Lock()
	assert.Equal(t, 1, onlines, "the edge seen by an on-demand check must fire")
	mu.Unlock()

	m.poll()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, onlines, "the following poll sees no new edge")
}

func TestIsAvailableFiresTransition(t *testing.T) {
	checker := &fakeChecker{states: []State{captivePortal(), online()}}
	m := NewMonitor(checker, time.Minute)

	var mu sync.Mutex
	var onlines int
	unsub := m.Subscribe(func() { mu.Lock(); onlines++; mu.Unlock() }, nil)
	defer unsub()

	m.poll()
	require.True(t, m.IsAvailable(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, onlines)
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	checker := &fakeChecker{states: []State{captivePortal(), online()}}
	m := NewMonitor(checker, time.Minute)

	var fired int
	unsub := m.Subscribe(func() { fired++ }, func() { fired++ })

	m.poll()
	unsub()
	m.poll()

	assert.Equal(t, 1, fired)
}

func TestHTTPCheckerProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()

	c := NewHTTPChecker(ok.URL, time.Second)
	state, err := c.Check(context.Background())
	require.NoError(t, err)
	if state.Connected {
		assert.True(t, state.Reachable)
	}

	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer fail.Close()

	c = NewHTTPChecker(fail.URL, time.Second)
	state, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Reachable)
}
