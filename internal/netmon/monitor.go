package netmon

import (
	"context"
	"log"
	"sync"
	"time"
)

// State is a point-in-time connectivity snapshot.
type State struct {
	Connected bool      `json:"connected"`
	Reachable bool      `json:"reachable"`
	Type      string    `json:"type"`
	CheckedAt time.Time `json:"checked_at"`
}

// Online reports whether the network is usable: a link alone is not enough,
// a captive portal has a link but no reachability.
func (s State) Online() bool {
	return s.Connected && s.Reachable
}

// offlineState is the conservative snapshot reported when a check fails.
func offlineState() State {
	return State{Connected: false, Reachable: false, Type: "unknown", CheckedAt: time.Now()}
}

// Checker is the connectivity capability consumed by the monitor.
type Checker interface {
	Check(ctx context.Context) (State, error)
}

type subscriber struct {
	onOnline  func()
	onOffline func()
}

// Monitor polls a Checker and notifies subscribers on online/offline
// transitions. Callbacks are edge-triggered: an already-online monitor never
// fires a second online event without an offline one in between. On-demand
// checks (IsAvailable, GetState) count as observations for edge detection.
type Monitor struct {
	checker  Checker
	interval time.Duration

	mu         sync.Mutex
	last       State
	haveState  bool
	subs       map[int]subscriber
	nextSubID  int
	started    bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor polling checker every interval.
func NewMonitor(checker Checker, interval time.Duration) *Monitor {
	return &Monitor{
		checker:  checker,
		interval: interval,
		subs:     make(map[int]subscriber),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the poll loop. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	log.Printf("[NetworkMonitor] Started - poll interval: %v", m.interval)

	// Seed the state before the first tick so the initial transition fires.
	m.poll()

	go m.run()
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.poll()
		case <-m.stopCh:
			log.Printf("[NetworkMonitor] Stopped")
			return
		}
	}
}

// poll performs one check and feeds the result into edge detection.
func (m *Monitor) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	state, err := m.checker.Check(ctx)
	if err != nil {
		log.Printf("[NetworkMonitor] Check failed: %v", err)
		state = offlineState()
	}
	m.observe(state)
}

// observe records a fresh check result and fires transition callbacks if the
// online bit flipped since the previous observation. On-demand checks feed
// the same edge detection as the poll loop; otherwise a check between two
// ticks would update the state and silently eat the transition the next tick
// should have fired.
func (m *Monitor) observe(state State) {
	m.mu.Lock()
	prevOnline := m.haveState && m.last.Online()
	first := !m.haveState
	m.last = state
	m.haveState = true

	var fire []subscriber
	nowOnline := state.Online()
	if first || prevOnline != nowOnline {
		for _, s := range m.subs {
			fire = append(fire, s)
		}
	}
	m.mu.Unlock()

	if len(fire) == 0 {
		return
	}
	if nowOnline {
		log.Printf("[NetworkMonitor] Network came online (%s)", state.Type)
		for _, s := range fire {
			if s.onOnline != nil {
				s.onOnline()
			}
		}
	} else {
		log.Printf("[NetworkMonitor] Network went offline")
		for _, s := range fire {
			if s.onOffline != nil {
				s.onOffline()
			}
		}
	}
}

// IsAvailable performs a fresh check and reports whether the network is
// usable right now. Any check error counts as unavailable.
func (m *Monitor) IsAvailable(ctx context.Context) bool {
	state, err := m.checker.Check(ctx)
	if err != nil {
		log.Printf("[NetworkMonitor] Availability check failed: %v", err)
		return false
	}
	m.observe(state)
	return state.Online()
}

// GetState returns a best-effort snapshot. On checker error it returns the
// conservative offline/unknown default rather than an error.
func (m *Monitor) GetState(ctx context.Context) State {
	state, err := m.checker.Check(ctx)
	if err != nil {
		log.Printf("[NetworkMonitor] State check failed: %v", err)
		return offlineState()
	}
	m.observe(state)
	return state
}

// Subscribe registers transition callbacks and returns an unsubscribe func.
// Either callback may be nil.
func (m *Monitor) Subscribe(onOnline, onOffline func()) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = subscriber{onOnline: onOnline, onOffline: onOffline}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Stop halts the poll loop. Subscribers are not fired after Stop returns.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}
