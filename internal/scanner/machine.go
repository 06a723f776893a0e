package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cellarsync/internal/model"
)

// ErrBusy is returned when the machine's mode cannot be changed because a
// resolution is in flight or presented.
var ErrBusy = errors.New("scanner busy, reset before changing mode")

// Resolver resolves a barcode against the catalog. *lookup.Service satisfies it.
type Resolver interface {
	FindItemByBarcode(ctx context.Context, code string) ([]model.MatchedItem, error)
}

// CameraController pauses and resumes the detection source while a scan is
// being resolved or presented.
type CameraController interface {
	Pause()
	Resume()
}

// Snapshot is the externally visible machine state.
type Snapshot struct {
	State     State               `json:"state"`
	Mode      model.Kind          `json:"mode"`
	Code      string              `json:"code,omitempty"`
	Symbology string              `json:"symbology,omitempty"`
	Matches   []model.MatchedItem `json:"matches,omitempty"`
}

// MachineConfig configures a scan-resolution machine.
type MachineConfig struct {
	// Mode selects which kind of inventory a match must belong to.
	Mode model.Kind
	// DebounceWindow suppresses repeats of the same code.
	DebounceWindow time.Duration
	// ResolveTimeout bounds how long a lookup may keep the machine in
	// Resolving before it gives up.
	ResolveTimeout time.Duration
	// Camera, when set, is paused on detection and resumed on reset.
	Camera CameraController
	// Feedback, when set, fires once per accepted detection.
	Feedback func()
}

// Machine drives scan resolution: it serializes events through the pure
// transition function under a mutex and interprets the returned effects
// (lookup goroutine, timeout timer, camera pause/resume) outside the lock.
type Machine struct {
	mu       sync.Mutex
	snap     snapshot
	resolver Resolver
	camera   CameraController
	feedback func()

	debounce       time.Duration
	resolveTimeout time.Duration

	timers map[uint64]*time.Timer
	closed bool
}

// NewMachine creates a machine in the Idle state.
func NewMachine(resolver Resolver, cfg MachineConfig) *Machine {
	mode := cfg.Mode
	if !mode.Valid() {
		mode = model.KindCigar
	}
	debounce := cfg.DebounceWindow
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	timeout := cfg.ResolveTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Machine{
		snap:           snapshot{State: StateIdle, Mode: mode},
		resolver:       resolver,
		camera:         cfg.Camera,
		feedback:       cfg.Feedback,
		debounce:       debounce,
		resolveTimeout: timeout,
		timers:         make(map[uint64]*time.Timer),
	}
}

// Activate moves an idle machine into Detecting.
func (m *Machine) Activate() {
	m.dispatch(evActivate{})
}

// HandleDetection feeds one barcode detection into the machine. Detections
// arriving outside Idle/Detecting, or within the debounce window of the
// previous code, are dropped.
func (m *Machine) HandleDetection(det model.ScanDetection) {
	if det.At.IsZero() {
		det.At = time.Now()
	}
	m.dispatch(evDetected{det: det})
}

// Reset returns the machine to Idle from any state, invalidating whatever
// lookup or timer is still in flight.
func (m *Machine) Reset() {
	m.dispatch(evReset{})
}

// SetMode switches between cigar and bottle scanning. The mode cannot change
// while a resolution is in flight or presented.
func (m *Machine) SetMode(kind model.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.State != StateIdle && m.snap.State != StateDetecting {
		return ErrBusy
	}
	m.snap.Mode = kind
	return nil
}

// Snapshot returns the current externally visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]model.MatchedItem, len(m.snap.Matches))
	copy(matches, m.snap.Matches)
	return Snapshot{
		State:     m.snap.State,
		Mode:      m.snap.Mode,
		Code:      m.snap.Code,
		Symbology: m.snap.Symbology,
		Matches:   matches,
	}
}

// Close stops all outstanding timers. The machine accepts no events afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	for gen, t := range m.timers {
		t.Stop()
		delete(m.timers, gen)
	}
	m.mu.Unlock()
}

// Attach pumps detections from d into the machine until ctx is cancelled or
// the detector's channel closes.
func (m *Machine) Attach(ctx context.Context, d Detector) {
	for {
		select {
		case <-ctx.Done():
			return
		case det, ok := <-d.Detections():
			if !ok {
				return
			}
			m.HandleDetection(det)
		}
	}
}

func (m *Machine) dispatch(ev event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	next, effects := transition(m.snap, ev, m.debounce)
	prev := m.snap.State
	m.snap = next
	m.mu.Unlock()

	if next.State != prev {
		log.Printf("[Scanner] %s -> %s (code=%s)", prev, next.State, next.Code)
	}
	for _, eff := range effects {
		m.perform(eff)
	}
}

func (m *Machine) perform(eff effect) {
	switch eff := eff.(type) {
	case effPauseCamera:
		if m.camera != nil {
			m.camera.Pause()
		}
	case effResumeCamera:
		if m.camera != nil {
			m.camera.Resume()
		}
	case effPlayFeedback:
		if m.feedback != nil {
			m.feedback()
		}
	case effAutoResolve:
		m.dispatch(evBeginResolve{gen: eff.gen})
	case effStartLookup:
		go m.runLookup(eff.gen, eff.code)
	case effStartTimer:
		m.startTimer(eff.gen)
	case effCancelTimer:
		m.cancelTimer(eff.gen)
	}
}

func (m *Machine) runLookup(gen uint64, code string) {
	// Give the lookup slightly longer than the timer so the timeout path,
	// not a context error, decides the outcome.
	ctx, cancel := context.WithTimeout(context.Background(), m.resolveTimeout+time.Second)
	defer cancel()

	items, err := m.resolver.FindItemByBarcode(ctx, code)
	if err != nil {
		// A failed lookup is not "no match": Unknown would steer the user
		// into creating a duplicate catalog entry on a network blip.
		log.Printf("[Scanner] Lookup failed for %s: %v", code, err)
		m.dispatch(evLookupFailed{gen: gen})
		return
	}
	m.dispatch(evLookupResolved{gen: gen, items: items})
}

func (m *Machine) startTimer(gen uint64) {
	t := time.AfterFunc(m.resolveTimeout, func() {
		m.dispatch(evTimeout{gen: gen})
		m.mu.Lock()
		delete(m.timers, gen)
		m.mu.Unlock()
	})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		t.Stop()
		return
	}
	m.timers[gen] = t
	m.mu.Unlock()
}

func (m *Machine) cancelTimer(gen uint64) {
	m.mu.Lock()
	t, ok := m.timers[gen]
	if ok {
		delete(m.timers, gen)
	}
	m.mu.Unlock()
	if ok {
		t.Stop()
	}
}
