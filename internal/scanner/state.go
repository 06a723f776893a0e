package scanner

import (
	"encoding/json"
	"time"

	"cellarsync/internal/model"
)

// State is the scan-resolution state.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateFound
	StateResolving
	StateKnown
	StateUnknown
	StateConflict
	StateTimeout
	// StateError is the outcome of a lookup that failed outright. It is kept
	// apart from Unknown: Unknown invites creating a catalog entry, which is
	// the wrong move when the backend merely hiccuped.
	StateError
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateDetecting: "detecting",
	StateFound:     "found",
	StateResolving: "resolving",
	StateKnown:     "known",
	StateUnknown:   "unknown",
	StateConflict:  "conflict",
	StateTimeout:   "timeout",
	StateError:     "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "invalid"
}

// MarshalJSON renders the state by name; the HTTP surface exposes names, not
// ordinals.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether the state is a resolution outcome requiring an
// explicit reset before the next scan.
func (s State) Terminal() bool {
	switch s {
	case StateKnown, StateUnknown, StateConflict, StateTimeout, StateError:
		return true
	}
	return false
}

// snapshot is the complete machine state threaded through the pure
// transition function. Gen is the generation token: every asynchronous
// completion (lookup, timer) carries the generation captured at dispatch and
// is discarded on mismatch, so a late lookup can never land after a timeout
// or reset.
type snapshot struct {
	State      State
	Mode       model.Kind
	Gen        uint64
	Code       string
	Symbology  string
	LastCode   string
	LastCodeAt time.Time
	Matches    []model.MatchedItem
}

// Events.
type event interface{ isEvent() }

type evActivate struct{}

type evDetected struct{ det model.ScanDetection }

// evBeginResolve is the automatic Found -> Resolving step.
type evBeginResolve struct{ gen uint64 }

type evLookupResolved struct {
	gen   uint64
	items []model.MatchedItem
}

// evLookupFailed is a lookup that errored rather than returned no matches.
type evLookupFailed struct{ gen uint64 }

type evTimeout struct{ gen uint64 }

type evReset struct{}

func (evActivate) isEvent()       {}
func (evDetected) isEvent()       {}
func (evBeginResolve) isEvent()   {}
func (evLookupResolved) isEvent() {}
func (evLookupFailed) isEvent()   {}
func (evTimeout) isEvent()        {}
func (evReset) isEvent()          {}

// Effects returned by the transition function and performed by the machine's
// interpreter, never by the transition itself.
type effect interface{ isEffect() }

type effPauseCamera struct{}
type effResumeCamera struct{}
type effPlayFeedback struct{}
type effAutoResolve struct{ gen uint64 }
type effStartLookup struct {
	gen  uint64
	code string
}
type effStartTimer struct{ gen uint64 }
type effCancelTimer struct{ gen uint64 }

func (effPauseCamera) isEffect()  {}
func (effResumeCamera) isEffect() {}
func (effPlayFeedback) isEffect() {}
func (effAutoResolve) isEffect()  {}
func (effStartLookup) isEffect()  {}
func (effStartTimer) isEffect()   {}
func (effCancelTimer) isEffect()  {}

// transition is the pure state-transition function: given the current
// snapshot and an event it returns the next snapshot and the effects to
// perform. debounce is the lock interval during which a repeated identical
// code is ignored, even from Idle.
func transition(s snapshot, ev event, debounce time.Duration) (snapshot, []effect) {
	switch ev := ev.(type) {
	case evActivate:
		if s.State == StateIdle {
			s.State = StateDetecting
		}
		return s, nil

	case evDetected:
		// New detections are only admitted while idle or actively detecting.
		if s.State != StateIdle && s.State != StateDetecting {
			return s, nil
		}
		// Debounce: the same physical barcode lingering in frame must not
		// re-trigger resolution every camera frame.
		if ev.det.Code == s.LastCode && ev.det.At.Sub(s.LastCodeAt) < debounce {
			return s, nil
		}

		s.State = StateFound
		s.Gen++
		s.Code = ev.det.Code
		s.Symbology = ev.det.Symbology
		s.LastCode = ev.det.Code
		s.LastCodeAt = ev.det.At
		s.Matches = nil
		return s, []effect{effPauseCamera{}, effPlayFeedback{}, effAutoResolve{gen: s.Gen}}

	case evBeginResolve:
		if s.State != StateFound || ev.gen != s.Gen {
			return s, nil
		}
		s.State = StateResolving
		return s, []effect{effStartLookup{gen: s.Gen, code: s.Code}, effStartTimer{gen: s.Gen}}

	case evLookupResolved:
		// Stale completions are dropped on token mismatch, not state guesses.
		if ev.gen != s.Gen || s.State != StateResolving {
			return s, nil
		}

		matched := filterByKind(ev.items, s.Mode)
		cancel := effCancelTimer{gen: s.Gen}
		s.Gen++ // invalidate the timer and any other straggler
		s.Matches = matched
		switch {
		case len(matched) == 0:
			s.State = StateUnknown
		case len(matched) == 1:
			s.State = StateKnown
		default:
			s.State = StateConflict
		}
		return s, []effect{cancel}

	case evLookupFailed:
		if ev.gen != s.Gen || s.State != StateResolving {
			return s, nil
		}
		cancel := effCancelTimer{gen: s.Gen}
		s.Gen++ // the timer for this attempt must not fire on top of the error
		s.State = StateError
		s.Matches = nil
		return s, []effect{cancel}

	case evTimeout:
		if ev.gen != s.Gen || s.State != StateResolving {
			return s, nil
		}
		s.Gen++ // the in-flight lookup result must be discarded
		s.State = StateTimeout
		s.Matches = nil
		return s, nil

	case evReset:
		cancel := effCancelTimer{gen: s.Gen}
		s.Gen++
		s.State = StateIdle
		s.Code = ""
		s.Symbology = ""
		s.Matches = nil
		// LastCode/LastCodeAt survive the reset: the debounce window applies
		// even from Idle.
		return s, []effect{cancel, effResumeCamera{}}
	}

	return s, nil
}

// filterByKind keeps only matches of the active scan mode; an item of the
// other kind sharing the barcode does not count toward Known/Conflict.
func filterByKind(items []model.MatchedItem, kind model.Kind) []model.MatchedItem {
	var out []model.MatchedItem
	for _, item := range items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}
