package feed

import "sync"

// PlayState is the playback state of one rendered feed entry.
type PlayState int

const (
	Paused PlayState = iota
	Playing
	Buffering
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Buffering:
		return "buffering"
	default:
		return "paused"
	}
}

// PlayThreshold is the viewport intersection ratio at or above which an
// entry is eligible to play.
const PlayThreshold = 0.75

// IntersectionSource delivers viewport intersection ratios for one rendered
// entry. In the browser this wraps an IntersectionObserver; tests supply a
// deterministic double.
type IntersectionSource interface {
	Observe(onChange func(ratio float64)) (unobserve func())
}

// Tracker decides play, pause, and buffering for a single feed entry. One
// tracker lives per rendered entry, from render until the entry leaves the
// rendered set. The initial state is Paused.
type Tracker struct {
	mu        sync.Mutex
	state     PlayState
	target    bool // intersection-derived play eligibility
	stalled   bool
	muted     bool
	unobserve func()
}

// NewTracker returns a paused tracker. Mute state is per entry and does not
// affect the play state machine.
func NewTracker(muted bool) *Tracker {
	return &Tracker{muted: muted}
}

// Attach subscribes the tracker to an intersection source, replacing any
// previous subscription.
func (t *Tracker) Attach(src IntersectionSource) {
	t.Detach()
	cancel := src.Observe(t.OnIntersection)
	t.mu.Lock()
	t.unobserve = cancel
	t.mu.Unlock()
}

// Detach tears down the current intersection subscription, if any.
func (t *Tracker) Detach() {
	t.mu.Lock()
	cancel := t.unobserve
	t.unobserve = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// OnIntersection applies a viewport intersection change. Only threshold
// crossings matter: crossing to >= PlayThreshold starts playback, dropping
// below it pauses. A crossing also clears any manual override.
func (t *Tracker) OnIntersection(ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	crossed := ratio >= PlayThreshold
	if crossed == t.target {
		return
	}
	t.target = crossed

	if !crossed {
		t.state = Paused
		return
	}
	if t.stalled {
		t.state = Buffering
	} else {
		t.state = Playing
	}
}

// Toggle is the manual tap control. It overrides the intersection-driven
// state until the next threshold crossing.
func (t *Tracker) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Playing || t.state == Buffering {
		t.state = Paused
		return
	}
	if t.stalled {
		t.state = Buffering
	} else {
		t.state = Playing
	}
}

// OnStall records that playback stalled (buffering). An entry that was
// playing shows as Buffering; the intersection-derived target is unchanged.
func (t *Tracker) OnStall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stalled = true
	if t.state == Playing {
		t.state = Buffering
	}
}

// OnStallCleared records that playback can resume. A buffering entry
// resumes playing only if it is still intersecting.
func (t *Tracker) OnStallCleared() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stalled = false
	if t.state != Buffering {
		return
	}
	if t.target {
		t.state = Playing
	} else {
		t.state = Paused
	}
}

// State returns the current playback state.
func (t *Tracker) State() PlayState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Loading reports whether the buffering spinner should show.
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Buffering
}

// Muted reports the entry's mute state.
func (t *Tracker) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// ToggleMute flips the entry's mute state and returns the new value.
func (t *Tracker) ToggleMute() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = !t.muted
	return t.muted
}
