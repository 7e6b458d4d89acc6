package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrToggleInFlight is returned when a like toggle arrives while the
// previous remote update for the same record is still outstanding.
var ErrToggleInFlight = errors.New("like update already in flight")

// FeedView adjusts the displayed like count of a materialized record and
// returns the delta actually applied after the zero floor. *Controller
// satisfies it.
type FeedView interface {
	AdjustLikeCount(id string, delta int) (applied int, found bool)
}

// LikeStore applies an atomic like-count adjustment to the authoritative
// copy of a record. It is always a relative increment, never an absolute
// overwrite.
type LikeStore interface {
	IncrementLikes(ctx context.Context, id string, delta int) error
}

// Reconciler tracks one viewer's ephemeral like state and applies toggles
// optimistically: the displayed count and liked flag change before the
// store confirms, and both are reverted if the store rejects the update.
//
// With a nil store the displayed count is authoritative (local variant) and
// toggles never fail. Updates are serialized per record: a second toggle
// while one is outstanding is rejected rather than raced.
type Reconciler struct {
	mu      sync.Mutex
	view    FeedView
	store   LikeStore
	liked   map[string]bool
	pending map[string]struct{}
}

// NewReconciler creates a reconciler for one viewer session. The liked
// flags live only here; they reset with the session and are never derived
// from the store, which keeps only the aggregate counter.
func NewReconciler(view FeedView, store LikeStore) *Reconciler {
	return &Reconciler{
		view:    view,
		store:   store,
		liked:   make(map[string]bool),
		pending: make(map[string]struct{}),
	}
}

// Liked reports the viewer's like flag for a record.
func (r *Reconciler) Liked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liked[id]
}

// Toggle flips the liked flag and shifts the displayed count by one in the
// same direction, synchronously, then issues the remote increment. On
// failure both are restored to their pre-toggle values and the error is
// returned; there is no automatic retry.
func (r *Reconciler) Toggle(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, busy := r.pending[id]; busy {
		r.mu.Unlock()
		return ErrToggleInFlight
	}
	delta := 1
	if r.liked[id] {
		delta = -1
	}
	r.liked[id] = !r.liked[id]
	r.pending[id] = struct{}{}
	r.mu.Unlock()

	applied, _ := r.view.AdjustLikeCount(id, delta)

	var err error
	if r.store != nil {
		err = r.store.IncrementLikes(ctx, id, delta)
	}

	r.mu.Lock()
	delete(r.pending, id)
	if err != nil {
		r.liked[id] = !r.liked[id]
	}
	r.mu.Unlock()

	if err != nil {
		r.view.AdjustLikeCount(id, -applied)
		return fmt.Errorf("like update for %s: %w", id, err)
	}
	return nil
}
