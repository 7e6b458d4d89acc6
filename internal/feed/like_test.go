package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeLikeStore struct {
	mu      sync.Mutex
	err     error
	block   chan struct{} // when set, IncrementLikes waits on it
	entered chan struct{} // closed once a call is underway
	calls   []int
}

func (f *fakeLikeStore) IncrementLikes(ctx context.Context, id string, delta int) error {
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, delta)
	f.mu.Unlock()
	return f.err
}

func TestToggleAppliesOptimistically(t *testing.T) {
	ctrl := NewController([]Record{{ID: "1", LikeCount: 3}})
	store := &fakeLikeStore{}
	r := NewReconciler(ctrl, store)

	if err := r.Toggle(context.Background(), "1"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !r.Liked("1") {
		t.Error("liked flag not set")
	}
	if rec, _ := ctrl.Get("1"); rec.LikeCount != 4 {
		t.Errorf("like count = %d, want 4", rec.LikeCount)
	}

	if err := r.Toggle(context.Background(), "1"); err != nil {
		t.Fatalf("unlike failed: %v", err)
	}
	if r.Liked("1") {
		t.Error("liked flag not cleared")
	}
	if rec, _ := ctrl.Get("1"); rec.LikeCount != 3 {
		t.Errorf("like count = %d, want 3", rec.LikeCount)
	}
	if len(store.calls) != 2 || store.calls[0] != 1 || store.calls[1] != -1 {
		t.Errorf("store deltas = %v, want [1 -1]", store.calls)
	}
}

func TestToggleRollsBackOnStoreFailure(t *testing.T) {
	ctrl := NewController([]Record{{ID: "1", LikeCount: 3}})
	store := &fakeLikeStore{err: errors.New("connection reset")}
	r := NewReconciler(ctrl, store)

	if err := r.Toggle(context.Background(), "1"); err == nil {
		t.Fatal("expected toggle to surface the store error")
	}
	if r.Liked("1") {
		t.Error("liked flag not rolled back")
	}
	if rec, _ := ctrl.Get("1"); rec.LikeCount != 3 {
		t.Errorf("like count = %d, want 3 after rollback", rec.LikeCount)
	}
}

func TestRollbackRestoresClampedCount(t *testing.T) {
	// An unlike at count zero is clamped; the rollback must restore
	// exactly zero, not invent a like.
	ctrl := NewController([]Record{{ID: "1", LikeCount: 0}})
	store := &fakeLikeStore{err: errors.New("boom")}
	r := NewReconciler(ctrl, store)
	r.liked["1"] = true

	if err := r.Toggle(context.Background(), "1"); err == nil {
		t.Fatal("expected toggle to fail")
	}
	if rec, _ := ctrl.Get("1"); rec.LikeCount != 0 {
		t.Errorf("like count = %d, want 0 after clamped rollback", rec.LikeCount)
	}
	if !r.Liked("1") {
		t.Error("liked flag should be restored to true")
	}
}

func TestConcurrentToggleRejected(t *testing.T) {
	ctrl := NewController([]Record{{ID: "1"}})
	store := &fakeLikeStore{
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	r := NewReconciler(ctrl, store)

	firstDone := make(chan error, 1)
	entered := store.entered
	go func() { firstDone <- r.Toggle(context.Background(), "1") }()
	<-entered

	if err := r.Toggle(context.Background(), "1"); !errors.Is(err, ErrToggleInFlight) {
		t.Errorf("second toggle error = %v, want ErrToggleInFlight", err)
	}

	close(store.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}

	// Toggles on other records are not serialized with this one.
	ctrl.ApplySnapshot([]Record{{ID: "1", LikeCount: 1}, {ID: "2"}})
	if err := r.Toggle(context.Background(), "2"); err != nil {
		t.Errorf("toggle on different record failed: %v", err)
	}
}

func TestNilStoreIsAuthoritative(t *testing.T) {
	ctrl := NewController([]Record{{ID: "1"}})
	r := NewReconciler(ctrl, nil)

	if err := r.Toggle(context.Background(), "1"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if rec, _ := ctrl.Get("1"); rec.LikeCount != 1 {
		t.Errorf("like count = %d, want 1", rec.LikeCount)
	}
}
