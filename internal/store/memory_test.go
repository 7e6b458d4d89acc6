package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toasterreels/reels/internal/feed"
)

func newMemoryStore() *Memory {
	return NewMemory(feed.NewController(feed.SamplePool()))
}

func TestMemoryListAndGet(t *testing.T) {
	m := newMemoryStore()

	records, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	rec, err := m.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Title != "Big Buck Bunny" {
		t.Errorf("title = %q", rec.Title)
	}

	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryIncrementLikes(t *testing.T) {
	m := newMemoryStore()

	if err := m.IncrementLikes(context.Background(), "1", 1); err != nil {
		t.Fatalf("IncrementLikes failed: %v", err)
	}
	rec, _ := m.Get(context.Background(), "1")
	if rec.LikeCount != 1 {
		t.Errorf("like count = %d, want 1", rec.LikeCount)
	}

	// The zero floor holds for a double decrement.
	m.IncrementLikes(context.Background(), "1", -1)
	m.IncrementLikes(context.Background(), "1", -1)
	rec, _ = m.Get(context.Background(), "1")
	if rec.LikeCount != 0 {
		t.Errorf("like count = %d, want 0", rec.LikeCount)
	}

	if err := m.IncrementLikes(context.Background(), "nope", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryPublishPrepends(t *testing.T) {
	m := newMemoryStore()

	id, err := m.Publish(context.Background(), feed.Record{ID: "local-9", Title: "fresh"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "local-9" {
		t.Errorf("id = %q, want the client id kept", id)
	}

	records, _ := m.List(context.Background())
	if records[0].ID != "local-9" {
		t.Errorf("published record not first: %s", records[0].ID)
	}
}

func TestMemorySubscribeReceivesMutations(t *testing.T) {
	m := newMemoryStore()

	ch, cancel := m.Subscribe(context.Background())
	defer cancel()

	initial := <-ch
	if len(initial) != 3 {
		t.Fatalf("initial snapshot has %d records, want 3", len(initial))
	}

	if _, ok := m.ExtendNearEnd(); !ok {
		t.Fatal("extend failed")
	}

	select {
	case snapshot := <-ch:
		if len(snapshot) != 4 {
			t.Errorf("snapshot has %d records, want 4", len(snapshot))
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed after extend")
	}
}

func TestMemorySubscribeLatestWins(t *testing.T) {
	m := newMemoryStore()

	ch, cancel := m.Subscribe(context.Background())
	defer cancel()
	<-ch

	// A lagging consumer sees only the newest pending snapshot.
	m.ExtendNearEnd()
	m.ExtendNearEnd()

	snapshot := <-ch
	if len(snapshot) != 5 {
		t.Errorf("snapshot has %d records, want the latest set of 5", len(snapshot))
	}
}

func TestMemorySubscribeContextCancel(t *testing.T) {
	m := newMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	ch, unsubscribe := m.Subscribe(ctx)
	defer unsubscribe()
	<-ch

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}
