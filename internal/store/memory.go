package store

import (
	"context"
	"sync"

	"github.com/toasterreels/reels/internal/feed"
)

// Memory adapts a feed.Controller to the same consumer surface as the
// Postgres store, for the fully client-local variant: the controller's
// materialized list is the authoritative collection, likes are locally
// authoritative, and snapshot pushes fan out from controller mutations.
type Memory struct {
	ctrl *feed.Controller

	mu   sync.Mutex
	subs map[chan []feed.Record]struct{}
}

// NewMemory wraps the controller and hooks its change notifications into
// the snapshot push fan-out.
func NewMemory(ctrl *feed.Controller) *Memory {
	m := &Memory{
		ctrl: ctrl,
		subs: make(map[chan []feed.Record]struct{}),
	}
	ctrl.OnChange(m.push)
	return m
}

// Controller exposes the wrapped feed controller.
func (m *Memory) Controller() *feed.Controller { return m.ctrl }

// List returns the materialized list.
func (m *Memory) List(ctx context.Context) ([]feed.Record, error) {
	return m.ctrl.Snapshot(), nil
}

// Get returns one record by id.
func (m *Memory) Get(ctx context.Context, id string) (feed.Record, error) {
	rec, ok := m.ctrl.Get(id)
	if !ok {
		return feed.Record{}, ErrNotFound
	}
	return rec, nil
}

// IncrementLikes adjusts the locally authoritative like count, floored at
// zero. It implements feed.LikeStore.
func (m *Memory) IncrementLikes(ctx context.Context, id string, delta int) error {
	if _, found := m.ctrl.AdjustLikeCount(id, delta); !found {
		return ErrNotFound
	}
	return nil
}

// Publish prepends the uploaded record to the front of the feed, keeping
// its client-generated id. No round trip, no latency gap: it implements
// feed.Publisher for the local upload session.
func (m *Memory) Publish(ctx context.Context, rec feed.Record) (string, error) {
	m.ctrl.Prepend(rec)
	return rec.ID, nil
}

// ExtendNearEnd appends the next sample-pool clone to the feed.
func (m *Memory) ExtendNearEnd() (feed.Record, bool) {
	return m.ctrl.ExtendNearEnd()
}

// Subscribe mirrors Store.Subscribe over the in-memory collection.
func (m *Memory) Subscribe(ctx context.Context) (<-chan []feed.Record, func()) {
	ch := make(chan []feed.Record, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	ch <- m.ctrl.Snapshot()
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.mu.Unlock()
		})
	}
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}

func (m *Memory) push(snapshot []feed.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
