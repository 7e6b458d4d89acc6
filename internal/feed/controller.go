package feed

import (
	"sync"
)

// Controller owns the ordered list of records currently materialized in the
// feed. Nothing else mutates the list; remote snapshot pushes, sample-pool
// extension, and upload prepends all go through its methods. A change hook
// lets the snapshot broadcaster fan out the new list after each mutation.
type Controller struct {
	mu         sync.Mutex
	records    []Record
	pool       []Record
	nextSample int
	onChange   func([]Record)
}

// NewController returns a controller seeded with the given records. The seed
// also serves as the cyclic sample pool for ExtendNearEnd; the remote
// variant passes nil and is populated entirely by snapshot pushes.
func NewController(seed []Record) *Controller {
	c := &Controller{}
	if len(seed) > 0 {
		c.records = append(c.records, seed...)
		c.pool = append(c.pool, seed...)
	}
	return c
}

// OnChange registers a hook invoked with a copy of the materialized list
// after every mutation. At most one hook is supported.
func (c *Controller) OnChange(fn func([]Record)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the materialized list in feed order.
func (c *Controller) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyRecords()
}

// Len reports how many records are materialized.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// ApplySnapshot replaces the entire materialized list with the given set,
// preserving its order. Full replace, not a merge: the store is the source
// of truth, so local-only records not yet confirmed by it are dropped.
func (c *Controller) ApplySnapshot(set []Record) {
	c.mu.Lock()
	c.records = append(c.records[:0], set...)
	c.mu.Unlock()
	c.notify()
}

// ExtendNearEnd appends one record cloned from the cyclic sample pool with a
// fresh unique id. The pool index advances by one per call and wraps. It
// reports false when the controller has no pool (remote variant).
func (c *Controller) ExtendNearEnd() (Record, bool) {
	c.mu.Lock()
	if len(c.pool) == 0 {
		c.mu.Unlock()
		return Record{}, false
	}
	clone := c.pool[c.nextSample%len(c.pool)]
	c.nextSample++
	clone.ID = NewLocalID()
	c.records = append(c.records, clone)
	c.mu.Unlock()
	c.notify()
	return clone, true
}

// Prepend puts a freshly uploaded record at the front of the feed.
func (c *Controller) Prepend(rec Record) {
	c.mu.Lock()
	c.records = append([]Record{rec}, c.records...)
	c.mu.Unlock()
	c.notify()
}

// IndexByID returns the position of a record in the materialized list.
// Absence is not an error; the target may simply not have loaded yet.
func (c *Controller) IndexByID(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, rec := range c.records {
		if rec.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Get returns a copy of the record with the given id.
func (c *Controller) Get(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// AdjustLikeCount shifts the displayed like count of a record by delta,
// never dropping below zero. It returns the delta actually applied after
// clamping, so a rollback can restore the exact prior value, and whether
// the record was found.
func (c *Controller) AdjustLikeCount(id string, delta int) (int, bool) {
	c.mu.Lock()
	applied := 0
	found := false
	for i := range c.records {
		if c.records[i].ID == id {
			next := c.records[i].LikeCount + delta
			if next < 0 {
				next = 0
			}
			applied = next - c.records[i].LikeCount
			c.records[i].LikeCount = next
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.notify()
	}
	return applied, found
}

func (c *Controller) copyRecords() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	var snap []Record
	if fn != nil {
		snap = c.copyRecords()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
