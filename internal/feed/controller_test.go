package feed

import (
	"testing"
)

func seedRecords() []Record {
	return []Record{
		{ID: "1", Title: "first", LikeCount: 2},
		{ID: "2", Title: "second"},
		{ID: "3", Title: "third"},
	}
}

func TestApplySnapshotReplacesEverything(t *testing.T) {
	c := NewController(seedRecords())

	next := []Record{
		{ID: "9", Title: "from store"},
		{ID: "2", Title: "second", LikeCount: 5},
	}
	c.ApplySnapshot(next)

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 records after snapshot, got %d", len(snap))
	}
	if snap[0].ID != "9" || snap[1].ID != "2" {
		t.Errorf("snapshot order not preserved: %v", snap)
	}
	if snap[1].LikeCount != 5 {
		t.Errorf("snapshot values not applied: %+v", snap[1])
	}
	if _, ok := c.Get("1"); ok {
		t.Error("record absent from snapshot should have been dropped")
	}
}

func TestExtendNearEndCyclesPool(t *testing.T) {
	seed := seedRecords()
	c := NewController(seed)

	ids := make(map[string]bool)
	for _, rec := range seed {
		ids[rec.ID] = true
	}

	// Two full cycles through the pool.
	for i := 0; i < 2*len(seed); i++ {
		clone, ok := c.ExtendNearEnd()
		if !ok {
			t.Fatalf("extend %d failed", i)
		}
		want := seed[i%len(seed)].Title
		if clone.Title != want {
			t.Errorf("extend %d cloned %q, want %q", i, clone.Title, want)
		}
		if ids[clone.ID] {
			t.Errorf("extend %d reused id %s", i, clone.ID)
		}
		ids[clone.ID] = true
	}

	if got := c.Len(); got != 3*len(seed) {
		t.Errorf("expected %d records, got %d", 3*len(seed), got)
	}
}

func TestExtendNearEndWithoutPool(t *testing.T) {
	c := NewController(nil)
	if _, ok := c.ExtendNearEnd(); ok {
		t.Error("extend should report false without a sample pool")
	}
}

func TestPrependPutsRecordFirst(t *testing.T) {
	c := NewController(seedRecords())
	c.Prepend(Record{ID: "new", Title: "fresh upload"})

	snap := c.Snapshot()
	if snap[0].ID != "new" {
		t.Errorf("expected prepended record first, got %s", snap[0].ID)
	}
	if len(snap) != 4 {
		t.Errorf("expected 4 records, got %d", len(snap))
	}

	idx, ok := c.IndexByID("new")
	if !ok || idx != 0 {
		t.Errorf("IndexByID(new) = %d, %v; want 0, true", idx, ok)
	}
}

func TestAdjustLikeCountClampsAtZero(t *testing.T) {
	c := NewController([]Record{{ID: "1", LikeCount: 0}})

	applied, found := c.AdjustLikeCount("1", -1)
	if !found {
		t.Fatal("record not found")
	}
	if applied != 0 {
		t.Errorf("applied = %d, want 0 when clamped", applied)
	}
	if rec, _ := c.Get("1"); rec.LikeCount != 0 {
		t.Errorf("like count went negative: %d", rec.LikeCount)
	}

	applied, _ = c.AdjustLikeCount("1", 1)
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if _, found := c.AdjustLikeCount("missing", 1); found {
		t.Error("adjust on unknown id should report not found")
	}
}

func TestOnChangeFiresAfterEveryMutation(t *testing.T) {
	c := NewController(seedRecords())

	var notifications [][]Record
	c.OnChange(func(snap []Record) { notifications = append(notifications, snap) })

	c.ApplySnapshot(seedRecords())
	c.ExtendNearEnd()
	c.Prepend(Record{ID: "p"})
	c.AdjustLikeCount("p", 1)

	if len(notifications) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(notifications))
	}
	last := notifications[len(notifications)-1]
	if last[0].ID != "p" || last[0].LikeCount != 1 {
		t.Errorf("final notification stale: %+v", last[0])
	}
}
