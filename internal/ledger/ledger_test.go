package ledger

import (
	"testing"
	"time"

	"github.com/runconquer/territory-backend-go/internal/models"
)

func cellAt(id string, owner string, conquered time.Time, ttl time.Duration) models.Cell {
	return models.Cell{
		ID:              id,
		OwnerID:         owner,
		Center:          models.Coordinate{Lat: 35.001, Lon: 139.001},
		LastConqueredAt: conquered,
		ExpiresAt:       conquered.Add(ttl),
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	now := time.Unix(100000, 0)

	batch := []models.Cell{
		cellAt("1_1", "alice", now, l.TTL()),
		cellAt("1_2", "alice", now, l.TTL()),
	}

	if applied := l.Upsert(batch); applied != 2 {
		t.Fatalf("first upsert applied %d, want 2", applied)
	}
	if applied := l.Upsert(batch); applied != 0 {
		t.Fatalf("re-applying identical batch applied %d, want 0", applied)
	}
	if l.Len() != 2 {
		t.Fatalf("ledger size %d, want 2", l.Len())
	}
}

func TestUpsert_MonotonicPerCell(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	t1 := time.Unix(100000, 0)
	t2 := t1.Add(time.Hour)

	l.Upsert([]models.Cell{cellAt("1_1", "alice", t2, l.TTL())})

	// An older record must not overwrite a newer one
	l.Upsert([]models.Cell{cellAt("1_1", "bob", t1, l.TTL())})

	c, ok := l.Get("1_1")
	if !ok {
		t.Fatal("cell missing")
	}
	if c.OwnerID != "alice" || !c.LastConqueredAt.Equal(t2) {
		t.Fatalf("older write overwrote newer record: owner=%s at=%v", c.OwnerID, c.LastConqueredAt)
	}
}

func TestExpireNow_DropsLapsedCells(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	old := time.Unix(100000, 0)

	l.Upsert([]models.Cell{
		cellAt("1_1", "alice", old, l.TTL()),
		cellAt("1_2", "alice", old.Add(10*24*time.Hour), l.TTL()),
	})

	expired := l.ExpireNow(old.Add(8 * 24 * time.Hour))
	if len(expired) != 1 || expired[0].ID != "1_1" {
		t.Fatalf("unexpected expired set: %v", expired)
	}
	if _, ok := l.Get("1_1"); ok {
		t.Fatal("expired cell still present")
	}
	if _, ok := l.Get("1_2"); !ok {
		t.Fatal("unexpired cell was dropped")
	}

	// Re-running against the same instant is a no-op
	if again := l.ExpireNow(old.Add(8 * 24 * time.Hour)); len(again) != 0 {
		t.Fatalf("second expiry pass dropped %d cells, want 0", len(again))
	}
}

func TestSnapshotRegion_FiltersByCenter(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	now := time.Unix(100000, 0)

	inside := cellAt("1_1", "alice", now, l.TTL())
	inside.Center = models.Coordinate{Lat: 35.5, Lon: 139.5}
	outside := cellAt("9_9", "alice", now, l.TTL())
	outside.Center = models.Coordinate{Lat: 40.0, Lon: 150.0}
	l.Upsert([]models.Cell{inside, outside})

	got := l.SnapshotRegion(models.CellFilter{MinLat: 35, MaxLat: 36, MinLon: 139, MaxLon: 140})
	if len(got) != 1 || got[0].ID != "1_1" {
		t.Fatalf("unexpected region snapshot: %v", got)
	}
}

func TestSnapshotByActivity(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	now := time.Unix(100000, 0)

	a := cellAt("1_1", "alice", now, l.TTL())
	a.ActivityID = "act-1"
	b := cellAt("1_2", "alice", now, l.TTL())
	b.ActivityID = "act-2"
	l.Upsert([]models.Cell{a, b})

	got := l.SnapshotByActivity("act-1")
	if len(got) != 1 || got[0].ID != "1_1" {
		t.Fatalf("unexpected activity snapshot: %v", got)
	}
}

func TestClear_EmptiesLedgerAndNotifies(t *testing.T) {
	l := New(7 * 24 * time.Hour)
	now := time.Unix(100000, 0)

	l.Upsert([]models.Cell{cellAt("1_1", "alice", now, l.TTL())})

	// Drain the pending upsert notification first
	select {
	case <-l.Changes():
	default:
		t.Fatal("expected change notification after upsert")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("ledger not empty after clear: %d", l.Len())
	}
	select {
	case <-l.Changes():
	default:
		t.Fatal("expected change notification after clear")
	}
}
