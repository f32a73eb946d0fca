package ledger

import (
	"sync"
	"time"

	"github.com/runconquer/territory-backend-go/internal/models"
)

// Ledger is the authoritative local map of cell id to ownership record for
// one user session. All mutation happens under the write lock; readers get
// copies, never references into the internal map. There is no global
// instance: callers own the handle and pass it to the conquest processor and
// the conflict resolver explicitly.
type Ledger struct {
	mu    sync.RWMutex
	cells map[string]models.Cell
	ttl   time.Duration

	// Coalesced change signal: a pending notification already covers any
	// further writes until it is consumed.
	changes chan struct{}
}

// New creates an empty ledger with the given ownership TTL
func New(ttl time.Duration) *Ledger {
	return &Ledger{
		cells:   make(map[string]models.Cell),
		ttl:     ttl,
		changes: make(chan struct{}, 1),
	}
}

// TTL returns the ownership tenure applied to new claims
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Changes returns the coalesced change-notification channel. One receive may
// cover many writes.
func (l *Ledger) Changes() <-chan struct{} {
	return l.changes
}

func (l *Ledger) notify() {
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

// Upsert applies a batch of cell records. A cell absent from the ledger is
// inserted; an existing record is replaced only when the incoming one has a
// strictly later LastConqueredAt, which makes the operation idempotent and
// monotonic per cell. Returns the number of records actually written.
func (l *Ledger) Upsert(cells []models.Cell) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	applied := 0
	for _, c := range cells {
		existing, ok := l.cells[c.ID]
		if ok && !c.LastConqueredAt.After(existing.LastConqueredAt) {
			continue
		}
		l.cells[c.ID] = c
		applied++
	}

	if applied > 0 {
		l.notify()
	}
	return applied
}

// Get returns a copy of the cell with the given id
func (l *Ledger) Get(id string) (models.Cell, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.cells[id]
	return c, ok
}

// Remove hard-deletes the given cells, used when a local claim must yield to
// a remote owner. Returns the number of cells removed.
func (l *Ledger) Remove(ids []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := l.cells[id]; ok {
			delete(l.cells, id)
			removed++
		}
	}

	if removed > 0 {
		l.notify()
	}
	return removed
}

// ExpireNow drops every cell whose tenure has lapsed at the given instant
// and returns the dropped records. Called lazily on reads and from the
// periodic tick; never a blocking background sweep.
func (l *Ledger) ExpireNow(now time.Time) []models.Cell {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []models.Cell
	for id, c := range l.cells {
		if c.Expired(now) {
			expired = append(expired, c)
			delete(l.cells, id)
		}
	}

	if len(expired) > 0 {
		l.notify()
	}
	return expired
}

// Snapshot returns a copy of the full ledger state
func (l *Ledger) Snapshot() map[string]models.Cell {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]models.Cell, len(l.cells))
	for id, c := range l.cells {
		out[id] = c
	}
	return out
}

// SnapshotRegion returns the cells whose center lies inside the bounding box
func (l *Ledger) SnapshotRegion(f models.CellFilter) []models.Cell {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Cell
	for _, c := range l.cells {
		if c.Center.Lat < f.MinLat || c.Center.Lat > f.MaxLat {
			continue
		}
		if c.Center.Lon < f.MinLon || c.Center.Lon > f.MaxLon {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SnapshotByActivity returns the cells claimed or renewed by one activity,
// used to group a user's territories by outing.
func (l *Ledger) SnapshotByActivity(activityID string) []models.Cell {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Cell
	for _, c := range l.cells {
		if c.ActivityID == activityID {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of cells currently held
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cells)
}

// Clear drops every record, used on logout
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.cells) == 0 {
		return
	}
	l.cells = make(map[string]models.Cell)
	l.notify()
}
