package conflict

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
)

// LostNotification surfaces one territory the local user lost to a rival
type LostNotification struct {
	CellID    string    `json:"cell_id"`
	RivalID   string    `json:"rival_id"`
	RivalName string    `json:"rival_name,omitempty"`
	LostAt    time.Time `json:"lost_at"` // rival's conquest time (domain time)
}

// Reconciler observes the two independently-updating inputs of the conflict
// resolver, the local ledger and the remote mirror, and re-runs resolution
// whenever either changes. Updates are debounced so a burst of mirror
// documents triggers a single merge over the latest known state of both.
type Reconciler struct {
	ledger    *ledger.Ledger
	localUser string
	debounce  time.Duration

	mirrorCh chan []models.Cell

	// Invoked synchronously with the ids of newly lost cells, before they
	// surface as notifications. Used for recapture bookkeeping.
	onLost func(ids []string)

	mu     sync.Mutex
	mirror map[string]models.Cell
	rivals []models.Cell
	lost   []LostNotification
}

// NewReconciler wires a reconciler to a ledger for the given user
func NewReconciler(l *ledger.Ledger, localUser string, debounce time.Duration) *Reconciler {
	return &Reconciler{
		ledger:    l,
		localUser: localUser,
		debounce:  debounce,
		mirrorCh:  make(chan []models.Cell, 16),
		mirror:    make(map[string]models.Cell),
	}
}

// OnLost registers a callback for newly lost cell ids. Must be set before
// Run starts.
func (r *Reconciler) OnLost(fn func(ids []string)) {
	r.onLost = fn
}

// RivalCell returns the latest known rival ownership of a cell from the
// mirror, if any. Cells owned by the local user are not rival cells.
func (r *Reconciler) RivalCell(id string) (models.Cell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.mirror[id]
	if !ok || !c.Owned() || c.OwnerID == r.localUser {
		return models.Cell{}, false
	}
	return c, true
}

// OfferMirror feeds a batch of remote mirror documents. Documents merge into
// the latest-known mirror state by cell id; the reconcile pass itself is
// debounced.
func (r *Reconciler) OfferMirror(cells []models.Cell) {
	r.mirrorCh <- cells
}

// Run consumes ledger and mirror change signals until the context ends.
// Intended to run as a goroutine per user session.
func (r *Reconciler) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	arm := func() {
		if fire == nil {
			timer = time.NewTimer(r.debounce)
			fire = timer.C
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case cells := <-r.mirrorCh:
			r.mergeMirror(cells)
			arm()

		case <-r.ledger.Changes():
			arm()

		case <-fire:
			fire = nil
			timer = nil
			r.ReconcileNow()
		}
	}
}

func (r *Reconciler) mergeMirror(cells []models.Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cells {
		r.mirror[c.ID] = c
	}
}

// ReconcileNow runs one synchronous resolution pass over the latest known
// state of ledger and mirror, applying the outcome to the ledger and
// recording lost-territory notifications. Safe to call directly in tests or
// at session start.
func (r *Reconciler) ReconcileNow() Resolution {
	r.mu.Lock()
	mirror := make(map[string]models.Cell, len(r.mirror))
	for id, c := range r.mirror {
		mirror[id] = c
	}
	r.mu.Unlock()

	res := Resolve(r.ledger.Snapshot(), mirror, r.localUser)
	Apply(r.ledger, res)

	if r.onLost != nil && len(res.Lost) > 0 {
		ids := make([]string, len(res.Lost))
		for i, lost := range res.Lost {
			ids[i] = lost.Local.ID
		}
		r.onLost(ids)
	}

	r.mu.Lock()
	r.rivals = res.Rivals
	for _, lost := range res.Lost {
		r.lost = append(r.lost, LostNotification{
			CellID:    lost.Local.ID,
			RivalID:   lost.Winner.OwnerID,
			RivalName: lost.Winner.OwnerName,
			LostAt:    lost.Winner.LastConqueredAt,
		})
	}
	r.mu.Unlock()

	if !res.Empty() {
		log.Printf("[Reconciler] user=%s lost=%d restored=%d rivals=%d",
			r.localUser, len(res.Lost), len(res.Restored), len(res.Rivals))
	}
	return res
}

// DrainLost returns and clears the accumulated lost-territory notifications
func (r *Reconciler) DrainLost() []LostNotification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.lost
	r.lost = nil
	return out
}

// RivalCells returns the rival territories seen in the last reconcile pass
func (r *Reconciler) RivalCells() []models.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Cell, len(r.rivals))
	copy(out, r.rivals)
	return out
}

// MirrorSnapshot returns a copy of the latest known mirror state
func (r *Reconciler) MirrorSnapshot() map[string]models.Cell {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]models.Cell, len(r.mirror))
	for id, c := range r.mirror {
		out[id] = c
	}
	return out
}
