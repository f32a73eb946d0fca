package conquest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// ErrMissingRoute marks an activity that needs GPS samples but carries none.
// The batch entry point degrades it to a retryable pending record instead of
// failing the whole batch.
var ErrMissingRoute = errors.New("activity has no route points")

// RivalView exposes the latest known rival ownership for a cell, sourced
// from the remote mirror. Implemented by the conflict reconciler.
type RivalView interface {
	RivalCell(id string) (models.Cell, bool)
}

// noRivals is the default view when no mirror stream is connected
type noRivals struct{}

func (noRivals) RivalCell(string) (models.Cell, bool) { return models.Cell{}, false }

// Processor converts activity traces into territory deltas against the
// ledger. One processor serves one user session.
type Processor struct {
	grid     spatial.Grid
	ledger   *ledger.Ledger
	rivals   RivalView
	userID   string
	userName string
	grace    time.Duration // rival claims younger than this cannot be stolen

	// Single-slot semaphore bounding heavy batch processing
	batchSlot chan struct{}

	mu   sync.Mutex
	lost map[string]bool // cells once owned locally, then lost to a rival
}

// NewProcessor creates a processor for the given user session
func NewProcessor(grid spatial.Grid, l *ledger.Ledger, userID, userName string, grace time.Duration) *Processor {
	p := &Processor{
		grid:      grid,
		ledger:    l,
		rivals:    noRivals{},
		userID:    userID,
		userName:  userName,
		grace:     grace,
		batchSlot: make(chan struct{}, 1),
		lost:      make(map[string]bool),
	}
	return p
}

// SetRivalView wires the mirror-backed rival lookup. Must be called before
// processing starts.
func (p *Processor) SetRivalView(v RivalView) {
	if v != nil {
		p.rivals = v
	}
}

// MarkLost records cells the user lost to rivals so a later reclaim counts
// as recaptured rather than stolen. Fed from conflict-resolution outcomes.
func (p *Processor) MarkLost(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.lost[id] = true
	}
}

func (p *Processor) wasLost(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lost[id]
}

func (p *Processor) clearLost(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.lost, id)
	}
}

// ProcessActivity maps one activity trace onto the grid and classifies every
// crossed cell against a ledger snapshot taken when processing begins, so
// re-entering a cell within one activity cannot count twice. The resulting
// claims commit to the ledger in a single atomic upsert.
func (p *Processor) ProcessActivity(ctx context.Context, a models.ActivityTrace) (models.TerritoryDelta, []models.Cell, error) {
	delta, cells, recaptured, err := p.classify(ctx, a)
	if err != nil {
		return delta, nil, err
	}
	p.commit(cells, recaptured)
	return delta, cells, nil
}

// classify computes the territory outcome of one activity without touching
// the ledger. The returned cells and recaptured ids are handed to commit once
// the caller has decided the activity sticks.
func (p *Processor) classify(ctx context.Context, a models.ActivityTrace) (models.TerritoryDelta, []models.Cell, []string, error) {
	delta := models.TerritoryDelta{ActivityID: a.ID}

	if err := ctx.Err(); err != nil {
		return delta, nil, nil, err
	}
	if !a.NeedsRoute() {
		// Indoor activities earn no territory
		return delta, nil, nil, nil
	}
	if len(a.Route) == 0 {
		return delta, nil, nil, fmt.Errorf("activity %s: %w", a.ID, ErrMissingRoute)
	}

	crossed := p.grid.CellsForRoute(a.Route)
	snapshot := p.ledger.Snapshot()

	var claimed []models.Cell
	var recapturedIDs []string
	victims := make(map[string]bool)

	for _, idx := range crossed {
		id := spatial.CellID(idx.X, idx.Y)

		cell := p.grid.NewCell(idx.X, idx.Y)
		cell.OwnerID = p.userID
		cell.OwnerName = p.userName
		cell.LastConqueredAt = a.EndTime
		cell.ExpiresAt = a.EndTime.Add(p.ledger.TTL())
		cell.ActivityID = a.ID

		existing, inLedger := snapshot[id]
		rival, hasRival := p.rivals.RivalCell(id)

		switch {
		case inLedger && existing.OwnerID == p.userID && !existing.Expired(a.EndTime):
			// Renewal: TTL extends, lineage stays
			cell.IsHotSpot = existing.IsHotSpot
			delta.Defended++

		case inLedger && existing.Owned() && existing.OwnerID != p.userID && !existing.Expired(a.EndTime):
			if a.EndTime.Sub(existing.LastConqueredAt) < p.grace {
				// Fresh rival claim is protected; no capture
				continue
			}
			if p.wasLost(id) {
				delta.Recaptured++
				recapturedIDs = append(recapturedIDs, id)
			} else {
				delta.Stolen++
				victims[existing.OwnerID] = true
			}

		case !inLedger && hasRival && rival.Owned() && !rival.Expired(a.EndTime):
			if a.EndTime.Sub(rival.LastConqueredAt) < p.grace {
				continue
			}
			if p.wasLost(id) {
				delta.Recaptured++
				recapturedIDs = append(recapturedIDs, id)
			} else {
				delta.Stolen++
				victims[rival.OwnerID] = true
			}

		default:
			// Absent, expired, or ownerless: a fresh claim. A rival whose
			// tenure lapsed no longer owns the ground, so crossing it is not
			// a steal and names no victim.
			delta.New++
		}

		claimed = append(claimed, cell)
	}

	for v := range victims {
		delta.StolenFrom = append(delta.StolenFrom, v)
	}
	sort.Strings(delta.StolenFrom)

	return delta, claimed, recapturedIDs, nil
}

func (p *Processor) commit(cells []models.Cell, recaptured []string) {
	p.ledger.Upsert(cells)
	p.clearLost(recaptured)
}

// BatchResult is the per-activity outcome of a batch run. Exactly one of
// Delta or Pending is meaningful: Pending is set when the activity degraded
// to a retryable state.
type BatchResult struct {
	Activity models.ActivityTrace
	Delta    models.TerritoryDelta
	Cells    []models.Cell
	Pending  *models.PendingActivity
}

// CommitHook runs after an activity has classified and before its cells
// commit to the ledger, so the caller can make the activity durable (score
// it, persist it) first. A hook error leaves the ledger untouched for that
// activity and aborts the rest of the batch.
type CommitHook func(BatchResult) error

// ProcessBatch processes a set of activities, e.g. a historical import.
// Chronological order by activity end time is enforced here, regardless of
// arrival order, so later activities see the territorial consequences of
// earlier ones. At most one batch runs at a time per processor; cancelling
// the context abandons the remaining activities. Each activity is a unit:
// its cells reach the ledger only after its hook succeeds, so a failure
// mid-batch never leaves a ledger delta without its durable counterpart.
func (p *Processor) ProcessBatch(ctx context.Context, traces []models.ActivityTrace, hook CommitHook) ([]BatchResult, error) {
	select {
	case p.batchSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.batchSlot }()

	ordered := make([]models.ActivityTrace, len(traces))
	copy(ordered, traces)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EndTime.Before(ordered[j].EndTime)
	})

	results := make([]BatchResult, 0, len(ordered))
	for _, a := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		delta, cells, recaptured, err := p.classify(ctx, a)
		if err != nil {
			if errors.Is(err, ErrMissingRoute) {
				// Other activities in the batch proceed independently
				r := BatchResult{
					Activity: a,
					Pending: &models.PendingActivity{
						ActivityID: a.ID,
						RetryCount: 1,
						LastError:  err.Error(),
						UpdatedAt:  time.Now(),
					},
				}
				if hook != nil {
					if err := hook(r); err != nil {
						return results, err
					}
				}
				results = append(results, r)
				continue
			}
			return results, err
		}

		r := BatchResult{Activity: a, Delta: delta, Cells: cells}
		if hook != nil {
			if err := hook(r); err != nil {
				return results, err
			}
		}
		p.commit(cells, recaptured)
		results = append(results, r)
	}

	log.Printf("[ConquestProcessor] user=%s batch processed: %d activities", p.userID, len(results))
	return results, nil
}
