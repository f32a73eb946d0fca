package conflict

import (
	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
)

// Resolution is the outcome of merging the remote mirror against the local
// ledger. It is a pure value: computing it mutates nothing.
type Resolution struct {
	// Lost holds local cells that must yield, keyed by cell id, each paired
	// with the winning remote record.
	Lost []LostCell

	// Restored holds remote cells owned by the local user that are absent
	// from the local ledger (e.g. after a reinstall) and should be merged
	// back in.
	Restored []models.Cell

	// Rivals holds remote cells owned by other users with no local
	// counterpart. Informational only; never merged into the ledger.
	Rivals []models.Cell
}

// LostCell pairs an evicted local record with the remote claim that won
type LostCell struct {
	Local  models.Cell
	Winner models.RemoteCellMirror
}

// Empty reports whether applying the resolution would mutate nothing
func (r Resolution) Empty() bool {
	return len(r.Lost) == 0 && len(r.Restored) == 0
}

// Resolve merges a remote mirror snapshot against a local ledger snapshot
// for the given user. Remote is the system of record for ownership identity;
// local is the system of record for timing precision within a session, so a
// local record only yields when the remote claim strictly wins under the
// tie-break rules. Resolve is pure and idempotent: running it on the state
// produced by applying its own resolution yields an empty resolution.
func Resolve(local, mirror map[string]models.Cell, localUserID string) Resolution {
	var res Resolution

	for id, remote := range mirror {
		lc, ok := local[id]
		if !ok {
			if remote.OwnerID == localUserID {
				res.Restored = append(res.Restored, remote)
			} else if remote.Owned() {
				res.Rivals = append(res.Rivals, remote)
			}
			continue
		}

		if remote.OwnerID == lc.OwnerID {
			// Same owner on both sides; local timing stands.
			continue
		}

		if remoteWins(lc, remote) {
			res.Lost = append(res.Lost, LostCell{Local: lc, Winner: remote})
		}
	}

	return res
}

// remoteWins decides whether a conflicting remote claim supersedes the local
// one. A strictly later conquest wins outright. On an exact conquest-time
// tie (plausible from clock rounding) the later upload wins: whoever
// persisted first established precedent and loses to the fresher claim.
// When neither side carries an upload time the local record wins by default
// (optimistic local authority).
func remoteWins(local models.Cell, remote models.RemoteCellMirror) bool {
	if remote.LastConqueredAt.After(local.LastConqueredAt) {
		return true
	}
	if local.LastConqueredAt.After(remote.LastConqueredAt) {
		return false
	}

	// Exact tie on conquest time
	if remote.UploadedAt == nil {
		return false
	}
	if local.UploadedAt == nil {
		return true
	}
	return remote.UploadedAt.After(*local.UploadedAt)
}

// Apply performs the ledger mutations a resolution calls for: evicting lost
// cells and restoring the user's own remote cells. Restored records keep the
// remote timing so a later Resolve sees both sides agree.
func Apply(l *ledger.Ledger, res Resolution) {
	if len(res.Lost) > 0 {
		ids := make([]string, 0, len(res.Lost))
		for _, lost := range res.Lost {
			ids = append(ids, lost.Local.ID)
		}
		l.Remove(ids)
	}

	if len(res.Restored) > 0 {
		l.Upsert(res.Restored)
	}
}
