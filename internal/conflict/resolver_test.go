package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
)

const ttl = 7 * 24 * time.Hour

func localCell(id, owner string, conquered time.Time, uploaded *time.Time) models.Cell {
	return models.Cell{
		ID:              id,
		OwnerID:         owner,
		LastConqueredAt: conquered,
		ExpiresAt:       conquered.Add(ttl),
		UploadedAt:      uploaded,
	}
}

func ts(sec int64) time.Time { return time.Unix(sec, 0) }

func tsp(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func TestResolve_LaterRemoteConquestWins(t *testing.T) {
	local := map[string]models.Cell{
		"3_4": localCell("3_4", "me", ts(100), nil),
	}
	mirror := map[string]models.Cell{
		"3_4": localCell("3_4", "rival", ts(200), tsp(250)),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Lost) != 1 || res.Lost[0].Local.ID != "3_4" {
		t.Fatalf("expected cell lost to rival, got %+v", res)
	}
	if res.Lost[0].Winner.OwnerID != "rival" {
		t.Fatalf("unexpected winner: %s", res.Lost[0].Winner.OwnerID)
	}
}

func TestResolve_EarlierRemoteConquestLoses(t *testing.T) {
	local := map[string]models.Cell{
		"3_4": localCell("3_4", "me", ts(300), nil),
	}
	mirror := map[string]models.Cell{
		"3_4": localCell("3_4", "rival", ts(200), tsp(999)),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Lost) != 0 {
		t.Fatalf("local newer claim must stand, got %+v", res.Lost)
	}
}

func TestResolve_TieBrokenByUploadTime(t *testing.T) {
	// Cell "12_7": local owned at T1 with no upload time, remote shows a
	// different owner at the identical instant with uploadedAt=T5. The later
	// upload wins, so the local entry must be evicted.
	local := map[string]models.Cell{
		"12_7": localCell("12_7", "me", ts(100), nil),
	}
	mirror := map[string]models.Cell{
		"12_7": localCell("12_7", "rival", ts(100), tsp(105)),
	}

	for i := 0; i < 50; i++ {
		res := Resolve(local, mirror, "me")
		if len(res.Lost) != 1 {
			t.Fatalf("run %d: tie must resolve to later upload, got %+v", i, res)
		}
	}
}

func TestResolve_TieBothUploadsPresent(t *testing.T) {
	local := map[string]models.Cell{
		"12_7": localCell("12_7", "me", ts(100), tsp(110)),
	}
	mirror := map[string]models.Cell{
		"12_7": localCell("12_7", "rival", ts(100), tsp(105)),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Lost) != 0 {
		t.Fatalf("local later upload must win the tie, got %+v", res.Lost)
	}
}

func TestResolve_TieNoUploadsDefaultsToLocal(t *testing.T) {
	local := map[string]models.Cell{
		"12_7": localCell("12_7", "me", ts(100), nil),
	}
	mirror := map[string]models.Cell{
		"12_7": localCell("12_7", "rival", ts(100), nil),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Lost) != 0 {
		t.Fatalf("with no upload times local must win by default, got %+v", res.Lost)
	}
}

func TestResolve_OwnRemoteCellRestoredAfterReinstall(t *testing.T) {
	local := map[string]models.Cell{}
	mirror := map[string]models.Cell{
		"5_5": localCell("5_5", "me", ts(100), tsp(110)),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Restored) != 1 || res.Restored[0].ID != "5_5" {
		t.Fatalf("own remote cell must be restored, got %+v", res)
	}
}

func TestResolve_UnknownRivalCellIsInformationalOnly(t *testing.T) {
	local := map[string]models.Cell{}
	mirror := map[string]models.Cell{
		"6_6": localCell("6_6", "rival", ts(100), tsp(110)),
	}

	res := Resolve(local, mirror, "me")
	if len(res.Rivals) != 1 || res.Rivals[0].ID != "6_6" {
		t.Fatalf("expected rival classification, got %+v", res)
	}
	if len(res.Lost) != 0 || len(res.Restored) != 0 {
		t.Fatalf("rival cell must not trigger mutations, got %+v", res)
	}
}

func TestResolve_IdempotentAfterApply(t *testing.T) {
	l := ledger.New(ttl)
	l.Upsert([]models.Cell{
		localCell("1_1", "me", ts(100), nil),
		localCell("2_2", "me", ts(100), nil),
	})
	mirror := map[string]models.Cell{
		"1_1": localCell("1_1", "rival", ts(200), tsp(210)),
		"9_9": localCell("9_9", "me", ts(150), tsp(160)),
	}

	first := Resolve(l.Snapshot(), mirror, "me")
	Apply(l, first)

	if len(first.Lost) != 1 || len(first.Restored) != 1 {
		t.Fatalf("unexpected first resolution: %+v", first)
	}

	second := Resolve(l.Snapshot(), mirror, "me")
	if !second.Empty() {
		t.Fatalf("resolver not idempotent, second pass: %+v", second)
	}
}

func TestReconciler_DebouncedMergeAndLostNotifications(t *testing.T) {
	l := ledger.New(ttl)
	l.Upsert([]models.Cell{localCell("1_1", "me", ts(100), nil)})

	r := NewReconciler(l, "me", 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Burst of mirror updates inside one debounce window
	rival := localCell("1_1", "rival", ts(200), tsp(210))
	rival.OwnerName = "Rival Runner"
	r.OfferMirror([]models.Cell{rival})
	r.OfferMirror([]models.Cell{localCell("7_7", "me", ts(150), tsp(160))})

	deadline := time.After(2 * time.Second)
	for {
		if _, lost := l.Get("1_1"); !lost {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reconciler never evicted the lost cell")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Restored own cell must have been merged back
	waitRestore := time.After(2 * time.Second)
	for {
		if _, ok := l.Get("7_7"); ok {
			break
		}
		select {
		case <-waitRestore:
			t.Fatal("reconciler never restored own remote cell")
		case <-time.After(5 * time.Millisecond):
		}
	}

	var notes []LostNotification
	waitNotes := time.After(2 * time.Second)
	for len(notes) == 0 {
		notes = r.DrainLost()
		if len(notes) == 0 {
			select {
			case <-waitNotes:
				t.Fatal("reconciler never recorded the lost notification")
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	if len(notes) != 1 {
		t.Fatalf("expected one lost notification, got %d", len(notes))
	}
	if notes[0].CellID != "1_1" || notes[0].RivalID != "rival" || notes[0].RivalName != "Rival Runner" {
		t.Fatalf("unexpected notification: %+v", notes[0])
	}
	if len(r.DrainLost()) != 0 {
		t.Fatal("drain must clear notifications")
	}
}
