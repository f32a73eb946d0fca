package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/runconquer/territory-backend-go/internal/config"
	"github.com/runconquer/territory-backend-go/internal/conquest"
	"github.com/runconquer/territory-backend-go/internal/database"
	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/repository"
	"github.com/runconquer/territory-backend-go/internal/scoring"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

func newTestService(t *testing.T, tuning config.Tuning, contexts ScoringContextProvider) (*ConquestService, *ledger.Ledger) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	grid := spatial.Grid{
		EdgeDegrees:   tuning.CellEdgeDegrees,
		StepMeters:    tuning.StepMeters,
		ShortSegmentM: tuning.ShortSegmentM,
	}
	led := ledger.New(tuning.TTL())
	processor := conquest.NewProcessor(grid, led, "me", "Me", tuning.StealGrace())
	engine := scoring.NewEngine(tuning)
	territoryRepo := repository.NewTerritoryRepository(db, grid)
	activityRepo := repository.NewActivityRepository(db)

	return NewConquestService(processor, engine, led, territoryRepo, activityRepo, contexts), led
}

func traceAt(id string, end time.Time, lat, lon float64, points int) models.ActivityTrace {
	route := make([]models.RoutePoint, points)
	for i := range route {
		route[i] = models.RoutePoint{
			Coordinate: models.Coordinate{Lat: lat + float64(i)*0.002, Lon: lon},
		}
	}
	return models.ActivityTrace{
		ID:        id,
		Type:      models.ActivityRun,
		StartTime: end.Add(-30 * time.Minute),
		EndTime:   end,
		DistanceM: 5000,
		DurationS: 1800,
		Route:     route,
	}
}

type fixedContext models.PlayerScoringContext

func (f fixedContext) ScoringContext(context.Context, models.ActivityTrace) (models.PlayerScoringContext, error) {
	return models.PlayerScoringContext(f), nil
}

func TestProcessBatch_DailyCapCompoundsAcrossBatch(t *testing.T) {
	tuning := config.DefaultTuning()
	tuning.DailyBaseXPCap = 100

	svc, _ := newTestService(t, tuning, fixedContext{})
	t1 := time.Unix(500000, 0)

	// Each run alone earns 75 base XP; the second must be clamped to the
	// 25 XP remaining under the daily cap.
	scores, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{
		traceAt("act-1", t1, 35.0001, 139.0001, 3),
		traceAt("act-2", t1.Add(time.Hour), 36.0001, 140.0001, 3),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}

	if scores[0].XP.Base != 75 {
		t.Fatalf("first activity base = %d, want 75", scores[0].XP.Base)
	}
	if scores[1].XP.Base != 25 {
		t.Fatalf("second activity base must hit the shared daily cap, got %d", scores[1].XP.Base)
	}
}

func TestProcessBatch_PersistsAtomicallyPerActivity(t *testing.T) {
	tuning := config.DefaultTuning()
	svc, led := newTestService(t, tuning, nil)
	t1 := time.Unix(500000, 0)

	scores, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{
		traceAt("act-1", t1, 35.0001, 139.0001, 3),
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(scores) != 1 || scores[0].Pending != nil {
		t.Fatalf("unexpected scores: %+v", scores)
	}

	// The persisted score must match the returned one
	delta, xp, err := svc.Score("act-1")
	if err != nil {
		t.Fatalf("score lookup failed: %v", err)
	}
	if delta == nil || xp == nil {
		t.Fatal("processed activity not persisted")
	}
	if delta.New != scores[0].Delta.New || xp.Total() != scores[0].Total {
		t.Fatalf("persisted score diverges: %+v vs %+v", xp, scores[0].XP)
	}
	if led.Len() != delta.New {
		t.Fatalf("ledger state diverges from delta: %d vs %d", led.Len(), delta.New)
	}
}

func TestProcessBatch_MissingRouteGoesPendingOthersProceed(t *testing.T) {
	tuning := config.DefaultTuning()
	svc, _ := newTestService(t, tuning, nil)
	t1 := time.Unix(500000, 0)

	broken := traceAt("act-broken", t1, 35.0001, 139.0001, 0)
	good := traceAt("act-good", t1.Add(time.Hour), 35.0001, 139.0001, 3)

	scores, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{broken, good})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	var sawPending, sawProcessed bool
	for _, s := range scores {
		if s.Pending != nil {
			sawPending = true
		} else {
			sawProcessed = true
		}
	}
	if !sawPending || !sawProcessed {
		t.Fatalf("expected one pending and one processed score: %+v", scores)
	}

	pending, err := svc.PendingActivities()
	if err != nil {
		t.Fatalf("pending list failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ActivityID != "act-broken" {
		t.Fatalf("pending record not persisted: %+v", pending)
	}
}

type failingContext struct {
	failID string
}

func (f failingContext) ScoringContext(_ context.Context, a models.ActivityTrace) (models.PlayerScoringContext, error) {
	if a.ID == f.failID {
		return models.PlayerScoringContext{}, errors.New("profile store unavailable")
	}
	return models.PlayerScoringContext{}, nil
}

func TestProcessBatch_FailedActivityLeavesNoLedgerDelta(t *testing.T) {
	tuning := config.DefaultTuning()
	svc, led := newTestService(t, tuning, failingContext{failID: "act-2"})
	t1 := time.Unix(500000, 0)

	scores, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{
		traceAt("act-1", t1, 35.0001, 139.0001, 3),
		traceAt("act-2", t1.Add(time.Hour), 36.0001, 140.0001, 3),
	})
	if err == nil {
		t.Fatal("expected the failing activity to surface an error")
	}
	if len(scores) != 1 || scores[0].ActivityID != "act-1" {
		t.Fatalf("only the committed activity belongs in the scores: %+v", scores)
	}

	// The failed activity must not leave a ledger delta or a persisted score
	if led.Len() != scores[0].Delta.New {
		t.Fatalf("ledger holds %d cells, want the first activity's %d", led.Len(), scores[0].Delta.New)
	}
	delta, xp, scoreErr := svc.Score("act-2")
	if scoreErr != nil {
		t.Fatalf("score lookup failed: %v", scoreErr)
	}
	if delta != nil || xp != nil {
		t.Fatalf("uncommitted activity must have no persisted score: %+v %+v", delta, xp)
	}

	// The committed activity survives intact
	delta, xp, scoreErr = svc.Score("act-1")
	if scoreErr != nil || delta == nil || xp == nil {
		t.Fatalf("committed activity lost its score: %+v %+v %v", delta, xp, scoreErr)
	}
}

func TestLogout_ClearsLedgerAndClosesSession(t *testing.T) {
	tuning := config.DefaultTuning()
	svc, led := newTestService(t, tuning, nil)
	t1 := time.Unix(500000, 0)

	if _, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{
		traceAt("act-1", t1, 35.0001, 139.0001, 3),
	}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if led.Len() == 0 {
		t.Fatal("precondition: ledger should hold cells")
	}

	svc.Logout()
	if led.Len() != 0 {
		t.Fatalf("logout must clear the ledger, %d cells remain", led.Len())
	}

	if _, err := svc.ProcessBatch(context.Background(), []models.ActivityTrace{
		traceAt("act-2", t1.Add(time.Hour), 35.0001, 139.0001, 3),
	}); err == nil {
		t.Fatal("closed session must reject further batches")
	}
}
