package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/runconquer/territory-backend-go/internal/conquest"
	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/repository"
	"github.com/runconquer/territory-backend-go/internal/scoring"
)

// ScoringContextProvider supplies the rolling player context consumed by the
// scoring engine. Player totals live outside this engine; the provider is
// the boundary to that external ledger of record.
type ScoringContextProvider interface {
	ScoringContext(ctx context.Context, a models.ActivityTrace) (models.PlayerScoringContext, error)
}

// StaticScoringContext is the fallback provider when no player-state
// collaborator is wired: a zero context, no streak, no record, no badges.
type StaticScoringContext struct{}

// ScoringContext implements ScoringContextProvider
func (StaticScoringContext) ScoringContext(context.Context, models.ActivityTrace) (models.PlayerScoringContext, error) {
	return models.PlayerScoringContext{}, nil
}

// ActivityScore is the per-activity output of a batch run
type ActivityScore struct {
	ActivityID string                  `json:"activity_id"`
	Delta      models.TerritoryDelta   `json:"delta"`
	XP         models.XPBreakdown      `json:"xp"`
	Total      int                     `json:"total"`
	Pending    *models.PendingActivity `json:"pending,omitempty"`
}

// ConquestService orchestrates trace processing: conquest, scoring and
// persistence, with per-activity atomicity. One instance serves one user
// session.
type ConquestService struct {
	processor     *conquest.Processor
	engine        scoring.Engine
	ledger        *ledger.Ledger
	territoryRepo *repository.TerritoryRepository
	activityRepo  *repository.ActivityRepository
	contexts      ScoringContextProvider

	mu     sync.Mutex
	cancel context.CancelFunc // cancels the in-flight batch, if any
	closed bool
}

// NewConquestService creates a conquest service for one user session
func NewConquestService(
	p *conquest.Processor,
	engine scoring.Engine,
	l *ledger.Ledger,
	territoryRepo *repository.TerritoryRepository,
	activityRepo *repository.ActivityRepository,
	contexts ScoringContextProvider,
) *ConquestService {
	if contexts == nil {
		contexts = StaticScoringContext{}
	}
	return &ConquestService{
		processor:     p,
		engine:        engine,
		ledger:        l,
		territoryRepo: territoryRepo,
		activityRepo:  activityRepo,
		contexts:      contexts,
	}
}

// ProcessBatch runs a batch of activity traces through the conquest
// processor and the scoring engine in chronological order. Base XP earned by
// earlier activities in the batch counts against the daily cap of later
// ones, so a batch import cannot bypass the cap.
//
// Each activity is one unit of work: score and persist first, ledger commit
// after, via the processor's commit hook. A failure at any activity leaves
// that activity (and the rest of the batch) out of the ledger entirely.
func (s *ConquestService) ProcessBatch(ctx context.Context, traces []models.ActivityTrace) ([]ActivityScore, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is closed")
	}
	batchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	var scores []ActivityScore
	batchBaseXP := 0

	commit := func(r conquest.BatchResult) error {
		if r.Pending != nil {
			if repoErr := s.activityRepo.SavePending(r.Activity, *r.Pending); repoErr != nil {
				log.Printf("[ConquestService] failed to persist pending activity %s: %v", r.Activity.ID, repoErr)
			}
			scores = append(scores, ActivityScore{ActivityID: r.Activity.ID, Pending: r.Pending})
			return nil
		}

		pc, err := s.contexts.ScoringContext(batchCtx, r.Activity)
		if err != nil {
			return fmt.Errorf("failed to fetch scoring context for %s: %w", r.Activity.ID, err)
		}
		pc.TodayBaseXP += batchBaseXP

		xp := s.engine.Score(r.Activity, r.Delta, pc)

		if err := s.territoryRepo.SaveCells(r.Cells); err != nil {
			return fmt.Errorf("failed to persist cells for %s: %w", r.Activity.ID, err)
		}
		if err := s.activityRepo.SaveProcessed(r.Activity, r.Delta, xp); err != nil {
			return fmt.Errorf("failed to persist activity %s: %w", r.Activity.ID, err)
		}

		batchBaseXP += xp.Base
		scores = append(scores, ActivityScore{
			ActivityID: r.Activity.ID,
			Delta:      r.Delta,
			XP:         xp,
			Total:      xp.Total(),
		})
		return nil
	}

	if _, err := s.processor.ProcessBatch(batchCtx, traces, commit); err != nil {
		return scores, err
	}
	return scores, nil
}

// Score returns the persisted outcome for one processed activity
func (s *ConquestService) Score(activityID string) (*models.TerritoryDelta, *models.XPBreakdown, error) {
	return s.activityRepo.GetScore(activityID)
}

// PendingActivities lists activities waiting for a retry
func (s *ConquestService) PendingActivities() ([]models.PendingActivity, error) {
	return s.activityRepo.ListPending()
}

// Logout abandons any in-flight batch and clears the ledger. The session
// cannot process further batches afterwards.
func (s *ConquestService) Logout() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.ledger.Clear()
	log.Printf("[ConquestService] session closed, ledger cleared")
}
