package service

import (
	"fmt"
	"log"
	"time"

	"github.com/runconquer/territory-backend-go/internal/ledger"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/repository"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// TerritoryService answers the territory query surface: by region, by
// activity and by coordinate. Reads run expiry lazily so callers never see
// lapsed tenure.
type TerritoryService struct {
	ledger *ledger.Ledger
	repo   *repository.TerritoryRepository
	grid   spatial.Grid
}

// NewTerritoryService creates a new territory service
func NewTerritoryService(l *ledger.Ledger, repo *repository.TerritoryRepository, grid spatial.Grid) *TerritoryService {
	return &TerritoryService{ledger: l, repo: repo, grid: grid}
}

// LoadFromStore fills the ledger from the persisted cell rows, typically at
// session start. Boundary repair happens inside the repository scan.
func (s *TerritoryService) LoadFromStore() error {
	cells, err := s.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load persisted territories: %w", err)
	}

	s.ledger.Upsert(cells)
	dropped := s.ledger.ExpireNow(time.Now())
	log.Printf("[TerritoryService] loaded %d cells, expired %d on load", len(cells), len(dropped))
	return nil
}

// Region returns the owned cells whose center lies inside a bounding box
func (s *TerritoryService) Region(f models.CellFilter) []models.Cell {
	s.expireAndPersist()
	return s.ledger.SnapshotRegion(f)
}

// ByActivity returns the cells claimed or renewed by one activity
func (s *TerritoryService) ByActivity(activityID string) []models.Cell {
	s.expireAndPersist()
	return s.ledger.SnapshotByActivity(activityID)
}

// OwnerAt returns the cell covering a coordinate, if anyone currently owns
// it. The bool reports ownership.
func (s *TerritoryService) OwnerAt(c models.Coordinate) (models.Cell, bool) {
	s.expireAndPersist()

	x, y := s.grid.CellIndex(c)
	cell, ok := s.ledger.Get(spatial.CellID(x, y))
	if !ok || !cell.Owned() {
		return models.Cell{}, false
	}
	return cell, true
}

// ExpireTick runs one expiry sweep, used by the periodic ticker
func (s *TerritoryService) ExpireTick() int {
	expired := s.expireAndPersist()
	return len(expired)
}

func (s *TerritoryService) expireAndPersist() []models.Cell {
	expired := s.ledger.ExpireNow(time.Now())
	if len(expired) == 0 {
		return nil
	}

	ids := make([]string, len(expired))
	for i, c := range expired {
		ids[i] = c.ID
	}
	if err := s.repo.DeleteCells(ids); err != nil {
		// The ledger already dropped them; the rows retry on the next sweep
		log.Printf("[TerritoryService] failed to delete %d expired rows: %v", len(ids), err)
	}
	return expired
}
