package service

import (
	"context"
	"log"
	"sync"

	"github.com/runconquer/territory-backend-go/internal/conflict"
	"github.com/runconquer/territory-backend-go/internal/conquest"
	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/repository"
)

// NameResolver looks up a rival's display name. The social profile store is
// an external collaborator; lookups are lightweight and may fan out.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// rival name lookups run with modest fan-out, unlike batch processing which
// is limited to one in-flight operation
const nameLookupWorkers = 4

// SyncService owns the reconciliation side of a session: the debounced
// conflict reconciler fed by the remote mirror stream, the mirror cache, and
// the lost-territory notification surface.
type SyncService struct {
	reconciler *conflict.Reconciler
	processor  *conquest.Processor
	mirrorRepo *repository.MirrorRepository
	names      NameResolver
}

// NewSyncService wires the reconciler to the processor: lost cells feed the
// recapture bookkeeping and the mirror feeds the rival view.
func NewSyncService(
	r *conflict.Reconciler,
	p *conquest.Processor,
	mirrorRepo *repository.MirrorRepository,
	names NameResolver,
) *SyncService {
	if p != nil {
		r.OnLost(p.MarkLost)
		p.SetRivalView(r)
	}
	return &SyncService{reconciler: r, processor: p, mirrorRepo: mirrorRepo, names: names}
}

// OfferMirror implements the mirror stream sink: documents go to the
// reconciler and to the on-disk mirror cache.
func (s *SyncService) OfferMirror(cells []models.Cell) {
	if s.mirrorRepo != nil {
		if err := s.mirrorRepo.SaveCells(cells); err != nil {
			log.Printf("[SyncService] failed to cache %d mirror cells: %v", len(cells), err)
		}
	}
	s.reconciler.OfferMirror(cells)
}

// Start primes the reconciler from the mirror cache and launches its loop.
// The initial reconcile handles the reinstall case: remotely-persisted own
// cells absent from the local ledger come back immediately.
func (s *SyncService) Start(ctx context.Context) error {
	if s.mirrorRepo != nil {
		cached, err := s.mirrorRepo.LoadAll()
		if err != nil {
			return err
		}
		if len(cached) > 0 {
			s.reconciler.OfferMirror(cached)
			log.Printf("[SyncService] primed reconciler with %d cached mirror cells", len(cached))
		}
	}

	go s.reconciler.Run(ctx)
	return nil
}

// LostTerritories drains the accumulated lost notifications, resolving
// rival display names that the mirror did not carry.
func (s *SyncService) LostTerritories(ctx context.Context) []conflict.LostNotification {
	notes := s.reconciler.DrainLost()
	s.fillNames(ctx, notes)
	return notes
}

// RivalTerritories returns the rival cells seen in the last reconcile pass
func (s *SyncService) RivalTerritories() []models.Cell {
	return s.reconciler.RivalCells()
}

// fillNames resolves missing display names with bounded concurrency
func (s *SyncService) fillNames(ctx context.Context, notes []conflict.LostNotification) {
	if s.names == nil {
		return
	}

	sem := make(chan struct{}, nameLookupWorkers)
	var wg sync.WaitGroup

	for i := range notes {
		if notes[i].RivalName != "" || notes[i].RivalID == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(n *conflict.LostNotification) {
			defer wg.Done()
			defer func() { <-sem }()

			name, err := s.names.DisplayName(ctx, n.RivalID)
			if err != nil {
				log.Printf("[SyncService] name lookup failed for %s: %v", n.RivalID, err)
				return
			}
			n.RivalName = name
		}(&notes[i])
	}

	wg.Wait()
}
