package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/tier"
)

// AdSweepStore is the record-store surface the sweeper needs.
type AdSweepStore interface {
	ListExpiredPremium(ctx context.Context, now time.Time) ([]models.Ad, error)
	DowngradeAd(ctx context.Context, adID uuid.UUID, now time.Time) (bool, error)
}

// SweeperService downgrades premium listings whose paid period has lapsed.
// It never touches a listing's moderation status. Sweeps are safe to run
// concurrently: the guarded downgrade predicate makes duplicates converge.
type SweeperService struct {
	store    AdSweepStore
	hub      *realtime.Hub
	clk      clock.Clock
	sched    clock.Scheduler
	interval time.Duration
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(store AdSweepStore, hub *realtime.Hub, clk clock.Clock, sched clock.Scheduler, interval time.Duration) *SweeperService {
	return &SweeperService{store: store, hub: hub, clk: clk, sched: sched, interval: interval}
}

// Sweep finds all lapsed premium listings and downgrades them, returning the
// number actually converted by this invocation.
func (s *SweeperService) Sweep(ctx context.Context) (int64, error) {
	now := s.clk.Now()

	ads, err := s.store.ListExpiredPremium(ctx, now)
	if err != nil {
		return 0, err
	}

	var converted int64
	for _, ad := range ads {
		ok, err := s.store.DowngradeAd(ctx, ad.ID, now)
		if err != nil {
			log.Printf("[Sweeper] downgrade failed for ad %s: %v", ad.ID, err)
			continue
		}
		if !ok {
			// Another sweep got there first.
			continue
		}
		converted++

		old := ad
		ad.AdType = tier.Standard
		ad.PremiumExpiresAt = nil
		s.hub.Publish(realtime.Event{
			Type:  realtime.EventUpdate,
			Table: realtime.TableAds,
			New:   ad,
			Old:   old,
		})
	}

	return converted, nil
}

// Run sweeps once eagerly, then on every scheduler tick until the context is
// cancelled. Errors are logged and retried on the next tick, never fatal.
func (s *SweeperService) Run(ctx context.Context) {
	s.sweepAndLog(ctx)

	ticker := s.sched.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.sweepAndLog(ctx)
		}
	}
}

func (s *SweeperService) sweepAndLog(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		log.Printf("[Sweeper] sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] downgraded %d expired premium ads", n)
	}
}
