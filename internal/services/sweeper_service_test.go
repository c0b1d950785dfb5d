package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/models"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
	"github.com/example/bozor/internal/tier"
)

// MockAdSweepStore is a mock implementation of services.AdSweepStore.
type MockAdSweepStore struct {
	mock.Mock
}

func (m *MockAdSweepStore) ListExpiredPremium(ctx context.Context, now time.Time) ([]models.Ad, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ad), args.Error(1)
}

func (m *MockAdSweepStore) DowngradeAd(ctx context.Context, adID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, adID, now)
	return args.Bool(0), args.Error(1)
}

func expiredAd(expiredAt time.Time) models.Ad {
	ad := models.Ad{
		AdType:           tier.Premium7d,
		Status:           models.AdStatusApproved,
		PremiumExpiresAt: &expiredAt,
	}
	ad.ID = uuid.New()
	return ad
}

func TestSweep_DowngradesLapsedPremium(t *testing.T) {
	bought := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := bought.Add(7*24*time.Hour + time.Second)
	clk := clock.NewFake(now)

	store := new(MockAdSweepStore)
	hub := realtime.NewHub()
	svc := services.NewSweeperService(store, hub, clk, clock.NewFakeTicker(), time.Minute)

	sub := hub.Subscribe(realtime.TableAds)
	defer sub.Unsubscribe()

	first := expiredAd(bought.Add(7 * 24 * time.Hour))
	second := expiredAd(bought.Add(24 * time.Hour))

	store.On("ListExpiredPremium", mock.Anything, now).Return([]models.Ad{first, second}, nil)
	store.On("DowngradeAd", mock.Anything, first.ID, now).Return(true, nil)
	store.On("DowngradeAd", mock.Anything, second.ID, now).Return(true, nil)

	converted, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), converted)

	for i := 0; i < 2; i++ {
		select {
		case evt := <-sub.C:
			downgraded := evt.New.(models.Ad)
			assert.Equal(t, tier.Standard, downgraded.AdType)
			assert.Nil(t, downgraded.PremiumExpiresAt)
			// Moderation status is untouched by the sweep.
			assert.Equal(t, models.AdStatusApproved, downgraded.Status)
		default:
			t.Fatal("expected an ads update on the change feed")
		}
	}

	store.AssertExpectations(t)
}

func TestSweep_ConcurrentSweepsConverge(t *testing.T) {
	now := time.Date(2024, 1, 8, 0, 0, 1, 0, time.UTC)
	clk := clock.NewFake(now)

	store := new(MockAdSweepStore)
	hub := realtime.NewHub()
	svc := services.NewSweeperService(store, hub, clk, clock.NewFakeTicker(), time.Minute)

	sub := hub.Subscribe(realtime.TableAds)
	defer sub.Unsubscribe()

	won := expiredAd(now.Add(-time.Hour))
	lost := expiredAd(now.Add(-time.Hour))

	store.On("ListExpiredPremium", mock.Anything, now).Return([]models.Ad{won, lost}, nil)
	store.On("DowngradeAd", mock.Anything, won.ID, now).Return(true, nil)
	// The guarded update reports zero rows when another sweep already
	// downgraded the listing.
	store.On("DowngradeAd", mock.Anything, lost.ID, now).Return(false, nil)

	converted, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), converted)

	select {
	case evt := <-sub.C:
		assert.Equal(t, won.ID, evt.New.(models.Ad).ID)
	default:
		t.Fatal("expected one ads update")
	}
	select {
	case <-sub.C:
		t.Fatal("lost downgrade must not publish an event")
	default:
	}
}

func TestSweep_DowngradeErrorSkipsListing(t *testing.T) {
	now := time.Now()
	clk := clock.NewFake(now)
	store := new(MockAdSweepStore)
	svc := services.NewSweeperService(store, realtime.NewHub(), clk, clock.NewFakeTicker(), time.Minute)

	broken := expiredAd(now.Add(-time.Hour))
	fine := expiredAd(now.Add(-time.Hour))

	store.On("ListExpiredPremium", mock.Anything, now).Return([]models.Ad{broken, fine}, nil)
	store.On("DowngradeAd", mock.Anything, broken.ID, now).Return(false, errors.New("deadlock detected"))
	store.On("DowngradeAd", mock.Anything, fine.ID, now).Return(true, nil)

	converted, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), converted)
	store.AssertExpectations(t)
}

func TestSweep_ListErrorPropagates(t *testing.T) {
	clk := clock.NewFake(time.Now())
	store := new(MockAdSweepStore)
	svc := services.NewSweeperService(store, realtime.NewHub(), clk, clock.NewFakeTicker(), time.Minute)

	store.On("ListExpiredPremium", mock.Anything, mock.Anything).Return(nil, errors.New("relation missing"))

	converted, err := svc.Sweep(context.Background())

	require.Error(t, err)
	assert.Zero(t, converted)
}

func TestRun_SweepsEagerlyThenOnTicks(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewFakeTicker()
	store := new(MockAdSweepStore)
	svc := services.NewSweeperService(store, realtime.NewHub(), clk, ticker, 30*time.Minute)

	sweeps := make(chan struct{}, 4)
	store.On("ListExpiredPremium", mock.Anything, mock.Anything).
		Return([]models.Ad{}, nil).
		Run(func(mock.Arguments) { sweeps <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	waitSweep := func() {
		select {
		case <-sweeps:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a sweep")
		}
	}

	waitSweep() // eager sweep at startup

	clk.Advance(30 * time.Minute)
	ticker.Tick(clk.Now())
	waitSweep()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
	assert.True(t, ticker.Stopped())
}
