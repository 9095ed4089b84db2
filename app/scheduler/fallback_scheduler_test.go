package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	mu       sync.Mutex
	due      []uint64
	fail     map[uint64]error
	selected []uint64
	scans    int
}

func (f *fakeRegistry) CampaignsAwaitingFallback(time.Time) []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return f.due
}

func (f *fakeRegistry) FallbackSelect(_ context.Context, id uint64, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return "", err
	}
	f.selected = append(f.selected, id)
	return "applicant", nil
}

func (f *fakeRegistry) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func TestNewFallbackSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewFallbackScheduler(&fakeRegistry{}, "not a schedule", nil)
	require.Error(t, err)

	_, err = NewFallbackScheduler(&fakeRegistry{}, "*/5 * * * * *", nil)
	require.NoError(t, err)
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := &fakeRegistry{
		due:  []uint64{1, 2, 3},
		fail: map[uint64]error{2: errors.New("already selected")},
	}
	s, err := NewFallbackScheduler(reg, "@every 1m", zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, []uint64{1, 3}, reg.selected)
	assert.Equal(t, 1, logs.FilterMessage("Fallback selection failed").Len())
	assert.Equal(t, 2, logs.FilterMessage("Fallback applicant selected").Len())
}

func TestRunOnceStopsOnCancelledContext(t *testing.T) {
	reg := &fakeRegistry{due: []uint64{1, 2}}
	s, err := NewFallbackScheduler(reg, "@every 1m", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.RunOnce(ctx))
	assert.Empty(t, reg.selected)
}

func TestRunOnceSelectsThroughRegistry(t *testing.T) {
	ctx := context.Background()
	registry := businessflow.NewRegistry(businessflow.RegistryConfig{
		Owner:               "owner",
		FallbackGracePeriod: time.Hour,
	}, businessflow.RegistryDeps{
		Policy: businessflow.NewUniformSelectionPolicy(businessflow.CryptoRandomSource{}),
	})
	require.NoError(t, registry.AddSponsor(ctx, "owner", "sponsor", businessflow.SponsorProfile{}, t0))
	id, err := registry.CreateCampaign(ctx, "sponsor", businessflow.CampaignParams{
		Name:                "Launch",
		LikeGoal:            2,
		ApplicationDuration: time.Minute,
		ActivityDuration:    time.Hour,
	}, 5, t0)
	require.NoError(t, err)
	require.NoError(t, registry.Apply(ctx, id, "alice", t0.Add(time.Second)))

	s, err := NewFallbackScheduler(registry, "@every 1m", nil)
	require.NoError(t, err)

	s.now = func() time.Time { return t0.Add(30 * time.Minute) }
	assert.Equal(t, 0, s.RunOnce(ctx))

	s.now = func() time.Time { return t0.Add(2 * time.Hour) }
	assert.Equal(t, 1, s.RunOnce(ctx))

	view, err := registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.SelectedApplicant)

	assert.Equal(t, 0, s.RunOnce(ctx))
}

func TestStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := &fakeRegistry{}
	s, err := NewFallbackScheduler(reg, "* * * * * *", nil)
	require.NoError(t, err)

	stop, err := s.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reg.scanCount() > 0 }, 3*time.Second, 20*time.Millisecond)
	stop()
}
