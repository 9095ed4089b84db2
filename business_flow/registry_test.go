package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/likebounty/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryHarness struct {
	registry  *Registry
	funds     *fakeTransferer
	collector *fakeCollector
	events    *recordingSink
}

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Owner:                  "owner",
		MaxApplicationDuration: 7 * 24 * time.Hour,
		MinActivityDuration:    time.Minute,
		FallbackGracePeriod:    time.Hour,
	}
}

func newRegistryHarness(t *testing.T) *registryHarness {
	t.Helper()
	h := &registryHarness{
		funds:     &fakeTransferer{},
		collector: &fakeCollector{},
		events:    &recordingSink{},
	}
	h.registry = NewRegistry(testRegistryConfig(), RegistryDeps{
		Events:     h.events,
		Collector:  h.collector,
		Transferer: h.funds,
		Policy:     NewUniformSelectionPolicy(fixedSource{idx: 1}),
	})
	require.NoError(t, h.registry.AddSponsor(context.Background(), "owner", "sponsor", SponsorProfile{Name: "Acme"}, t0))
	return h
}

func (h *registryHarness) create(t *testing.T) uint64 {
	t.Helper()
	id, err := h.registry.CreateCampaign(context.Background(), "sponsor", testParams(), 10, t0)
	require.NoError(t, err)
	return id
}

func TestRegistryGoalMetThenClaimOnce(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)

	id := h.create(t)
	assert.Equal(t, uint64(1), id)
	require.Len(t, h.collector.collects, 1)
	assert.Equal(t, "sponsor", h.collector.collects[0].to)
	assert.Equal(t, uint64(10), h.collector.collects[0].amount)

	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0.Add(10*time.Second)))
	require.NoError(t, h.registry.Select(ctx, id, "sponsor", "creator", t0.Add(20*time.Second)))
	for i := 1; i <= 3; i++ {
		require.NoError(t, h.registry.Engage(ctx, id, fmt.Sprintf("fan%d", i), t0.Add(150*time.Second)))
	}

	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusFinished, view.Status)
	assert.Equal(t, models.CampaignOutcomeGoalMet, view.Outcome)

	require.NoError(t, h.registry.ClaimPayout(ctx, id, "creator", t0.Add(200*time.Second)))
	assert.Equal(t, uint64(10), h.funds.received("creator"))

	err = h.registry.ClaimPayout(ctx, id, "creator", t0.Add(210*time.Second))
	assert.ErrorIs(t, err, ErrNothingToClaim)
	assert.Equal(t, uint64(10), h.funds.received("creator"))

	assert.Equal(t, []EventType{
		EventSponsorAdded,
		EventCampaignCreated,
		EventApplied,
		EventSelected,
		EventEngaged,
		EventEngaged,
		EventEngaged,
		EventFinished,
		EventPayoutClaimed,
	}, h.events.types())
}

func TestRegistryRefundAfterShortfall(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)

	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0))
	require.NoError(t, h.registry.Select(ctx, id, "sponsor", "creator", t0.Add(time.Second)))
	require.NoError(t, h.registry.Engage(ctx, id, "fan1", t0.Add(150*time.Second)))
	require.NoError(t, h.registry.Engage(ctx, id, "fan2", t0.Add(150*time.Second)))

	require.NoError(t, h.registry.ExpireAndRefund(ctx, id, "sponsor", t0.Add(301*time.Second)))
	assert.Equal(t, uint64(10), h.funds.received("sponsor"))

	err := h.registry.ClaimPayout(ctx, id, "creator", t0.Add(302*time.Second))
	assert.True(t, IsStateError(err))
	assert.Zero(t, h.funds.received("creator"))
}

func TestRegistryDuplicateApplication(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)

	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0))
	err := h.registry.Apply(ctx, id, "creator", t0.Add(time.Second))
	assert.True(t, IsConflictError(err))

	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.ApplicationCount)
}

func TestRegistryCreateCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("NotWhitelisted", func(t *testing.T) {
		h := newRegistryHarness(t)
		_, err := h.registry.CreateCampaign(ctx, "stranger", testParams(), 10, t0)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, IsAuthorizationError(err))
		assert.Equal(t, uint64(1), h.registry.NextCampaignID())
		assert.Empty(t, h.collector.collects)
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(*CampaignParams)
			payment uint64
			code    string
		}{
			{"ZeroPayment", func(*CampaignParams) {}, 0, "PAYMENT_REQUIRED"},
			{"ZeroGoal", func(p *CampaignParams) { p.LikeGoal = 0 }, 10, "LIKE_GOAL_REQUIRED"},
			{"BlankName", func(p *CampaignParams) { p.Name = "   " }, 10, "NAME_REQUIRED"},
			{"ZeroApplicationDuration", func(p *CampaignParams) { p.ApplicationDuration = 0 }, 10, "APPLICATION_DURATION_INVALID"},
			{"ApplicationTooLong", func(p *CampaignParams) { p.ApplicationDuration = 8 * 24 * time.Hour }, 10, "APPLICATION_DURATION_TOO_LONG"},
			{"ZeroActivityDuration", func(p *CampaignParams) { p.ActivityDuration = 0 }, 10, "ACTIVITY_DURATION_INVALID"},
			{"ActivityTooShort", func(p *CampaignParams) { p.ActivityDuration = 30 * time.Second }, 10, "ACTIVITY_DURATION_TOO_SHORT"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := newRegistryHarness(t)
				params := testParams()
				tc.mutate(&params)

				_, err := h.registry.CreateCampaign(ctx, "sponsor", params, tc.payment, t0)
				assert.ErrorIs(t, err, ErrInvalidParameters)
				assert.Equal(t, tc.code, CodeOf(err))
				assert.Equal(t, uint64(1), h.registry.NextCampaignID())
			})
		}
	})

	t.Run("CollectFailureConsumesNoID", func(t *testing.T) {
		h := newRegistryHarness(t)
		h.collector.fail = NewBusinessError(KindConflict, "INSUFFICIENT_BALANCE", "Wallet balance is too low", ErrInsufficientBalance)

		_, err := h.registry.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
		assert.True(t, IsInsufficientBalance(err))
		assert.True(t, IsConflictError(err))
		assert.Equal(t, uint64(1), h.registry.NextCampaignID())
		assert.Empty(t, h.registry.ListCampaigns())

		h.collector.fail = nil
		id := h.create(t)
		assert.Equal(t, uint64(1), id)
	})

	t.Run("JournalFailureConsumesNoID", func(t *testing.T) {
		h := newRegistryHarness(t)
		h.registry.journal = failingCommitter{err: errors.New("database down")}

		_, err := h.registry.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, "CAMPAIGN_CREATE_FAILED", CodeOf(err))
		assert.Equal(t, uint64(1), h.registry.NextCampaignID())
	})

	t.Run("SequentialIDsAndSponsorIndex", func(t *testing.T) {
		h := newRegistryHarness(t)
		require.NoError(t, h.registry.AddSponsor(ctx, "owner", "other", SponsorProfile{Name: "Other"}, t0))

		first := h.create(t)
		second, err := h.registry.CreateCampaign(ctx, "other", testParams(), 5, t0)
		require.NoError(t, err)
		third := h.create(t)

		assert.Equal(t, []uint64{1, 2, 3}, []uint64{first, second, third})
		assert.Equal(t, []uint64{1, 3}, h.registry.ListCampaignsForSponsor("sponsor"))
		assert.Equal(t, []uint64{2}, h.registry.ListCampaignsForSponsor("other"))
		assert.Empty(t, h.registry.ListCampaignsForSponsor("nobody"))
		assert.Equal(t, []uint64{1, 2, 3}, h.registry.ListCampaigns())
		assert.Equal(t, uint64(4), h.registry.NextCampaignID())
	})
}

func TestRegistryWhitelist(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)

	entry, ok := h.registry.Sponsor("sponsor")
	require.True(t, ok)
	assert.Equal(t, "Acme", entry.Name)
	assert.True(t, entry.Enabled)

	err := h.registry.AddSponsor(ctx, "sponsor", "friend", SponsorProfile{}, t0)
	assert.True(t, IsAuthorizationError(err))

	err = h.registry.AddSponsor(ctx, "owner", "sponsor", SponsorProfile{Name: "Acme"}, t0)
	assert.ErrorIs(t, err, ErrAlreadyWhitelisted)

	err = h.registry.AddSponsor(ctx, "owner", "", SponsorProfile{}, t0)
	assert.True(t, IsValidationError(err))

	id := h.create(t)

	err = h.registry.RemoveSponsor(ctx, "sponsor", "sponsor", t0)
	assert.True(t, IsAuthorizationError(err))
	err = h.registry.RemoveSponsor(ctx, "owner", "ghost", t0)
	assert.ErrorIs(t, err, ErrNotWhitelisted)

	require.NoError(t, h.registry.RemoveSponsor(ctx, "owner", "sponsor", t0))
	_, ok = h.registry.Sponsor("sponsor")
	assert.False(t, ok)

	_, err = h.registry.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// existing campaigns keep working
	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0))
	require.NoError(t, h.registry.Select(ctx, id, "sponsor", "creator", t0))

	require.NoError(t, h.registry.AddSponsor(ctx, "owner", "sponsor", SponsorProfile{Name: "Acme"}, t0))
	assert.Equal(t, EventSponsorAdded, h.events.last().Type)
}

func TestRegistryPause(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)

	err := h.registry.Pause(ctx, "sponsor", t0)
	assert.True(t, IsAuthorizationError(err))
	assert.False(t, h.registry.Paused())

	err = h.registry.Unpause(ctx, "owner", t0)
	assert.ErrorIs(t, err, ErrRegistryNotPaused)

	require.NoError(t, h.registry.Pause(ctx, "owner", t0))
	assert.True(t, h.registry.Paused())
	assert.Equal(t, "owner", h.events.last().Owner)

	err = h.registry.Pause(ctx, "owner", t0)
	assert.True(t, IsConflictError(err))

	_, err = h.registry.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
	assert.True(t, IsRegistryPaused(err))
	assert.True(t, IsStateError(err))
	assert.True(t, IsRegistryPaused(h.registry.Apply(ctx, id, "creator", t0)))
	assert.True(t, IsRegistryPaused(h.registry.ExpireAndRefund(ctx, id, "sponsor", t0.Add(time.Hour))))
	assert.Nil(t, h.registry.CampaignsAwaitingFallback(t0.Add(2*time.Hour)))

	// reads still work
	_, err = h.registry.GetCampaign(id)
	assert.NoError(t, err)

	require.NoError(t, h.registry.Unpause(ctx, "owner", t0))
	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0))
}

func TestRegistryUnknownCampaign(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)

	_, err := h.registry.GetCampaign(42)
	assert.True(t, IsUnknownCampaign(err))
	assert.True(t, IsNotFoundError(err))

	assert.True(t, IsUnknownCampaign(h.registry.Apply(ctx, 42, "creator", t0)))
	assert.True(t, IsUnknownCampaign(h.registry.Engage(ctx, 42, "fan", t0)))
	_, err = h.registry.FallbackSelect(ctx, 42, t0)
	assert.True(t, IsUnknownCampaign(err))
}

func TestRegistryFallbackSelect(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)
	empty := h.create(t)

	require.NoError(t, h.registry.Apply(ctx, id, "carol", t0))
	require.NoError(t, h.registry.Apply(ctx, id, "alice", t0))
	require.NoError(t, h.registry.Apply(ctx, id, "bob", t0))

	graceEnd := t0.Add(100*time.Second + time.Hour)

	_, err := h.registry.FallbackSelect(ctx, id, graceEnd)
	assert.ErrorIs(t, err, ErrFallbackNotDue)
	assert.Empty(t, h.registry.CampaignsAwaitingFallback(graceEnd))

	due := graceEnd.Add(time.Second)
	assert.Equal(t, []uint64{id}, h.registry.CampaignsAwaitingFallback(due))

	chosen, err := h.registry.FallbackSelect(ctx, id, due)
	require.NoError(t, err)
	// applicants are sorted before the draw, index 1 is bob
	assert.Equal(t, "bob", chosen)

	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, view.Status)
	assert.Equal(t, "bob", view.SelectedApplicant)
	assert.Equal(t, uint64(2), view.ApplicationCount)

	_, err = h.registry.FallbackSelect(ctx, id, due)
	assert.ErrorIs(t, err, ErrAlreadySelected)

	_, err = h.registry.FallbackSelect(ctx, empty, due)
	assert.ErrorIs(t, err, ErrNoApplicants)
	assert.Empty(t, h.registry.CampaignsAwaitingFallback(due))
}

func TestRegistryFallbackWithoutPolicy(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(testRegistryConfig(), RegistryDeps{})
	require.NoError(t, r.AddSponsor(ctx, "owner", "sponsor", SponsorProfile{}, t0))
	id, err := r.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
	require.NoError(t, err)
	require.NoError(t, r.Apply(ctx, id, "alice", t0))

	_, err = r.FallbackSelect(ctx, id, t0.Add(2*time.Hour))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "SELECTION_POLICY_MISSING", CodeOf(err))
}

func TestRegistryConcurrentEngagementsFinishOnce(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)
	require.NoError(t, h.registry.Apply(ctx, id, "creator", t0))
	require.NoError(t, h.registry.Select(ctx, id, "sponsor", "creator", t0))

	const fans = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		finished int
	)
	for i := range fans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := h.registry.Engage(ctx, id, fmt.Sprintf("fan%d", i), t0.Add(150*time.Second))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case IsAlreadyFinished(err):
				finished++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, fans-3, finished)

	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), view.EngagementCount)
	assert.Equal(t, models.CampaignOutcomeGoalMet, view.Outcome)

	var finishedEvents int
	for _, typ := range h.events.types() {
		if typ == EventFinished {
			finishedEvents++
		}
	}
	assert.Equal(t, 1, finishedEvents)
}

func TestRegistryRestore(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)
	require.NoError(t, h.registry.Apply(ctx, id, "alice", t0))
	require.NoError(t, h.registry.Apply(ctx, id, "bob", t0))
	require.NoError(t, h.registry.Select(ctx, id, "sponsor", "alice", t0))
	require.NoError(t, h.registry.Engage(ctx, id, "fan1", t0.Add(150*time.Second)))
	before, err := h.registry.GetCampaign(id)
	require.NoError(t, err)

	entry, _ := h.registry.Sponsor("sponsor")
	restored := NewRegistry(testRegistryConfig(), RegistryDeps{Transferer: h.funds})
	require.NoError(t, restored.Restore(&RegistryState{
		Paused:         false,
		NextCampaignID: 2,
		Sponsors:       []SponsorEntry{entry},
		Campaigns: []CampaignRecord{{
			View:       before,
			Applicants: []string{"bob"},
			Engagers:   []string{"fan1"},
		}},
	}))

	after, err := restored.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(2), restored.NextCampaignID())
	assert.Equal(t, []uint64{id}, restored.ListCampaignsForSponsor("sponsor"))

	err = restored.Engage(ctx, id, "fan1", t0.Add(160*time.Second))
	assert.ErrorIs(t, err, ErrAlreadyEngaged)
	require.NoError(t, restored.Engage(ctx, id, "fan2", t0.Add(160*time.Second)))
	require.NoError(t, restored.Engage(ctx, id, "fan3", t0.Add(160*time.Second)))
	require.NoError(t, restored.ClaimPayout(ctx, id, "alice", t0.Add(170*time.Second)))
	assert.Equal(t, uint64(10), h.funds.received("alice"))
}

func TestRegistryPublishDoesNotBlockOtherCampaigns(t *testing.T) {
	ctx := context.Background()
	sink := newBlockingSink(EventCampaignCreated)
	r := NewRegistry(testRegistryConfig(), RegistryDeps{Events: sink})
	require.NoError(t, r.AddSponsor(ctx, "owner", "sponsor", SponsorProfile{Name: "Acme"}, t0))

	done := make(chan error, 1)
	go func() {
		_, err := r.CreateCampaign(ctx, "sponsor", testParams(), 10, t0)
		done <- err
	}()
	<-sink.entered

	applied := make(chan error, 1)
	go func() {
		if err := r.AddSponsor(ctx, "owner", "other", SponsorProfile{}, t0); err != nil {
			applied <- err
			return
		}
		id, err := r.CreateCampaign(ctx, "other", testParams(), 10, t0)
		if err != nil {
			applied <- err
			return
		}
		applied <- r.Apply(ctx, id, "alice", t0)
	}()
	select {
	case err := <-applied:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("registry stayed locked while an event was being published")
	}
	assert.False(t, r.Paused())

	close(sink.release)
	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), r.NextCampaignID())
}

func TestRegistryRejectsAuthorityAsSponsor(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)

	err := h.registry.AddSponsor(ctx, "owner", DefaultRegistryAuthority, SponsorProfile{}, t0)
	assert.ErrorIs(t, err, ErrReservedIdentity)
	assert.True(t, IsValidationError(err))
	_, ok := h.registry.Sponsor(DefaultRegistryAuthority)
	assert.False(t, ok)
}

func TestRegistrySelectRejectsAuthorityCaller(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)
	require.NoError(t, h.registry.Apply(ctx, id, "alice", t0))

	err := h.registry.Select(ctx, id, DefaultRegistryAuthority, "alice", t0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCreated, view.Status)
	assert.Empty(t, view.SelectedApplicant)
}

func TestRegistryRestoreRejectsDuplicateLedgerRows(t *testing.T) {
	ctx := context.Background()
	h := newRegistryHarness(t)
	id := h.create(t)
	require.NoError(t, h.registry.Apply(ctx, id, "alice", t0))
	view, err := h.registry.GetCampaign(id)
	require.NoError(t, err)
	entry, _ := h.registry.Sponsor("sponsor")

	restored := NewRegistry(testRegistryConfig(), RegistryDeps{})
	err = restored.Restore(&RegistryState{
		NextCampaignID: 2,
		Sponsors:       []SponsorEntry{entry},
		Campaigns: []CampaignRecord{{
			View:       view,
			Applicants: []string{"alice", "alice"},
		}},
	})
	require.ErrorIs(t, err, ErrAlreadyRecorded)
	assert.Contains(t, err.Error(), "campaign 1")

	assert.Empty(t, restored.ListCampaigns())
	assert.Equal(t, uint64(1), restored.NextCampaignID())
	_, ok := restored.Sponsor("sponsor")
	assert.False(t, ok)
}
