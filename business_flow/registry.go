package businessflow

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultRegistryAuthority is the identity the registry uses when it selects
// an applicant on a sponsor's behalf
const DefaultRegistryAuthority = "registry"

// SponsorProfile is the data an owner supplies when whitelisting a sponsor
type SponsorProfile struct {
	Name string
}

// RegistryConfig holds the registry's owner and creation limits
type RegistryConfig struct {
	Owner                  string
	Authority              string
	MaxApplicationDuration time.Duration
	MinActivityDuration    time.Duration
	FallbackGracePeriod    time.Duration
}

// RegistryDeps are the collaborators of a registry. Any of them may be nil.
type RegistryDeps struct {
	Journal    Committer
	Events     EventSink
	Collector  FundsCollector
	Transferer FundsTransferer
	Policy     SelectionPolicy
}

// CampaignRegistry handles the sponsor whitelist and the campaign directory
type CampaignRegistry interface {
	AddSponsor(ctx context.Context, caller, identity string, profile SponsorProfile, now time.Time) error
	RemoveSponsor(ctx context.Context, caller, identity string, now time.Time) error
	Sponsor(identity string) (SponsorEntry, bool)
	Pause(ctx context.Context, caller string, now time.Time) error
	Unpause(ctx context.Context, caller string, now time.Time) error
	Paused() bool

	CreateCampaign(ctx context.Context, caller string, params CampaignParams, payment uint64, now time.Time) (uint64, error)
	GetCampaign(id uint64) (CampaignView, error)
	ListCampaignsForSponsor(sponsor string) []uint64
	ListCampaigns() []uint64
	NextCampaignID() uint64

	Apply(ctx context.Context, id uint64, identity string, now time.Time) error
	Select(ctx context.Context, id uint64, caller, identity string, now time.Time) error
	Engage(ctx context.Context, id uint64, identity string, now time.Time) error
	ClaimPayout(ctx context.Context, id uint64, caller string, now time.Time) error
	ExpireAndRefund(ctx context.Context, id uint64, caller string, now time.Time) error
	FallbackSelect(ctx context.Context, id uint64, now time.Time) (string, error)
	CampaignsAwaitingFallback(now time.Time) []uint64
}

// Registry is the in-memory CampaignRegistry. mu guards the whitelist, the
// id counter and the sponsor index; campaigns lock themselves. paused is
// written under mu and read without it.
type Registry struct {
	mu sync.RWMutex

	cfg       RegistryConfig
	sponsors  map[string]SponsorEntry
	bySponsor map[string][]uint64
	campaigns *xsync.Map[uint64, *Campaign]
	nextID    uint64
	paused    atomic.Bool

	journal    Committer
	events     EventSink
	collector  FundsCollector
	transferer FundsTransferer
	policy     SelectionPolicy
}

// NewRegistry creates an empty registry owned by cfg.Owner
func NewRegistry(cfg RegistryConfig, deps RegistryDeps) *Registry {
	if cfg.Authority == "" {
		cfg.Authority = DefaultRegistryAuthority
	}
	r := &Registry{
		cfg:        cfg,
		sponsors:   make(map[string]SponsorEntry),
		bySponsor:  make(map[string][]uint64),
		campaigns:  xsync.NewMap[uint64, *Campaign](),
		nextID:     1,
		journal:    deps.Journal,
		events:     deps.Events,
		collector:  deps.Collector,
		transferer: deps.Transferer,
		policy:     deps.Policy,
	}
	if r.journal == nil {
		r.journal = nopCommitter{}
	}
	if r.events == nil {
		r.events = nopEventSink{}
	}
	return r
}

// Restore replaces the registry contents with a persisted state. It must be
// called before the registry serves requests. Nothing changes when state is
// inconsistent.
func (r *Registry) Restore(state *RegistryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sponsors := make(map[string]SponsorEntry, len(state.Sponsors))
	for _, s := range state.Sponsors {
		sponsors[s.Identity] = s
	}

	bySponsor := make(map[string][]uint64)
	campaigns := make([]*Campaign, 0, len(state.Campaigns))
	nextID := max(state.NextCampaignID, 1)
	for _, rec := range state.Campaigns {
		c, err := restoreCampaign(rec.View, r.cfg.Authority, rec.Applicants, rec.Engagers, r.campaignDeps())
		if err != nil {
			return err
		}
		campaigns = append(campaigns, c)
		bySponsor[c.Sponsor()] = append(bySponsor[c.Sponsor()], c.ID())
		if c.ID() >= nextID {
			nextID = c.ID() + 1
		}
	}
	for sponsor := range bySponsor {
		slices.Sort(bySponsor[sponsor])
	}

	r.sponsors = sponsors
	r.bySponsor = bySponsor
	r.nextID = nextID
	r.campaigns.Clear()
	for _, c := range campaigns {
		r.campaigns.Store(c.ID(), c)
	}
	r.paused.Store(state.Paused)
	return nil
}

func (r *Registry) campaignDeps() CampaignDeps {
	return CampaignDeps{
		Committer:  r.journal,
		Events:     r.events,
		Transferer: r.transferer,
	}
}

// AddSponsor whitelists identity. Only the owner may call it.
func (r *Registry) AddSponsor(ctx context.Context, caller, identity string, profile SponsorProfile, now time.Time) error {
	if caller != r.cfg.Owner {
		return NewBusinessError(KindAuthorization, "NOT_REGISTRY_OWNER", "Only the registry owner can whitelist sponsors", ErrUnauthorized)
	}
	if identity == "" {
		return NewBusinessError(KindValidation, "IDENTITY_REQUIRED", "Sponsor identity is required", ErrEmptyIdentity)
	}
	if identity == r.cfg.Authority {
		return NewBusinessError(KindValidation, "IDENTITY_RESERVED", "Identity is reserved for the registry", ErrReservedIdentity)
	}

	evt, err := r.addSponsor(ctx, identity, profile, now)
	if err != nil {
		return err
	}
	r.events.Publish(ctx, evt)
	return nil
}

func (r *Registry) addSponsor(ctx context.Context, identity string, profile SponsorProfile, now time.Time) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sponsors[identity]; ok && existing.Enabled {
		return Event{}, NewBusinessError(KindConflict, "SPONSOR_ALREADY_WHITELISTED", "Sponsor is already whitelisted", ErrAlreadyWhitelisted)
	}

	entry := SponsorEntry{Identity: identity, Name: profile.Name, Enabled: true, AddedAt: now}
	evt := newEvent(EventSponsorAdded, 0, now)
	evt.Sponsor = identity
	evt.Name = profile.Name

	m := Mutation{Kind: MutationSponsorAdded, At: now, Identity: identity, Sponsor: &entry, Events: []Event{evt}}
	if err := r.commit(ctx, m); err != nil {
		return Event{}, err
	}

	r.sponsors[identity] = entry
	return evt, nil
}

// RemoveSponsor takes identity off the whitelist. Its campaigns keep running.
func (r *Registry) RemoveSponsor(ctx context.Context, caller, identity string, now time.Time) error {
	if caller != r.cfg.Owner {
		return NewBusinessError(KindAuthorization, "NOT_REGISTRY_OWNER", "Only the registry owner can remove sponsors", ErrUnauthorized)
	}

	evt, err := r.removeSponsor(ctx, identity, now)
	if err != nil {
		return err
	}
	r.events.Publish(ctx, evt)
	return nil
}

func (r *Registry) removeSponsor(ctx context.Context, identity string, now time.Time) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sponsors[identity]
	if !ok {
		return Event{}, NewBusinessError(KindNotFound, "SPONSOR_NOT_WHITELISTED", "Sponsor is not whitelisted", ErrNotWhitelisted)
	}

	evt := newEvent(EventSponsorRemoved, 0, now)
	evt.Sponsor = identity
	evt.Name = entry.Name

	m := Mutation{Kind: MutationSponsorRemoved, At: now, Identity: identity, Events: []Event{evt}}
	if err := r.commit(ctx, m); err != nil {
		return Event{}, err
	}

	delete(r.sponsors, identity)
	return evt, nil
}

// Sponsor returns the whitelist entry of identity
func (r *Registry) Sponsor(identity string) (SponsorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sponsors[identity]
	return entry, ok
}

// Pause stops creation and every campaign mutation until Unpause
func (r *Registry) Pause(ctx context.Context, caller string, now time.Time) error {
	return r.setPaused(ctx, caller, true, now)
}

// Unpause resumes normal operation
func (r *Registry) Unpause(ctx context.Context, caller string, now time.Time) error {
	return r.setPaused(ctx, caller, false, now)
}

func (r *Registry) setPaused(ctx context.Context, caller string, paused bool, now time.Time) error {
	if caller != r.cfg.Owner {
		return NewBusinessError(KindAuthorization, "NOT_REGISTRY_OWNER", "Only the registry owner can pause the registry", ErrUnauthorized)
	}

	evt, err := r.storePaused(ctx, caller, paused, now)
	if err != nil {
		return err
	}
	r.events.Publish(ctx, evt)
	return nil
}

func (r *Registry) storePaused(ctx context.Context, caller string, paused bool, now time.Time) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused.Load() == paused {
		if paused {
			return Event{}, NewBusinessError(KindConflict, "REGISTRY_ALREADY_PAUSED", "Registry is already paused", ErrRegistryPaused)
		}
		return Event{}, NewBusinessError(KindConflict, "REGISTRY_NOT_PAUSED", "Registry is not paused", ErrRegistryNotPaused)
	}

	kind, eventType := MutationUnpaused, EventRegistryUnpaused
	if paused {
		kind, eventType = MutationPaused, EventRegistryPaused
	}
	evt := newEvent(eventType, 0, now)
	evt.Owner = caller

	m := Mutation{Kind: kind, At: now, Identity: caller, Events: []Event{evt}}
	if err := r.commit(ctx, m); err != nil {
		return Event{}, err
	}

	r.paused.Store(paused)
	return evt, nil
}

// Paused reports whether the registry is paused
func (r *Registry) Paused() bool {
	return r.paused.Load()
}

// CreateCampaign validates params, collects payment from the sponsor into
// escrow and registers the campaign under the next id. No id is consumed
// when any step fails.
func (r *Registry) CreateCampaign(ctx context.Context, caller string, params CampaignParams, payment uint64, now time.Time) (uint64, error) {
	id, evt, err := r.createCampaign(ctx, caller, params, payment, now)
	if err != nil {
		return 0, err
	}
	r.events.Publish(ctx, evt)
	return id, nil
}

func (r *Registry) createCampaign(ctx context.Context, caller string, params CampaignParams, payment uint64, now time.Time) (uint64, Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused.Load() {
		return 0, Event{}, registryPausedError()
	}
	entry, ok := r.sponsors[caller]
	if !ok || !entry.Enabled {
		return 0, Event{}, NewBusinessError(KindAuthorization, "SPONSOR_NOT_WHITELISTED", "Only whitelisted sponsors can create campaigns", ErrUnauthorized)
	}
	if err := r.validateParams(params, payment); err != nil {
		return 0, Event{}, err
	}

	id := r.nextID
	c := NewCampaign(id, caller, r.cfg.Authority, params, payment, now, r.campaignDeps())
	view := c.View()

	evt := newEvent(EventCampaignCreated, id, now)
	evt.Name = view.Name
	evt.LikeGoal = view.LikeGoal
	evt.ActivityWindowEnd = &view.ActivityWindowEnd
	evt.Sponsor = caller

	m := Mutation{Kind: MutationCampaignCreated, At: now, Campaign: &view, Identity: caller, Events: []Event{evt}}
	err := r.journal.Commit(ctx, m, func(txCtx context.Context) error {
		if r.collector == nil {
			return nil
		}
		return r.collector.Collect(txCtx, caller, payment, FundsReference{CampaignID: id, Reason: FundsReasonEscrowHold})
	})
	if err != nil {
		return 0, Event{}, asBusinessError(err, "CAMPAIGN_CREATE_FAILED", "Failed to create campaign")
	}

	r.campaigns.Store(id, c)
	r.bySponsor[caller] = append(r.bySponsor[caller], id)
	r.nextID++
	return id, evt, nil
}

func (r *Registry) validateParams(params CampaignParams, payment uint64) error {
	switch {
	case payment == 0:
		return NewBusinessError(KindValidation, "PAYMENT_REQUIRED", "Campaign payment must be positive", ErrInvalidParameters)
	case params.LikeGoal == 0:
		return NewBusinessError(KindValidation, "LIKE_GOAL_REQUIRED", "Like goal must be positive", ErrInvalidParameters)
	case strings.TrimSpace(params.Name) == "":
		return NewBusinessError(KindValidation, "NAME_REQUIRED", "Campaign name is required", ErrInvalidParameters)
	case params.ApplicationDuration <= 0:
		return NewBusinessError(KindValidation, "APPLICATION_DURATION_INVALID", "Application duration must be positive", ErrInvalidParameters)
	case r.cfg.MaxApplicationDuration > 0 && params.ApplicationDuration > r.cfg.MaxApplicationDuration:
		return NewBusinessErrorf(KindValidation, "APPLICATION_DURATION_TOO_LONG", "Application duration must not exceed %s", ErrInvalidParameters, r.cfg.MaxApplicationDuration)
	case params.ActivityDuration <= 0:
		return NewBusinessError(KindValidation, "ACTIVITY_DURATION_INVALID", "Activity duration must be positive", ErrInvalidParameters)
	case params.ActivityDuration < r.cfg.MinActivityDuration:
		return NewBusinessErrorf(KindValidation, "ACTIVITY_DURATION_TOO_SHORT", "Activity duration must be at least %s", ErrInvalidParameters, r.cfg.MinActivityDuration)
	}
	return nil
}

// GetCampaign returns a view of one campaign
func (r *Registry) GetCampaign(id uint64) (CampaignView, error) {
	c, ok := r.campaigns.Load(id)
	if !ok {
		return CampaignView{}, unknownCampaignError(id)
	}
	return c.View(), nil
}

// ListCampaignsForSponsor returns the ids a sponsor created, ascending
func (r *Registry) ListCampaignsForSponsor(sponsor string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.bySponsor[sponsor])
}

// ListCampaigns returns every campaign id, ascending
func (r *Registry) ListCampaigns() []uint64 {
	ids := make([]uint64, 0, r.campaigns.Size())
	r.campaigns.Range(func(id uint64, _ *Campaign) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

// NextCampaignID returns the id the next created campaign will get
func (r *Registry) NextCampaignID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID
}

// Apply forwards to the campaign's Apply
func (r *Registry) Apply(ctx context.Context, id uint64, identity string, now time.Time) error {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return err
	}
	return c.Apply(ctx, identity, now)
}

// Select forwards to the campaign's Select
func (r *Registry) Select(ctx context.Context, id uint64, caller, identity string, now time.Time) error {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return err
	}
	return c.Select(ctx, caller, identity, now)
}

// Engage forwards to the campaign's Engage
func (r *Registry) Engage(ctx context.Context, id uint64, identity string, now time.Time) error {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return err
	}
	return c.Engage(ctx, identity, now)
}

// ClaimPayout forwards to the campaign's ClaimPayout
func (r *Registry) ClaimPayout(ctx context.Context, id uint64, caller string, now time.Time) error {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return err
	}
	return c.ClaimPayout(ctx, caller, now)
}

// ExpireAndRefund forwards to the campaign's ExpireAndRefund
func (r *Registry) ExpireAndRefund(ctx context.Context, id uint64, caller string, now time.Time) error {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return err
	}
	return c.ExpireAndRefund(ctx, caller, now)
}

// FallbackSelect picks an applicant through the selection policy once the
// sponsor's grace period after the application window has elapsed.
func (r *Registry) FallbackSelect(ctx context.Context, id uint64, now time.Time) (string, error) {
	c, err := r.campaignForWrite(id)
	if err != nil {
		return "", err
	}
	if r.policy == nil {
		return "", NewBusinessError(KindInternal, "SELECTION_POLICY_MISSING", "No selection policy configured", nil)
	}
	if err := c.fallbackCheck(now, r.cfg.FallbackGracePeriod); err != nil {
		return "", err
	}

	chosen, err := r.policy.Choose(c.Applicants())
	if err != nil {
		return "", err
	}
	if err := c.selectOnBehalf(ctx, chosen, now); err != nil {
		return "", err
	}
	return chosen, nil
}

// CampaignsAwaitingFallback returns the ids FallbackSelect would accept at now
func (r *Registry) CampaignsAwaitingFallback(now time.Time) []uint64 {
	if r.Paused() {
		return nil
	}
	var ids []uint64
	r.campaigns.Range(func(id uint64, c *Campaign) bool {
		if c.fallbackCheck(now, r.cfg.FallbackGracePeriod) == nil {
			ids = append(ids, id)
		}
		return true
	})
	slices.Sort(ids)
	return ids
}

func (r *Registry) campaignForWrite(id uint64) (*Campaign, error) {
	if r.Paused() {
		return nil, registryPausedError()
	}
	c, ok := r.campaigns.Load(id)
	if !ok {
		return nil, unknownCampaignError(id)
	}
	return c, nil
}

func (r *Registry) commit(ctx context.Context, m Mutation) error {
	if err := r.journal.Commit(ctx, m, nil); err != nil {
		return asBusinessError(err, "COMMIT_FAILED", "Failed to persist registry change")
	}
	return nil
}

func registryPausedError() error {
	return NewBusinessError(KindState, "REGISTRY_PAUSED", "Registry is paused", ErrRegistryPaused)
}

func unknownCampaignError(id uint64) error {
	return NewBusinessErrorf(KindNotFound, "CAMPAIGN_NOT_FOUND", "Campaign %d does not exist", ErrUnknownCampaign, id)
}
