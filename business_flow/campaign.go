package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/likebounty/models"
)

// CampaignParams describes a campaign a sponsor wants to create
type CampaignParams struct {
	Name                string
	Description         string
	ImageRef            string
	LikeGoal            uint64
	ApplicationDuration time.Duration
	ActivityDuration    time.Duration
}

// CampaignView is a read-only copy of a campaign's state
type CampaignView struct {
	ID                   uint64                 `json:"id"`
	Name                 string                 `json:"name"`
	Description          string                 `json:"description"`
	ImageRef             string                 `json:"image_ref"`
	Sponsor              string                 `json:"sponsor"`
	LikeGoal             uint64                 `json:"like_goal"`
	Reward               uint64                 `json:"reward"`
	EscrowBalance        uint64                 `json:"escrow_balance"`
	EscrowReleased       bool                   `json:"escrow_released"`
	Status               models.CampaignStatus  `json:"status"`
	Outcome              models.CampaignOutcome `json:"outcome"`
	SelectedApplicant    string                 `json:"selected_applicant"`
	ApplicationCount     uint64                 `json:"application_count"`
	EngagementCount      uint64                 `json:"engagement_count"`
	CreatedAt            time.Time              `json:"created_at"`
	ApplicationWindowEnd time.Time              `json:"application_window_end"`
	ActivityWindowEnd    time.Time              `json:"activity_window_end"`
}

// CampaignDeps are the collaborators a campaign reports to
type CampaignDeps struct {
	Committer  Committer
	Events     EventSink
	Transferer FundsTransferer
}

// Campaign is the lifecycle state machine of one sponsored campaign. It owns
// its escrow and its application and engagement ledgers; every transition is
// serialized by mu.
type Campaign struct {
	mu sync.Mutex

	id          uint64
	name        string
	description string
	imageRef    string
	sponsor     string
	authority   string
	likeGoal    uint64
	reward      uint64

	createdAt            time.Time
	applicationWindowEnd time.Time
	activityWindowEnd    time.Time

	status   models.CampaignStatus
	outcome  models.CampaignOutcome
	selected string

	applications *IdentityLedger
	engagements  *IdentityLedger
	escrow       *EscrowAccount

	committer Committer
	events    EventSink
}

// NewCampaign creates a funded campaign in the Created state. The activity
// window starts where the application window ends.
func NewCampaign(id uint64, sponsor, authority string, params CampaignParams, reward uint64, now time.Time, deps CampaignDeps) *Campaign {
	appEnd := now.Add(params.ApplicationDuration)
	c := &Campaign{
		id:                   id,
		name:                 params.Name,
		description:          params.Description,
		imageRef:             params.ImageRef,
		sponsor:              sponsor,
		authority:            authority,
		likeGoal:             params.LikeGoal,
		reward:               reward,
		createdAt:            now,
		applicationWindowEnd: appEnd,
		activityWindowEnd:    appEnd.Add(params.ActivityDuration),
		status:               models.CampaignStatusCreated,
		outcome:              models.CampaignOutcomeNone,
		applications:         NewIdentityLedger(),
		engagements:          NewIdentityLedger(),
		escrow:               NewEscrowAccount(id, reward, deps.Transferer),
	}
	c.attach(deps)
	return c
}

// restoreCampaign rebuilds a campaign from its persisted view and ledgers
func restoreCampaign(view CampaignView, authority string, applicants, engagers []string, deps CampaignDeps) (*Campaign, error) {
	c := &Campaign{
		id:                   view.ID,
		name:                 view.Name,
		description:          view.Description,
		imageRef:             view.ImageRef,
		sponsor:              view.Sponsor,
		authority:            authority,
		likeGoal:             view.LikeGoal,
		reward:               view.Reward,
		createdAt:            view.CreatedAt,
		applicationWindowEnd: view.ApplicationWindowEnd,
		activityWindowEnd:    view.ActivityWindowEnd,
		status:               view.Status,
		outcome:              view.Outcome,
		selected:             view.SelectedApplicant,
		applications:         NewIdentityLedger(),
		engagements:          NewIdentityLedger(),
		escrow:               NewEscrowAccount(view.ID, view.EscrowBalance, deps.Transferer),
	}
	c.escrow.released = view.EscrowReleased
	for _, identity := range applicants {
		if err := c.applications.Record(identity); err != nil {
			return nil, fmt.Errorf("campaign %d: application of %q: %w", view.ID, identity, err)
		}
	}
	for _, identity := range engagers {
		if err := c.engagements.Record(identity); err != nil {
			return nil, fmt.Errorf("campaign %d: engagement of %q: %w", view.ID, identity, err)
		}
	}
	c.attach(deps)
	return c, nil
}

func (c *Campaign) attach(deps CampaignDeps) {
	c.committer = deps.Committer
	if c.committer == nil {
		c.committer = nopCommitter{}
	}
	c.events = deps.Events
	if c.events == nil {
		c.events = nopEventSink{}
	}
}

// ID returns the registry-assigned id
func (c *Campaign) ID() uint64 {
	return c.id
}

// Sponsor returns the creating sponsor
func (c *Campaign) Sponsor() string {
	return c.sponsor
}

// View returns a snapshot of the campaign state
func (c *Campaign) View() CampaignView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Campaign) viewLocked() CampaignView {
	return CampaignView{
		ID:                   c.id,
		Name:                 c.name,
		Description:          c.description,
		ImageRef:             c.imageRef,
		Sponsor:              c.sponsor,
		LikeGoal:             c.likeGoal,
		Reward:               c.reward,
		EscrowBalance:        c.escrow.Balance(),
		EscrowReleased:       c.escrow.Released(),
		Status:               c.status,
		Outcome:              c.outcome,
		SelectedApplicant:    c.selected,
		ApplicationCount:     uint64(c.applications.Count()),
		EngagementCount:      uint64(c.engagements.Count()),
		CreatedAt:            c.createdAt,
		ApplicationWindowEnd: c.applicationWindowEnd,
		ActivityWindowEnd:    c.activityWindowEnd,
	}
}

// Status returns the lifecycle status
func (c *Campaign) Status() models.CampaignStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Applicants returns the identities still waiting for selection, sorted
func (c *Campaign) Applicants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applications.Members()
}

// HasApplied reports whether identity has a pending application
func (c *Campaign) HasApplied(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applications.Contains(identity)
}

// ApplicationWindowClosed reports whether now is past the application window.
// Both window ends are fixed at construction and need no lock.
func (c *Campaign) ApplicationWindowClosed(now time.Time) bool {
	return now.After(c.applicationWindowEnd)
}

// ActivityWindowExpired reports whether now is past the activity window
func (c *Campaign) ActivityWindowExpired(now time.Time) bool {
	return now.After(c.activityWindowEnd)
}

// Apply records identity as an applicant
func (c *Campaign) Apply(ctx context.Context, identity string, now time.Time) error {
	events, err := c.apply(ctx, identity, now)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Campaign) apply(ctx context.Context, identity string, now time.Time) ([]Event, error) {
	if identity == "" {
		return nil, NewBusinessError(KindValidation, "IDENTITY_REQUIRED", "Applicant identity is required", ErrEmptyIdentity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return nil, c.alreadyFinished()
	}
	if c.status == models.CampaignStatusActive {
		return nil, NewBusinessError(KindState, "APPLICATIONS_CLOSED", "Campaign already selected an applicant", ErrNotAcceptingApplications)
	}
	if c.ApplicationWindowClosed(now) {
		return nil, NewBusinessError(KindWindow, "APPLICATION_WINDOW_CLOSED", "Application window has closed", ErrNotAcceptingApplications)
	}
	if c.applications.Contains(identity) {
		return nil, NewBusinessError(KindConflict, "ALREADY_APPLIED", "Identity has already applied", ErrAlreadyApplied)
	}

	next := c.viewLocked()
	next.ApplicationCount++
	evt := newEvent(EventApplied, c.id, now)
	evt.Applicant = identity

	m := Mutation{Kind: MutationApplied, At: now, Campaign: &next, Identity: identity, Events: []Event{evt}}
	if err := c.commit(ctx, m, nil); err != nil {
		return nil, err
	}

	_ = c.applications.Record(identity)
	return m.Events, nil
}

// Select makes identity the campaign's single participant. Only the sponsor
// may call it; the registry selects through selectOnBehalf.
func (c *Campaign) Select(ctx context.Context, caller, identity string, now time.Time) error {
	events, err := c.selectApplicant(ctx, caller, identity, now, caller == c.sponsor)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

// selectOnBehalf selects identity with the registry's authority
func (c *Campaign) selectOnBehalf(ctx context.Context, identity string, now time.Time) error {
	events, err := c.selectApplicant(ctx, c.authority, identity, now, true)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Campaign) selectApplicant(ctx context.Context, caller, identity string, now time.Time, authorized bool) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return nil, c.alreadyFinished()
	}
	if c.status == models.CampaignStatusActive {
		return nil, NewBusinessError(KindState, "ALREADY_SELECTED", "Campaign already has a selected applicant", ErrAlreadySelected)
	}
	if !authorized {
		return nil, NewBusinessError(KindAuthorization, "NOT_CAMPAIGN_SPONSOR", "Only the sponsor can select an applicant", ErrUnauthorized)
	}
	if c.applications.Count() == 0 && c.ApplicationWindowClosed(now) {
		return nil, NewBusinessError(KindState, "NO_APPLICANTS", "Campaign has no applicants", ErrNoApplicants)
	}
	if !c.applications.Contains(identity) {
		return nil, NewBusinessError(KindNotFound, "UNKNOWN_APPLICANT", "Identity has not applied to this campaign", ErrUnknownApplicant)
	}
	if err := c.guardTransition(models.CampaignStatusActive); err != nil {
		return nil, err
	}

	next := c.viewLocked()
	next.Status = models.CampaignStatusActive
	next.SelectedApplicant = identity
	next.ApplicationCount--
	evt := newEvent(EventSelected, c.id, now)
	evt.Applicant = identity
	evt.Sponsor = c.sponsor
	evt.SelectedBy = caller

	m := Mutation{Kind: MutationSelected, At: now, Campaign: &next, Identity: identity, Events: []Event{evt}}
	if err := c.commit(ctx, m, nil); err != nil {
		return nil, err
	}

	c.applications.remove(identity)
	c.selected = identity
	c.status = models.CampaignStatusActive
	return m.Events, nil
}

// Engage records one engagement. The engagement that reaches the like goal
// finishes the campaign in the same call.
func (c *Campaign) Engage(ctx context.Context, identity string, now time.Time) error {
	events, err := c.engage(ctx, identity, now)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Campaign) engage(ctx context.Context, identity string, now time.Time) ([]Event, error) {
	if identity == "" {
		return nil, NewBusinessError(KindValidation, "IDENTITY_REQUIRED", "Engaging identity is required", ErrEmptyIdentity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return nil, c.alreadyFinished()
	}
	if c.status == models.CampaignStatusCreated {
		return nil, NewBusinessError(KindState, "CAMPAIGN_NOT_ACTIVE", "Campaign has no selected applicant yet", ErrNotActive)
	}
	if c.ActivityWindowExpired(now) {
		return nil, NewBusinessError(KindWindow, "ACTIVITY_WINDOW_CLOSED", "Activity window has closed", ErrWindowClosed)
	}
	if c.engagements.Contains(identity) {
		return nil, NewBusinessError(KindConflict, "ALREADY_ENGAGED", "Identity has already engaged", ErrAlreadyEngaged)
	}

	next := c.viewLocked()
	next.EngagementCount++
	goalMet := next.EngagementCount >= c.likeGoal

	evt := newEvent(EventEngaged, c.id, now)
	evt.Applicant = identity
	events := []Event{evt}
	if goalMet {
		if err := c.guardTransition(models.CampaignStatusFinished); err != nil {
			return nil, err
		}
		next.Status = models.CampaignStatusFinished
		next.Outcome = models.CampaignOutcomeGoalMet
		fin := newEvent(EventFinished, c.id, now)
		fin.Sponsor = c.sponsor
		fin.Applicant = c.selected
		fin.Payout = c.reward
		fin.Outcome = models.CampaignOutcomeGoalMet
		events = append(events, fin)
	}

	m := Mutation{Kind: MutationEngaged, At: now, Campaign: &next, Identity: identity, Events: events}
	if err := c.commit(ctx, m, nil); err != nil {
		return nil, err
	}

	_ = c.engagements.Record(identity)
	if goalMet {
		c.status = models.CampaignStatusFinished
		c.outcome = models.CampaignOutcomeGoalMet
	}
	return m.Events, nil
}

// ClaimPayout releases the escrow to the selected applicant of a campaign
// that met its goal.
func (c *Campaign) ClaimPayout(ctx context.Context, caller string, now time.Time) error {
	events, err := c.claimPayout(ctx, caller, now)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Campaign) claimPayout(ctx context.Context, caller string, now time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.status.IsTerminal() {
		return nil, NewBusinessError(KindState, "CAMPAIGN_NOT_FINISHED", "Campaign has not met its goal yet", ErrGoalNotMet)
	}
	if c.outcome != models.CampaignOutcomeGoalMet {
		return nil, NewBusinessError(KindState, "CAMPAIGN_REFUNDED", "Campaign was refunded to the sponsor", ErrGoalNotMet)
	}
	if caller != c.selected {
		return nil, NewBusinessError(KindAuthorization, "NOT_SELECTED_APPLICANT", "Only the selected applicant can claim the payout", ErrUnauthorized)
	}
	if c.escrow.Released() {
		return nil, NewBusinessError(KindConflict, "NOTHING_TO_CLAIM", "Payout was already claimed", ErrNothingToClaim)
	}

	next := c.viewLocked()
	next.EscrowBalance = 0
	next.EscrowReleased = true
	evt := newEvent(EventPayoutClaimed, c.id, now)
	evt.Sponsor = c.sponsor
	evt.Applicant = caller
	evt.Payout = c.reward
	evt.Outcome = models.CampaignOutcomeGoalMet

	prev := c.escrow.state()
	m := Mutation{Kind: MutationPayoutClaimed, At: now, Campaign: &next, Identity: caller, Events: []Event{evt}}
	err := c.commit(ctx, m, func(txCtx context.Context) error {
		return c.escrow.Release(txCtx, caller, c.reward, FundsReasonPayout)
	})
	if err != nil {
		c.escrow.reset(prev)
		return nil, err
	}
	return m.Events, nil
}

// ExpireAndRefund returns the escrow to the sponsor once the campaign can no
// longer succeed.
func (c *Campaign) ExpireAndRefund(ctx context.Context, caller string, now time.Time) error {
	events, err := c.expireAndRefund(ctx, caller, now)
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Campaign) expireAndRefund(ctx context.Context, caller string, now time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return nil, c.alreadyFinished()
	}
	if caller != c.sponsor {
		return nil, NewBusinessError(KindAuthorization, "NOT_CAMPAIGN_SPONSOR", "Only the sponsor can request a refund", ErrUnauthorized)
	}
	switch c.status {
	case models.CampaignStatusCreated:
		if !c.ApplicationWindowClosed(now) {
			return nil, NewBusinessError(KindWindow, "APPLICATION_WINDOW_OPEN", "Refund is available after the application window", ErrRefundNotAvailable)
		}
	case models.CampaignStatusActive:
		if !c.ActivityWindowExpired(now) {
			return nil, NewBusinessError(KindWindow, "ACTIVITY_WINDOW_OPEN", "Refund is available after the activity window", ErrRefundNotAvailable)
		}
	}
	if err := c.guardTransition(models.CampaignStatusFinished); err != nil {
		return nil, err
	}

	next := c.viewLocked()
	next.Status = models.CampaignStatusFinished
	next.Outcome = models.CampaignOutcomeRefunded
	next.EscrowBalance = 0
	next.EscrowReleased = true
	evt := newEvent(EventFinished, c.id, now)
	evt.Sponsor = c.sponsor
	evt.Applicant = c.selected
	evt.Payout = c.reward
	evt.Outcome = models.CampaignOutcomeRefunded

	prev := c.escrow.state()
	m := Mutation{Kind: MutationRefunded, At: now, Campaign: &next, Identity: caller, Events: []Event{evt}}
	err := c.commit(ctx, m, func(txCtx context.Context) error {
		return c.escrow.Release(txCtx, c.sponsor, c.reward, FundsReasonRefund)
	})
	if err != nil {
		c.escrow.reset(prev)
		return nil, err
	}

	c.status = models.CampaignStatusFinished
	c.outcome = models.CampaignOutcomeRefunded
	return m.Events, nil
}

// fallbackCheck reports why a fallback selection cannot run yet, or nil
func (c *Campaign) fallbackCheck(now time.Time, grace time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return c.alreadyFinished()
	}
	if c.status == models.CampaignStatusActive {
		return NewBusinessError(KindState, "ALREADY_SELECTED", "Campaign already has a selected applicant", ErrAlreadySelected)
	}
	if !c.ApplicationWindowClosed(now.Add(-grace)) {
		return NewBusinessError(KindWindow, "FALLBACK_NOT_DUE", "Sponsor selection grace period has not elapsed", ErrFallbackNotDue)
	}
	if c.applications.Count() == 0 {
		return NewBusinessError(KindState, "NO_APPLICANTS", "Campaign has no applicants", ErrNoApplicants)
	}
	return nil
}

// guardTransition must run under mu, before anything is committed
func (c *Campaign) guardTransition(next models.CampaignStatus) error {
	if !c.status.CanTransitionTo(next) {
		return NewBusinessErrorf(KindState, "INVALID_TRANSITION", "Campaign cannot move from %s to %s", ErrInvalidTransition, c.status, next)
	}
	return nil
}

func (c *Campaign) alreadyFinished() error {
	return NewBusinessError(KindState, "CAMPAIGN_FINISHED", "Campaign already finished", ErrAlreadyFinished)
}

func (c *Campaign) commit(ctx context.Context, m Mutation, effect func(context.Context) error) error {
	if err := c.committer.Commit(ctx, m, effect); err != nil {
		return asBusinessError(err, "COMMIT_FAILED", "Failed to persist campaign change")
	}
	return nil
}

// publish runs after mu is released so a slow sink only delays its caller
func (c *Campaign) publish(ctx context.Context, events []Event) {
	for _, evt := range events {
		c.events.Publish(ctx, evt)
	}
}
