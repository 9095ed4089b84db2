package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/likebounty/models"
	"github.com/amirphl/likebounty/repository"
	"gorm.io/gorm"
)

// MutationKind names a state change of the registry or one of its campaigns
type MutationKind string

const (
	MutationSponsorAdded    MutationKind = "sponsor_added"
	MutationSponsorRemoved  MutationKind = "sponsor_removed"
	MutationPaused          MutationKind = "paused"
	MutationUnpaused        MutationKind = "unpaused"
	MutationCampaignCreated MutationKind = "campaign_created"
	MutationApplied         MutationKind = "applied"
	MutationSelected        MutationKind = "selected"
	MutationEngaged         MutationKind = "engaged"
	MutationPayoutClaimed   MutationKind = "payout_claimed"
	MutationRefunded        MutationKind = "refunded"
)

// SponsorEntry is a whitelist record
type SponsorEntry struct {
	Identity string    `json:"identity"`
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	AddedAt  time.Time `json:"added_at"`
}

// Mutation describes one validated state change before it is applied in
// memory. Campaign holds the state the campaign will have afterwards.
type Mutation struct {
	Kind     MutationKind
	At       time.Time
	Campaign *CampaignView
	Identity string
	Sponsor  *SponsorEntry
	Events   []Event
}

// Committer makes a mutation durable. effect, when set, runs inside the same
// unit of work and its failure aborts the commit.
type Committer interface {
	Commit(ctx context.Context, m Mutation, effect func(ctx context.Context) error) error
}

type nopCommitter struct{}

func (nopCommitter) Commit(ctx context.Context, _ Mutation, effect func(ctx context.Context) error) error {
	if effect != nil {
		return effect(ctx)
	}
	return nil
}

// CampaignRecord is a persisted campaign with its ledgers
type CampaignRecord struct {
	View       CampaignView
	Applicants []string
	Engagers   []string
}

// RegistryState is everything needed to rebuild a registry after restart
type RegistryState struct {
	Paused         bool
	NextCampaignID uint64
	Sponsors       []SponsorEntry
	Campaigns      []CampaignRecord
}

// RegistryJournal persists mutations and reloads them on startup
type RegistryJournal interface {
	Committer
	Load(ctx context.Context) (*RegistryState, error)
}

// GormJournal mirrors registry mutations into the database, one transaction
// per mutation, together with the audit event rows.
type GormJournal struct {
	db               *gorm.DB
	sponsorRepo      repository.SponsorRepository
	campaignRepo     repository.CampaignRepository
	applicationRepo  repository.CampaignApplicationRepository
	engagementRepo   repository.CampaignEngagementRepository
	eventRepo        repository.CampaignEventRepository
	counterRepo      repository.SequenceCounterRepository
	settingRepo      repository.RegistrySettingRepository
	persistEventRows bool
}

// NewGormJournal creates a journal over db. persistEvents controls whether
// events are appended to campaign_events.
func NewGormJournal(db *gorm.DB, persistEvents bool) *GormJournal {
	return &GormJournal{
		db:               db,
		sponsorRepo:      repository.NewSponsorRepository(db),
		campaignRepo:     repository.NewCampaignRepository(db),
		applicationRepo:  repository.NewCampaignApplicationRepository(db),
		engagementRepo:   repository.NewCampaignEngagementRepository(db),
		eventRepo:        repository.NewCampaignEventRepository(db),
		counterRepo:      repository.NewSequenceCounterRepository(db),
		settingRepo:      repository.NewRegistrySettingRepository(db),
		persistEventRows: persistEvents,
	}
}

// Commit writes the mutation and runs effect in one database transaction
func (j *GormJournal) Commit(ctx context.Context, m Mutation, effect func(ctx context.Context) error) error {
	return repository.WithTransaction(ctx, j.db, func(txCtx context.Context) error {
		if err := j.write(txCtx, m); err != nil {
			return err
		}
		if j.persistEventRows {
			if err := j.appendEvents(txCtx, m.Events); err != nil {
				return err
			}
		}
		if effect != nil {
			return effect(txCtx)
		}
		return nil
	})
}

func (j *GormJournal) write(ctx context.Context, m Mutation) error {
	switch m.Kind {
	case MutationSponsorAdded:
		if m.Sponsor == nil {
			return fmt.Errorf("mutation %s without sponsor", m.Kind)
		}
		return j.sponsorRepo.Upsert(ctx, &models.Sponsor{
			Identity:  m.Sponsor.Identity,
			Name:      m.Sponsor.Name,
			Enabled:   m.Sponsor.Enabled,
			CreatedAt: m.Sponsor.AddedAt,
		})
	case MutationSponsorRemoved:
		return j.sponsorRepo.DeleteByIdentity(ctx, m.Identity)
	case MutationPaused, MutationUnpaused:
		value := strconv.FormatBool(m.Kind == MutationPaused)
		return j.settingRepo.Set(ctx, models.RegistrySettingPaused, value, m.At)
	}

	if m.Campaign == nil {
		return fmt.Errorf("mutation %s without campaign state", m.Kind)
	}
	row := campaignModel(m.Campaign)

	switch m.Kind {
	case MutationCampaignCreated:
		if err := j.campaignRepo.Save(ctx, row); err != nil {
			return err
		}
		return j.counterRepo.SetNextValue(ctx, models.SequenceCounterCampaignID, m.Campaign.ID+1)
	case MutationApplied:
		err := j.applicationRepo.Save(ctx, &models.CampaignApplication{
			CampaignID: m.Campaign.ID,
			Identity:   m.Identity,
			CreatedAt:  m.At,
		})
		if err != nil {
			return err
		}
	case MutationSelected:
		if err := j.applicationRepo.DeleteByCampaignAndIdentity(ctx, m.Campaign.ID, m.Identity); err != nil {
			return err
		}
	case MutationEngaged:
		err := j.engagementRepo.Save(ctx, &models.CampaignEngagement{
			CampaignID: m.Campaign.ID,
			Identity:   m.Identity,
			CreatedAt:  m.At,
		})
		if err != nil {
			return err
		}
	case MutationPayoutClaimed, MutationRefunded:
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}

	return j.campaignRepo.UpdateState(ctx, row)
}

func (j *GormJournal) appendEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.CampaignEvent, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", evt.Type, err)
		}
		rows = append(rows, &models.CampaignEvent{
			UUID:       evt.UUID,
			Type:       string(evt.Type),
			CampaignID: evt.CampaignID,
			Actor:      evt.Actor(),
			Payload:    string(payload),
			OccurredAt: evt.Timestamp,
		})
	}
	return j.eventRepo.SaveBatch(ctx, rows)
}

// Load reads the persisted registry state
func (j *GormJournal) Load(ctx context.Context) (*RegistryState, error) {
	state := &RegistryState{NextCampaignID: 1}

	paused, ok, err := j.settingRepo.Get(ctx, models.RegistrySettingPaused)
	if err != nil {
		return nil, err
	}
	if ok {
		state.Paused, _ = strconv.ParseBool(paused)
	}

	next, ok, err := j.counterRepo.NextValue(ctx, models.SequenceCounterCampaignID)
	if err != nil {
		return nil, err
	}
	if ok {
		state.NextCampaignID = next
	}

	sponsors, err := j.sponsorRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sponsors: %w", err)
	}
	for _, s := range sponsors {
		state.Sponsors = append(state.Sponsors, SponsorEntry{
			Identity: s.Identity,
			Name:     s.Name,
			Enabled:  s.Enabled,
			AddedAt:  s.CreatedAt,
		})
	}

	campaigns, err := j.campaignRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		return state, nil
	}

	ids := make([]uint64, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	applications, err := j.applicationRepo.ListByCampaignIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	engagements, err := j.engagementRepo.ListByCampaignIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load engagements: %w", err)
	}

	applicants := make(map[uint64][]string)
	for _, a := range applications {
		applicants[a.CampaignID] = append(applicants[a.CampaignID], a.Identity)
	}
	engagers := make(map[uint64][]string)
	for _, e := range engagements {
		engagers[e.CampaignID] = append(engagers[e.CampaignID], e.Identity)
	}

	for _, c := range campaigns {
		state.Campaigns = append(state.Campaigns, CampaignRecord{
			View:       campaignView(c),
			Applicants: applicants[c.ID],
			Engagers:   engagers[c.ID],
		})
	}
	return state, nil
}

func campaignModel(v *CampaignView) *models.Campaign {
	return &models.Campaign{
		ID:                   v.ID,
		Name:                 v.Name,
		Description:          v.Description,
		ImageRef:             v.ImageRef,
		Sponsor:              v.Sponsor,
		LikeGoal:             v.LikeGoal,
		Reward:               v.Reward,
		EscrowBalance:        v.EscrowBalance,
		EscrowReleased:       v.EscrowReleased,
		ApplicationWindowEnd: v.ApplicationWindowEnd,
		ActivityWindowEnd:    v.ActivityWindowEnd,
		Status:               v.Status,
		Outcome:              v.Outcome,
		SelectedApplicant:    v.SelectedApplicant,
		EngagementCount:      v.EngagementCount,
		CreatedAt:            v.CreatedAt,
	}
}

func campaignView(c *models.Campaign) CampaignView {
	return CampaignView{
		ID:                   c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		ImageRef:             c.ImageRef,
		Sponsor:              c.Sponsor,
		LikeGoal:             c.LikeGoal,
		Reward:               c.Reward,
		EscrowBalance:        c.EscrowBalance,
		EscrowReleased:       c.EscrowReleased,
		Status:               c.Status,
		Outcome:              c.Outcome,
		SelectedApplicant:    c.SelectedApplicant,
		EngagementCount:      c.EngagementCount,
		CreatedAt:            c.CreatedAt,
		ApplicationWindowEnd: c.ApplicationWindowEnd,
		ActivityWindowEnd:    c.ActivityWindowEnd,
	}
}
