package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campaign event types
const (
	CampaignEventCampaignCreated  = "campaign_created"
	CampaignEventApplied          = "applied"
	CampaignEventSelected         = "selected"
	CampaignEventEngaged          = "engaged"
	CampaignEventFinished         = "finished"
	CampaignEventPayoutClaimed    = "payout_claimed"
	CampaignEventSponsorAdded     = "sponsor_added"
	CampaignEventSponsorRemoved   = "sponsor_removed"
	CampaignEventRegistryPaused   = "registry_paused"
	CampaignEventRegistryUnpaused = "registry_unpaused"
)

// CampaignEvent is the append-only audit record of a registry event.
// CampaignID is zero for registry-wide events.
type CampaignEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_campaign_events_uuid" json:"uuid"`
	Type       string    `gorm:"size:50;not null;index:idx_campaign_events_type" json:"type"`
	CampaignID uint64    `gorm:"not null;default:0;index:idx_campaign_events_campaign_id" json:"campaign_id"`
	Actor      string    `gorm:"size:255" json:"actor,omitempty"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	OccurredAt time.Time `gorm:"not null;index:idx_campaign_events_occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CampaignEvent) TableName() string {
	return "campaign_events"
}

// BeforeCreate ensures UUID is set
func (e *CampaignEvent) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	return nil
}

// CampaignEventFilter represents filter criteria for event queries
type CampaignEventFilter struct {
	CampaignID     *uint64
	Type           *string
	OccurredAfter  *time.Time
	OccurredBefore *time.Time
}
