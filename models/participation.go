package models

import (
	"time"
)

// CampaignApplication records one identity applying to one campaign.
// The row is removed when the applicant is selected.
type CampaignApplication struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID uint64    `gorm:"not null;uniqueIndex:uk_campaign_applications_identity,priority:1" json:"campaign_id"`
	Identity   string    `gorm:"size:255;not null;uniqueIndex:uk_campaign_applications_identity,priority:2" json:"identity"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CampaignApplication) TableName() string {
	return "campaign_applications"
}

// CampaignEngagement records one identity engaging with an active campaign
type CampaignEngagement struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID uint64    `gorm:"not null;uniqueIndex:uk_campaign_engagements_identity,priority:1" json:"campaign_id"`
	Identity   string    `gorm:"size:255;not null;uniqueIndex:uk_campaign_engagements_identity,priority:2" json:"identity"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CampaignEngagement) TableName() string {
	return "campaign_engagements"
}

// ParticipationFilter represents filter criteria for applications and engagements
type ParticipationFilter struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
	Identity   *string `json:"identity,omitempty"`
}
