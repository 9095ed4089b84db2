package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/likebounty/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusCreated  CampaignStatus = "created"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusFinished CampaignStatus = "finished"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusCreated, CampaignStatusActive, CampaignStatusFinished:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// IsTerminal reports whether the status is the absorbing finished state
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusFinished
}

// CanTransitionTo checks if a campaign in s can move to next
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignStatusCreated:
		return next == CampaignStatusActive ||
			next == CampaignStatusFinished
	case CampaignStatusActive:
		return next == CampaignStatusFinished
	default:
		return false
	}
}

// CampaignOutcome records how a finished campaign ended
type CampaignOutcome string

const (
	CampaignOutcomeNone     CampaignOutcome = "none"
	CampaignOutcomeGoalMet  CampaignOutcome = "goal_met"
	CampaignOutcomeRefunded CampaignOutcome = "refunded"
)

// String returns the string representation of the outcome
func (o CampaignOutcome) String() string {
	return string(o)
}

// Valid checks if the outcome is valid
func (o CampaignOutcome) Valid() bool {
	switch o {
	case CampaignOutcomeNone, CampaignOutcomeGoalMet, CampaignOutcomeRefunded:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignOutcome
func (o *CampaignOutcome) Scan(value any) error {
	if value == nil {
		*o = CampaignOutcomeNone
		return nil
	}

	switch v := value.(type) {
	case string:
		*o = CampaignOutcome(v)
	case []byte:
		*o = CampaignOutcome(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignOutcome", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignOutcome
func (o CampaignOutcome) Value() (driver.Value, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid CampaignOutcome: %s", o)
	}
	return string(o), nil
}

// Campaign is the persisted mirror of a like-goal campaign.
// The ID is assigned by the registry, never by the database.
type Campaign struct {
	ID                   uint64          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name                 string          `gorm:"size:255;not null" json:"name"`
	Description          string          `gorm:"type:text" json:"description"`
	ImageRef             string          `gorm:"size:1024" json:"image_ref"`
	Sponsor              string          `gorm:"size:255;not null;index:idx_campaigns_sponsor" json:"sponsor"`
	LikeGoal             uint64          `gorm:"not null" json:"like_goal"`
	Reward               uint64          `gorm:"not null" json:"reward"`
	EscrowBalance        uint64          `gorm:"not null" json:"escrow_balance"`
	EscrowReleased       bool            `gorm:"not null;default:false" json:"escrow_released"`
	ApplicationWindowEnd time.Time       `gorm:"not null" json:"application_window_end"`
	ActivityWindowEnd    time.Time       `gorm:"not null" json:"activity_window_end"`
	Status               CampaignStatus  `gorm:"size:20;not null;default:'created';index:idx_campaigns_status" json:"status"`
	Outcome              CampaignOutcome `gorm:"size:20;not null;default:'none'" json:"outcome"`
	SelectedApplicant    string          `gorm:"size:255" json:"selected_applicant"`
	EngagementCount      uint64          `gorm:"not null;default:0" json:"engagement_count"`
	CreatedAt            time.Time       `gorm:"index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt            *time.Time      `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CampaignStatusCreated
	}
	if c.Outcome == "" {
		c.Outcome = CampaignOutcomeNone
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint64         `json:"id,omitempty"`
	Sponsor       *string         `json:"sponsor,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
