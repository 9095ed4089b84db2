package dto

import "time"

// CreateCampaignRequest represents the request to create a campaign.
// Durations are in seconds and must fit a time.Duration; amounts must fit
// a signed 64-bit column.
type CreateCampaignRequest struct {
	Name                string `json:"name" validate:"required,min=1,max=255"`
	Description         string `json:"description" validate:"max=5000"`
	ImageRef            string `json:"image_ref" validate:"omitempty,max=1024"`
	LikeGoal            uint64 `json:"like_goal" validate:"required,gt=0,max=9223372036854775807"`
	ApplicationDuration uint64 `json:"application_duration" validate:"required,gt=0,max=9223372036"`
	ActivityDuration    uint64 `json:"activity_duration" validate:"required,gt=0,max=9223372036"`
	Payment             uint64 `json:"payment" validate:"required,gt=0,max=9223372036854775807"`
}

// CreateCampaignResponse represents the response after creating a campaign
type CreateCampaignResponse struct {
	ID uint64 `json:"id"`
}

// SelectApplicantRequest represents the sponsor's choice of participant
type SelectApplicantRequest struct {
	Applicant string `json:"applicant" validate:"required,max=255"`
}

// CampaignResponse represents a campaign view
type CampaignResponse struct {
	ID                   uint64    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	ImageRef             string    `json:"image_ref"`
	Sponsor              string    `json:"sponsor"`
	LikeGoal             uint64    `json:"like_goal"`
	Reward               uint64    `json:"reward"`
	EscrowBalance        uint64    `json:"escrow_balance"`
	EscrowReleased       bool      `json:"escrow_released"`
	Status               string    `json:"status"`
	Outcome              string    `json:"outcome"`
	SelectedApplicant    string    `json:"selected_applicant,omitempty"`
	ApplicationCount     uint64    `json:"application_count"`
	EngagementCount      uint64    `json:"engagement_count"`
	CreatedAt            time.Time `json:"created_at"`
	ApplicationWindowEnd time.Time `json:"application_window_end"`
	ActivityWindowEnd    time.Time `json:"activity_window_end"`
}

// FallbackSelectResponse reports the applicant chosen by fallback selection
type FallbackSelectResponse struct {
	ID        uint64 `json:"id"`
	Applicant string `json:"applicant"`
}

// CampaignListResponse lists campaign ids
type CampaignListResponse struct {
	IDs []uint64 `json:"ids"`
}
