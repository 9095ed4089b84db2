package dto

import "time"

// AddSponsorRequest represents the owner's request to whitelist a sponsor
type AddSponsorRequest struct {
	Identity string `json:"identity" validate:"required,max=255"`
	Name     string `json:"name" validate:"max=255"`
}

// SponsorResponse represents a whitelisted sponsor
type SponsorResponse struct {
	Identity string    `json:"identity"`
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	AddedAt  time.Time `json:"added_at"`
}

// RegistryStatusResponse reports the registry's pause flag
type RegistryStatusResponse struct {
	Paused         bool   `json:"paused"`
	NextCampaignID uint64 `json:"next_campaign_id"`
}
