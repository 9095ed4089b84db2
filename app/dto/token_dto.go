package dto

import "time"

// IssueTokenResponse represents an issued identity token
type IssueTokenResponse struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
