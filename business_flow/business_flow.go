package businessflow

import (
	"context"

	"github.com/amirphl/likebounty/app/dto"
)

// RequestIDKey is the header carrying the request id
const RequestIDKey = "X-Request-ID"

type contextKey string

// Request-scoped context keys set by the HTTP layer
const (
	RequestIDContextKey contextKey = "request_id"
	EndpointContextKey  contextKey = "endpoint"
)

// RequestIDFromContext returns the request id stored in ctx, or ""
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ToCampaignResponse converts a campaign view to its API representation
func ToCampaignResponse(view CampaignView) dto.CampaignResponse {
	return dto.CampaignResponse{
		ID:                   view.ID,
		Name:                 view.Name,
		Description:          view.Description,
		ImageRef:             view.ImageRef,
		Sponsor:              view.Sponsor,
		LikeGoal:             view.LikeGoal,
		Reward:               view.Reward,
		EscrowBalance:        view.EscrowBalance,
		EscrowReleased:       view.EscrowReleased,
		Status:               view.Status.String(),
		Outcome:              view.Outcome.String(),
		SelectedApplicant:    view.SelectedApplicant,
		ApplicationCount:     view.ApplicationCount,
		EngagementCount:      view.EngagementCount,
		CreatedAt:            view.CreatedAt,
		ApplicationWindowEnd: view.ApplicationWindowEnd,
		ActivityWindowEnd:    view.ActivityWindowEnd,
	}
}

// ToSponsorResponse converts a whitelist entry to its API representation
func ToSponsorResponse(entry SponsorEntry) dto.SponsorResponse {
	return dto.SponsorResponse{
		Identity: entry.Identity,
		Name:     entry.Name,
		Enabled:  entry.Enabled,
		AddedAt:  entry.AddedAt,
	}
}
