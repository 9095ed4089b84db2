package handlers

import (
	"context"
	"time"

	"github.com/amirphl/likebounty/app/dto"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	Apply(c fiber.Ctx) error
	Select(c fiber.Ctx) error
	Engage(c fiber.Ctx) error
	ClaimPayout(c fiber.Ctx) error
	ExpireAndRefund(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	registry businessflow.CampaignRegistry
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(registry businessflow.CampaignRegistry, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		baseHandler: newBaseHandler(logger),
		registry:    registry,
	}
}

// CreateCampaign handles campaign creation by a whitelisted sponsor
// @Summary Create Campaign
// @Description Create a like-goal campaign and escrow its reward from the sponsor's wallet
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCampaignRequest true "Campaign parameters"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Sponsor not whitelisted"
// @Failure 409 {object} dto.APIResponse "Insufficient wallet balance"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	params := businessflow.CampaignParams{
		Name:                req.Name,
		Description:         req.Description,
		ImageRef:            req.ImageRef,
		LikeGoal:            req.LikeGoal,
		ApplicationDuration: time.Duration(req.ApplicationDuration) * time.Second,
		ActivityDuration:    time.Duration(req.ActivityDuration) * time.Second,
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	id, err := h.registry.CreateCampaign(ctx, callerIdentity(c), params, req.Payment, h.now())
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Campaign creation")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", dto.CreateCampaignResponse{ID: id})
}

// GetCampaign returns the campaign view
// @Summary Get Campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	id, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	view, err := h.registry.GetCampaign(id)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Campaign lookup")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", businessflow.ToCampaignResponse(view))
}

// ListCampaigns returns every campaign id in creation order
// @Summary List Campaigns
// @Tags Campaigns
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CampaignListResponse}
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	ids := h.registry.ListCampaigns()
	if ids == nil {
		ids = []uint64{}
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", dto.CampaignListResponse{IDs: ids})
}

// Apply registers the caller as an applicant
// @Summary Apply To Campaign
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 409 {object} dto.APIResponse "Already applied"
// @Failure 422 {object} dto.APIResponse "Application window closed"
// @Router /api/v1/campaigns/{id}/apply [post]
func (h *CampaignHandler) Apply(c fiber.Ctx) error {
	return h.campaignAction(c, "/api/v1/campaigns/:id/apply", "Application", "Application recorded",
		func(ctx context.Context, id uint64, caller string, now time.Time) error {
			return h.registry.Apply(ctx, id, caller, now)
		})
}

// Select chooses the participant of the campaign. Only the sponsor may call it.
// @Summary Select Applicant
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.SelectApplicantRequest true "Chosen applicant"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the sponsor"
// @Failure 422 {object} dto.APIResponse "Selection not allowed in this state"
// @Router /api/v1/campaigns/{id}/select [post]
func (h *CampaignHandler) Select(c fiber.Ctx) error {
	var req dto.SelectApplicantRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}
	return h.campaignAction(c, "/api/v1/campaigns/:id/select", "Selection", "Applicant selected",
		func(ctx context.Context, id uint64, caller string, now time.Time) error {
			return h.registry.Select(ctx, id, caller, req.Applicant, now)
		})
}

// Engage records the caller's like
// @Summary Engage With Campaign
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 409 {object} dto.APIResponse "Already engaged"
// @Failure 422 {object} dto.APIResponse "Campaign not active or window closed"
// @Router /api/v1/campaigns/{id}/engage [post]
func (h *CampaignHandler) Engage(c fiber.Ctx) error {
	return h.campaignAction(c, "/api/v1/campaigns/:id/engage", "Engagement", "Engagement recorded",
		func(ctx context.Context, id uint64, caller string, now time.Time) error {
			return h.registry.Engage(ctx, id, caller, now)
		})
}

// ClaimPayout releases the reward to the selected participant
// @Summary Claim Payout
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the selected participant"
// @Failure 422 {object} dto.APIResponse "Nothing to claim"
// @Router /api/v1/campaigns/{id}/claim [post]
func (h *CampaignHandler) ClaimPayout(c fiber.Ctx) error {
	return h.campaignAction(c, "/api/v1/campaigns/:id/claim", "Payout claim", "Payout claimed",
		func(ctx context.Context, id uint64, caller string, now time.Time) error {
			return h.registry.ClaimPayout(ctx, id, caller, now)
		})
}

// ExpireAndRefund returns the reward to the sponsor
// @Summary Refund Campaign
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the sponsor"
// @Failure 422 {object} dto.APIResponse "Refund not available"
// @Router /api/v1/campaigns/{id}/refund [post]
func (h *CampaignHandler) ExpireAndRefund(c fiber.Ctx) error {
	return h.campaignAction(c, "/api/v1/campaigns/:id/refund", "Refund", "Campaign refunded",
		func(ctx context.Context, id uint64, caller string, now time.Time) error {
			return h.registry.ExpireAndRefund(ctx, id, caller, now)
		})
}

type campaignOperation func(ctx context.Context, id uint64, caller string, now time.Time) error

// campaignAction runs op against the campaign in the path on behalf of the
// authenticated caller and answers with the campaign's new view
func (h *CampaignHandler) campaignAction(c fiber.Ctx, endpoint, operation, message string, op campaignOperation) error {
	id, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	if err := op(ctx, id, callerIdentity(c), h.now()); err != nil {
		return h.BusinessErrorResponse(c, err, operation)
	}

	view, err := h.registry.GetCampaign(id)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Campaign lookup")
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, businessflow.ToCampaignResponse(view))
}
