package handlers

import (
	"github.com/amirphl/likebounty/app/dto"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// RegistryHandlerInterface defines the contract for whitelist and registry administration
type RegistryHandlerInterface interface {
	AddSponsor(c fiber.Ctx) error
	RemoveSponsor(c fiber.Ctx) error
	GetSponsor(c fiber.Ctx) error
	ListSponsorCampaigns(c fiber.Ctx) error
	Pause(c fiber.Ctx) error
	Unpause(c fiber.Ctx) error
	Status(c fiber.Ctx) error
}

// RegistryHandler handles sponsor whitelist and pause requests
type RegistryHandler struct {
	baseHandler
	registry businessflow.CampaignRegistry
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(registry businessflow.CampaignRegistry, logger *zap.Logger) *RegistryHandler {
	return &RegistryHandler{
		baseHandler: newBaseHandler(logger),
		registry:    registry,
	}
}

// AddSponsor whitelists a sponsor
// @Summary Whitelist Sponsor
// @Tags Sponsors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AddSponsorRequest true "Sponsor"
// @Success 201 {object} dto.APIResponse{data=dto.SponsorResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the registry owner"
// @Failure 409 {object} dto.APIResponse "Sponsor already whitelisted"
// @Router /api/v1/sponsors [post]
func (h *RegistryHandler) AddSponsor(c fiber.Ctx) error {
	var req dto.AddSponsorRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sponsors")
	defer cancel()

	err := h.registry.AddSponsor(ctx, callerIdentity(c), req.Identity, businessflow.SponsorProfile{Name: req.Name}, h.now())
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Sponsor whitelisting")
	}

	entry, _ := h.registry.Sponsor(req.Identity)
	return h.SuccessResponse(c, fiber.StatusCreated, "Sponsor whitelisted successfully", businessflow.ToSponsorResponse(entry))
}

// RemoveSponsor removes a sponsor from the whitelist
// @Summary Remove Sponsor
// @Tags Sponsors
// @Produce json
// @Security BearerAuth
// @Param identity path string true "Sponsor identity"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse "Caller is not the registry owner"
// @Failure 404 {object} dto.APIResponse "Sponsor not whitelisted"
// @Router /api/v1/sponsors/{identity} [delete]
func (h *RegistryHandler) RemoveSponsor(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/sponsors/:identity")
	defer cancel()

	if err := h.registry.RemoveSponsor(ctx, callerIdentity(c), c.Params("identity"), h.now()); err != nil {
		return h.BusinessErrorResponse(c, err, "Sponsor removal")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sponsor removed successfully", nil)
}

// GetSponsor returns a whitelisted sponsor
// @Summary Get Sponsor
// @Tags Sponsors
// @Produce json
// @Param identity path string true "Sponsor identity"
// @Success 200 {object} dto.APIResponse{data=dto.SponsorResponse}
// @Failure 404 {object} dto.APIResponse "Sponsor not whitelisted"
// @Router /api/v1/sponsors/{identity} [get]
func (h *RegistryHandler) GetSponsor(c fiber.Ctx) error {
	entry, ok := h.registry.Sponsor(c.Params("identity"))
	if !ok || !entry.Enabled {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Sponsor not whitelisted", "SPONSOR_NOT_FOUND", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sponsor retrieved successfully", businessflow.ToSponsorResponse(entry))
}

// ListSponsorCampaigns returns the ids of the sponsor's campaigns
// @Summary List Sponsor Campaigns
// @Tags Sponsors
// @Produce json
// @Param identity path string true "Sponsor identity"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignListResponse}
// @Router /api/v1/sponsors/{identity}/campaigns [get]
func (h *RegistryHandler) ListSponsorCampaigns(c fiber.Ctx) error {
	ids := h.registry.ListCampaignsForSponsor(c.Params("identity"))
	if ids == nil {
		ids = []uint64{}
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", dto.CampaignListResponse{IDs: ids})
}

// Pause stops campaign creation and mutation
// @Summary Pause Registry
// @Tags Registry
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RegistryStatusResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the registry owner"
// @Failure 409 {object} dto.APIResponse "Registry already paused"
// @Router /api/v1/registry/pause [post]
func (h *RegistryHandler) Pause(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/registry/pause")
	defer cancel()

	if err := h.registry.Pause(ctx, callerIdentity(c), h.now()); err != nil {
		return h.BusinessErrorResponse(c, err, "Registry pause")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Registry paused", h.status())
}

// Unpause resumes the registry
// @Summary Unpause Registry
// @Tags Registry
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RegistryStatusResponse}
// @Failure 403 {object} dto.APIResponse "Caller is not the registry owner"
// @Failure 409 {object} dto.APIResponse "Registry not paused"
// @Router /api/v1/registry/unpause [post]
func (h *RegistryHandler) Unpause(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/registry/unpause")
	defer cancel()

	if err := h.registry.Unpause(ctx, callerIdentity(c), h.now()); err != nil {
		return h.BusinessErrorResponse(c, err, "Registry unpause")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Registry unpaused", h.status())
}

// Status reports the pause flag and the next campaign id
// @Summary Registry Status
// @Tags Registry
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RegistryStatusResponse}
// @Router /api/v1/registry [get]
func (h *RegistryHandler) Status(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "Registry status retrieved successfully", h.status())
}

func (h *RegistryHandler) status() dto.RegistryStatusResponse {
	return dto.RegistryStatusResponse{
		Paused:         h.registry.Paused(),
		NextCampaignID: h.registry.NextCampaignID(),
	}
}
