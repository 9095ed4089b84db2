package handlers

import (
	"github.com/amirphl/likebounty/app/dto"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	Deposit(c fiber.Ctx) error
	GetWallet(c fiber.Ctx) error
}

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	baseHandler
	walletFlow businessflow.WalletFlow
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletFlow businessflow.WalletFlow, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		baseHandler: newBaseHandler(logger),
		walletFlow:  walletFlow,
	}
}

// Deposit credits the caller's wallet
// @Summary Deposit
// @Description Credit the authenticated caller's wallet; the balance funds campaign payments
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DepositRequest true "Deposit amount"
// @Success 200 {object} dto.APIResponse{data=dto.WalletResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/wallets/deposit [post]
func (h *WalletHandler) Deposit(c fiber.Ctx) error {
	var req dto.DepositRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/wallets/deposit")
	defer cancel()

	wallet, err := h.walletFlow.Deposit(ctx, callerIdentity(c), &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Deposit")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Deposit completed successfully", wallet)
}

// GetWallet returns the caller's balance and latest transactions
// @Summary Get Wallet
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.WalletResponse}
// @Failure 404 {object} dto.APIResponse "Wallet not found"
// @Router /api/v1/wallets/me [get]
func (h *WalletHandler) GetWallet(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/wallets/me")
	defer cancel()

	wallet, err := h.walletFlow.Wallet(ctx, callerIdentity(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Wallet lookup")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Wallet retrieved successfully", wallet)
}
