package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/app/middleware"
	"github.com/amirphl/likebounty/app/services"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/amirphl/likebounty/repository"
	testingutil "github.com/amirphl/likebounty/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   dto.ErrorDetail `json:"error"`
}

type apiHarness struct {
	t      *testing.T
	app    *fiber.App
	tokens services.TokenService
	clock  time.Time
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	tokens, err := services.NewTokenService(time.Hour, "likebounty", "likebounty-api", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	wallets := businessflow.NewWalletFlow(
		repository.NewWalletRepository(db.DB),
		repository.NewTransactionRepository(db.DB),
		db.DB,
	)
	registry := businessflow.NewRegistry(businessflow.RegistryConfig{
		Owner:                  "owner",
		MaxApplicationDuration: 24 * time.Hour,
		MinActivityDuration:    time.Minute,
		FallbackGracePeriod:    time.Hour,
	}, businessflow.RegistryDeps{
		Journal:    businessflow.NewGormJournal(db.DB, false),
		Collector:  wallets,
		Transferer: wallets,
	})

	h := &apiHarness{t: t, app: fiber.New(), tokens: tokens, clock: start}
	clock := func() time.Time { return h.clock }

	campaigns := NewCampaignHandler(registry, zap.NewNop())
	campaigns.WithClock(clock)
	admin := NewRegistryHandler(registry, zap.NewNop())
	admin.WithClock(clock)
	walletHandler := NewWalletHandler(wallets, zap.NewNop())
	health := NewHealthHandler(db.DB, "test")

	auth := middleware.NewAuthMiddleware(tokens).Authenticate()
	api := h.app.Group("/api/v1")
	api.Get("/health", health.HealthCheck)
	api.Get("/registry", admin.Status)
	api.Post("/registry/pause", auth, admin.Pause)
	api.Post("/registry/unpause", auth, admin.Unpause)
	api.Post("/sponsors", auth, admin.AddSponsor)
	api.Get("/sponsors/:identity", admin.GetSponsor)
	api.Delete("/sponsors/:identity", auth, admin.RemoveSponsor)
	api.Get("/sponsors/:identity/campaigns", admin.ListSponsorCampaigns)
	api.Get("/campaigns", campaigns.ListCampaigns)
	api.Post("/campaigns", auth, campaigns.CreateCampaign)
	api.Get("/campaigns/:id", campaigns.GetCampaign)
	api.Post("/campaigns/:id/apply", auth, campaigns.Apply)
	api.Post("/campaigns/:id/select", auth, campaigns.Select)
	api.Post("/campaigns/:id/engage", auth, campaigns.Engage)
	api.Post("/campaigns/:id/claim", auth, campaigns.ClaimPayout)
	api.Post("/campaigns/:id/refund", auth, campaigns.ExpireAndRefund)
	api.Post("/wallets/deposit", auth, walletHandler.Deposit)
	api.Get("/wallets/me", auth, walletHandler.GetWallet)
	return h
}

// do sends a request as identity ("" sends it unauthenticated)
func (h *apiHarness) do(method, path, identity string, body any) (int, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != "" {
		token, _, err := h.tokens.GenerateToken(identity)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *apiHarness) campaign(id uint64) dto.CampaignResponse {
	h.t.Helper()
	status, env := h.do(http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d", id), "", nil)
	require.Equal(h.t, http.StatusOK, status)
	var view dto.CampaignResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &view))
	return view
}

func (h *apiHarness) balance(identity string) uint64 {
	h.t.Helper()
	status, env := h.do(http.MethodGet, "/api/v1/wallets/me", identity, nil)
	require.Equal(h.t, http.StatusOK, status)
	var wallet dto.WalletResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &wallet))
	return wallet.Balance
}

func validCampaign(payment uint64) dto.CreateCampaignRequest {
	return dto.CreateCampaignRequest{
		Name:                "Spring launch",
		Description:         "Like the launch post",
		LikeGoal:            3,
		ApplicationDuration: 100,
		ActivityDuration:    200,
		Payment:             payment,
	}
}

// fundedCampaign whitelists and funds "sponsor" and creates one campaign
func (h *apiHarness) fundedCampaign(payment uint64) uint64 {
	h.t.Helper()
	status, _ := h.do(http.MethodPost, "/api/v1/sponsors", "owner", dto.AddSponsorRequest{Identity: "sponsor", Name: "Acme"})
	require.Equal(h.t, http.StatusCreated, status)
	status, _ = h.do(http.MethodPost, "/api/v1/wallets/deposit", "sponsor", dto.DepositRequest{Amount: 50})
	require.Equal(h.t, http.StatusOK, status)

	status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", validCampaign(payment))
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var created dto.CreateCampaignResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &created))
	return created.ID
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fundedCampaign(10)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(40), h.balance("sponsor"))

	h.clock = start.Add(10 * time.Second)
	status, _ := h.do(http.MethodPost, "/api/v1/campaigns/1/apply", "creator", nil)
	require.Equal(t, http.StatusOK, status)

	status, env := h.do(http.MethodPost, "/api/v1/campaigns/1/apply", "creator", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_APPLIED", env.Error.Code)

	status, env = h.do(http.MethodPost, "/api/v1/campaigns/1/select", "creator", dto.SelectApplicantRequest{Applicant: "creator"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_CAMPAIGN_SPONSOR", env.Error.Code)

	status, _ = h.do(http.MethodPost, "/api/v1/campaigns/1/select", "sponsor", dto.SelectApplicantRequest{Applicant: "creator"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", h.campaign(1).Status)

	h.clock = start.Add(150 * time.Second)
	for i := 1; i <= 3; i++ {
		status, _ = h.do(http.MethodPost, "/api/v1/campaigns/1/engage", fmt.Sprintf("fan%d", i), nil)
		require.Equal(t, http.StatusOK, status)
	}
	view := h.campaign(1)
	assert.Equal(t, "finished", view.Status)
	assert.Equal(t, "goal_met", view.Outcome)

	status, env = h.do(http.MethodPost, "/api/v1/campaigns/1/claim", "fan1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_SELECTED_APPLICANT", env.Error.Code)

	status, _ = h.do(http.MethodPost, "/api/v1/campaigns/1/claim", "creator", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(10), h.balance("creator"))

	status, env = h.do(http.MethodPost, "/api/v1/campaigns/1/claim", "creator", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOTHING_TO_CLAIM", env.Error.Code)
	assert.Equal(t, uint64(10), h.balance("creator"))
}

func TestRefundOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	h.fundedCampaign(10)

	h.clock = start.Add(101 * time.Second)
	status, env := h.do(http.MethodPost, "/api/v1/campaigns/1/refund", "sponsor", nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	var view dto.CampaignResponse
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "refunded", view.Outcome)
	assert.Equal(t, uint64(50), h.balance("sponsor"))
}

func TestCreateCampaignValidation(t *testing.T) {
	h := newAPIHarness(t)
	h.fundedCampaign(10)

	t.Run("MissingToken", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "", validCampaign(10))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", env.Error.Code)
	})

	t.Run("ZeroGoal", func(t *testing.T) {
		req := validCampaign(10)
		req.LikeGoal = 0
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("NotWhitelisted", func(t *testing.T) {
		status, _ := h.do(http.MethodPost, "/api/v1/campaigns", "stranger", validCampaign(10))
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("ActivityTooShort", func(t *testing.T) {
		req := validCampaign(10)
		req.ActivityDuration = 30
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "ACTIVITY_DURATION_TOO_SHORT", env.Error.Code)
	})

	t.Run("ApplicationDurationTooLong", func(t *testing.T) {
		req := validCampaign(10)
		req.ApplicationDuration = uint64((24*time.Hour)/time.Second) + 1
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "APPLICATION_DURATION_TOO_LONG", env.Error.Code)
	})

	// 2^55+3600 seconds would wrap to one hour as a time.Duration
	t.Run("ApplicationDurationBeyondDuration", func(t *testing.T) {
		req := validCampaign(10)
		req.ApplicationDuration = 1<<55 + 3600
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("ActivityDurationBeyondDuration", func(t *testing.T) {
		req := validCampaign(10)
		req.ActivityDuration = 1<<55 + 3600
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("PaymentBeyondBalanceRange", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", validCampaign(math.MaxUint64))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/v1/campaigns", "sponsor", validCampaign(1000))
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "INSUFFICIENT_BALANCE", env.Error.Code)
	})

	status, env := h.do(http.MethodGet, "/api/v1/registry", "", nil)
	require.Equal(t, http.StatusOK, status)
	var reg dto.RegistryStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, uint64(2), reg.NextCampaignID)
}

func TestSelectRequiresSponsor(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fundedCampaign(10)
	path := fmt.Sprintf("/api/v1/campaigns/%d", id)

	status, _ := h.do(http.MethodPost, path+"/apply", "alice", nil)
	require.Equal(t, http.StatusOK, status)

	for _, caller := range []string{businessflow.DefaultRegistryAuthority, "owner", "alice"} {
		status, env := h.do(http.MethodPost, path+"/select", caller, dto.SelectApplicantRequest{Applicant: "alice"})
		assert.Equal(t, http.StatusForbidden, status, caller)
		assert.Equal(t, "NOT_CAMPAIGN_SPONSOR", env.Error.Code, caller)
	}

	view := h.campaign(id)
	assert.Equal(t, "created", view.Status)
	assert.Empty(t, view.SelectedApplicant)

	status, env := h.do(http.MethodPost, "/api/v1/sponsors", "owner", dto.AddSponsorRequest{Identity: businessflow.DefaultRegistryAuthority})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "IDENTITY_RESERVED", env.Error.Code)
}

func TestCampaignLookup(t *testing.T) {
	h := newAPIHarness(t)
	h.fundedCampaign(10)

	status, env := h.do(http.MethodGet, "/api/v1/campaigns/99", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "CAMPAIGN_NOT_FOUND", env.Error.Code)

	status, env = h.do(http.MethodGet, "/api/v1/campaigns/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_CAMPAIGN_ID", env.Error.Code)

	status, env = h.do(http.MethodGet, "/api/v1/campaigns", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list dto.CampaignListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []uint64{1}, list.IDs)

	status, env = h.do(http.MethodGet, "/api/v1/sponsors/sponsor/campaigns", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []uint64{1}, list.IDs)

	status, env = h.do(http.MethodGet, "/api/v1/sponsors/nobody/campaigns", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.IDs)
}

func TestRegistryAdministration(t *testing.T) {
	h := newAPIHarness(t)
	h.fundedCampaign(10)

	status, env := h.do(http.MethodPost, "/api/v1/sponsors", "owner", dto.AddSponsorRequest{Identity: "sponsor"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SPONSOR_ALREADY_WHITELISTED", env.Error.Code)

	status, _ = h.do(http.MethodPost, "/api/v1/registry/pause", "sponsor", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(http.MethodPost, "/api/v1/registry/pause", "owner", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = h.do(http.MethodPost, "/api/v1/campaigns/1/apply", "creator", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "REGISTRY_PAUSED", env.Error.Code)

	// reads continue while paused
	assert.Equal(t, uint64(1), h.campaign(1).ID)

	status, _ = h.do(http.MethodPost, "/api/v1/registry/unpause", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPost, "/api/v1/campaigns/1/apply", "creator", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodDelete, "/api/v1/sponsors/sponsor", "owner", nil)
	require.Equal(t, http.StatusOK, status)
	status, env = h.do(http.MethodGet, "/api/v1/sponsors/sponsor", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "SPONSOR_NOT_FOUND", env.Error.Code)

	status, _ = h.do(http.MethodDelete, "/api/v1/sponsors/sponsor", "owner", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWalletEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	status, env := h.do(http.MethodGet, "/api/v1/wallets/me", "nobody", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "WALLET_NOT_FOUND", env.Error.Code)

	status, env = h.do(http.MethodPost, "/api/v1/wallets/deposit", "alice", dto.DepositRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, env = h.do(http.MethodPost, "/api/v1/wallets/deposit", "alice", dto.DepositRequest{Amount: 7})
	require.Equal(t, http.StatusOK, status)
	var wallet dto.WalletResponse
	require.NoError(t, json.Unmarshal(env.Data, &wallet))
	assert.Equal(t, "alice", wallet.Identity)
	assert.Equal(t, uint64(7), wallet.Balance)
	require.Len(t, wallet.Transactions, 1)
	assert.Equal(t, "deposit", wallet.Transactions[0].Type)

	status, env = h.do(http.MethodPost, "/api/v1/wallets/deposit", "alice", dto.DepositRequest{Amount: math.MaxUint64})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, _ = h.do(http.MethodPost, "/api/v1/wallets/deposit", "bob", dto.DepositRequest{Amount: math.MaxInt64})
	require.Equal(t, http.StatusOK, status)
	status, env = h.do(http.MethodPost, "/api/v1/wallets/deposit", "bob", dto.DepositRequest{Amount: 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BALANCE_LIMIT_EXCEEDED", env.Error.Code)
	assert.Equal(t, uint64(math.MaxInt64), h.balance("bob"))
}

func TestHealthCheck(t *testing.T) {
	h := newAPIHarness(t)
	status, env := h.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestStatusForKind(t *testing.T) {
	cases := map[businessflow.ErrorKind]int{
		businessflow.KindValidation:    http.StatusBadRequest,
		businessflow.KindAuthorization: http.StatusForbidden,
		businessflow.KindNotFound:      http.StatusNotFound,
		businessflow.KindConflict:      http.StatusConflict,
		businessflow.KindState:         http.StatusUnprocessableEntity,
		businessflow.KindWindow:        http.StatusUnprocessableEntity,
		businessflow.KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusForKind(kind), string(kind))
	}
}
