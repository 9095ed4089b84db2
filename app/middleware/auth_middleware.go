// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by the auth middleware
const (
	LocalsIdentity    = "identity"
	LocalsTokenID     = "token_id"
	LocalsTokenClaims = "token_claims"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the bearer token and stores the caller identity
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTHORIZATION_HEADER", "Authorization header is required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "MISSING_ACCESS_TOKEN", "Access token is required")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
			default:
				return unauthorized(c, "TOKEN_VALIDATION_FAILED", "Token validation failed")
			}
		}

		c.Locals(LocalsIdentity, claims.Identity)
		c.Locals(LocalsTokenID, claims.TokenID)
		c.Locals(LocalsTokenClaims, claims)

		return c.Next()
	}
}

// Identity returns the authenticated caller identity, or "" when absent
func Identity(c fiber.Ctx) string {
	identity, _ := c.Locals(LocalsIdentity).(string)
	return identity
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}
