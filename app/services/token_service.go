// Package services provides technical concerns around the registry: caller tokens and event sinks
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/likebounty/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService issues and validates the bearer tokens that carry a caller identity
type TokenService interface {
	GenerateToken(identity string) (token string, claims *TokenClaims, err error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	Identity  string    `json:"sub"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService with HS256 tokens
type TokenServiceImpl struct {
	ttl       time.Duration
	secretKey []byte
	issuer    string
	audience  string
	parser    *jwt.Parser
}

// NewTokenService creates a new token service
func NewTokenService(ttl time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(utils.UTCNow),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &TokenServiceImpl{
		ttl:       ttl,
		secretKey: []byte(secretKey),
		issuer:    issuer,
		audience:  audience,
		parser:    jwt.NewParser(opts...),
	}, nil
}

// GenerateToken signs a token whose subject is identity
func (s *TokenServiceImpl) GenerateToken(identity string) (string, *TokenClaims, error) {
	if identity == "" {
		return "", nil, fmt.Errorf("identity is required")
	}

	tokenID, err := generateTokenID()
	if err != nil {
		return "", nil, err
	}

	now := utils.UTCNow().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		ID:        tokenID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, &TokenClaims{
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		TokenID:   tokenID,
	}, nil
}

// ValidateToken validates a JWT token and returns claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	parsed, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	result := &TokenClaims{
		Identity: claims.Subject,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
