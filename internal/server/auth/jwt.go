// Package auth issues and verifies the HS256 access and refresh tokens of the
// session lifecycle.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the fixed claim set of both token types. Profile fields are only
// set on access tokens.
type Claims struct {
	UserID     string  `json:"user_id"`
	TokenType  string  `json:"token_type"`
	Email      string  `json:"email,omitempty"`
	Username   string  `json:"username,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   string  `json:"position,omitempty"`
	WorkStatus string  `json:"work_status,omitempty"`
	jwt.RegisteredClaims
}

// RevocationChecker answers whether a refresh token id was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Token is a signed token together with the values callers need to persist
// or deliver it.
type Token struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// Issuer mints and verifies tokens with a single symmetric secret.
type Issuer struct {
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationChecker
	parser      *jwt.Parser
	now         func() time.Time
	newID       func() string
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an Issuer. rc may be nil, in which case refresh tokens
// are never reported as revoked.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, rc RevocationChecker, opts ...Option) *Issuer {
	i := &Issuer{
		secret:      []byte(secret),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: rc,
		// expiry is checked by Verify against the injectable clock
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// AccessTTL returns the lifetime of access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken mints an access token carrying the user's profile claims.
func (i *Issuer) IssueAccessToken(u *models.User) (*Token, error) {
	return i.sign(Claims{
		UserID:     u.ID,
		TokenType:  TokenTypeAccess,
		Email:      u.Email,
		Username:   u.Username,
		Department: u.DepartmentName(),
		Position:   u.Position,
		WorkStatus: string(u.WorkStatus),
	}, i.accessTTL)
}

// IssueRefreshToken mints a refresh token with a fresh jti.
func (i *Issuer) IssueRefreshToken(u *models.User) (*Token, error) {
	return i.sign(Claims{
		UserID:    u.ID,
		TokenType: TokenTypeRefresh,
	}, i.refreshTTL)
}

func (i *Issuer) sign(c Claims, ttl time.Duration) (*Token, error) {
	now := i.now()
	jti := i.newID()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{Value: s, JTI: jti, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Verify checks, in order, the signature, expiry, token type and, for refresh
// tokens, revocation. Token failures wrap common.ErrInvalidToken; a failing
// revocation lookup is returned as is.
func (i *Issuer) Verify(ctx context.Context, token, expectedType string) (*Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || !i.now().Before(claims.ExpiresAt.Time) {
		return nil, common.ErrTokenExpired
	}

	if claims.TokenType != expectedType {
		return nil, common.ErrTokenWrongType
	}

	if expectedType == TokenTypeRefresh && i.revocations != nil {
		revoked, err := i.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}

	return claims, nil
}

// Inspect checks only the signature and token type. Logout uses it so that
// stale tokens can still be revoked.
func (i *Issuer) Inspect(token, expectedType string) (*Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expectedType {
		return nil, common.ErrTokenWrongType
	}
	return claims, nil
}

func (i *Issuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, common.ErrTokenBadSignature
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing claims", common.ErrInvalidToken)
	}

	return claims, nil
}
