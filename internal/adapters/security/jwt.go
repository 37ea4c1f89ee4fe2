package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

// HS256Verifier validates access tokens signed with the auth backend's
// shared JWT secret. The subject claim carries the user id.
type HS256Verifier struct {
	secret   []byte
	audience string
	issuer   string
	leeway   time.Duration
}

type VerifierOptions struct {
	// Audience is enforced when set, e.g. "authenticated".
	Audience string
	Issuer   string
	Leeway   time.Duration
}

func NewHS256Verifier(secret string, opts VerifierOptions) (*HS256Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if opts.Leeway <= 0 {
		opts.Leeway = 30 * time.Second
	}
	return &HS256Verifier{
		secret:   []byte(secret),
		audience: opts.Audience,
		issuer:   opts.Issuer,
		leeway:   opts.Leeway,
	}, nil
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (v *HS256Verifier) Verify(_ context.Context, raw string) (ports.AuthClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return ports.AuthClaims{}, err
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, errors.New("invalid token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return ports.AuthClaims{}, fmt.Errorf("parse sub: %w", err)
	}
	return ports.AuthClaims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Valid:  true,
	}, nil
}

// Sign mints a token the verifier accepts. Used for local runs and tests.
func (v *HS256Verifier) Sign(userID uuid.UUID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := accessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
