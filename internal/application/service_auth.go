package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
)

func (s *Service) ValidateToken(ctx context.Context, token string) (ports.AuthClaims, error) {
	if strings.TrimSpace(token) == "" || s.tokens == nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	if !claims.Valid {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

// Identity resolves the caller behind a raw bearer token.
func (s *Service) Identity(ctx context.Context, token string) (domain.UserIdentity, error) {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return domain.UserIdentity{}, err
	}
	return domain.UserIdentity{
		UserID: uuid.MustParse(claims.UserID),
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
