package ports

import "context"

type AuthClaims struct {
	UserID string
	Email  string
	Role   string
	Valid  bool
}

// TokenVerifier validates access tokens issued by the hosted auth backend.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (AuthClaims, error)
}
