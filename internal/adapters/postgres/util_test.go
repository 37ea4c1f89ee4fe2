package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   error
		want error
	}{
		{name: "not found", in: gorm.ErrRecordNotFound, want: domain.ErrNotFound},
		{name: "duplicate", in: gorm.ErrDuplicatedKey, want: domain.ErrConflict},
		{name: "foreign key", in: gorm.ErrForeignKeyViolated, want: domain.ErrInvalidInput},
		{name: "check", in: gorm.ErrCheckConstraintViolated, want: domain.ErrInvalidInput},
		{name: "deadline", in: fmt.Errorf("query: %w", context.DeadlineExceeded), want: domain.ErrStorageUnavailable},
		{name: "bad uuid", in: &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}, want: domain.ErrInvalidInput},
		{name: "admin shutdown", in: &pgconn.PgError{Code: "57P01", Message: "terminating connection"}, want: domain.ErrStorageUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := translateError(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	plain := errors.New("boom")
	if got := translateError(plain); got != plain {
		t.Fatalf("expected unknown error to pass through, got %v", got)
	}
	if translateError(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
}
