package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/creditkit/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", pgx.ErrNoRows, pg.IsNotFoundError, true},
		{"not found nil", nil, pg.IsNotFoundError, false},
		{"tx closed", pgx.ErrTxClosed, pg.IsTxClosedError, true},
		{"duplicate key", wrap("23505"), pg.IsDuplicateKeyError, true},
		{"duplicate key other code", wrap("23503"), pg.IsDuplicateKeyError, false},
		{"foreign key", wrap("23503"), pg.IsForeignKeyViolationError, true},
		{"check violation", wrap("23514"), pg.IsCheckViolationError, true},
		{"check violation plain error", errors.New("23514"), pg.IsCheckViolationError, false},
		{"serialization failure", wrap("40001"), pg.IsRetryableTxError, true},
		{"deadlock", wrap("40P01"), pg.IsRetryableTxError, true},
		{"unique is not retryable", wrap("23505"), pg.IsRetryableTxError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}
