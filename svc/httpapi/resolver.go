package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// AccountHeader is read by HeaderResolver.
const AccountHeader = "X-Account-ID"

// Resolver identifies the account a request acts on.
type Resolver func(r *http.Request) (uuid.UUID, error)

// HeaderResolver trusts the X-Account-ID header set by the upstream
// authenticator.
func HeaderResolver(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(AccountHeader)
	if raw == "" {
		return uuid.Nil, ErrMissingAccount
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidAccount
	}
	return id, nil
}

type accountKey struct{}

func withAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

// AccountID returns the id resolved for the request.
func AccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok
}

func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.resolve(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccountID(r.Context(), id)))
	})
}
