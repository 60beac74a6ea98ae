package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/turu-api/internal/models"
	"github.com/isdelr/turu-api/internal/services"
	"github.com/rs/zerolog/log"
)

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
}

type contextKey string

// AccountKey is the context key for the authenticated account.
const AccountKey = contextKey("account")

// AccountFromContext returns the account stored by BasicAuthMiddleware.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	acc, ok := ctx.Value(AccountKey).(models.Account)
	return acc, ok
}

// BasicAuthMiddleware authenticates requests with HTTP Basic credentials and
// passes the account down via context.
func BasicAuthMiddleware(authn Authenticator, realm string) func(http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || username == "" {
				w.Header().Set("WWW-Authenticate", challenge)
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			acc, err := authn.Authenticate(r.Context(), username, password)
			if err != nil {
				if errors.Is(err, services.ErrInvalidCredentials) {
					w.Header().Set("WWW-Authenticate", challenge)
					writeError(w, http.StatusUnauthorized, "Invalid username or password")
					return
				}
				log.Error().Err(err).Msg("Authentication backend failure")
				writeError(w, http.StatusInternalServerError, "Authentication failed due to an unexpected error")
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSelf rejects requests whose URL parameter param does not name the
// authenticated account. It must run after BasicAuthMiddleware.
func RequireSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, ok := AccountFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid user id")
				return
			}
			if id != acc.ID {
				log.Warn().Int64("account_id", acc.ID).Int64("target_id", id).Msg("Rejected cross-account modification")
				writeError(w, http.StatusForbidden, "You can only modify your own account")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
