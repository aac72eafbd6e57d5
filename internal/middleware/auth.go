// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"broadcaster/internal/models"
	"broadcaster/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const identityKey contextKey = "identity"

// How a caller was authenticated.
const (
	ViaToken     = "token"
	ViaAPIKey    = "api_key"
	ViaLegacyKey = "legacy_key" // process-wide CMS key, no user attached
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Via    string
}

// TokenResolver looks up a bearer token. Implemented by *session.Store.
type TokenResolver interface {
	Get(ctx context.Context, token string) (*session.Data, error)
}

// KeyResolver looks up an API secret key. Implemented by *store.UserStore.
type KeyResolver interface {
	FindByAPIKey(key string) (*models.User, error)
}

// APIKeyFromRequest reads the API secret key. Both the dashed header and
// the underscore spelling used by older clients are accepted.
func APIKeyFromRequest(r *http.Request) string {
	for _, name := range []string{"X-API-Secret-Key", "X_API_Secret_Key"} {
		if k := strings.TrimSpace(r.Header.Get(name)); k != "" {
			return k
		}
	}
	return ""
}

// RequireUser rejects requests without a valid bearer token.
func RequireUser(tokens TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, status := fromToken(r, tokens)
			if id == nil {
				unauthorized(w, status)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAPIKey rejects requests without a valid API secret key. When
// legacyKey is non-empty it is accepted as well, without a user.
func RequireAPIKey(keys KeyResolver, legacyKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, msg := fromAPIKey(r, keys, legacyKey)
			if id == nil {
				unauthorized(w, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUserOrAPIKey accepts an API key first, then a bearer token. A key
// that is present but unknown is rejected without trying the token.
func RequireUserOrAPIKey(tokens TokenResolver, keys KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if APIKeyFromRequest(r) != "" {
				RequireAPIKey(keys, "")(next).ServeHTTP(w, r)
				return
			}
			id, _ := fromToken(r, tokens)
			if id == nil {
				unauthorized(w, "Unauthorized: Missing user identification")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func fromToken(r *http.Request, tokens TokenResolver) (*Identity, string) {
	token := session.TokenFromRequest(r)
	if token == "" {
		return nil, "Unauthorized"
	}
	data, err := tokens.Get(r.Context(), token)
	if err != nil {
		slog.Error("token lookup failed", "error", err)
		return nil, "Unauthorized"
	}
	if data == nil {
		return nil, "Unauthorized: Invalid or expired token"
	}
	return &Identity{UserID: data.UserID, Email: data.Email, Via: ViaToken}, ""
}

func fromAPIKey(r *http.Request, keys KeyResolver, legacyKey string) (*Identity, string) {
	key := APIKeyFromRequest(r)
	if key == "" {
		return nil, "Unauthorized: Missing API secret key"
	}
	if legacyKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(legacyKey)) == 1 {
		return &Identity{Via: ViaLegacyKey}, ""
	}
	user, err := keys.FindByAPIKey(key)
	if err != nil {
		slog.Error("api key lookup failed", "error", err)
		return nil, "Unauthorized: Invalid API secret key"
	}
	if user == nil {
		return nil, "Unauthorized: Invalid API secret key"
	}
	return &Identity{UserID: user.ID, Email: user.Email, Via: ViaAPIKey}, ""
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx returns the authenticated caller, or nil.
func IdentityFromCtx(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// UserIDFromCtx returns the caller's user id, or uuid.Nil.
func UserIDFromCtx(ctx context.Context) uuid.UUID {
	if id := IdentityFromCtx(ctx); id != nil {
		return id.UserID
	}
	return uuid.Nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
