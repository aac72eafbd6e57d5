// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"broadcaster/internal/middleware"
	"broadcaster/internal/models"
	"broadcaster/internal/session"
)

// UserStore is the user persistence the handlers need.
type UserStore interface {
	FindByID(id uuid.UUID) (*models.User, error)
	FindOrCreate(email string) (*models.User, bool, error)
	SetPassword(userID uuid.UUID, password string) error
	CheckPassword(user *models.User, password string) bool
	RotateAPIKey(userID uuid.UUID) (string, error)
	GetOptimizelyConfig(userID uuid.UUID) (*models.OptimizelyConfig, error)
	SaveOptimizelyConfig(userID uuid.UUID, c models.OptimizelyConfig) error
	SetDefaultContainer(userID uuid.UUID, containerID string) error
}

// TokenIssuer creates and revokes bearer tokens.
type TokenIssuer interface {
	Create(ctx context.Context, data *session.Data) (string, error)
	Destroy(ctx context.Context, token string) error
}

// Auth groups the sign-in and credential handlers.
type Auth struct {
	users  UserStore
	tokens TokenIssuer
}

// NewAuth creates a new Auth handler group.
func NewAuth(users UserStore, tokens TokenIssuer) *Auth {
	return &Auth{users: users, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Token string    `json:"token"`
}

// Login signs a user in by email, creating the account on first sight.
// Accounts that have set a password must supply it.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email, msg := normalizeEmail(req.Email)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, created, err := a.users.FindOrCreate(email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user.HasPassword() && !a.users.CheckPassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := a.tokens.Create(r.Context(), &session.Data{UserID: user.ID, Email: user.Email})
	if err != nil {
		slog.Error("token create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if created {
		slog.Info("user created", "user_id", user.ID)
	}
	writeJSON(w, http.StatusOK, loginResponse{ID: user.ID, Email: user.Email, Token: token})
}

// Logout revokes the caller's bearer token.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.tokens.Destroy(r.Context(), session.TokenFromRequest(r)); err != nil {
		slog.Error("token destroy failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
}

// SetPassword sets or replaces the caller's password. Replacing requires
// the current one.
func (a *Auth) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.HasPassword() && !a.users.CheckPassword(user, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err := a.users.SetPassword(user.ID, req.Password); err != nil {
		slog.Error("set password failed", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetAPIKey returns the caller's API secret key, or null.
func (a *Auth) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"apiKey": user.APISecretKey})
}

// RotateAPIKey issues a new API secret key, invalidating the old one.
func (a *Auth) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	key, err := a.users.RotateAPIKey(userID)
	if err != nil {
		slog.Error("api key rotation failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	slog.Info("api key rotated", "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}

// currentUser loads the authenticated user, writing the error response
// itself when that fails.
func (a *Auth) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	return loadUser(w, a.users, middleware.UserIDFromCtx(r.Context()))
}

func loadUser(w http.ResponseWriter, users UserStore, id uuid.UUID) (*models.User, bool) {
	user, err := users.FindByID(id)
	if err != nil {
		slog.Error("user lookup failed", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return user, true
}
