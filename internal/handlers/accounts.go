// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"broadcaster/internal/facebook"
	"broadcaster/internal/middleware"
	"broadcaster/internal/models"
)

// AccountStore persists linked social accounts.
type AccountStore interface {
	ListByUser(userID uuid.UUID) ([]models.SocialAccount, error)
	Add(userID uuid.UUID, platform models.Platform, displayName, platformUserID, accessToken string) (*models.SocialAccount, error)
	SetActive(id, userID uuid.UUID, active bool) (bool, error)
	SetPlatformActive(userID uuid.UUID, platform models.Platform, active bool) (int64, error)
}

// FacebookAuth is the part of the Graph client used to link accounts.
type FacebookAuth interface {
	ExtendToken(ctx context.Context, shortLived string) (string, error)
	Me(ctx context.Context, accessToken string) (*facebook.Profile, error)
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// StateStore binds OAuth state values to users.
type StateStore interface {
	IssueState(ctx context.Context, userID uuid.UUID) (string, error)
	ConsumeState(ctx context.Context, state string) (uuid.UUID, bool, error)
}

// Accounts groups the social account and OAuth handlers.
type Accounts struct {
	accounts AccountStore
	fb       FacebookAuth
	states   StateStore
}

// NewAccounts creates a new Accounts handler group.
func NewAccounts(accounts AccountStore, fb FacebookAuth, states StateStore) *Accounts {
	return &Accounts{accounts: accounts, fb: fb, states: states}
}

// List returns the caller's linked accounts.
func (a *Accounts) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	accounts, err := a.accounts.ListByUser(userID)
	if err != nil {
		slog.Error("list accounts failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if accounts == nil {
		accounts = []models.SocialAccount{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type addAccountRequest struct {
	Platform    string `json:"platform"`
	DisplayName string `json:"display_name"`
}

// Add links an account by hand, without a provider token.
func (a *Accounts) Add(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Platform == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "Platform and display name required")
		return
	}
	if !models.ValidPlatform(req.Platform) {
		writeError(w, http.StatusBadRequest, "Unsupported platform")
		return
	}
	if len(req.DisplayName) > maxDisplayNameLen {
		writeError(w, http.StatusBadRequest, "Display name is too long")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	account, err := a.accounts.Add(userID, models.Platform(req.Platform), req.DisplayName, "", "")
	if err != nil {
		slog.Error("add account failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type toggleRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Platform string `json:"platform"`
	IsActive *bool  `json:"isActive"`
}

// Toggle switches one account, or every account of a platform group.
func (a *Accounts) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "Invalid parameters")
		return
	}
	userID := middleware.UserIDFromCtx(r.Context())

	switch {
	case req.Type == "account" && req.ID != "":
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid parameters")
			return
		}
		found, err := a.accounts.SetActive(id, userID, *req.IsActive)
		if err != nil {
			slog.Error("toggle account failed", "error", err, "account_id", id)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
	case req.Type == "group" && req.Platform != "":
		if _, err := a.accounts.SetPlatformActive(userID, models.Platform(req.Platform), *req.IsActive); err != nil {
			slog.Error("toggle group failed", "error", err, "platform", req.Platform)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Invalid parameters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type connectRequest struct {
	AccessToken string `json:"accessToken"`
}

// ConnectFacebook links a Facebook profile from a short-lived token
// obtained by the client-side SDK.
func (a *Accounts) ConnectFacebook(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "Missing accessToken")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	long, err := a.fb.ExtendToken(r.Context(), req.AccessToken)
	if err != nil {
		slog.Error("facebook token exchange failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to connect Facebook account")
		return
	}
	profile, err := a.linkProfile(r.Context(), userID, long)
	if err != nil {
		slog.Error("facebook connect failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to connect Facebook account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": profile})
}

// Authorize starts the provider's OAuth dialog. JSON clients, which
// cannot follow a cross-origin redirect, get the dialog URL instead.
func (a *Accounts) Authorize(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != string(models.PlatformFacebook) {
		writeError(w, http.StatusBadRequest, "Provider not supported")
		return
	}

	state, err := a.states.IssueState(r.Context(), middleware.UserIDFromCtx(r.Context()))
	if err != nil {
		slog.Error("issue oauth state failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	url := a.fb.AuthCodeURL(state)
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback completes the OAuth dialog and returns the browser to the app.
func (a *Accounts) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "OAuth Error: "+e)
		return
	}
	if chi.URLParam(r, "provider") != string(models.PlatformFacebook) {
		writeError(w, http.StatusBadRequest, "Provider not supported")
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "Missing code or state")
		return
	}

	userID, ok, err := a.states.ConsumeState(r.Context(), state)
	if err != nil {
		slog.Error("consume oauth state failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	token, err := a.fb.Exchange(r.Context(), code)
	if err == nil {
		_, err = a.linkProfile(r.Context(), userID, token)
	}
	if err != nil {
		slog.Error("oauth callback failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *Accounts) linkProfile(ctx context.Context, userID uuid.UUID, token string) (*facebook.Profile, error) {
	profile, err := a.fb.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, errors.New("facebook profile has no id")
	}
	if _, err := a.accounts.Add(userID, models.PlatformFacebook, profile.Name, profile.ID, token); err != nil {
		return nil, err
	}
	slog.Info("facebook account linked", "user_id", userID, "profile_id", profile.ID)
	return profile, nil
}
