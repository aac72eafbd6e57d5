// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"broadcaster/internal/facebook"
	"broadcaster/internal/middleware"
	"broadcaster/internal/models"
	"broadcaster/internal/publish"
	"broadcaster/internal/store"
)

// PageStore persists the Facebook pages a user publishes to.
type PageStore interface {
	ListByUser(userID uuid.UUID) ([]models.FacebookPage, error)
	Add(userID uuid.UUID, pageID, pageName, accessToken string) (*models.FacebookPage, error)
	Remove(id, userID uuid.UUID) (bool, error)
	SetActive(id, userID uuid.UUID, active bool) (bool, error)
	UpdateName(id, userID uuid.UUID, name string) (bool, error)
	UpdateToken(userID uuid.UUID, pageID, token string) (bool, error)
	ResetForUser(userID uuid.UUID) (int64, error)
}

// DeliveryStore records publish outcomes.
type DeliveryStore interface {
	RecordBatch(ctx context.Context, userID uuid.UUID, message string, outcomes []publish.Outcome) error
	ListRecent(userID uuid.UUID, limit int) ([]models.Delivery, error)
}

// Graph is the part of the Graph client used for pages and posts.
type Graph interface {
	Page(ctx context.Context, pageID, accessToken string) (*facebook.Page, error)
	Accounts(ctx context.Context, userToken string) ([]facebook.Page, error)
	PostFeed(ctx context.Context, pageID, accessToken, message, link string) (string, error)
	PostPhoto(ctx context.Context, pageID, accessToken, imageURL, caption string) (string, error)
}

// Broadcaster fans a message out to a user's active pages.
type Broadcaster interface {
	PublishToAllActive(ctx context.Context, userID uuid.UUID, msg publish.Message) (*publish.Result, error)
}

// EnvPage is the single page configured through the environment.
type EnvPage struct {
	PageID string
	Token  string
}

// Facebook groups the page registry and posting handlers.
type Facebook struct {
	pages      PageStore
	deliveries DeliveryStore
	graph      Graph
	publisher  Broadcaster
	env        EnvPage
}

// NewFacebook creates a new Facebook handler group.
func NewFacebook(pages PageStore, deliveries DeliveryStore, graph Graph, publisher Broadcaster, env EnvPage) *Facebook {
	return &Facebook{pages: pages, deliveries: deliveries, graph: graph, publisher: publisher, env: env}
}

// pageView is a stored page as shown to its owner. Tokens never leave
// the server; only whether one is stored.
type pageView struct {
	ID        uuid.UUID `json:"id"`
	PageID    string    `json:"pageId"`
	PageName  string    `json:"pageName"`
	IsActive  bool      `json:"isActive"`
	HasToken  bool      `json:"hasToken"`
	CreatedAt time.Time `json:"createdAt"`
}

func newPageView(p models.FacebookPage) pageView {
	return pageView{
		ID:        p.ID,
		PageID:    p.PageID,
		PageName:  p.PageName,
		IsActive:  p.IsActive,
		HasToken:  p.HasToken(),
		CreatedAt: p.CreatedAt,
	}
}

// ListPages returns the caller's pages.
func (f *Facebook) ListPages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	pages, err := f.pages.ListByUser(userID)
	if err != nil {
		slog.Error("list pages failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch pages")
		return
	}
	views := make([]pageView, 0, len(pages))
	for _, p := range pages {
		views = append(views, newPageView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": views})
}

type addPageRequest struct {
	PageID      string `json:"pageId"`
	PageName    string `json:"pageName"`
	AccessToken string `json:"accessToken"`
}

// AddPage registers a page. Without a name, the name is looked up on the
// Graph API when a token is available; lookup failures are not fatal.
func (f *Facebook) AddPage(w http.ResponseWriter, r *http.Request) {
	var req addPageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PageID = strings.TrimSpace(req.PageID)
	req.PageName = strings.TrimSpace(req.PageName)
	if req.PageID == "" {
		writeError(w, http.StatusBadRequest, "Page ID is required")
		return
	}
	if len(req.PageName) > maxPageNameLen {
		writeError(w, http.StatusBadRequest, "Page name is too long")
		return
	}

	name := req.PageName
	token := req.AccessToken
	if token == "" {
		token = f.env.Token
	}
	if token != "" && name == "" {
		if p, err := f.graph.Page(r.Context(), req.PageID, token); err != nil {
			slog.Warn("could not verify page name", "page_id", req.PageID, "error", err)
		} else {
			name = p.Name
		}
	}

	userID := middleware.UserIDFromCtx(r.Context())
	page, err := f.pages.Add(userID, req.PageID, name, req.AccessToken)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "This page is already added")
		return
	}
	if err != nil {
		slog.Error("add page failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to add page")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "page": newPageView(*page)})
}

// RemovePage deletes a page by its internal id (?id=).
func (f *Facebook) RemovePage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Page ID is required")
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Page ID is invalid")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	deleted, err := f.pages.Remove(id, userID)
	if err != nil {
		slog.Error("remove page failed", "error", err, "page", id)
		writeError(w, http.StatusInternalServerError, "Failed to remove page")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Page not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type togglePageRequest struct {
	ID       string  `json:"id"`
	IsActive *bool   `json:"isActive"`
	PageName *string `json:"pageName"`
}

// TogglePage switches a page in or out of broadcasts and optionally
// renames it. At least one of isActive and pageName must be sent.
func (f *Facebook) TogglePage(w http.ResponseWriter, r *http.Request) {
	var req togglePageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil || (req.IsActive == nil && req.PageName == nil) {
		writeError(w, http.StatusBadRequest, "id and isActive or pageName are required")
		return
	}
	var name string
	if req.PageName != nil {
		if name = strings.TrimSpace(*req.PageName); name == "" {
			writeError(w, http.StatusBadRequest, "pageName must not be empty")
			return
		}
	}

	userID := middleware.UserIDFromCtx(r.Context())
	found := true
	if req.PageName != nil {
		found, err = f.pages.UpdateName(id, userID, name)
	}
	if err == nil && found && req.IsActive != nil {
		found, err = f.pages.SetActive(id, userID, *req.IsActive)
	}
	if err != nil {
		slog.Error("update page failed", "error", err, "page", id)
		writeError(w, http.StatusInternalServerError, "Failed to update page")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Page not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type tokenRequest struct {
	AccessToken     string `json:"accessToken"`
	UserAccessToken string `json:"userAccessToken"`
}

// ListFromToken lists the pages a user token can manage, so the client
// can pick which ones to add.
func (f *Facebook) ListFromToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "Access token is required")
		return
	}

	pages, err := f.graph.Accounts(r.Context(), req.AccessToken)
	if err != nil {
		slog.Warn("fetch pages from token failed", "error", err)
		writeError(w, http.StatusBadRequest, graphMessage(err, "Failed to fetch pages from Facebook"))
		return
	}
	if pages == nil {
		pages = []facebook.Page{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

// RefreshTokens replaces stored page tokens with fresh ones from the
// pages a user token can manage.
func (f *Facebook) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserAccessToken == "" {
		writeError(w, http.StatusBadRequest, "User Access Token required")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	fresh, err := f.graph.Accounts(r.Context(), req.UserAccessToken)
	if err != nil {
		slog.Error("refresh tokens: fetch accounts failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to refresh tokens from Facebook")
		return
	}
	stored, err := f.pages.ListByUser(userID)
	if err != nil {
		slog.Error("refresh tokens: list pages failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to refresh tokens from Facebook")
		return
	}

	tokens := make(map[string]string, len(fresh))
	for _, p := range fresh {
		if p.AccessToken != "" {
			tokens[p.ID] = p.AccessToken
		}
	}
	updated := 0
	for _, p := range stored {
		token, ok := tokens[p.PageID]
		if !ok {
			continue
		}
		changed, err := f.pages.UpdateToken(userID, p.PageID, token)
		if err != nil {
			slog.Error("refresh tokens: update failed", "error", err, "page_id", p.PageID)
			continue
		}
		if changed {
			updated++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"updatedCount": updated,
		"message":      fmt.Sprintf("Successfully refreshed tokens for %d pages.", updated),
	})
}

// Reset deletes every page of the caller.
func (f *Facebook) Reset(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	n, err := f.pages.ResetForUser(userID)
	if err != nil {
		slog.Error("reset pages failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	slog.Info("facebook pages reset", "user_id", userID, "deleted", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Facebook access tokens and pages have been reset.",
		"deleted": n,
	})
}

// Post publishes to the single page configured in the environment.
func (f *Facebook) Post(w http.ResponseWriter, r *http.Request) {
	if f.env.PageID == "" || f.env.Token == "" {
		writeError(w, http.StatusInternalServerError, "Facebook Page credentials not configured in environment")
		return
	}
	var msg publish.Message
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m := validateMessage(msg.Text); m != "" {
		writeError(w, http.StatusBadRequest, m)
		return
	}

	var (
		postID string
		kind   = "feed"
		err    error
	)
	if msg.ImageURL != "" {
		kind = "photo"
		postID, err = f.graph.PostPhoto(r.Context(), f.env.PageID, f.env.Token, msg.ImageURL, msg.Text)
	} else {
		postID, err = f.graph.PostFeed(r.Context(), f.env.PageID, f.env.Token, msg.Text, msg.Link)
	}
	if err != nil {
		slog.Error("facebook post failed", "error", err, "page_id", f.env.PageID)
		writeError(w, http.StatusInternalServerError, graphMessage(err, "Failed to post to Facebook"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "postId": postID, "type": kind})
}

// PostStatus reports whether the environment page token works.
func (f *Facebook) PostStatus(w http.ResponseWriter, r *http.Request) {
	if f.env.PageID == "" || f.env.Token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"configured": false, "error": "Facebook Page credentials not configured"})
		return
	}
	p, err := f.graph.Page(r.Context(), f.env.PageID, f.env.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"configured": false, "error": graphMessage(err, "Invalid token")})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configured": true, "pageId": p.ID, "pageName": p.Name})
}

// PublishAPI broadcasts a message to every active page of the key owner
// and records the outcome of each delivery.
func (f *Facebook) PublishAPI(w http.ResponseWriter, r *http.Request) {
	var msg publish.Message
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(msg.Text) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "Message is too long (max 63,206 characters)")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	result, err := f.publisher.PublishToAllActive(r.Context(), userID, msg)
	var ve *publish.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	case errors.Is(err, publish.ErrNoActiveDestinations):
		writeError(w, http.StatusBadRequest, "No active Facebook pages found for this user.")
		return
	case err != nil:
		slog.Error("publish failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// The posts are already out; a failed history write must not fail the request.
	if err := f.deliveries.RecordBatch(r.Context(), userID, msg.Text, result.Outcomes()); err != nil {
		slog.Error("record deliveries failed", "error", err, "user_id", userID)
	}
	writeJSON(w, http.StatusOK, result)
}

// Deliveries lists the caller's recent delivery history (?limit=).
func (f *Facebook) Deliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	userID := middleware.UserIDFromCtx(r.Context())
	list, err := f.deliveries.ListRecent(userID, limit)
	if err != nil {
		slog.Error("list deliveries failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if list == nil {
		list = []models.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": list})
}

// graphMessage returns the Graph API's own message for err, or fallback.
func graphMessage(err error, fallback string) string {
	var ue *facebook.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return fallback
}
