// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"broadcaster/internal/cache"
	"broadcaster/internal/cmsparse"
	"broadcaster/internal/markdown"
	"broadcaster/internal/metrics"
	"broadcaster/internal/middleware"
	"broadcaster/internal/models"
	"broadcaster/internal/optimizely"
)

// maxHTMLUpload caps exported pages sent to the parser.
const maxHTMLUpload = 5 << 20

// cmsTokenHeader carries the CMS bearer token on forwarded publishes.
// Authorization is taken by the dashboard token.
const cmsTokenHeader = "X-CMS-Authorization"

const (
	cmsPublishSuccess = "success"
	cmsPublishFailed  = "failed"
)

// CMSClient is the Optimizely API surface the handlers use.
type CMSClient interface {
	FetchToken(ctx context.Context, creds optimizely.Credentials) (*optimizely.Token, error)
	CreateContent(ctx context.Context, apiURL, accessToken string, item any) (json.RawMessage, error)
	GraphQL(ctx context.Context, endpoint, authToken, query string, variables map[string]any) (json.RawMessage, error)
	Containers(ctx context.Context, endpoint, authToken string) ([]optimizely.Container, error)
}

// ContainerCache caches container listings.
type ContainerCache interface {
	Get(ctx context.Context, key string) ([]optimizely.Container, bool)
	Set(ctx context.Context, key string, containers []optimizely.Container)
}

// CMSSettings are Optimizely credentials and endpoints. Process-wide values
// come from the environment; non-empty per-user values override them.
type CMSSettings struct {
	ClientID        string
	ClientSecret    string
	APIURL          string
	GraphQLEndpoint string
	AuthToken       string
}

func (s CMSSettings) credentials() optimizely.Credentials {
	return optimizely.Credentials{ClientID: s.ClientID, ClientSecret: s.ClientSecret, APIURL: s.APIURL}
}

func (s CMSSettings) merge(c *models.OptimizelyConfig) CMSSettings {
	if c == nil {
		return s
	}
	pick := func(user *string, fallback string) string {
		if v := models.Value(user); v != "" {
			return v
		}
		return fallback
	}
	return CMSSettings{
		ClientID:        pick(c.ClientID, s.ClientID),
		ClientSecret:    pick(c.ClientSecret, s.ClientSecret),
		APIURL:          pick(c.APIURL, s.APIURL),
		GraphQLEndpoint: pick(c.GraphQLEndpoint, s.GraphQLEndpoint),
		AuthToken:       pick(c.AuthToken, s.AuthToken),
	}
}

// CMS groups the headless CMS handlers.
type CMS struct {
	users      UserStore
	client     CMSClient
	containers ContainerCache
	defaults   CMSSettings
	metrics    metrics.Recorder
}

// NewCMS creates a new CMS handler group. containers may be nil.
func NewCMS(users UserStore, client CMSClient, containers ContainerCache, defaults CMSSettings, rec metrics.Recorder) *CMS {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &CMS{users: users, client: client, containers: containers, defaults: defaults, metrics: rec}
}

// settings resolves the caller's effective CMS settings. Callers without
// a user (the shared legacy key) get the process-wide values.
func (c *CMS) settings(userID uuid.UUID) (CMSSettings, error) {
	if userID == uuid.Nil {
		return c.defaults, nil
	}
	cfg, err := c.users.GetOptimizelyConfig(userID)
	if err != nil {
		return CMSSettings{}, err
	}
	return c.defaults.merge(cfg), nil
}

// Parse extracts ParsedContent from an exported CMS page. The page may be
// a multipart "file", a JSON {"html": ...} body, or a raw text/html body.
func (c *CMS) Parse(w http.ResponseWriter, r *http.Request) {
	page, msg := readHTML(w, r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(page) == "" {
		writeError(w, http.StatusBadRequest, "HTML content is required")
		return
	}

	parsed, err := cmsparse.Parse(page)
	if err != nil {
		slog.Warn("cms parse failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "Failed to parse HTML content")
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

// readHTML returns the page source, or a message saying why it is unusable.
func readHTML(w http.ResponseWriter, r *http.Request) (page, msg string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxHTMLUpload+1024)

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxHTMLUpload); err != nil {
			return "", "File too large. Maximum size is 5 MB."
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", "No file provided."
		}
		defer file.Close()
		b, err := io.ReadAll(file)
		if err != nil {
			return "", "Could not read file."
		}
		return string(b), ""
	case "application/json":
		var req struct {
			HTML string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "invalid JSON body"
		}
		return req.HTML, ""
	default:
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return "", "Could not read body."
		}
		return string(b), ""
	}
}

// publishOptions are the client-side publishing settings.
type publishOptions struct {
	ContentType       string `json:"contentType"`
	Status            string `json:"status"`
	DelayPublishUntil string `json:"delayPublishUntil"`
	Container         string `json:"container"`
	Locale            string `json:"locale"`
	IsRoutable        *bool  `json:"isRoutable"`
}

// resolve applies defaults and checks status and scheduling. A non-empty
// message means the options are unusable.
func (o publishOptions) resolve() (contentType, status string, opts optimizely.MapOptions, msg string) {
	contentType = o.ContentType
	if contentType == "" {
		contentType = optimizely.DefaultContentType
	}
	status = o.Status
	if status == "" {
		status = optimizely.StatusDraft
	}
	if !optimizely.ValidStatus(status) {
		return "", "", opts, "status must be one of draft, published, scheduled"
	}

	opts = optimizely.MapOptions{
		Container:  o.Container,
		Locale:     o.Locale,
		IsRoutable: o.IsRoutable == nil || *o.IsRoutable,
	}
	if opts.Locale == "" {
		opts.Locale = optimizely.DefaultLocale
	}
	if status == optimizely.StatusScheduled {
		if o.DelayPublishUntil == "" {
			return "", "", opts, "delayPublishUntil is required for scheduled content"
		}
		if _, err := time.Parse(time.RFC3339, o.DelayPublishUntil); err != nil {
			return "", "", opts, "delayPublishUntil must be an RFC 3339 timestamp"
		}
		opts.DelayPublishUntil = o.DelayPublishUntil
	}
	return contentType, status, opts, ""
}

type previewRequest struct {
	Content cmsparse.ParsedContent `json:"content"`
	Options publishOptions         `json:"options"`
}

// Preview maps content and options to the CMS payload without sending it.
func (c *CMS) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contentType, status, opts, msg := req.Options.resolve()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	writeJSON(w, http.StatusOK, optimizely.MapToContentItem(&req.Content, contentType, status, opts))
}

type authRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIURL       string `json:"apiUrl"`
}

// Auth exchanges client credentials for a CMS access token. Values in the
// body win over the caller's stored config, which wins over the environment.
func (c *CMS) Auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	s, err := c.settings(userID)
	if err != nil {
		slog.Error("load cms settings failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s = s.merge(&models.OptimizelyConfig{
		ClientID:     models.NullIfEmpty(req.ClientID),
		ClientSecret: models.NullIfEmpty(req.ClientSecret),
		APIURL:       models.NullIfEmpty(req.APIURL),
	})

	tok, err := c.client.FetchToken(r.Context(), s.credentials())
	if errors.Is(err, optimizely.ErrNotConfigured) {
		writeError(w, http.StatusBadRequest, "Missing Optimizely credentials. Please configure them in the UI or environment variables.")
		return
	}
	if err != nil {
		slog.Error("cms token exchange failed", "error", err, "user_id", userID)
		var ue *optimizely.UpstreamError
		if errors.As(err, &ue) {
			writeError(w, upstreamStatus(ue.StatusCode), fmt.Sprintf("Authentication failed: %d", ue.StatusCode))
			return
		}
		writeError(w, http.StatusBadGateway, "Authentication failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"expires_in":   tok.ExpiresIn,
	})
}

// Publish forwards a prepared content item with the caller's CMS token.
func (c *CMS) Publish(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(cmsTokenHeader))
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing "+cmsTokenHeader+" header")
		return
	}
	var item json.RawMessage
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(item) == 0 {
		writeError(w, http.StatusBadRequest, "Content item is required")
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	s, err := c.settings(userID)
	if err != nil {
		slog.Error("load cms settings failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if s.APIURL == "" {
		writeError(w, http.StatusInternalServerError, "Missing API URL in environment variables")
		return
	}

	data, err := c.client.CreateContent(r.Context(), s.APIURL, token, item)
	if err != nil {
		c.metrics.RecordCMSPublish(cmsPublishFailed)
		writeCreateError(w, err)
		return
	}
	c.metrics.RecordCMSPublish(cmsPublishSuccess)
	writeJSON(w, http.StatusCreated, data)
}

// apiContent is content submitted through the publish API. Format
// "markdown" renders Body to HTML first.
type apiContent struct {
	cmsparse.ParsedContent
	Format string `json:"format"`
}

type publishAPIRequest struct {
	Content *apiContent    `json:"content"`
	Options publishOptions `json:"options"`
}

// PublishAPI maps, authenticates and creates content in one call for
// key-authenticated clients. The container falls back to the key owner's
// default container.
func (c *CMS) PublishAPI(w http.ResponseWriter, r *http.Request) {
	var req publishAPIRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "Missing required content fields: title and body are required")
		return
	}
	if msg := validateContent(req.Content.Title, req.Content.Body); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := middleware.UserIDFromCtx(r.Context())
	if req.Options.Container == "" && userID != uuid.Nil {
		user, ok := loadUser(w, c.users, userID)
		if !ok {
			return
		}
		req.Options.Container = models.Value(user.DefaultContainerID)
	}
	if req.Options.Container == "" {
		writeError(w, http.StatusBadRequest, "Missing required options: container is required")
		return
	}
	contentType, status, opts, msg := req.Options.resolve()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	content := req.Content.ParsedContent
	switch strings.ToLower(req.Content.Format) {
	case "", "html":
	case "markdown", "md":
		body, err := markdown.ToHTML(content.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Could not render markdown body")
			return
		}
		content.Body = body
	default:
		writeError(w, http.StatusBadRequest, "format must be html or markdown")
		return
	}

	s, err := c.settings(userID)
	if err != nil {
		slog.Error("load cms settings failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	tok, err := c.client.FetchToken(r.Context(), s.credentials())
	if errors.Is(err, optimizely.ErrNotConfigured) {
		writeError(w, http.StatusInternalServerError, "Server configuration error: Missing Optimizely credentials")
		return
	}
	if err != nil {
		slog.Error("cms token exchange failed", "error", err, "user_id", userID)
		c.metrics.RecordCMSPublish(cmsPublishFailed)
		writeError(w, http.StatusInternalServerError, "Failed to authenticate with Optimizely")
		return
	}

	item := optimizely.MapToContentItem(&content, contentType, status, opts)
	data, err := c.client.CreateContent(r.Context(), s.APIURL, tok.AccessToken, item)
	if err != nil {
		c.metrics.RecordCMSPublish(cmsPublishFailed)
		writeCreateError(w, err)
		return
	}
	c.metrics.RecordCMSPublish(cmsPublishSuccess)
	slog.Info("cms content published", "user_id", userID, "container", opts.Container, "status", status)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": data})
}

func writeCreateError(w http.ResponseWriter, err error) {
	var ue *optimizely.UpstreamError
	if errors.As(err, &ue) {
		writeErrorDetails(w, upstreamStatus(ue.StatusCode), fmt.Sprintf("Failed to publish content: %d", ue.StatusCode), ue.Raw)
		return
	}
	slog.Error("cms create content failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to publish content: "+err.Error())
}

// Containers lists the CMS containers, served from cache for a few
// minutes. ?refresh=1 bypasses the cache.
func (c *CMS) Containers(w http.ResponseWriter, r *http.Request) {
	s, ok := c.graphSettings(w, r)
	if !ok {
		return
	}

	key := cache.ContainerKey(s.GraphQLEndpoint, s.AuthToken)
	if c.containers != nil && r.URL.Query().Get("refresh") == "" {
		if list, hit := c.containers.Get(r.Context(), key); hit {
			writeJSON(w, http.StatusOK, map[string]any{"containers": list, "cached": true})
			return
		}
	}

	list, err := c.client.Containers(r.Context(), s.GraphQLEndpoint, s.AuthToken)
	if err != nil {
		var (
			ge *optimizely.GraphQLError
			ue *optimizely.UpstreamError
		)
		switch {
		case errors.As(err, &ge):
			writeErrorDetails(w, http.StatusBadRequest, "GraphQL query failed", ge.Errors)
		case errors.As(err, &ue):
			writeError(w, upstreamStatus(ue.StatusCode), "Failed to fetch containers from CMS")
		default:
			slog.Error("fetch containers failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	if c.containers != nil {
		c.containers.Set(r.Context(), key, list)
	}
	writeJSON(w, http.StatusOK, map[string]any{"containers": list, "cached": false})
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQL passes a query through to the CMS Graph endpoint.
func (c *CMS) GraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	s, ok := c.graphSettings(w, r)
	if !ok {
		return
	}

	data, err := c.client.GraphQL(r.Context(), s.GraphQLEndpoint, s.AuthToken, req.Query, req.Variables)
	if err != nil {
		var (
			ge *optimizely.GraphQLError
			ue *optimizely.UpstreamError
		)
		switch {
		case errors.As(err, &ge):
			writeErrorDetails(w, http.StatusBadRequest, "GraphQL query errors", ge.Errors)
		case errors.As(err, &ue):
			writeError(w, upstreamStatus(ue.StatusCode), "GraphQL request failed: "+ue.Message)
		default:
			slog.Error("graphql request failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (c *CMS) graphSettings(w http.ResponseWriter, r *http.Request) (CMSSettings, bool) {
	userID := middleware.UserIDFromCtx(r.Context())
	s, err := c.settings(userID)
	if err != nil {
		slog.Error("load cms settings failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return s, false
	}
	if s.GraphQLEndpoint == "" || s.AuthToken == "" {
		writeError(w, http.StatusInternalServerError, "GraphQL endpoint or auth token not configured")
		return s, false
	}
	return s, true
}

type configBody struct {
	ClientID        string `json:"clientId"`
	ClientSecret    string `json:"clientSecret"`
	APIURL          string `json:"apiUrl"`
	GraphQLEndpoint string `json:"graphqlEndpoint"`
	AuthToken       string `json:"authToken"`
}

// GetConfig returns the caller's stored CMS credentials, "" when unset.
func (c *CMS) GetConfig(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	cfg, err := c.users.GetOptimizelyConfig(userID)
	if err != nil {
		slog.Error("get cms config failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, configBody{
		ClientID:        models.Value(cfg.ClientID),
		ClientSecret:    models.Value(cfg.ClientSecret),
		APIURL:          models.Value(cfg.APIURL),
		GraphQLEndpoint: models.Value(cfg.GraphQLEndpoint),
		AuthToken:       models.Value(cfg.AuthToken),
	})
}

// SaveConfig overwrites the caller's CMS credentials. Empty values clear
// a field, falling back to the environment.
func (c *CMS) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req configBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := middleware.UserIDFromCtx(r.Context())
	err := c.users.SaveOptimizelyConfig(userID, models.OptimizelyConfig{
		ClientID:        models.NullIfEmpty(strings.TrimSpace(req.ClientID)),
		ClientSecret:    models.NullIfEmpty(strings.TrimSpace(req.ClientSecret)),
		APIURL:          models.NullIfEmpty(strings.TrimRight(strings.TrimSpace(req.APIURL), "/")),
		GraphQLEndpoint: models.NullIfEmpty(strings.TrimSpace(req.GraphQLEndpoint)),
		AuthToken:       models.NullIfEmpty(strings.TrimSpace(req.AuthToken)),
	})
	if err != nil {
		slog.Error("save cms config failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetContainer returns the caller's default container, or null.
func (c *CMS) GetContainer(w http.ResponseWriter, r *http.Request) {
	user, ok := loadUser(w, c.users, middleware.UserIDFromCtx(r.Context()))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"defaultContainerId": user.DefaultContainerID})
}

// SaveContainer stores the caller's default container.
func (c *CMS) SaveContainer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DefaultContainerID string `json:"defaultContainerId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(req.DefaultContainerID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Container ID is required")
		return
	}
	userID := middleware.UserIDFromCtx(r.Context())
	if err := c.users.SetDefaultContainer(userID, id); err != nil {
		slog.Error("save default container failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "defaultContainerId": id})
}
