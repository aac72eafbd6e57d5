// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chains for the
// broadcaster API. Routes are grouped by how the caller authenticates:
// dashboard bearer tokens, API secret keys, or either.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"broadcaster/internal/handlers"
	"broadcaster/internal/middleware"
)

// maxRequestBody bounds every request; handlers apply tighter limits.
const maxRequestBody = 10 << 20

// Deps are the collaborators the router wires together.
type Deps struct {
	Logger *slog.Logger

	Tokens middleware.TokenResolver
	Keys   middleware.KeyResolver
	// LegacyCMSKey is the shared key still accepted by the CMS publish API.
	LegacyCMSKey string
	Limiter      *middleware.RateLimiter
	Metrics      http.Handler

	Auth     *handlers.Auth
	Accounts *handlers.Accounts
	Facebook *handlers.Facebook
	CMS      *handlers.CMS
	Media    *handlers.Media
}

// New creates and returns the configured Chi router.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.MaxBody(maxRequestBody))

	r.Get("/health", healthHandler)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	requireUser := middleware.RequireUser(d.Tokens)

	r.Post("/api/auth/login", d.Auth.Login)
	r.Get("/oauth/{provider}/callback", d.Accounts.Callback)

	// Dashboard routes.
	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/oauth/{provider}/authorize", d.Accounts.Authorize)

		r.Post("/api/auth/logout", d.Auth.Logout)
		r.Post("/api/auth/password", d.Auth.SetPassword)
		r.Get("/api/auth/apikey", d.Auth.GetAPIKey)
		r.Post("/api/auth/apikey", d.Auth.RotateAPIKey)

		r.Get("/api/accounts", d.Accounts.List)
		r.Post("/api/accounts", d.Accounts.Add)
		r.Post("/api/accounts/toggle", d.Accounts.Toggle)
		r.Post("/api/oauth/facebook/connect", d.Accounts.ConnectFacebook)

		r.Get("/api/facebook/pages", d.Facebook.ListPages)
		r.Post("/api/facebook/pages", d.Facebook.AddPage)
		r.Delete("/api/facebook/pages", d.Facebook.RemovePage)
		r.Patch("/api/facebook/pages", d.Facebook.TogglePage)
		r.Post("/api/facebook/pages/list", d.Facebook.ListFromToken)
		r.Post("/api/facebook/pages/refresh", d.Facebook.RefreshTokens)
		r.Get("/api/facebook/post", d.Facebook.PostStatus)
		r.Post("/api/facebook/post", d.Facebook.Post)
		r.Get("/api/facebook/deliveries", d.Facebook.Deliveries)

		r.Post("/api/media", d.Media.Upload)

		r.Post("/api/cms/parse", d.CMS.Parse)
		r.Post("/api/cms/preview", d.CMS.Preview)
		r.Post("/api/cms/auth", d.CMS.Auth)
		r.Post("/api/cms/publish", d.CMS.Publish)
		r.Get("/api/cms/containers", d.CMS.Containers)
		r.Post("/api/cms/graphql", d.CMS.GraphQL)

		r.Get("/api/user/optimizely-config", d.CMS.GetConfig)
		r.Post("/api/user/optimizely-config", d.CMS.SaveConfig)
		r.Get("/api/user/container", d.CMS.GetContainer)
		r.Post("/api/user/container", d.CMS.SaveContainer)
	})

	// Key-authenticated publishing, rate limited per key.
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.With(middleware.RequireAPIKey(d.Keys, "")).
			Post("/api/facebook/publish-api", d.Facebook.PublishAPI)
		r.With(middleware.RequireAPIKey(d.Keys, d.LegacyCMSKey)).
			Post("/api/cms/publish-api", d.CMS.PublishAPI)
	})

	r.With(middleware.RequireUserOrAPIKey(d.Tokens, d.Keys)).
		Post("/api/facebook/reset", d.Facebook.Reset)

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
