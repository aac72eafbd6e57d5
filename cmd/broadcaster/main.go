// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the broadcaster server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"broadcaster/internal/cache"
	"broadcaster/internal/config"
	"broadcaster/internal/database"
	"broadcaster/internal/facebook"
	"broadcaster/internal/handlers"
	"broadcaster/internal/logging"
	"broadcaster/internal/metrics"
	"broadcaster/internal/middleware"
	"broadcaster/internal/optimizely"
	"broadcaster/internal/publish"
	"broadcaster/internal/router"
	"broadcaster/internal/session"
	"broadcaster/internal/storage"
	"broadcaster/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(os.Stdout, cfg.IsDev())
	logger.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.Connect(connectCtx, cfg.DSN(), database.Pool{})
	cancelConnect()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	cancel()
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	tokens := session.NewStore(valkeyClient, cfg.TokenTTL)
	containers := cache.NewContainerCache(valkeyClient, cache.DefaultContainerTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	userStore := store.NewUserStore(db)
	pageStore := store.NewFacebookPageStore(db)
	accountStore := store.NewSocialAccountStore(db)
	deliveryStore := store.NewDeliveryStore(db)

	graph := facebook.NewClient(facebook.Config{
		GraphURL:    cfg.FacebookGraphURL,
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		RedirectURI: cfg.FacebookRedirectURI,
	}, nil)

	publisher := publish.New(pageStore, graph, publish.Options{
		FallbackToken: cfg.FacebookPageToken,
		Timeout:       cfg.PostTimeout,
		BatchTimeout:  cfg.PublishBatchTimeout,
		Concurrency:   cfg.PublishConcurrency,
		Metrics:       collector,
		Logger:        logger,
	})

	// Media uploads are optional; the handler answers 503 without storage.
	var uploader handlers.Uploader
	storageClient, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3BucketPublic,
		PublicURL: cfg.S3PublicURL,
	})
	switch {
	case err != nil:
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	case storageClient != nil:
		uploader = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketPublic)
	default:
		slog.Warn("s3 storage not configured, media uploads disabled")
	}

	cmsDefaults := handlers.CMSSettings{
		ClientID:        cfg.OptimizelyClientID,
		ClientSecret:    cfg.OptimizelyClientSecret,
		APIURL:          cfg.OptimizelyAPIURL,
		GraphQLEndpoint: cfg.OptimizelyGraphQLEndpoint,
		AuthToken:       cfg.OptimizelyAuthToken,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	r := router.New(router.Deps{
		Logger:       logger,
		Tokens:       tokens,
		Keys:         userStore,
		LegacyCMSKey: cfg.CMSAPISecretKey,
		Limiter:      limiter,
		Metrics:      metrics.Handler(reg),
		Auth:         handlers.NewAuth(userStore, tokens),
		Accounts:     handlers.NewAccounts(accountStore, graph, tokens),
		Facebook: handlers.NewFacebook(pageStore, deliveryStore, graph, publisher, handlers.EnvPage{
			PageID: cfg.FacebookPageID,
			Token:  cfg.FacebookPageToken,
		}),
		CMS:   handlers.NewCMS(userStore, optimizely.NewClient(nil), containers, cmsDefaults, collector),
		Media: handlers.NewMedia(uploader),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
