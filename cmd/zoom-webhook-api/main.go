// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the zoom webhook service. It verifies Zoom webhook requests, republishes
// the events on NATS and serves the config entry admin subjects.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/pkg/utils"
)

const (
	gracefulShutdownSeconds = 25
	// registryLoadTimeout bounds how long startup waits for the config entries to load.
	registryLoadTimeout = 30 * time.Second
)

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := loadEnvFile(flags.EnvFile); err != nil {
		slog.With(logging.ErrKey, err).Error("error loading env file")
		os.Exit(1)
	}

	logging.InitStructureLogConfig()

	env, err := parseEnv()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid configuration")
		os.Exit(1)
	}
	if flags.Port == "" {
		flags.Port = env.Port
	}
	logEnvironment(env)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
		}
	}()

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the stores for the service.
	repos, err := setupStores(ctx, env, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up stores")
		return
	}

	// Initialize services
	configEntryService := service.NewConfigEntryService(repos.ConfigEntries, service.ServiceConfig{})
	if err := configEntryService.Start(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error watching config entries")
		return
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, registryLoadTimeout)
	err = configEntryService.WaitReady(waitCtx)
	waitCancel()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("config entries were not loaded in time")
		return
	}
	if err := configEntryService.Seed(ctx, env.Seeds); err != nil {
		slog.With(logging.ErrKey, err).Error("error seeding config entries")
		return
	}
	if len(configEntryService.Snapshot()) == 0 {
		slog.Warn("no config entries registered, every webhook request will be rejected")
	}

	validator := webhook.NewZoomWebhookValidator(webhook.WithMaxAge(env.MaxAge))
	messageBuilder := messaging.NewMessageBuilder(natsConn, env.SubjectPrefix, env.EventEncoding)
	zoomWebhookService := service.NewZoomWebhookService(validator, configEntryService, messageBuilder, repos.ReplayCache)

	// Initialize handlers
	webhookHandler := handlers.NewZoomWebhookHandler(zoomWebhookService, env.MaxBodyBytes)
	configEntryHandler := handlers.NewConfigEntryHandler(configEntryService)

	api := NewZoomWebhookAPI(natsConn, configEntryService, webhookHandler, configEntryHandler)

	httpServer := setupHTTPServer(flags, newHTTPHandler(env, api), &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	if err := createNatsSubscriptions(ctx, configEntryHandler, natsConn); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel)
}

// gracefulShutdown stops the HTTP server, then drains NATS so in-flight publishes complete.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	// Cancel the background context.
	cancel()

	go func() {
		// Run the HTTP shutdown in a goroutine so the NATS draining can also start.
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
		defer cancel()

		slog.With("addr", httpServer.Addr).Info("shutting down http server")
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		// Decrement the wait group.
		gracefulCloseWG.Done()
	}()

	// Drain the NATS connection, which will drain all subscriptions, then close the
	// connection when complete.
	if !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			// Skip waiting or checking error channel.
			return
		}
	}

	// Wait for the graceful shutdown steps to complete.
	gracefulCloseWG.Wait()

	// Immediately flush remaining logs and exit.
	slog.Info("graceful shutdown complete")
}
