// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/service"
)

// connection reports whether the NATS connection is up.
type connection interface {
	IsConnected() bool
}

// ZoomWebhookAPI serves the webhook receiver and the health checks.
type ZoomWebhookAPI struct {
	natsConn           connection
	configEntryService *service.ConfigEntryService
	webhookHandler     *handlers.ZoomWebhookHandler
	configEntryHandler *handlers.ConfigEntryHandler
}

// NewZoomWebhookAPI creates a new ZoomWebhookAPI.
func NewZoomWebhookAPI(
	natsConn connection,
	configEntryService *service.ConfigEntryService,
	webhookHandler *handlers.ZoomWebhookHandler,
	configEntryHandler *handlers.ConfigEntryHandler,
) *ZoomWebhookAPI {
	return &ZoomWebhookAPI{
		natsConn:           natsConn,
		configEntryService: configEntryService,
		webhookHandler:     webhookHandler,
		configEntryHandler: configEntryHandler,
	}
}

// ready reports whether webhook requests can be verified and published.
func (s *ZoomWebhookAPI) ready() bool {
	return s.natsConn != nil && s.natsConn.IsConnected() &&
		s.configEntryService.Ready() &&
		s.webhookHandler.HandlerReady() &&
		s.configEntryHandler.HandlerReady()
}

// Readyz checks if the service is able to take inbound requests.
func (s *ZoomWebhookAPI) Readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("OK\n"))
}

// Livez checks if the service is alive.
func (s *ZoomWebhookAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	_, _ = w.Write([]byte("OK\n"))
}
