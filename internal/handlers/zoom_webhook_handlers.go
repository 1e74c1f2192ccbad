// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/pkg/constants"
)

// ZoomWebhookHandler is the HTTP endpoint Zoom delivers webhook events to.
type ZoomWebhookHandler struct {
	zoomWebhookService *service.ZoomWebhookService
	maxBodyBytes       int64
}

// NewZoomWebhookHandler creates a new ZoomWebhookHandler. maxBodyBytes applies only when
// the body capture middleware did not already read the body.
func NewZoomWebhookHandler(zoomWebhookService *service.ZoomWebhookService, maxBodyBytes int64) *ZoomWebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = middleware.DefaultMaxWebhookBodyBytes
	}
	return &ZoomWebhookHandler{
		zoomWebhookService: zoomWebhookService,
		maxBodyBytes:       maxBodyBytes,
	}
}

func (h *ZoomWebhookHandler) HandlerReady() bool {
	return h.zoomWebhookService.ServiceReady()
}

// ServeHTTP answers 200 to everything Zoom should not retry, including rejected requests,
// and 503 when a verified event could not be handed on.
func (h *ZoomWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := service.WebhookRequest{
		Signature: r.Header.Get(constants.ZoomSignatureHeader),
		Timestamp: r.Header.Get(constants.ZoomRequestTimestampHeader),
	}
	if body, ok := middleware.GetRawBodyFromContext(ctx); ok {
		req.RawBody = body
	} else if bodyErr := middleware.GetBodyErrorFromContext(ctx); bodyErr != nil {
		req.BodyErr = bodyErr
	} else {
		req.RawBody, req.BodyErr = io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	}

	resp, err := h.zoomWebhookService.ProcessWebhookEvent(ctx, req)
	if err != nil {
		switch domain.GetErrorType(err) {
		case domain.ErrorTypeRejected:
			w.WriteHeader(http.StatusOK)
		default:
			slog.ErrorContext(ctx, "zoom webhook request failed", logging.ErrKey, err)
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		return
	}

	if resp.Validation == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set(constants.ContentTypeHeader, "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp.Validation); err != nil {
		slog.ErrorContext(ctx, "error writing zoom validation response", logging.ErrKey, err)
	}
}
