// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
)

const instrumentationName = "github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/service"

// Request outcomes reported in logs, spans and the requests counter.
const (
	OutcomePublished   = "published"
	OutcomeValidated   = "validated"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

// EntrySource provides the config entries a request is matched against.
type EntrySource interface {
	Snapshot() []models.ConfigEntry
}

// ZoomWebhookService verifies Zoom webhook requests and routes them.
type ZoomWebhookService struct {
	validator     *webhook.ZoomWebhookValidator
	entries       EntrySource
	messageSender domain.WebhookEventSender
	replayCache   domain.ReplayCache

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// WebhookRequest represents the webhook processing request
type WebhookRequest struct {
	Signature string
	Timestamp string
	RawBody   []byte
	// BodyErr is set when the body could not be read in full, e.g. because it is too large.
	BodyErr error
}

// WebhookResponse represents the webhook processing response
type WebhookResponse struct {
	Outcome string
	Event   string
	// Validation is set for endpoint.url_validation events and must be returned to Zoom as JSON.
	Validation *models.ZoomValidationResponse
}

// NewZoomWebhookService creates a new ZoomWebhookService. replayCache may be nil.
func NewZoomWebhookService(
	validator *webhook.ZoomWebhookValidator,
	entries EntrySource,
	messageSender domain.WebhookEventSender,
	replayCache domain.ReplayCache,
) *ZoomWebhookService {
	meter := otel.Meter(instrumentationName)

	requests, err := meter.Int64Counter("zoom_webhook_requests_total",
		metric.WithDescription("Zoom webhook requests by outcome"))
	if err != nil {
		slog.Warn("error creating zoom webhook request counter", logging.ErrKey, err)
	}
	duration, err := meter.Float64Histogram("zoom_webhook_request_duration_seconds",
		metric.WithDescription("Time spent processing Zoom webhook requests"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("error creating zoom webhook duration histogram", logging.ErrKey, err)
	}

	return &ZoomWebhookService{
		validator:     validator,
		entries:       entries,
		messageSender: messageSender,
		replayCache:   replayCache,
		requests:      requests,
		duration:      duration,
	}
}

// ServiceReady checks if the service is ready to process requests
func (s *ZoomWebhookService) ServiceReady() bool {
	return s.validator != nil && s.entries != nil && s.messageSender != nil && s.messageSender.IsReady()
}

// ProcessWebhookEvent runs a request through the pipeline: headers, replay window, body schema,
// entry match, replay cache, then routing. Requests dropped silently return an error of type
// domain.ErrorTypeRejected; a failure to hand a verified event on returns domain.ErrorTypeUnavailable.
func (s *ZoomWebhookService) ProcessWebhookEvent(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	start := time.Now()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "zoom.webhook.process",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int("http.request.body.size", len(req.RawBody))),
	)
	defer span.End()

	resp, err := s.process(ctx, req)

	outcome := OutcomeUnavailable
	attrs := []attribute.KeyValue{}
	switch {
	case err == nil:
		outcome = resp.Outcome
		span.SetAttributes(attribute.String("zoom.event", resp.Event))
		span.SetStatus(codes.Ok, "")
	case domain.GetErrorType(err) == domain.ErrorTypeRejected:
		outcome = OutcomeRejected
		reason := RejectionReason(err)
		attrs = append(attrs, attribute.String("reason", reason))
		span.SetAttributes(attribute.String("zoom.rejection_reason", reason))
		span.SetStatus(codes.Error, reason)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs = append(attrs, attribute.String("outcome", outcome))
	span.SetAttributes(attribute.String("zoom.outcome", outcome))

	if s.requests != nil {
		s.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	return resp, err
}

func (s *ZoomWebhookService) process(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	if req.Signature == "" || req.Timestamp == "" {
		return nil, s.reject(ctx, slog.LevelInfo, domain.ErrMissingHeaders)
	}

	if _, err := s.validator.CheckTimestamp(req.Timestamp); err != nil {
		return nil, s.reject(ctx, slog.LevelInfo, err)
	}

	if req.BodyErr != nil {
		return nil, s.reject(ctx, slog.LevelWarn, errors.Join(domain.ErrBodyTooLarge, req.BodyErr))
	}

	envelope, err := models.ParseZoomWebhookEnvelope(req.RawBody)
	if err != nil {
		if errors.Is(err, models.ErrInvalidZoomJSON) {
			return nil, s.reject(ctx, slog.LevelInfo, domain.ErrInvalidJSON)
		}
		return nil, s.reject(ctx, slog.LevelInfo, errors.Join(domain.ErrInvalidSchema, err))
	}
	ctx = logging.AppendCtx(ctx, slog.String("event_type", envelope.Event))

	entry, err := s.validator.MatchEntry(s.entries.Snapshot(), req.Signature, req.Timestamp, req.RawBody)
	if err != nil {
		return nil, s.reject(ctx, slog.LevelWarn, err)
	}
	ctx = logging.AppendCtx(ctx, slog.String("config_entry_id", entry.ID))

	if s.replayCache != nil {
		if err := s.replayCache.Remember(ctx, req.Signature); err != nil {
			if errors.Is(err, domain.ErrReplayedRequest) {
				return nil, s.reject(ctx, slog.LevelWarn, err)
			}
			slog.ErrorContext(ctx, "replay cache unavailable", logging.ErrKey, err)
			return nil, domain.NewUnavailableError("replay cache unavailable", err)
		}
	}

	if envelope.IsValidation() {
		return s.handleEndpointValidation(ctx, envelope, entry)
	}

	resp, err := s.processRegularEvent(ctx, envelope, entry)
	if err != nil && s.replayCache != nil && domain.GetErrorType(err) == domain.ErrorTypeUnavailable {
		// Zoom retries on 503; the redelivery must not be taken for a replay.
		if forgetErr := s.replayCache.Forget(ctx, req.Signature); forgetErr != nil {
			slog.WarnContext(ctx, "error removing signature from replay cache", logging.ErrKey, forgetErr)
		}
	}
	return resp, err
}

// reject logs the reason a request is dropped and wraps it as a rejection.
func (s *ZoomWebhookService) reject(ctx context.Context, level slog.Level, reason error) error {
	slog.Log(ctx, level, "zoom webhook request rejected", "reason", RejectionReason(reason), logging.ErrKey, reason)
	return domain.NewRejectedError("zoom webhook request rejected", reason)
}

// handleEndpointValidation answers the endpoint.url_validation challenge with the matched entry's secret.
func (s *ZoomWebhookService) handleEndpointValidation(ctx context.Context, envelope *models.ZoomWebhookEnvelope, entry models.ConfigEntry) (*WebhookResponse, error) {
	payload, err := envelope.ValidationPayload()
	if err != nil {
		return nil, s.reject(ctx, slog.LevelInfo, errors.Join(domain.ErrMissingPlainToken, err))
	}

	slog.InfoContext(ctx, "zoom webhook endpoint validation answered")

	return &WebhookResponse{
		Outcome: OutcomeValidated,
		Event:   envelope.Event,
		Validation: &models.ZoomValidationResponse{
			PlainToken:     payload.PlainToken,
			EncryptedToken: webhook.EncryptToken(entry.SecretToken, payload.PlainToken),
		},
	}, nil
}

// processRegularEvent republishes a verified event on NATS.
func (s *ZoomWebhookService) processRegularEvent(ctx context.Context, envelope *models.ZoomWebhookEnvelope, entry models.ConfigEntry) (*WebhookResponse, error) {
	message := models.NewZoomWebhookEventMessage(envelope, entry, s.validator.Now())

	if err := s.messageSender.PublishZoomWebhookEvent(ctx, message); err != nil {
		if errors.Is(err, domain.ErrUnpublishableEvent) {
			return nil, s.reject(ctx, slog.LevelWarn, err)
		}
		slog.ErrorContext(ctx, "failed to publish zoom webhook event", logging.ErrKey, err, logging.PriorityCritical())
		return nil, domain.NewUnavailableError("failed to publish zoom webhook event", err)
	}

	slog.InfoContext(ctx, "zoom webhook event published")

	return &WebhookResponse{
		Outcome: OutcomePublished,
		Event:   envelope.Event,
	}, nil
}

var rejectionReasons = []struct {
	err    error
	reason string
}{
	{domain.ErrMissingHeaders, "missing_headers"},
	{domain.ErrInvalidTimestamp, "invalid_timestamp"},
	{domain.ErrStaleTimestamp, "stale_timestamp"},
	{domain.ErrBodyTooLarge, "body_too_large"},
	{domain.ErrInvalidJSON, "invalid_json"},
	{domain.ErrInvalidSchema, "invalid_schema"},
	{domain.ErrSignatureMismatch, "signature_mismatch"},
	{domain.ErrReplayedRequest, "replayed"},
	{domain.ErrMissingPlainToken, "missing_plain_token"},
	{domain.ErrUnpublishableEvent, "unpublishable_event"},
}

// RejectionReason returns a short label for the reason err dropped a request.
func RejectionReason(err error) string {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "unknown"
}
