// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/pkg/constants"
)

// tracerName is the instrumentation name for the messaging package.
const tracerName = "github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/messaging"

// Encoding is the wire format of published event messages.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding maps a configuration value to an Encoding. An empty value means JSON.
func ParseEncoding(value string) (Encoding, error) {
	switch Encoding(value) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported event encoding %q", value)
	}
}

// INatsConn is a NATS connection interface needed for the [MessageBuilder].
type INatsConn interface {
	IsConnected() bool
	PublishMsg(msg *nats.Msg) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn      INatsConn
	SubjectPrefix string
	Encoding      Encoding
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn, subjectPrefix string, encoding Encoding) *MessageBuilder {
	if subjectPrefix == "" {
		subjectPrefix = models.DefaultZoomWebhookSubjectPrefix
	}
	if encoding == "" {
		encoding = EncodingJSON
	}
	return &MessageBuilder{
		NatsConn:      natsConn,
		SubjectPrefix: subjectPrefix,
		Encoding:      encoding,
	}
}

// IsReady reports whether messages can currently be published.
func (m *MessageBuilder) IsReady() bool {
	return m.NatsConn != nil && m.NatsConn.IsConnected()
}

// encode marshals the message in the configured encoding and returns its content type.
func (m *MessageBuilder) encode(v any) ([]byte, string, error) {
	switch m.Encoding {
	case EncodingMsgpack:
		data, err := msgpack.Marshal(v)
		return data, models.ContentTypeMsgpack, err
	default:
		data, err := json.Marshal(v)
		return data, models.ContentTypeJSON, err
	}
}

// sendMessage sends the message to the NATS server. The trace context of ctx travels in the message headers.
func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, data []byte, contentType string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nats.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.Int("messaging.message.body.size", len(data)),
		),
	)
	defer span.End()

	if m.NatsConn == nil {
		err := domain.NewUnavailableError("NATS connection is not available", domain.ErrServiceUnavailable)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(constants.ContentTypeHeader, contentType)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := m.NatsConn.PublishMsg(msg); err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.NewUnavailableError("failed to publish message", err)
	}

	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	span.SetStatus(codes.Ok, "")
	return nil
}

// PublishZoomWebhookEvent publishes a verified Zoom webhook event on the subject derived from its event type.
func (m *MessageBuilder) PublishZoomWebhookEvent(ctx context.Context, message models.ZoomWebhookEventMessage) error {
	subject, err := models.ZoomWebhookSubject(m.SubjectPrefix, message.EventType)
	if err != nil {
		slog.WarnContext(ctx, "zoom webhook event type cannot be published", logging.ErrKey, err, "event_type", message.EventType)
		return domain.NewValidationError("invalid event type", domain.ErrUnpublishableEvent, err)
	}

	messageBytes, contentType, err := m.encode(message)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding Zoom webhook event", logging.ErrKey, err, "subject", subject, "encoding", m.Encoding)
		return domain.NewInternalError("failed to encode event", err)
	}

	slog.DebugContext(ctx, "publishing Zoom webhook event to NATS",
		"subject", subject,
		"event_type", message.EventType,
		"event_ts", message.EventTS,
		"config_entry_id", message.ConfigEntryID,
	)

	return m.sendMessage(ctx, subject, messageBytes, contentType)
}
