// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

func testEventMessage() models.ZoomWebhookEventMessage {
	return models.ZoomWebhookEventMessage{
		EventType:       "meeting.started",
		EventTS:         1700000000123,
		Payload:         map[string]any{"account_id": "acc"},
		ConfigEntryID:   "entry-1",
		ConfigEntryName: "Primary app",
		ReceivedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		value   string
		want    Encoding
		wantErr bool
	}{
		{value: "", want: EncodingJSON},
		{value: "json", want: EncodingJSON},
		{value: "msgpack", want: EncodingMsgpack},
		{value: "protobuf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseEncoding(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMessageBuilder_Defaults(t *testing.T) {
	builder := NewMessageBuilder(nil, "", "")
	assert.Equal(t, models.DefaultZoomWebhookSubjectPrefix, builder.SubjectPrefix)
	assert.Equal(t, EncodingJSON, builder.Encoding)
	assert.False(t, builder.IsReady())
}

func TestMessageBuilder_IsReady(t *testing.T) {
	mockConn := new(MockNATSConn)
	mockConn.On("IsConnected").Return(true).Once()
	mockConn.On("IsConnected").Return(false).Once()

	builder := NewMessageBuilder(mockConn, "", EncodingJSON)
	assert.True(t, builder.IsReady())
	assert.False(t, builder.IsReady())
	mockConn.AssertExpectations(t)
}

func TestMessageBuilder_PublishZoomWebhookEvent_JSON(t *testing.T) {
	mockConn := new(MockNATSConn)
	var published *nats.Msg
	mockConn.On("PublishMsg", mock.AnythingOfType("*nats.Msg")).
		Run(func(args mock.Arguments) { published = args.Get(0).(*nats.Msg) }).
		Return(nil)

	builder := NewMessageBuilder(mockConn, "lfx.webhook.zoom", EncodingJSON)
	require.NoError(t, builder.PublishZoomWebhookEvent(context.Background(), testEventMessage()))

	require.NotNil(t, published)
	assert.Equal(t, "lfx.webhook.zoom.meeting.started", published.Subject)
	assert.Equal(t, models.ContentTypeJSON, published.Header.Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(published.Data, &decoded))
	assert.Equal(t, "meeting.started", decoded["event_type"])
	assert.Equal(t, "entry-1", decoded["config_entry_id"])
	assert.Equal(t, "Primary app", decoded["config_entry_name"])
	assert.Equal(t, "acc", decoded["payload"].(map[string]any)["account_id"])
	assert.NotContains(t, decoded, "extra")
	mockConn.AssertExpectations(t)
}

func TestMessageBuilder_PublishZoomWebhookEvent_Msgpack(t *testing.T) {
	mockConn := new(MockNATSConn)
	var published *nats.Msg
	mockConn.On("PublishMsg", mock.AnythingOfType("*nats.Msg")).
		Run(func(args mock.Arguments) { published = args.Get(0).(*nats.Msg) }).
		Return(nil)

	builder := NewMessageBuilder(mockConn, "", EncodingMsgpack)
	require.NoError(t, builder.PublishZoomWebhookEvent(context.Background(), testEventMessage()))

	require.NotNil(t, published)
	assert.Equal(t, models.ContentTypeMsgpack, published.Header.Get("Content-Type"))

	var decoded models.ZoomWebhookEventMessage
	require.NoError(t, msgpack.Unmarshal(published.Data, &decoded))
	assert.Equal(t, "meeting.started", decoded.EventType)
	assert.Equal(t, int64(1700000000123), decoded.EventTS)
	assert.Equal(t, "entry-1", decoded.ConfigEntryID)
	assert.True(t, decoded.ReceivedAt.Equal(testEventMessage().ReceivedAt))
}

func TestMessageBuilder_PublishZoomWebhookEvent_InjectsTraceContext(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	mockConn := new(MockNATSConn)
	var published *nats.Msg
	mockConn.On("PublishMsg", mock.AnythingOfType("*nats.Msg")).
		Run(func(args mock.Arguments) { published = args.Get(0).(*nats.Msg) }).
		Return(nil)

	builder := NewMessageBuilder(mockConn, "", EncodingJSON)
	require.NoError(t, builder.PublishZoomWebhookEvent(ctx, testEventMessage()))

	require.NotNil(t, published)
	assert.Contains(t, published.Header.Get("Traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestMessageBuilder_PublishZoomWebhookEvent_Errors(t *testing.T) {
	t.Run("publish failure is unavailable", func(t *testing.T) {
		mockConn := new(MockNATSConn)
		mockConn.On("PublishMsg", mock.Anything).Return(errors.New("nats: connection closed"))

		builder := NewMessageBuilder(mockConn, "", EncodingJSON)
		err := builder.PublishZoomWebhookEvent(context.Background(), testEventMessage())

		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("missing connection is unavailable", func(t *testing.T) {
		builder := NewMessageBuilder(nil, "", EncodingJSON)
		err := builder.PublishZoomWebhookEvent(context.Background(), testEventMessage())

		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("unsafe event type is never published", func(t *testing.T) {
		mockConn := new(MockNATSConn)
		builder := NewMessageBuilder(mockConn, "", EncodingJSON)

		msg := testEventMessage()
		msg.EventType = "meeting.>"
		err := builder.PublishZoomWebhookEvent(context.Background(), msg)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnpublishableEvent)
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		mockConn.AssertNotCalled(t, "PublishMsg", mock.Anything)
	})
}
