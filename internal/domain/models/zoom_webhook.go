// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Zoom webhook event names handled specially by the service.
const (
	// ZoomEventEndpointURLValidation is Zoom's endpoint ownership challenge. It is sent
	// when the endpoint is registered and every 72 hours afterwards.
	ZoomEventEndpointURLValidation = "endpoint.url_validation"
)

// Envelope keys of a Zoom webhook request body.
const (
	zoomKeyEvent   = "event"
	zoomKeyEventTS = "event_ts"
	zoomKeyPayload = "payload"
)

// ZoomWebhookEnvelope is the decoded body of a Zoom webhook request.
type ZoomWebhookEnvelope struct {
	Event   string
	EventTS int64
	Payload map[string]any
	// Extra holds any other top-level keys of the body.
	Extra map[string]any
}

// ZoomValidationPayload is the payload of an endpoint.url_validation event.
type ZoomValidationPayload struct {
	PlainToken string `mapstructure:"plainToken"`
}

// ZoomValidationResponse is returned to Zoom to answer an endpoint.url_validation event.
type ZoomValidationResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// ErrInvalidZoomJSON is returned by ParseZoomWebhookEnvelope when the body is not JSON at all.
var ErrInvalidZoomJSON = errors.New("invalid JSON")

// ParseZoomWebhookEnvelope decodes a webhook body. The body must be a JSON object with a
// non-empty string "event" and an object "payload". Other keys are kept in Extra.
func ParseZoomWebhookEnvelope(body []byte) (*ZoomWebhookEnvelope, error) {
	if !json.Valid(body) {
		return nil, ErrInvalidZoomJSON
	}

	var raw map[string]any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil || raw == nil {
		return nil, fmt.Errorf("body is not a JSON object")
	}
	raw = normalizeNumbers(raw).(map[string]any)

	event, ok := raw[zoomKeyEvent].(string)
	if !ok || event == "" {
		return nil, fmt.Errorf("required key %q must be a non-empty string", zoomKeyEvent)
	}

	payload, ok := raw[zoomKeyPayload].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("required key %q must be an object", zoomKeyPayload)
	}

	envelope := &ZoomWebhookEnvelope{
		Event:   event,
		Payload: payload,
	}

	for key, value := range raw {
		switch key {
		case zoomKeyEvent, zoomKeyPayload:
			continue
		case zoomKeyEventTS:
			if ts, ok := value.(int64); ok && ts >= 0 {
				envelope.EventTS = ts
				continue
			}
		}
		if envelope.Extra == nil {
			envelope.Extra = make(map[string]any)
		}
		envelope.Extra[key] = value
	}

	return envelope, nil
}

// normalizeNumbers replaces the json.Number values of a decoded document with int64 when
// the number is an integer that fits, and float64 otherwise.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	default:
		return value
	}
}

// IsValidation reports whether the envelope is an endpoint.url_validation challenge.
func (e *ZoomWebhookEnvelope) IsValidation() bool {
	return e.Event == ZoomEventEndpointURLValidation
}

// ValidationPayload decodes the payload of an endpoint.url_validation event.
func (e *ZoomWebhookEnvelope) ValidationPayload() (*ZoomValidationPayload, error) {
	var payload ZoomValidationPayload
	if err := mapstructure.Decode(e.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.PlainToken == "" {
		return nil, fmt.Errorf("plainToken is missing")
	}
	return &payload, nil
}

// ZoomWebhookEventMessage is the schema for verified Zoom webhook events republished on NATS.
type ZoomWebhookEventMessage struct {
	EventType       string         `json:"event_type" msgpack:"event_type"`
	EventTS         int64          `json:"event_ts,omitempty" msgpack:"event_ts,omitempty"`
	Payload         map[string]any `json:"payload" msgpack:"payload"`
	Extra           map[string]any `json:"extra,omitempty" msgpack:"extra,omitempty"`
	ConfigEntryID   string         `json:"config_entry_id" msgpack:"config_entry_id"`
	ConfigEntryName string         `json:"config_entry_name" msgpack:"config_entry_name"`
	ReceivedAt      time.Time      `json:"received_at" msgpack:"received_at"`
}

// NewZoomWebhookEventMessage builds the message published for an envelope verified against entry.
func NewZoomWebhookEventMessage(envelope *ZoomWebhookEnvelope, entry ConfigEntry, receivedAt time.Time) ZoomWebhookEventMessage {
	return ZoomWebhookEventMessage{
		EventType:       envelope.Event,
		EventTS:         envelope.EventTS,
		Payload:         envelope.Payload,
		Extra:           envelope.Extra,
		ConfigEntryID:   entry.ID,
		ConfigEntryName: entry.Name,
		ReceivedAt:      receivedAt.UTC(),
	}
}
