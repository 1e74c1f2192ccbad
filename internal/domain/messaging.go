// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// WebhookEventSender handles webhook event publishing.
type WebhookEventSender interface {
	PublishZoomWebhookEvent(ctx context.Context, message models.ZoomWebhookEventMessage) error
	IsReady() bool
}

// ReplayCache remembers webhook signatures that were already accepted.
type ReplayCache interface {
	// Remember records the signature. It returns ErrReplayedRequest when the signature
	// was recorded before and has not yet expired.
	Remember(ctx context.Context, signature string) error
	// Forget removes a recorded signature. Unknown signatures are not an error.
	Forget(ctx context.Context, signature string) error
}
