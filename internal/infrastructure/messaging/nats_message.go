// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NatsMsg adapts a received NATS message to domain.Message.
type NatsMsg struct {
	msg *nats.Msg
}

// NewNatsMsg wraps msg.
func NewNatsMsg(msg *nats.Msg) *NatsMsg {
	return &NatsMsg{msg: msg}
}

// Subject returns the subject the message was received on.
func (m *NatsMsg) Subject() string {
	return m.msg.Subject
}

// Data returns the message payload.
func (m *NatsMsg) Data() []byte {
	return m.msg.Data
}

// HasReply reports whether the sender expects a response.
func (m *NatsMsg) HasReply() bool {
	return m.msg.Reply != ""
}

// Respond sends data to the message's reply subject.
func (m *NatsMsg) Respond(data []byte) error {
	return m.msg.Respond(data)
}

// ContextFromMsg returns ctx carrying the trace context found in the message headers.
func ContextFromMsg(ctx context.Context, msg *nats.Msg) context.Context {
	if msg == nil || msg.Header == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
}
