// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"strings"
)

// NATS subjects that the zoom webhook service sends messages about.
const (
	// DefaultZoomWebhookSubjectPrefix is the subject prefix for verified Zoom webhook events.
	// Events are published on subjects of the form: lfx.webhook.zoom.<event>
	// e.g. lfx.webhook.zoom.meeting.started
	DefaultZoomWebhookSubjectPrefix = "lfx.webhook.zoom"
)

// NATS subjects that the zoom webhook service handles messages about.
const (
	// ConfigEntryCreateSubject registers a Zoom app.
	// The subject is of the form: lfx.zoom-webhook-service.entries.create
	ConfigEntryCreateSubject = "lfx.zoom-webhook-service.entries.create"

	// ConfigEntryDeleteSubject removes a registered Zoom app.
	// The subject is of the form: lfx.zoom-webhook-service.entries.delete
	ConfigEntryDeleteSubject = "lfx.zoom-webhook-service.entries.delete"

	// ConfigEntryListSubject lists the registered Zoom apps.
	// The subject is of the form: lfx.zoom-webhook-service.entries.list
	ConfigEntryListSubject = "lfx.zoom-webhook-service.entries.list"

	// ZoomWebhookServiceQueue is the queue group for the zoom webhook service subscriptions.
	ZoomWebhookServiceQueue = "lfx.zoom-webhook-service.queue"
)

// Content types of published event messages, announced in the Content-Type NATS header.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// ZoomWebhookSubject returns the subject a Zoom event is published on. Every dot-separated
// token of the event name must be non-empty and made of letters, digits, '_' or '-', so
// that no event can inject wildcards or whitespace into the subject.
func ZoomWebhookSubject(prefix, event string) (string, error) {
	if prefix == "" {
		prefix = DefaultZoomWebhookSubjectPrefix
	}

	for _, token := range strings.Split(event, ".") {
		if token == "" {
			return "", fmt.Errorf("event %q contains an empty subject token", event)
		}
		for _, r := range token {
			if !isSubjectRune(r) {
				return "", fmt.Errorf("event %q contains invalid subject character %q", event, r)
			}
		}
	}

	return prefix + "." + event, nil
}

func isSubjectRune(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}

// ConfigEntryErrorResponse is the reply sent on entry subjects when a request fails.
type ConfigEntryErrorResponse struct {
	Error string `json:"error"`
}

// ConfigEntryDeletedResponse is the reply sent after an entry was deleted.
type ConfigEntryDeletedResponse struct {
	Deleted string `json:"deleted"`
}
