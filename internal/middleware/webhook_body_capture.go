// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// DefaultMaxWebhookBodyBytes bounds the size of captured webhook bodies.
const DefaultMaxWebhookBodyBytes int64 = 1 << 20

// WebhookBodyContextKey is the context key for storing raw webhook body
type WebhookBodyContextKey struct{}

// WebhookBodyErrorContextKey is the context key for the error that stopped the body capture
type WebhookBodyErrorContextKey struct{}

// WebhookBodyCaptureMiddleware captures the raw request body for the webhook path and stores
// it in the request context for signature validation. Bodies larger than maxBytes are not
// captured; the read error is stored instead so that the handler decides how to answer.
func WebhookBodyCaptureMiddleware(path string, maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxWebhookBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			_ = r.Body.Close()

			ctx := r.Context()
			if err != nil {
				ctx = context.WithValue(ctx, WebhookBodyErrorContextKey{}, err)
				body = nil
			} else {
				ctx = context.WithValue(ctx, WebhookBodyContextKey{}, body)
			}

			// The next handler can still read the captured bytes.
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRawBodyFromContext extracts the raw body from the context
func GetRawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(WebhookBodyContextKey{}).([]byte)
	return body, ok
}

// GetBodyErrorFromContext returns the error that prevented the body capture, if any
func GetBodyErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(WebhookBodyErrorContextKey{}).(error)
	return err
}
