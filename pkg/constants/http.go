// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// ZoomSignatureHeader carries the HMAC signature of a Zoom webhook request
	ZoomSignatureHeader string = "x-zm-signature"

	// ZoomRequestTimestampHeader carries the time a Zoom webhook request was signed, in seconds
	ZoomRequestTimestampHeader string = "x-zm-request-timestamp"

	// ContentTypeHeader is the header name for the content type of HTTP responses and NATS messages
	ContentTypeHeader string = "Content-Type"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// ServiceName is reported to OpenTelemetry and used as the NATS client name.
const ServiceName = "lfx-v2-zoom-webhook-service"
