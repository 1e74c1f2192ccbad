// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"fmt"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

// DefaultMaxAge is how far a request timestamp may drift from the local clock, in either direction.
const DefaultMaxAge = 5 * time.Minute

// ZoomWebhookValidator checks the replay window of Zoom webhook requests and finds
// the config entry whose secret token signed them.
type ZoomWebhookValidator struct {
	maxAge time.Duration
	now    func() time.Time
}

// ValidatorOption configures a ZoomWebhookValidator.
type ValidatorOption func(*ZoomWebhookValidator)

// WithMaxAge overrides DefaultMaxAge. Non-positive values are ignored.
func WithMaxAge(maxAge time.Duration) ValidatorOption {
	return func(v *ZoomWebhookValidator) {
		if maxAge > 0 {
			v.maxAge = maxAge
		}
	}
}

// WithClock overrides the clock used for the replay window.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *ZoomWebhookValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewZoomWebhookValidator creates a new Zoom webhook validator
func NewZoomWebhookValidator(opts ...ValidatorOption) *ZoomWebhookValidator {
	v := &ZoomWebhookValidator{
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxAge returns the replay window.
func (v *ZoomWebhookValidator) MaxAge() time.Duration {
	return v.maxAge
}

// Now returns the validator's current time.
func (v *ZoomWebhookValidator) Now() time.Time {
	return v.now()
}

// CheckTimestamp parses the x-zm-request-timestamp header value (seconds since the epoch)
// and rejects it when it is further than the replay window from now.
func (v *ZoomWebhookValidator) CheckTimestamp(timestamp string) (time.Time, error) {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidTimestamp, timestamp)
	}

	now := v.now().Unix()
	window := int64(v.maxAge / time.Second)
	if seconds < now-window || seconds > now+window {
		return time.Time{}, fmt.Errorf("%w: %d is %ds from now", domain.ErrStaleTimestamp, seconds, seconds-now)
	}

	return time.Unix(seconds, 0), nil
}

// MatchEntry returns the first entry whose secret token verifies the signature. Entries are
// tried in creation order and entries without a secret token are skipped.
func (v *ZoomWebhookValidator) MatchEntry(entries []models.ConfigEntry, signature, timestamp string, body []byte) (models.ConfigEntry, error) {
	ordered := make([]models.ConfigEntry, len(entries))
	copy(ordered, entries)
	models.SortConfigEntries(ordered)

	for _, entry := range ordered {
		if entry.SecretToken == "" {
			continue
		}
		if Verify(entry.SecretToken, signature, timestamp, body) {
			return entry, nil
		}
	}

	return models.ConfigEntry{}, domain.ErrSignatureMismatch
}
