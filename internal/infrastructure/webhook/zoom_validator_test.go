// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestZoomWebhookValidator_CheckTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := NewZoomWebhookValidator(WithClock(fixedClock(now)))

	tests := []struct {
		name      string
		timestamp string
		wantErr   error
	}{
		{name: "now", timestamp: "1700000000"},
		{name: "edge of window in the past", timestamp: strconv.FormatInt(now.Unix()-300, 10)},
		{name: "edge of window in the future", timestamp: strconv.FormatInt(now.Unix()+300, 10)},
		{name: "just too old", timestamp: strconv.FormatInt(now.Unix()-301, 10), wantErr: domain.ErrStaleTimestamp},
		{name: "too far in the future", timestamp: strconv.FormatInt(now.Unix()+301, 10), wantErr: domain.ErrStaleTimestamp},
		{name: "ten minutes old", timestamp: strconv.FormatInt(now.Unix()-600, 10), wantErr: domain.ErrStaleTimestamp},
		{name: "milliseconds", timestamp: "1700000000000", wantErr: domain.ErrStaleTimestamp},
		{name: "empty", timestamp: "", wantErr: domain.ErrInvalidTimestamp},
		{name: "not a number", timestamp: "yesterday", wantErr: domain.ErrInvalidTimestamp},
		{name: "fractional", timestamp: "1700000000.5", wantErr: domain.ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := v.CheckTimestamp(tt.timestamp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.timestamp, strconv.FormatInt(ts.Unix(), 10))
		})
	}
}

func TestZoomWebhookValidator_Options(t *testing.T) {
	v := NewZoomWebhookValidator(WithMaxAge(-time.Second), WithClock(nil))
	assert.Equal(t, DefaultMaxAge, v.MaxAge())
	assert.NotNil(t, v.now)

	now := time.Unix(1700000000, 0)
	v = NewZoomWebhookValidator(WithMaxAge(time.Minute), WithClock(fixedClock(now)))
	assert.Equal(t, time.Minute, v.MaxAge())
	assert.Equal(t, now, v.Now())

	_, err := v.CheckTimestamp(strconv.FormatInt(now.Unix()-61, 10))
	assert.ErrorIs(t, err, domain.ErrStaleTimestamp)
}

func TestZoomWebhookValidator_MatchEntry(t *testing.T) {
	v := NewZoomWebhookValidator()
	body := []byte(`{"event":"meeting.started","payload":{}}`)
	ts := "1700000000"
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := models.ConfigEntry{ID: "first", Name: "first", SecretToken: "shared", CreatedAt: base}
	second := models.ConfigEntry{ID: "second", Name: "second", SecretToken: "shared", CreatedAt: base.Add(time.Hour)}
	other := models.ConfigEntry{ID: "other", Name: "other", SecretToken: "other", CreatedAt: base.Add(-time.Hour)}
	noSecret := models.ConfigEntry{ID: "empty", Name: "empty", CreatedAt: base.Add(-2 * time.Hour)}

	tests := []struct {
		name      string
		entries   []models.ConfigEntry
		signature string
		wantID    string
		wantErr   bool
	}{
		{name: "single entry", entries: []models.ConfigEntry{other}, signature: Sign("other", ts, body), wantID: "other"},
		{name: "earliest of two entries sharing a secret", entries: []models.ConfigEntry{second, first, other}, signature: Sign("shared", ts, body), wantID: "first"},
		{name: "entry without secret is skipped", entries: []models.ConfigEntry{noSecret, other}, signature: Sign("", ts, body), wantErr: true},
		{name: "no entries", entries: nil, signature: Sign("shared", ts, body), wantErr: true},
		{name: "no match", entries: []models.ConfigEntry{first, other}, signature: Sign("unknown", ts, body), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := v.MatchEntry(tt.entries, tt.signature, ts, body)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrSignatureMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, entry.ID)
		})
	}
}

func TestZoomWebhookValidator_MatchEntryDoesNotReorderInput(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []models.ConfigEntry{
		{ID: "b", SecretToken: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "a", SecretToken: "a", CreatedAt: base},
	}

	_, _ = NewZoomWebhookValidator().MatchEntry(entries, "v0=00", "1", nil)

	assert.Equal(t, "b", entries[0].ID)
}
