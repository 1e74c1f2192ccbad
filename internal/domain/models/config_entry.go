// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"slices"
	"strings"
	"time"
)

// ConfigEntry is one registered Zoom app whose secret token signs webhook requests.
type ConfigEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	SecretToken string    `json:"secret_token" yaml:"secret_token"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// ConfigEntryView is the representation of a ConfigEntry that is safe to return to callers.
type ConfigEntryView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HasSecret bool      `json:"has_secret"`
	CreatedAt time.Time `json:"created_at"`
}

// View returns the entry without its secret token.
func (e ConfigEntry) View() ConfigEntryView {
	return ConfigEntryView{
		ID:        e.ID,
		Name:      e.Name,
		HasSecret: e.SecretToken != "",
		CreatedAt: e.CreatedAt,
	}
}

// CreateConfigEntryRequest is the payload used to register a Zoom app.
type CreateConfigEntryRequest struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	SecretToken string `json:"secret_token" yaml:"secret_token"`
}

// SortConfigEntries orders entries by creation time, then by ID, which is the
// order the signature matcher tries them in.
func SortConfigEntries(entries []ConfigEntry) {
	slices.SortStableFunc(entries, func(a, b ConfigEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
