// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

// ConfigEntryEventType tells what happened to a watched config entry.
type ConfigEntryEventType int

const (
	ConfigEntryPut ConfigEntryEventType = iota
	ConfigEntryDeleted
	// ConfigEntrySynced follows the events for the entries that existed when the watch started.
	ConfigEntrySynced
)

// ConfigEntryEvent is a change to the stored config entries.
type ConfigEntryEvent struct {
	Type ConfigEntryEventType
	ID   string
	// Entry is nil for deletions.
	Entry *models.ConfigEntry
}

// ConfigEntryRepository defines the interface for config entry storage operations.
// This interface can be implemented by different storage backends (NATS, in-memory, etc.)
type ConfigEntryRepository interface {
	// Create stores a new entry. It fails with a conflict error when the id is taken.
	Create(ctx context.Context, entry *models.ConfigEntry) error
	Get(ctx context.Context, id string) (*models.ConfigEntry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.ConfigEntry, error)

	// Watch first emits a ConfigEntryPut for every stored entry followed by one
	// ConfigEntrySynced, then streams later changes until ctx is done. The channel is
	// closed when the watch ends.
	Watch(ctx context.Context) (<-chan ConfigEntryEvent, error)

	IsReady() bool
}
