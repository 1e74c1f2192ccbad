// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
)

// NatsConfigEntryRepository stores config entries in the zoom-webhook-entries bucket, keyed by entry ID.
type NatsConfigEntryRepository struct {
	base *NatsBaseRepository[models.ConfigEntry]
}

// NewNatsConfigEntryRepository creates a new NATS KV store repository for config entries.
func NewNatsConfigEntryRepository(kvStore INatsKeyValue) *NatsConfigEntryRepository {
	return &NatsConfigEntryRepository{
		base: NewNatsBaseRepository[models.ConfigEntry](kvStore, "config entry"),
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsConfigEntryRepository) IsReady() bool {
	return r.base.IsReady()
}

// Create stores a new config entry.
func (r *NatsConfigEntryRepository) Create(ctx context.Context, entry *models.ConfigEntry) error {
	return r.base.Create(ctx, entry.ID, entry)
}

// Get returns the config entry with the given ID.
func (r *NatsConfigEntryRepository) Get(ctx context.Context, id string) (*models.ConfigEntry, error) {
	entry, _, err := r.base.Get(ctx, id)
	return entry, err
}

// Delete removes the config entry with the given ID.
func (r *NatsConfigEntryRepository) Delete(ctx context.Context, id string) error {
	// A KV delete of a missing key only writes a marker, so look the key up first.
	_, revision, err := r.base.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id, revision)
}

// List returns every stored config entry.
func (r *NatsConfigEntryRepository) List(ctx context.Context) ([]*models.ConfigEntry, error) {
	return r.base.ListEntities(ctx)
}

// Watch streams the stored config entries and their later changes.
func (r *NatsConfigEntryRepository) Watch(ctx context.Context) (<-chan domain.ConfigEntryEvent, error) {
	watcher, err := r.base.Watch(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.ConfigEntryEvent)
	go func() {
		defer close(events)
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.DebugContext(ctx, "error stopping config entry watcher", logging.ErrKey, err)
			}
		}()

		for {
			var kvEntry jetstream.KeyValueEntry
			select {
			case <-ctx.Done():
				return
			case update, ok := <-watcher.Updates():
				if !ok {
					slog.WarnContext(ctx, "config entry watcher closed")
					return
				}
				kvEntry = update
			}

			event, ok := r.toEvent(ctx, kvEntry)
			if !ok {
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// toEvent converts a watcher update into a ConfigEntryEvent. A nil update marks the end
// of the initial values.
func (r *NatsConfigEntryRepository) toEvent(ctx context.Context, kvEntry jetstream.KeyValueEntry) (domain.ConfigEntryEvent, bool) {
	if kvEntry == nil {
		return domain.ConfigEntryEvent{Type: domain.ConfigEntrySynced}, true
	}

	switch kvEntry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		return domain.ConfigEntryEvent{Type: domain.ConfigEntryDeleted, ID: kvEntry.Key()}, true
	}

	entry, err := r.base.Unmarshal(ctx, kvEntry.Value())
	if err != nil {
		slog.WarnContext(ctx, "skipping unreadable config entry", "key", kvEntry.Key(), logging.ErrKey, err)
		return domain.ConfigEntryEvent{}, false
	}
	if entry.ID == "" {
		entry.ID = kvEntry.Key()
	}

	return domain.ConfigEntryEvent{Type: domain.ConfigEntryPut, ID: entry.ID, Entry: entry}, true
}
