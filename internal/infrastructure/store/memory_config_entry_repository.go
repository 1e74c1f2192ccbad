// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

// memoryWatchBuffer bounds how far a watcher may lag behind writes before writes block.
const memoryWatchBuffer = 64

// MemoryConfigEntryRepository keeps config entries in process memory. It is used when the
// service runs without a NATS KV store and in tests.
type MemoryConfigEntryRepository struct {
	mu       sync.RWMutex
	entries  map[string]models.ConfigEntry
	watchers map[chan domain.ConfigEntryEvent]struct{}
}

// NewMemoryConfigEntryRepository creates an empty in-memory repository.
func NewMemoryConfigEntryRepository() *MemoryConfigEntryRepository {
	return &MemoryConfigEntryRepository{
		entries:  make(map[string]models.ConfigEntry),
		watchers: make(map[chan domain.ConfigEntryEvent]struct{}),
	}
}

// IsReady always reports true.
func (r *MemoryConfigEntryRepository) IsReady() bool {
	return true
}

// Create stores a new config entry.
func (r *MemoryConfigEntryRepository) Create(_ context.Context, entry *models.ConfigEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.ID]; exists {
		return domain.NewConflictError(fmt.Sprintf("config entry with key '%s' already exists", entry.ID), domain.ErrEntryExists)
	}
	stored := *entry
	r.entries[entry.ID] = stored
	r.notify(domain.ConfigEntryEvent{Type: domain.ConfigEntryPut, ID: entry.ID, Entry: &stored})
	return nil
}

// Get returns the config entry with the given ID.
func (r *MemoryConfigEntryRepository) Get(_ context.Context, id string) (*models.ConfigEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return nil, domain.NewNotFoundError(fmt.Sprintf("config entry with key '%s' not found", id), domain.ErrEntryNotFound)
	}
	return &entry, nil
}

// Delete removes the config entry with the given ID.
func (r *MemoryConfigEntryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return domain.NewNotFoundError(fmt.Sprintf("config entry with key '%s' not found", id), domain.ErrEntryNotFound)
	}
	delete(r.entries, id)
	r.notify(domain.ConfigEntryEvent{Type: domain.ConfigEntryDeleted, ID: id})
	return nil
}

// List returns every stored config entry.
func (r *MemoryConfigEntryRepository) List(_ context.Context) ([]*models.ConfigEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*models.ConfigEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Watch streams the stored config entries and their later changes.
func (r *MemoryConfigEntryRepository) Watch(ctx context.Context) (<-chan domain.ConfigEntryEvent, error) {
	r.mu.Lock()
	initial := make([]domain.ConfigEntryEvent, 0, len(r.entries)+1)
	for id, entry := range r.entries {
		initial = append(initial, domain.ConfigEntryEvent{Type: domain.ConfigEntryPut, ID: id, Entry: &entry})
	}
	initial = append(initial, domain.ConfigEntryEvent{Type: domain.ConfigEntrySynced})

	live := make(chan domain.ConfigEntryEvent, memoryWatchBuffer)
	r.watchers[live] = struct{}{}
	r.mu.Unlock()

	events := make(chan domain.ConfigEntryEvent)
	go func() {
		defer close(events)
		defer r.unwatch(live)

		for _, event := range initial {
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case event := <-live:
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// notify must be called with the write lock held.
func (r *MemoryConfigEntryRepository) notify(event domain.ConfigEntryEvent) {
	for watcher := range r.watchers {
		watcher <- event
	}
}

// unwatch drains live while waiting for the lock so that a writer blocked in notify can finish.
func (r *MemoryConfigEntryRepository) unwatch(live chan domain.ConfigEntryEvent) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-live:
			case <-done:
				return
			}
		}
	}()

	r.mu.Lock()
	delete(r.watchers, live)
	r.mu.Unlock()
	close(done)
}
