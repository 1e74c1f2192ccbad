// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

func TestMemoryConfigEntryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryConfigEntryRepository()
	assert.True(t, repo.IsReady())

	entry := &models.ConfigEntry{ID: "entry-1", Name: "Primary", SecretToken: "secret"}
	require.NoError(t, repo.Create(ctx, entry))

	entry.Name = "mutated after create"
	got, err := repo.Get(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, "Primary", got.Name)

	err = repo.Create(ctx, &models.ConfigEntry{ID: "entry-1"})
	assert.ErrorIs(t, err, domain.ErrEntryExists)
	assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))

	require.NoError(t, repo.Create(ctx, &models.ConfigEntry{ID: "entry-2"}))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, repo.Delete(ctx, "entry-1"))
	_, err = repo.Get(ctx, "entry-1")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "entry-1"), domain.ErrEntryNotFound)
}

func TestMemoryConfigEntryRepository_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewMemoryConfigEntryRepository()
	require.NoError(t, repo.Create(ctx, &models.ConfigEntry{ID: "existing", SecretToken: "s"}))

	events, err := repo.Watch(ctx)
	require.NoError(t, err)

	event := receiveEvent(t, events)
	assert.Equal(t, domain.ConfigEntryPut, event.Type)
	assert.Equal(t, "existing", event.ID)
	assert.Equal(t, domain.ConfigEntrySynced, receiveEvent(t, events).Type)

	require.NoError(t, repo.Create(ctx, &models.ConfigEntry{ID: "new"}))
	event = receiveEvent(t, events)
	assert.Equal(t, domain.ConfigEntryPut, event.Type)
	assert.Equal(t, "new", event.Entry.ID)

	require.NoError(t, repo.Delete(ctx, "existing"))
	assert.Equal(t, domain.ConfigEntryEvent{Type: domain.ConfigEntryDeleted, ID: "existing"}, receiveEvent(t, events))

	cancel()
	for range events {
	}

	// Writes after the watcher is gone must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < memoryWatchBuffer*2; i++ {
			_ = repo.Delete(context.Background(), "new")
			_ = repo.Create(context.Background(), &models.ConfigEntry{ID: "new"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writes blocked after watcher stopped")
	}
}

func TestMemoryConfigEntryRepository_SlowWatcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := NewMemoryConfigEntryRepository()

	events, err := repo.Watch(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigEntrySynced, receiveEvent(t, events).Type)

	// Fill the live buffer while nobody reads, then cancel: the pending writer must be released.
	done := make(chan struct{})
	go func() {
		for i := 0; i < memoryWatchBuffer+2; i++ {
			_ = repo.Create(context.Background(), &models.ConfigEntry{ID: "entry-" + strconv.Itoa(i)})
		}
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer stayed blocked after watcher was cancelled")
	}
}
