// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/store"
)

func startedEntryService(t *testing.T, repo domain.ConfigEntryRepository, config ServiceConfig) *ConfigEntryService {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := NewConfigEntryService(repo, config)
	require.NoError(t, svc.Start(ctx))

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	require.NoError(t, svc.WaitReady(waitCtx))
	return svc
}

func snapshotIDs(svc *ConfigEntryService) []string {
	var ids []string
	for _, e := range svc.Snapshot() {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestConfigEntryService_LoadsExistingEntries(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := store.NewMemoryConfigEntryRepository()
	require.NoError(t, repo.Create(context.Background(), &models.ConfigEntry{ID: "b", Name: "B", SecretToken: "b", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(context.Background(), &models.ConfigEntry{ID: "a", Name: "A", SecretToken: "a", CreatedAt: base}))

	svc := NewConfigEntryService(repo, ServiceConfig{})
	assert.False(t, svc.Ready())
	assert.Empty(t, svc.Snapshot())

	svc = startedEntryService(t, repo, ServiceConfig{})
	assert.True(t, svc.Ready())
	assert.Equal(t, []string{"a", "b"}, snapshotIDs(svc))
}

func TestConfigEntryService_FollowsStoreChanges(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryConfigEntryRepository()
	svc := startedEntryService(t, repo, ServiceConfig{})

	// Written by another replica straight to the store.
	require.NoError(t, repo.Create(ctx, &models.ConfigEntry{ID: "remote", Name: "Remote", SecretToken: "s"}))
	assert.Eventually(t, func() bool {
		return len(svc.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, repo.Delete(ctx, "remote"))
	assert.Eventually(t, func() bool {
		return len(svc.Snapshot()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestConfigEntryService_Create(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	repo := store.NewMemoryConfigEntryRepository()
	svc := startedEntryService(t, repo, ServiceConfig{Now: func() time.Time { return created }})

	entry, err := svc.Create(ctx, models.CreateConfigEntryRequest{Name: "  Primary ", SecretToken: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Primary", entry.Name)
	assert.Equal(t, created, entry.CreatedAt)
	assert.Equal(t, []string{entry.ID}, snapshotIDs(svc), "usable without waiting for the watch")

	explicit, err := svc.Create(ctx, models.CreateConfigEntryRequest{ID: "fixed", Name: "Secondary", SecretToken: "other"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", explicit.ID)

	keyChars, err := svc.Create(ctx, models.CreateConfigEntryRequest{ID: "team/zoom_app=1.v-2", Name: "Tertiary", SecretToken: "s"})
	require.NoError(t, err)
	assert.Equal(t, "team/zoom_app=1.v-2", keyChars.ID)

	tests := []struct {
		name     string
		req      models.CreateConfigEntryRequest
		expected domain.ErrorType
	}{
		{name: "missing name", req: models.CreateConfigEntryRequest{SecretToken: "s"}, expected: domain.ErrorTypeValidation},
		{name: "blank name", req: models.CreateConfigEntryRequest{Name: "   ", SecretToken: "s"}, expected: domain.ErrorTypeValidation},
		{name: "missing secret", req: models.CreateConfigEntryRequest{Name: "Third"}, expected: domain.ErrorTypeValidation},
		{name: "duplicate name", req: models.CreateConfigEntryRequest{Name: "primary", SecretToken: "s"}, expected: domain.ErrorTypeConflict},
		{name: "id with spaces", req: models.CreateConfigEntryRequest{ID: "my app", Name: "Third", SecretToken: "s"}, expected: domain.ErrorTypeValidation},
		{name: "id with wildcard", req: models.CreateConfigEntryRequest{ID: "apps.*", Name: "Third", SecretToken: "s"}, expected: domain.ErrorTypeValidation},
		{name: "id with trailing dot", req: models.CreateConfigEntryRequest{ID: "apps.", Name: "Third", SecretToken: "s"}, expected: domain.ErrorTypeValidation},
		{name: "duplicate id", req: models.CreateConfigEntryRequest{ID: "fixed", Name: "Third", SecretToken: "s"}, expected: domain.ErrorTypeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.expected, domain.GetErrorType(err))
		})
	}
}

func TestConfigEntryService_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	repo := store.NewMemoryConfigEntryRepository()
	svc := startedEntryService(t, repo, ServiceConfig{Now: func() time.Time { now = now.Add(time.Second); return now }})

	first, err := svc.Create(ctx, models.CreateConfigEntryRequest{ID: "z", Name: "First", SecretToken: "1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.CreateConfigEntryRequest{ID: "a", Name: "Second", SecretToken: "2"})
	require.NoError(t, err)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "z", views[0].ID, "listed in creation order")
	assert.True(t, views[0].HasSecret)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.Eventually(t, func() bool {
		ids := snapshotIDs(svc)
		return len(ids) == 1 && ids[0] == "a"
	}, time.Second, 5*time.Millisecond)

	err = svc.Delete(ctx, first.ID)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(svc.Delete(ctx, "")))
}

func TestConfigEntryService_Seed(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryConfigEntryRepository()
	svc := startedEntryService(t, repo, ServiceConfig{SeedWorkers: 2})

	seeds := []models.CreateConfigEntryRequest{
		{Name: "Primary", SecretToken: "one"},
		{ID: "explicit", Name: "Secondary", SecretToken: "two"},
	}
	require.NoError(t, svc.Seed(ctx, seeds))
	assert.Len(t, svc.Snapshot(), 2)

	primaryID := SeedEntryID("Primary")
	stored, err := repo.Get(ctx, primaryID)
	require.NoError(t, err)
	assert.Equal(t, "one", stored.SecretToken)

	// Seeding again with the same values is a no-op.
	require.NoError(t, svc.Seed(ctx, seeds))
	again, err := repo.Get(ctx, primaryID)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, again.CreatedAt)

	// A rotated secret replaces the stored entry.
	require.NoError(t, svc.Seed(ctx, []models.CreateConfigEntryRequest{{Name: "Primary", SecretToken: "rotated"}}))
	rotated, err := repo.Get(ctx, primaryID)
	require.NoError(t, err)
	assert.Equal(t, "rotated", rotated.SecretToken)
	assert.Eventually(t, func() bool {
		for _, e := range svc.Snapshot() {
			if e.ID == primaryID {
				return e.SecretToken == "rotated" && len(svc.Snapshot()) == 2
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, svc.Seed(ctx, nil))
}

func TestConfigEntryService_SeedReportsFailures(t *testing.T) {
	repo := new(domain.MockConfigEntryRepository)
	repo.On("IsReady").Return(true)
	repo.On("Get", mock.Anything, mock.Anything).Return(nil, domain.NewInternalError("kv down"))

	svc := NewConfigEntryService(repo, ServiceConfig{})
	err := svc.Seed(context.Background(), []models.CreateConfigEntryRequest{{Name: "Primary", SecretToken: "s"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `seed "Primary"`)
}

func TestConfigEntryService_Unavailable(t *testing.T) {
	ctx := context.Background()
	repo := new(domain.MockConfigEntryRepository)
	repo.On("IsReady").Return(false)

	svc := NewConfigEntryService(repo, ServiceConfig{})
	assert.False(t, svc.ServiceReady())

	_, err := svc.Create(ctx, models.CreateConfigEntryRequest{Name: "a", SecretToken: "b"})
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(svc.Delete(ctx, "a")))
	_, err = svc.List(ctx)
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(svc.Start(ctx)))
}

func TestConfigEntryService_RewatchesAfterWatchEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan domain.ConfigEntryEvent, 2)
	first <- domain.ConfigEntryEvent{Type: domain.ConfigEntryPut, ID: "a", Entry: &models.ConfigEntry{ID: "a", SecretToken: "s"}}
	first <- domain.ConfigEntryEvent{Type: domain.ConfigEntrySynced}

	second := make(chan domain.ConfigEntryEvent, 1)
	second <- domain.ConfigEntryEvent{Type: domain.ConfigEntrySynced}

	repo := new(domain.MockConfigEntryRepository)
	repo.On("IsReady").Return(true)
	repo.On("Watch", mock.Anything).Return((<-chan domain.ConfigEntryEvent)(first), nil).Once()
	repo.On("Watch", mock.Anything).Return(nil, errors.New("no responders")).Once()
	repo.On("Watch", mock.Anything).Return((<-chan domain.ConfigEntryEvent)(second), nil).Once()

	svc := NewConfigEntryService(repo, ServiceConfig{WatchRetryInterval: 5 * time.Millisecond})
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.WaitReady(ctx))
	assert.Equal(t, []string{"a"}, snapshotIDs(svc))

	close(first)
	assert.Eventually(t, func() bool {
		return svc.Ready() && len(svc.Snapshot()) == 0
	}, time.Second, 5*time.Millisecond, "second watch replaces the snapshot")
	repo.AssertExpectations(t)
}
