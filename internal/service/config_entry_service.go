// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/pkg/concurrent"
)

const (
	defaultSeedWorkers        = 4
	defaultWatchRetryInterval = 5 * time.Second
)

// validEntryID matches the characters a KV key may hold.
var validEntryID = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

// ConfigEntryService is the registry of Zoom apps. The store is the source of truth; the
// service keeps an in-memory snapshot of it, updated by a store watch, for request matching.
type ConfigEntryService struct {
	repo   domain.ConfigEntryRepository
	config ServiceConfig

	mu       sync.RWMutex
	entries  map[string]models.ConfigEntry
	snapshot []models.ConfigEntry
	synced   bool

	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewConfigEntryService creates a new ConfigEntryService.
func NewConfigEntryService(repo domain.ConfigEntryRepository, config ServiceConfig) *ConfigEntryService {
	if config.SeedWorkers <= 0 {
		config.SeedWorkers = defaultSeedWorkers
	}
	if config.WatchRetryInterval <= 0 {
		config.WatchRetryInterval = defaultWatchRetryInterval
	}
	return &ConfigEntryService{
		repo:    repo,
		config:  config,
		entries: make(map[string]models.ConfigEntry),
		readyCh: make(chan struct{}),
	}
}

// ServiceReady checks if the service is ready to process requests
func (s *ConfigEntryService) ServiceReady() bool {
	return s.repo != nil && s.repo.IsReady()
}

// Ready reports whether the snapshot reflects the store and the watch is live.
func (s *ConfigEntryService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// WaitReady blocks until the first snapshot was loaded or ctx is done.
func (s *ConfigEntryService) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start watches the store until ctx is done, re-watching when a watch ends early.
func (s *ConfigEntryService) Start(ctx context.Context) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("config entry store is not available", domain.ErrServiceUnavailable)
	}

	events, err := s.repo.Watch(ctx)
	if err != nil {
		return err
	}

	go func() {
		for {
			s.consume(ctx, events)
			if ctx.Err() != nil {
				return
			}

			slog.WarnContext(ctx, "config entry watch ended, retrying", "retry_in", s.config.WatchRetryInterval.String())
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.config.WatchRetryInterval):
				}
				events, err = s.repo.Watch(ctx)
				if err == nil {
					break
				}
				slog.ErrorContext(ctx, "error watching config entries", logging.ErrKey, err)
			}
		}
	}()

	return nil
}

// consume applies watch events until the channel is closed. Events received before the
// synced marker are collected and swapped in as a whole.
func (s *ConfigEntryService) consume(ctx context.Context, events <-chan domain.ConfigEntryEvent) {
	pending := make(map[string]models.ConfigEntry)
	synced := false

	for event := range events {
		if !synced {
			switch event.Type {
			case domain.ConfigEntryPut:
				pending[event.ID] = *event.Entry
			case domain.ConfigEntryDeleted:
				delete(pending, event.ID)
			case domain.ConfigEntrySynced:
				synced = true
				s.replace(pending)
				slog.InfoContext(ctx, "config entries loaded", "count", len(pending))
			}
			continue
		}

		switch event.Type {
		case domain.ConfigEntryPut:
			s.put(*event.Entry)
			slog.InfoContext(ctx, "config entry stored", "config_entry_id", event.ID, "config_entry_name", event.Entry.Name)
		case domain.ConfigEntryDeleted:
			s.remove(event.ID)
			slog.InfoContext(ctx, "config entry removed", "config_entry_id", event.ID)
		}
	}

	s.mu.Lock()
	s.synced = false
	s.mu.Unlock()
}

func (s *ConfigEntryService) replace(entries map[string]models.ConfigEntry) {
	s.mu.Lock()
	s.entries = entries
	s.rebuild()
	s.synced = true
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.readyCh) })
}

func (s *ConfigEntryService) put(entry models.ConfigEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	s.rebuild()
}

func (s *ConfigEntryService) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	s.rebuild()
}

// rebuild must be called with the write lock held.
func (s *ConfigEntryService) rebuild() {
	snapshot := make([]models.ConfigEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, entry)
	}
	models.SortConfigEntries(snapshot)
	s.snapshot = snapshot
}

// Snapshot returns the current entries in matching order. The slice must not be modified.
func (s *ConfigEntryService) Snapshot() []models.ConfigEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Create registers a Zoom app. Names must be unique; the ID is generated when empty.
func (s *ConfigEntryService) Create(ctx context.Context, req models.CreateConfigEntryRequest) (*models.ConfigEntry, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("config entry store is not available", domain.ErrServiceUnavailable)
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if req.SecretToken == "" {
		return nil, domain.NewValidationError("secret_token is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if !validEntryID.MatchString(req.ID) || strings.HasPrefix(req.ID, ".") || strings.HasSuffix(req.ID, ".") {
		return nil, domain.NewValidationError("id may only contain letters, digits and -/_=. and must not start or end with a dot")
	}

	ctx = logging.AppendCtx(ctx, slog.String("config_entry_id", req.ID))

	existing, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, req.Name) {
			return nil, domain.NewConflictError(fmt.Sprintf("a config entry named %q already exists", req.Name), domain.ErrEntryExists)
		}
	}

	entry := &models.ConfigEntry{
		ID:          req.ID,
		Name:        req.Name,
		SecretToken: req.SecretToken,
		CreatedAt:   s.config.now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	// The watch will deliver the same entry; applying it now makes it usable immediately.
	s.put(*entry)

	slog.InfoContext(ctx, "config entry created", "config_entry_name", entry.Name)
	return entry, nil
}

// Delete removes a Zoom app.
func (s *ConfigEntryService) Delete(ctx context.Context, id string) error {
	if !s.ServiceReady() {
		return domain.NewUnavailableError("config entry store is not available", domain.ErrServiceUnavailable)
	}
	if id == "" {
		return domain.NewValidationError("id is required")
	}

	ctx = logging.AppendCtx(ctx, slog.String("config_entry_id", id))
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.remove(id)

	slog.InfoContext(ctx, "config entry deleted")
	return nil
}

// List returns every registered Zoom app in matching order, without secrets.
func (s *ConfigEntryService) List(ctx context.Context) ([]models.ConfigEntryView, error) {
	if !s.ServiceReady() {
		return nil, domain.NewUnavailableError("config entry store is not available", domain.ErrServiceUnavailable)
	}

	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ConfigEntry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, *e)
	}
	models.SortConfigEntries(entries)

	views := make([]models.ConfigEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.View())
	}
	return views, nil
}

// SeedEntryID derives a stable ID for a seeded entry that has none, so that restarts
// find the entry they created before.
func SeedEntryID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("zoom-webhook-entry:"+name)).String()
}

// Seed makes sure every given entry exists in the store with the given name and secret.
// Entries already stored with other values are replaced.
func (s *ConfigEntryService) Seed(ctx context.Context, seeds []models.CreateConfigEntryRequest) error {
	if len(seeds) == 0 {
		return nil
	}
	if !s.ServiceReady() {
		return domain.NewUnavailableError("config entry store is not available", domain.ErrServiceUnavailable)
	}

	jobs := make([]func(context.Context) error, 0, len(seeds))
	for _, seed := range seeds {
		if seed.ID == "" {
			seed.ID = SeedEntryID(seed.Name)
		}
		jobs = append(jobs, func(ctx context.Context) error {
			return s.seedOne(ctx, seed)
		})
	}

	errs := concurrent.NewWorkerPool(s.config.SeedWorkers).RunAll(ctx, jobs...)
	return errors.Join(errs...)
}

func (s *ConfigEntryService) seedOne(ctx context.Context, seed models.CreateConfigEntryRequest) error {
	ctx = logging.AppendCtx(ctx, slog.String("config_entry_id", seed.ID))

	existing, err := s.repo.Get(ctx, seed.ID)
	switch {
	case err == nil:
		if existing.Name == seed.Name && existing.SecretToken == seed.SecretToken {
			s.put(*existing)
			slog.DebugContext(ctx, "seeded config entry already registered")
			return nil
		}
		slog.InfoContext(ctx, "replacing seeded config entry")
		if err := s.repo.Delete(ctx, seed.ID); err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			return fmt.Errorf("seed %q: %w", seed.Name, err)
		}
		s.remove(seed.ID)
	case domain.GetErrorType(err) != domain.ErrorTypeNotFound:
		return fmt.Errorf("seed %q: %w", seed.Name, err)
	}

	if _, err := s.Create(ctx, seed); err != nil {
		return fmt.Errorf("seed %q: %w", seed.Name, err)
	}
	return nil
}
