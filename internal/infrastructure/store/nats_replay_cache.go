// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
)

// replayKey turns a signature header into a KV key. Only the hex digest is kept, lower-cased.
func replayKey(signature string) string {
	if _, digest, found := strings.Cut(signature, "="); found {
		signature = digest
	}
	return strings.ToLower(signature)
}

// NatsReplayCache records accepted signatures in a KV bucket whose TTL expires them.
// Replicas sharing the bucket reject each other's replays.
type NatsReplayCache struct {
	kvStore INatsKeyValue
}

// NewNatsReplayCache creates a replay cache on top of a KV bucket. The bucket TTL must be
// at least twice the replay window.
func NewNatsReplayCache(kvStore INatsKeyValue) *NatsReplayCache {
	return &NatsReplayCache{kvStore: kvStore}
}

// Remember records signature and fails with ErrReplayedRequest when it was recorded before.
func (c *NatsReplayCache) Remember(ctx context.Context, signature string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nats.kv.create",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", "create"),
			attribute.String("db.nats.entity", "replay signature"),
		),
	)
	defer span.End()

	if c.kvStore == nil {
		return fail(span, domain.NewUnavailableError("replay cache is not available", domain.ErrServiceUnavailable), "")
	}

	value := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	if _, err := c.kvStore.Create(ctx, replayKey(signature), value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			span.SetStatus(codes.Error, "replayed")
			return domain.NewRejectedError("signature already accepted", domain.ErrReplayedRequest)
		}
		slog.ErrorContext(ctx, "error recording signature in replay cache", logging.ErrKey, err)
		return fail(span, domain.NewUnavailableError("failed to record signature", err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Forget removes signature so that a redelivery of the same request is accepted again.
func (c *NatsReplayCache) Forget(ctx context.Context, signature string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nats.kv.delete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", "delete"),
			attribute.String("db.nats.entity", "replay signature"),
		),
	)
	defer span.End()

	if c.kvStore == nil {
		return fail(span, domain.NewUnavailableError("replay cache is not available", domain.ErrServiceUnavailable), "")
	}

	if err := c.kvStore.Delete(ctx, replayKey(signature)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.ErrorContext(ctx, "error removing signature from replay cache", logging.ErrKey, err)
		return fail(span, domain.NewUnavailableError("failed to remove signature", err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MemoryReplayCache is the in-process replay cache used when no KV store is configured.
type MemoryReplayCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryReplayCache creates a replay cache that forgets signatures after ttl.
func NewMemoryReplayCache(ttl time.Duration, now func() time.Time) *MemoryReplayCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryReplayCache{
		ttl:  ttl,
		now:  now,
		seen: make(map[string]time.Time),
	}
}

// Remember records signature and fails with ErrReplayedRequest when it was recorded before.
func (c *MemoryReplayCache) Remember(_ context.Context, signature string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, expires := range c.seen {
		if !now.Before(expires) {
			delete(c.seen, key)
		}
	}

	key := replayKey(signature)
	if _, exists := c.seen[key]; exists {
		return domain.NewRejectedError("signature already accepted", domain.ErrReplayedRequest)
	}
	c.seen[key] = now.Add(c.ttl)
	return nil
}

// Forget removes signature so that a redelivery of the same request is accepted again.
func (c *MemoryReplayCache) Forget(_ context.Context, signature string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.seen, replayKey(signature))
	return nil
}
