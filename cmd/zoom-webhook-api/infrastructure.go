// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/pkg/constants"
)

// stores are the storage backends used by the services.
type stores struct {
	ConfigEntries domain.ConfigEntryRepository
	// ReplayCache is nil when the replay cache is disabled.
	ReplayCache domain.ReplayCache
}

// setupNATS connects to NATS. The done channel is signalled when the connection closes
// for good, which shuts the service down.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	slog.With("nats_url", env.NATS.URL).InfoContext(ctx, "connecting to NATS")

	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NATS.URL,
		nats.Name(constants.ServiceName),
		nats.Timeout(env.NATS.Timeout),
		nats.MaxReconnects(env.NATS.MaxReconnect),
		nats.ReconnectWait(env.NATS.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.With(logging.ErrKey, err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject, "queue", sub.Queue).Error("async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected during graceful shutdown.
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
			gracefulCloseWG.Done()
			done <- os.Interrupt
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("error connecting to NATS: %w", err)
	}

	return natsConn, nil
}

// setupStores creates the config entry store and the replay cache. In memory mode
// nothing is kept in JetStream and every replica has its own registry.
func setupStores(ctx context.Context, env environment, natsConn *nats.Conn) (stores, error) {
	if env.Store == storeMemory {
		s := stores{ConfigEntries: store.NewMemoryConfigEntryRepository()}
		if env.ReplayCache {
			s.ReplayCache = store.NewMemoryReplayCache(2*env.MaxAge, time.Now)
		}
		return s, nil
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		return stores{}, fmt.Errorf("error creating JetStream context: %w", err)
	}

	entriesKV, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      store.KVStoreNameConfigEntries,
		Description: "Registered Zoom apps and their webhook secret tokens",
		History:     1,
	})
	if err != nil {
		return stores{}, fmt.Errorf("error opening KV bucket %s: %w", store.KVStoreNameConfigEntries, err)
	}

	s := stores{ConfigEntries: store.NewNatsConfigEntryRepository(entriesKV)}

	if env.ReplayCache {
		replayKV, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      store.KVStoreNameReplayCache,
			Description: "Signatures of accepted Zoom webhook requests",
			History:     1,
			TTL:         2 * env.MaxAge,
		})
		if err != nil {
			return stores{}, fmt.Errorf("error opening KV bucket %s: %w", store.KVStoreNameReplayCache, err)
		}
		s.ReplayCache = store.NewNatsReplayCache(replayKV)
	}

	return s, nil
}

// createNatsSubscriptions subscribes the handler to the config entry admin subjects.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn) error {
	subjects := []string{
		models.ConfigEntryCreateSubject,
		models.ConfigEntryDeleteSubject,
		models.ConfigEntryListSubject,
	}

	for _, subject := range subjects {
		_, err := natsConn.QueueSubscribe(subject, models.ZoomWebhookServiceQueue, func(msg *nats.Msg) {
			msgCtx := messaging.ContextFromMsg(ctx, msg)
			handler.HandleMessage(msgCtx, messaging.NewNatsMsg(msg))
		})
		if err != nil {
			return fmt.Errorf("error subscribing to %s: %w", subject, err)
		}
		slog.With("subject", subject, "queue", models.ZoomWebhookServiceQueue).DebugContext(ctx, "subscribed to NATS subject")
	}

	return nil
}
