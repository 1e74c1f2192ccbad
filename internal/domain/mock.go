// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
)

// MockConfigEntryRepository implements ConfigEntryRepository for testing
type MockConfigEntryRepository struct {
	mock.Mock
}

func (m *MockConfigEntryRepository) Create(ctx context.Context, entry *models.ConfigEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockConfigEntryRepository) Get(ctx context.Context, id string) (*models.ConfigEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigEntry), args.Error(1)
}

func (m *MockConfigEntryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConfigEntryRepository) List(ctx context.Context) ([]*models.ConfigEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConfigEntry), args.Error(1)
}

func (m *MockConfigEntryRepository) Watch(ctx context.Context) (<-chan ConfigEntryEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan ConfigEntryEvent), args.Error(1)
}

func (m *MockConfigEntryRepository) IsReady() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockWebhookEventSender implements WebhookEventSender for testing
type MockWebhookEventSender struct {
	mock.Mock
}

func (m *MockWebhookEventSender) PublishZoomWebhookEvent(ctx context.Context, message models.ZoomWebhookEventMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockWebhookEventSender) IsReady() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockReplayCache implements ReplayCache for testing
type MockReplayCache struct {
	mock.Mock
}

func (m *MockReplayCache) Remember(ctx context.Context, signature string) error {
	args := m.Called(ctx, signature)
	return args.Error(0)
}

func (m *MockReplayCache) Forget(ctx context.Context, signature string) error {
	args := m.Called(ctx, signature)
	return args.Error(0)
}

// MockMessage implements Message for testing
type MockMessage struct {
	mock.Mock
	data    []byte
	subject string
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.data
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

// NewMockMessage creates a mock message for testing
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:    data,
		subject: subject,
	}
}
