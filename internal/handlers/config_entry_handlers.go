// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/service"
)

// ConfigEntryHandler handles the NATS request/reply subjects that manage registered Zoom apps.
type ConfigEntryHandler struct {
	configEntryService *service.ConfigEntryService
}

func NewConfigEntryHandler(configEntryService *service.ConfigEntryService) *ConfigEntryHandler {
	return &ConfigEntryHandler{
		configEntryService: configEntryService,
	}
}

func (s *ConfigEntryHandler) HandlerReady() bool {
	return s.configEntryService.ServiceReady()
}

// HandleMessage implements domain.MessageHandler interface
func (s *ConfigEntryHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) (any, error){
		models.ConfigEntryCreateSubject: s.HandleConfigEntryCreate,
		models.ConfigEntryDeleteSubject: s.HandleConfigEntryDelete,
		models.ConfigEntryListSubject:   s.HandleConfigEntryList,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		s.respond(ctx, msg, models.ConfigEntryErrorResponse{Error: "unknown subject"})
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		s.respond(ctx, msg, models.ConfigEntryErrorResponse{Error: errorMessage(err)})
		return
	}

	s.respond(ctx, msg, response)
}

func (s *ConfigEntryHandler) respond(ctx context.Context, msg domain.Message, response any) {
	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling NATS response", logging.ErrKey, err)
		return
	}

	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message")
}

// errorMessage returns what callers may see of err. Internal failures are not detailed.
func errorMessage(err error) string {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation, domain.ErrorTypeConflict, domain.ErrorTypeNotFound:
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return domainErr.Message
		}
		return err.Error()
	case domain.ErrorTypeUnavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}

// HandleConfigEntryCreate registers a Zoom app. The reply never contains the secret token.
func (s *ConfigEntryHandler) HandleConfigEntryCreate(ctx context.Context, msg domain.Message) (any, error) {
	var req models.CreateConfigEntryRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		return nil, domain.NewValidationError("request body must be a JSON object", err)
	}

	entry, err := s.configEntryService.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return entry.View(), nil
}

// HandleConfigEntryDelete removes a Zoom app. The message body is the entry ID.
func (s *ConfigEntryHandler) HandleConfigEntryDelete(ctx context.Context, msg domain.Message) (any, error) {
	id := strings.TrimSpace(string(msg.Data()))
	if err := s.configEntryService.Delete(ctx, id); err != nil {
		return nil, err
	}
	return models.ConfigEntryDeletedResponse{Deleted: id}, nil
}

// HandleConfigEntryList lists the registered Zoom apps without their secret tokens.
func (s *ConfigEntryHandler) HandleConfigEntryList(ctx context.Context, _ domain.Message) (any, error) {
	return s.configEntryService.List(ctx)
}
