package webhookevents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auto-analyst/billing/app/models"
	"github.com/auto-analyst/billing/internal/pkg/credits"
)

// EventInput is the normalized input for webhook event persistence.
type EventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Service persists processor webhook events idempotently and records credit
// audit entries.
type Service struct {
	repo Repository
}

// NewService creates a webhook event service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a webhook event service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordEvent persists a webhook payload. The bool result is false when the
// event was already stored, which callers treat as a duplicate delivery.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateEventIfNotExists(event)
}

// MarkProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkProcessed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkProcessed(eventID, errMsg)
}

// Record implements credits.Auditor over the audit table.
func (s *Service) Record(ctx context.Context, entry credits.AuditEntry) error {
	_ = ctx
	return s.repo.CreateCreditAudit(&models.CreditAudit{
		AuditID:     uuid.NewString(),
		UserID:      entry.UserID,
		Action:      entry.Action,
		Amount:      entry.Amount,
		Description: entry.Description,
		Actor:       entry.Actor,
	})
}
