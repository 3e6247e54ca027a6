package webhookevents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/auto-analyst/billing/app/models"
	"github.com/auto-analyst/billing/internal/pkg/credits"
)

type fakeRepository struct {
	events    map[string]*models.WebhookEvent
	processed map[uint]string
	audits    []*models.CreditAudit
	nextID    uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		events:    make(map[string]*models.WebhookEvent),
		processed: make(map[uint]string),
	}
}

func (f *fakeRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.events[key] = event
	return true, event, nil
}

func (f *fakeRepository) MarkProcessed(eventID uint, errMsg string) error {
	f.processed[eventID] = errMsg
	return nil
}

func (f *fakeRepository) CreateCreditAudit(audit *models.CreditAudit) error {
	f.audits = append(f.audits, audit)
	return nil
}

func TestRecordEvent_Deduplicates(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	in := EventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_123",
		EventType:       "invoice.paid",
		PayloadJSON:     `{"id":"evt_123"}`,
		SignatureValid:  true,
	}

	created, event, err := svc.RecordEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || event.ID == 0 {
		t.Fatalf("expected first delivery to create, got created=%t event=%+v", created, event)
	}
	if event.Provider != "stripe" {
		t.Fatalf("provider must be normalized, got %q", event.Provider)
	}

	created, dup, err := svc.RecordEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected second delivery to be a duplicate")
	}
	if dup.ID != event.ID {
		t.Fatalf("duplicate must return the stored event, got %d want %d", dup.ID, event.ID)
	}
}

func TestRecordEvent_HashFallbackForMissingID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	in := EventInput{Provider: "stripe", PayloadJSON: `{"some":"payload"}`}
	created, event, err := svc.RecordEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !strings.HasPrefix(event.ProviderEventID, "hash:") {
		t.Fatalf("expected hash-derived event id, got %q", event.ProviderEventID)
	}

	// Same payload again must collide on the derived id.
	created, _, err = svc.RecordEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("identical payloads must deduplicate")
	}
}

func TestRecordEvent_RequiresProvider(t *testing.T) {
	svc := NewService(newFakeRepository())
	if _, _, err := svc.RecordEvent(context.Background(), EventInput{ProviderEventID: "evt_1"}); err == nil {
		t.Fatalf("expected error for missing provider")
	}
}

func TestMarkProcessed(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.MarkProcessed(ctx, 0, nil); err == nil {
		t.Fatalf("expected error for zero event id")
	}
	if err := svc.MarkProcessed(ctx, 7, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg, ok := repo.processed[7]; !ok || msg != "" {
		t.Fatalf("expected clean processed mark, got %q (ok=%t)", msg, ok)
	}
	if err := svc.MarkProcessed(ctx, 8, errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.processed[8] != "boom" {
		t.Fatalf("processing error not stored, got %q", repo.processed[8])
	}
}

func TestRecordAudit(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	err := svc.Record(context.Background(), credits.AuditEntry{
		UserID:      "u1",
		Action:      "add",
		Amount:      50,
		Description: "goodwill",
		Actor:       "admin@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.audits) != 1 {
		t.Fatalf("expected one audit row, got %d", len(repo.audits))
	}
	audit := repo.audits[0]
	if audit.AuditID == "" {
		t.Fatalf("audit id must be assigned")
	}
	if audit.UserID != "u1" || audit.Action != "add" || audit.Amount != 50 {
		t.Fatalf("unexpected audit row: %+v", audit)
	}
}
