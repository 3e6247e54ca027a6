package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/payments"
	"github.com/auto-analyst/billing/internal/pkg/plans"
)

func TestSyncFromProcessor_CancelScheduled(t *testing.T) {
	store := newFakeStore()
	store.subs["u1"] = &ledger.SubscriptionRecord{
		ID:                   "sub_live1",
		StripeSubscriptionID: "sub_live1",
		Status:               ledger.StatusActive,
		PriceID:              "price_std",
	}
	store.credits["u1"] = &ledger.CreditRecord{Total: plans.StandardCredits, Used: 50}
	svc := newTestService(newFakeProcessor(), store)

	periodEnd := testNow.AddDate(0, 0, 14)
	err := svc.SyncFromProcessor(context.Background(), "u1", &payments.Subscription{
		ID:                "sub_live1",
		Status:            "active",
		PriceID:           "price_std",
		CurrentPeriodEnd:  periodEnd,
		CancelAtPeriodEnd: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.subs["u1"]
	if rec.Status != ledger.StatusCanceling || !rec.PeriodEndDate.Equal(periodEnd) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if got := store.credits["u1"]; got.Total != plans.StandardCredits || got.Used != 50 {
		t.Fatalf("credits must survive a scheduled cancel, got %+v", got)
	}
}

func TestSyncFromProcessor_PeriodElapsedRevokesCredits(t *testing.T) {
	store := newFakeStore()
	store.subs["u1"] = &ledger.SubscriptionRecord{
		ID:                   "sub_live1",
		StripeSubscriptionID: "sub_live1",
		Status:               ledger.StatusCanceling,
		PriceID:              "price_std",
	}
	store.credits["u1"] = &ledger.CreditRecord{Total: plans.StandardCredits, Used: 480}
	svc := newTestService(newFakeProcessor(), store)

	err := svc.SyncFromProcessor(context.Background(), "u1", &payments.Subscription{
		ID:                "sub_live1",
		Status:            "active",
		PriceID:           "price_std",
		CurrentPeriodEnd:  testNow.AddDate(0, 0, -1),
		CancelAtPeriodEnd: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.subs["u1"]
	if rec.Status != ledger.StatusCanceled || !rec.SubscriptionCanceled {
		t.Fatalf("elapsed period must finalize the cancel, got %+v", rec)
	}
	got := store.credits["u1"]
	if got.Total != plans.FreeMonthlyCredits || !got.FreeUser {
		t.Fatalf("credits must drop to the free tier, got %+v", got)
	}
}

func TestSyncFromProcessor_UnknownSubscription(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(newFakeProcessor(), store)

	err := svc.SyncFromProcessor(context.Background(), "u1", &payments.Subscription{
		ID:      "sub_fresh1",
		Status:  "active",
		PriceID: "price_ent",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.subs["u1"]
	if rec == nil || rec.ID != "sub_fresh1" || rec.Status != ledger.StatusActive {
		t.Fatalf("sync must materialize a record, got %+v", rec)
	}
	if rec.Plan != "Enterprise" {
		t.Fatalf("plan not resolved from price, got %q", rec.Plan)
	}
}

func TestHandleDeleted(t *testing.T) {
	store := newFakeStore()
	store.subs["u1"] = &ledger.SubscriptionRecord{
		ID:     "sub_live1",
		Status: ledger.StatusCanceling,
	}
	store.credits["u1"] = &ledger.CreditRecord{Total: plans.EnterpriseCredits, Used: 10}
	svc := newTestService(newFakeProcessor(), store)

	if err := svc.HandleDeleted(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.subs["u1"]
	if rec.Status != ledger.StatusCanceled || !rec.SubscriptionCanceled || !rec.CanceledAt.Equal(testNow) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if got := store.credits["u1"]; got.Total != plans.FreeMonthlyCredits {
		t.Fatalf("deletion must revoke to free tier, got %+v", got)
	}
}

func TestHandleRenewal(t *testing.T) {
	store := newFakeStore()
	store.subs["u1"] = &ledger.SubscriptionRecord{
		ID:                 "sub_live1",
		Status:             ledger.StatusActive,
		PriceID:            "price_std",
		CurrentPeriodStart: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	store.credits["u1"] = &ledger.CreditRecord{Total: plans.StandardCredits, Used: 499}
	svc := newTestService(newFakeProcessor(), store)

	newStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	err := svc.HandleRenewal(context.Background(), "u1", &payments.Subscription{
		ID:                 "sub_live1",
		Status:             "active",
		CurrentPeriodStart: newStart,
		CurrentPeriodEnd:   newEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.subs["u1"]
	if !rec.CurrentPeriodStart.Equal(newStart) || !rec.CurrentPeriodEnd.Equal(newEnd) {
		t.Fatalf("period boundaries not advanced: %+v", rec)
	}
	got := store.credits["u1"]
	if got.Total != plans.StandardCredits || got.Used != 0 {
		t.Fatalf("renewal must grant a fresh allotment, got %+v", got)
	}
}

func TestHandleRenewal_NoLocalRecordFallsBackToSync(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(newFakeProcessor(), store)

	err := svc.HandleRenewal(context.Background(), "u1", &payments.Subscription{
		ID:      "sub_live1",
		Status:  "active",
		PriceID: "price_std",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec := store.subs["u1"]; rec == nil || rec.ID != "sub_live1" {
		t.Fatalf("fallback sync must materialize a record, got %+v", rec)
	}
}
