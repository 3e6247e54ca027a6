package ledger

import (
	"testing"
	"time"
)

func TestCreditRecordFieldsRoundTrip(t *testing.T) {
	reset := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)

	rec := &CreditRecord{
		Total:               500,
		Used:                123,
		ResetDate:           reset,
		LastUpdate:          updated,
		FreeUser:            false,
		LastFreeCreditsDate: updated,
		CanceledButPaid:     true,
		MonthlyCreditsUsed:  42,
	}

	got := creditRecordFromFields(rec.fields())
	if *got != *rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestCreditRecordZeroTimes(t *testing.T) {
	rec := &CreditRecord{Total: 20}
	fields := rec.fields()
	if fields["resetDate"] != "" || fields["lastFreeCreditsDate"] != "" {
		t.Fatalf("zero times must encode as empty strings, got %q / %q",
			fields["resetDate"], fields["lastFreeCreditsDate"])
	}
	got := creditRecordFromFields(fields)
	if !got.ResetDate.IsZero() || !got.LastFreeCreditsDate.IsZero() {
		t.Fatalf("empty strings must decode to zero times")
	}
}

func TestCreditRecordDecodeGarbage(t *testing.T) {
	got := creditRecordFromFields(map[string]string{
		"total":     "not-a-number",
		"resetDate": "yesterdayish",
		"freeUser":  "yes",
	})
	if got.Total != 0 || !got.ResetDate.IsZero() || got.FreeUser {
		t.Fatalf("garbage fields must decode to zero values, got %+v", got)
	}
}

func TestSubscriptionRecordFieldsRoundTrip(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rec := &SubscriptionRecord{
		ID:                   "sub_abc123",
		StripeSubscriptionID: "sub_abc123",
		Status:               StatusCanceling,
		PriceID:              "price_std",
		Plan:                 "Standard",
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    true,
		CanceledAt:           start.AddDate(0, 0, 10),
		PeriodEndDate:        end,
		LastUpdated:          start.AddDate(0, 0, 10),
		SubscriptionCanceled: false,
	}

	got := subscriptionRecordFromFields(rec.fields())
	if *got != *rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		total, used, want int
	}{
		{total: 500, used: 120, want: 380},
		{total: 20, used: 20, want: 0},
		{total: 20, used: 35, want: 0},
		{total: 0, used: 0, want: 0},
	}

	for _, tt := range tests {
		rec := &CreditRecord{Total: tt.total, Used: tt.used}
		if got := rec.Remaining(); got != tt.want {
			t.Fatalf("Remaining(total=%d, used=%d) = %d, want %d", tt.total, tt.used, got, tt.want)
		}
	}
}
