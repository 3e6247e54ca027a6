package ledger

import (
	"strconv"
	"time"
)

// Subscription status values as stored in the ledger. These are a deliberate
// simplification of the processor's richer status set.
const (
	StatusActive    = "active"
	StatusCanceling = "canceling"
	StatusCanceled  = "canceled"
	StatusInactive  = "inactive"
)

// CreditRecord is the per-user credit state for the current billing cycle.
// The underlying store keeps every field as a string; this type is the only
// place where that encoding is visible.
type CreditRecord struct {
	Total               int
	Used                int
	ResetDate           time.Time
	LastUpdate          time.Time
	FreeUser            bool
	LastFreeCreditsDate time.Time
	CanceledButPaid     bool
	MonthlyCreditsUsed  int
}

// Remaining returns the credits still available this cycle.
func (r *CreditRecord) Remaining() int {
	remaining := r.Total - r.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubscriptionRecord mirrors the processor subscription state the ledger
// tracks per user. A missing record means "no active plan".
type SubscriptionRecord struct {
	ID                   string
	StripeSubscriptionID string
	Status               string
	PriceID              string
	Plan                 string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           time.Time
	PeriodEndDate        time.Time
	LastUpdated          time.Time
	SubscriptionCanceled bool
}

func (r *CreditRecord) fields() map[string]string {
	return map[string]string{
		"total":               strconv.Itoa(r.Total),
		"used":                strconv.Itoa(r.Used),
		"resetDate":           encodeTime(r.ResetDate),
		"lastUpdate":          encodeTime(r.LastUpdate),
		"freeUser":            strconv.FormatBool(r.FreeUser),
		"lastFreeCreditsDate": encodeTime(r.LastFreeCreditsDate),
		"canceledButPaid":     strconv.FormatBool(r.CanceledButPaid),
		"monthlyCreditsUsed":  strconv.Itoa(r.MonthlyCreditsUsed),
	}
}

func creditRecordFromFields(fields map[string]string) *CreditRecord {
	return &CreditRecord{
		Total:               parseInt(fields["total"]),
		Used:                parseInt(fields["used"]),
		ResetDate:           parseTime(fields["resetDate"]),
		LastUpdate:          parseTime(fields["lastUpdate"]),
		FreeUser:            fields["freeUser"] == "true",
		LastFreeCreditsDate: parseTime(fields["lastFreeCreditsDate"]),
		CanceledButPaid:     fields["canceledButPaid"] == "true",
		MonthlyCreditsUsed:  parseInt(fields["monthlyCreditsUsed"]),
	}
}

func (r *SubscriptionRecord) fields() map[string]string {
	return map[string]string{
		"id":                   r.ID,
		"stripeSubscriptionId": r.StripeSubscriptionID,
		"status":               r.Status,
		"priceId":              r.PriceID,
		"plan":                 r.Plan,
		"current_period_start": encodeTime(r.CurrentPeriodStart),
		"current_period_end":   encodeTime(r.CurrentPeriodEnd),
		"cancel_at_period_end": strconv.FormatBool(r.CancelAtPeriodEnd),
		"canceledAt":           encodeTime(r.CanceledAt),
		"periodEndDate":        encodeTime(r.PeriodEndDate),
		"lastUpdated":          encodeTime(r.LastUpdated),
		"subscriptionCanceled": strconv.FormatBool(r.SubscriptionCanceled),
	}
}

func subscriptionRecordFromFields(fields map[string]string) *SubscriptionRecord {
	return &SubscriptionRecord{
		ID:                   fields["id"],
		StripeSubscriptionID: fields["stripeSubscriptionId"],
		Status:               fields["status"],
		PriceID:              fields["priceId"],
		Plan:                 fields["plan"],
		CurrentPeriodStart:   parseTime(fields["current_period_start"]),
		CurrentPeriodEnd:     parseTime(fields["current_period_end"]),
		CancelAtPeriodEnd:    fields["cancel_at_period_end"] == "true",
		CanceledAt:           parseTime(fields["canceledAt"]),
		PeriodEndDate:        parseTime(fields["periodEndDate"]),
		LastUpdated:          parseTime(fields["lastUpdated"]),
		SubscriptionCanceled: fields["subscriptionCanceled"] == "true",
	}
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseInt(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
