package credits

import (
	"context"
	"errors"
	"time"

	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/plans"
)

var (
	// ErrCanceledUser is returned when a canceled subscriber tries to
	// self-service a credit reset. Canceled users must resubscribe.
	ErrCanceledUser = errors.New("credits: canceled subscription cannot be reset")

	// ErrInvalidAmount is returned for non-positive credit amounts.
	ErrInvalidAmount = errors.New("credits: amount must be positive")
)

// AuditEntry describes a manual credit mutation for the audit trail.
type AuditEntry struct {
	UserID      string
	Action      string
	Amount      int
	Description string
	Actor       string
}

// Auditor records credit mutations. Implementations must not fail the
// mutation itself; recording is best-effort from the caller's perspective.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Service implements the credit policy decisions: how many credits a user
// has, whether a deduction is allowed, and when the monthly free grant fires.
type Service struct {
	store ledger.Store
	table *plans.Table
	audit Auditor
	now   func() time.Time
}

// NewService creates a credit service over the given ledger store and plan
// table. auditor may be nil.
func NewService(store ledger.Store, table *plans.Table, auditor Auditor) *Service {
	return &Service{
		store: store,
		table: table,
		audit: auditor,
		now:   time.Now,
	}
}

// ResolveCredits returns the authoritative credit state for a user, lazily
// materializing a record when none exists. Every branch that misses a stored
// record writes one, so repeated calls converge to a stable value.
func (s *Service) ResolveCredits(ctx context.Context, userID string) (*ledger.CreditRecord, error) {
	now := s.now().UTC()

	rec, err := s.store.GetCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A record with a positive total is authoritative; only lastUpdate moves.
	if rec != nil && rec.Total > 0 {
		rec.LastUpdate = now
		if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Canceled but still inside the paid period: the plan allotment stays in
	// force until the period end passes.
	if canceledButStillPaid(sub, now) {
		synth := &ledger.CreditRecord{
			Total:           s.allotmentFor(sub),
			CanceledButPaid: true,
			LastUpdate:      now,
		}
		if rec != nil {
			synth.Used = rec.Used
			synth.MonthlyCreditsUsed = rec.MonthlyCreditsUsed
		}
		if err := s.store.SaveCredits(ctx, userID, synth); err != nil {
			return nil, err
		}
		return synth, nil
	}

	if !hasActivePaidPlan(sub) {
		// Legacy records carry the last grant date inline; honor it before
		// consulting the atomic claim marker.
		if rec != nil && sameMonth(rec.LastFreeCreditsDate, now) {
			return &ledger.CreditRecord{LastUpdate: now}, nil
		}
		claimed, err := s.store.ClaimFreeGrant(ctx, userID, now.Format("2006-01"))
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Monthly allotment already granted; no double-grants.
			return &ledger.CreditRecord{LastUpdate: now}, nil
		}
		grant := &ledger.CreditRecord{
			Total:               plans.FreeMonthlyCredits,
			ResetDate:           firstOfNextMonth(now),
			LastUpdate:          now,
			FreeUser:            true,
			LastFreeCreditsDate: now,
		}
		if err := s.store.SaveCredits(ctx, userID, grant); err != nil {
			return nil, err
		}
		return grant, nil
	}

	// Active paid subscriber with no stored record yet; the subscription
	// handlers own the grant, so report empty without persisting.
	return &ledger.CreditRecord{LastUpdate: now}, nil
}

// DeductCredits consumes amount credits. It returns false, leaving the record
// untouched, when amount exceeds the remaining balance.
func (s *Service) DeductCredits(ctx context.Context, userID string, amount int) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	rec, err := s.ResolveCredits(ctx, userID)
	if err != nil {
		return false, err
	}
	if !plans.IsUnlimited(rec.Total) && amount > rec.Remaining() {
		return false, nil
	}
	rec.Used += amount
	rec.MonthlyCreditsUsed += amount
	rec.LastUpdate = s.now().UTC()
	if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
		return false, err
	}
	return true, nil
}

// ResetCredits restores the free-tier allotment. Canceled subscribers may
// not reset; they must resubscribe.
func (s *Service) ResetCredits(ctx context.Context, userID, actor string) (int, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return 0, err
	}
	if sub != nil && (sub.Status == ledger.StatusCanceled || sub.SubscriptionCanceled) {
		return 0, ErrCanceledUser
	}

	now := s.now().UTC()
	rec := &ledger.CreditRecord{
		Total:      plans.FreeMonthlyCredits,
		ResetDate:  firstOfNextMonth(now),
		LastUpdate: now,
		FreeUser:   true,
	}
	if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
		return 0, err
	}
	s.recordAudit(ctx, AuditEntry{
		UserID:      userID,
		Action:      "reset",
		Amount:      plans.FreeMonthlyCredits,
		Description: "credits reset to free tier",
		Actor:       actor,
	})
	return plans.FreeMonthlyCredits, nil
}

// AddCredits grants additional credits on top of the current total. Used is
// left untouched.
func (s *Service) AddCredits(ctx context.Context, userID string, amount int, description, actor string) (*ledger.CreditRecord, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	rec, err := s.store.GetCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if rec == nil {
		rec = &ledger.CreditRecord{}
	}
	rec.Total += amount
	rec.LastUpdate = now
	if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditEntry{
		UserID:      userID,
		Action:      "add",
		Amount:      amount,
		Description: description,
		Actor:       actor,
	})
	return rec, nil
}

// GrantPlanCredits overwrites the credit total with the allotment for the
// given price, resetting usage. Subscription creation and plan changes are a
// hard credit reset, not a prorated blend.
func (s *Service) GrantPlanCredits(ctx context.Context, userID, priceID string) (*ledger.CreditRecord, error) {
	now := s.now().UTC()
	rec := &ledger.CreditRecord{
		Total:      s.table.CreditsForPrice(priceID),
		LastUpdate: now,
	}
	if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RevokeToFreeTier drops a user to the free allotment once their paid period
// has elapsed. Unlike ResetCredits this is the period-end process itself, so
// a canceled subscription is expected rather than an error.
func (s *Service) RevokeToFreeTier(ctx context.Context, userID string) (*ledger.CreditRecord, error) {
	now := s.now().UTC()
	rec := &ledger.CreditRecord{
		Total:      plans.FreeMonthlyCredits,
		ResetDate:  firstOfNextMonth(now),
		LastUpdate: now,
		FreeUser:   true,
	}
	if err := s.store.SaveCredits(ctx, userID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, entry)
}

func (s *Service) allotmentFor(sub *ledger.SubscriptionRecord) int {
	if sub == nil {
		return plans.FreeMonthlyCredits
	}
	if plan, ok := s.table.PlanForPrice(sub.PriceID); ok {
		return plans.CreditsFor(plan)
	}
	return plans.CreditsFor(plans.PlanForName(sub.Plan))
}

func canceledButStillPaid(sub *ledger.SubscriptionRecord, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.Status != ledger.StatusCanceling && sub.Status != ledger.StatusCanceled {
		return false
	}
	// An unknown period end is treated as still inside the paid period.
	return sub.PeriodEndDate.IsZero() || sub.PeriodEndDate.After(now)
}

func hasActivePaidPlan(sub *ledger.SubscriptionRecord) bool {
	return sub != nil && sub.Status == ledger.StatusActive && sub.PriceID != ""
}

func sameMonth(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	ty, tm, _ := t.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	return ty == ny && tm == nm
}

func firstOfNextMonth(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
