package subscription

import (
	"context"
	"log"

	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/payments"
)

// SyncFromProcessor applies subscription state reported by a processor
// webhook. This is the period-end process that owns the canceling → canceled
// transition and the credit revocation that goes with it; the request
// handlers never touch credits on cancellation.
func (s *Service) SyncFromProcessor(ctx context.Context, userID string, remote *payments.Subscription) error {
	now := s.now().UTC()

	local, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if local == nil {
		local = &ledger.SubscriptionRecord{
			ID:                   remote.ID,
			StripeSubscriptionID: remote.ID,
			PriceID:              remote.PriceID,
			Plan:                 s.planName(remote.PriceID),
		}
	}

	status := statusFromProcessor(remote.Status)
	periodElapsed := remote.CancelAtPeriodEnd && !remote.CurrentPeriodEnd.IsZero() && remote.CurrentPeriodEnd.Before(now)
	if status == ledger.StatusActive && remote.CancelAtPeriodEnd {
		status = ledger.StatusCanceling
	}
	if remote.Status == "canceled" || periodElapsed {
		status = ledger.StatusCanceled
	}

	local.Status = status
	local.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	local.CurrentPeriodStart = remote.CurrentPeriodStart
	local.CurrentPeriodEnd = remote.CurrentPeriodEnd
	if remote.CancelAtPeriodEnd {
		local.PeriodEndDate = remote.CurrentPeriodEnd
	}
	if remote.PriceID != "" && remote.PriceID != local.PriceID {
		local.PriceID = remote.PriceID
		local.Plan = s.planName(remote.PriceID)
	}
	local.LastUpdated = now
	if status == ledger.StatusCanceled {
		local.SubscriptionCanceled = true
		local.CanceledAt = now
	}
	if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
		return err
	}

	if status == ledger.StatusCanceled {
		if _, err := s.credits.RevokeToFreeTier(ctx, userID); err != nil {
			return err
		}
		log.Printf("subscription %s for user %s reached period end, credits reverted to free tier", remote.ID, userID)
	}
	return nil
}

// HandleDeleted processes the processor's subscription-deleted event: the
// subscription is gone for good and the user drops to the free tier.
func (s *Service) HandleDeleted(ctx context.Context, userID string) error {
	now := s.now().UTC()

	local, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if local == nil {
		local = &ledger.SubscriptionRecord{}
	}
	local.Status = ledger.StatusCanceled
	local.SubscriptionCanceled = true
	local.CanceledAt = now
	local.LastUpdated = now
	if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
		return err
	}
	_, err = s.credits.RevokeToFreeTier(ctx, userID)
	return err
}

// HandleRenewal processes a paid renewal invoice: the period boundaries move
// forward and the plan allotment is granted anew for the fresh cycle.
func (s *Service) HandleRenewal(ctx context.Context, userID string, remote *payments.Subscription) error {
	local, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if local == nil {
		// Renewal for a subscription the ledger never saw; treat it as a
		// full sync instead.
		return s.SyncFromProcessor(ctx, userID, remote)
	}

	local.Status = statusFromProcessor(remote.Status)
	local.CurrentPeriodStart = remote.CurrentPeriodStart
	local.CurrentPeriodEnd = remote.CurrentPeriodEnd
	local.LastUpdated = s.now().UTC()
	if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
		return err
	}
	_, err = s.credits.GrantPlanCredits(ctx, userID, local.PriceID)
	return err
}
