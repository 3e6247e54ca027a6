package subscription

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/auto-analyst/billing/internal/pkg/credits"
	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/payments"
	"github.com/auto-analyst/billing/internal/pkg/plans"
)

var (
	// ErrNoSubscription is returned when a change/cancel operation targets a
	// user without a stored subscription.
	ErrNoSubscription = errors.New("subscription: no subscription on record")

	// ErrInvalidSetupIntent is returned when the referenced setup intent has
	// not succeeded or carries no payment method.
	ErrInvalidSetupIntent = errors.New("subscription: setup intent is not ready")
)

// processor-assigned subscription IDs carry this prefix; anything else is a
// legacy record predating processor integration.
const processorSubscriptionPrefix = "sub_"

// Service composes processor calls with ledger and credit updates for the
// subscription lifecycle.
type Service struct {
	processor payments.Processor
	store     ledger.Store
	credits   *credits.Service
	table     *plans.Table
	now       func() time.Time
}

// NewService creates a lifecycle service from its injected collaborators.
func NewService(processor payments.Processor, store ledger.Store, creditSvc *credits.Service, table *plans.Table) *Service {
	return &Service{
		processor: processor,
		store:     store,
		credits:   creditSvc,
		table:     table,
		now:       time.Now,
	}
}

// CreateCheckoutSession resolves the customer, validates an optional promo
// code against the target price, and opens a setup intent for card
// collection. No charge happens here; activation is a separate step.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, email, priceID, promoCode string) (*CheckoutSessionResult, error) {
	customer, err := s.processor.EnsureCustomer(ctx, email, userID)
	if err != nil {
		return nil, err
	}
	price, err := s.processor.GetPrice(ctx, priceID)
	if err != nil {
		return nil, err
	}
	product, err := s.processor.GetProduct(ctx, price.ProductID)
	if err != nil {
		return nil, err
	}

	var promoInfo *PromoCodeInfo
	var discountAmount int64
	if strings.TrimSpace(promoCode) != "" {
		eval, err := payments.ValidatePromoCode(ctx, s.processor, promoCode, price)
		if err != nil {
			return nil, err
		}
		discountAmount = eval.DiscountAmount
		promoInfo = &PromoCodeInfo{
			Code:              eval.Code,
			PromotionCodeID:   eval.PromotionCodeID,
			CouponID:          eval.CouponID,
			DiscountType:      eval.DiscountType,
			DiscountAmount:    eval.DiscountAmount,
			PercentOff:        eval.PercentOff,
			ProductName:       product.Name,
			BillingCycle:      price.Interval,
			AppliesToProducts: eval.AppliesToProducts,
			AppliesToPrices:   eval.AppliesToPrices,
		}
	}

	metadata := map[string]string{
		"userId":    userID,
		"priceId":   priceID,
		"productId": price.ProductID,
	}
	if promoInfo != nil {
		metadata["promotionCode"] = promoInfo.PromotionCodeID
	}
	intent, err := s.processor.CreateSetupIntent(ctx, customer.ID, metadata)
	if err != nil {
		return nil, err
	}

	finalAmount := price.UnitAmount - discountAmount
	if finalAmount < 0 {
		finalAmount = 0
	}
	return &CheckoutSessionResult{
		ClientSecret:   intent.ClientSecret,
		OriginalAmount: price.UnitAmount,
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
		PromoCodeInfo:  promoInfo,
	}, nil
}

// CreateSubscription activates a subscription from a succeeded setup intent.
// Any previous subscription record for the user is discarded wholesale so no
// stale cross-plan fields linger, and credits are overwritten with the new
// plan's allotment.
func (s *Service) CreateSubscription(ctx context.Context, userID, setupIntentID, priceID string, promo *PromoCodeInfo) (*Result, error) {
	intent, err := s.processor.GetSetupIntent(ctx, setupIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != "succeeded" || intent.PaymentMethodID == "" {
		return nil, ErrInvalidSetupIntent
	}

	in := payments.CreateSubscriptionInput{
		CustomerID:      intent.CustomerID,
		PriceID:         priceID,
		PaymentMethodID: intent.PaymentMethodID,
		Metadata:        map[string]string{"userId": userID},
	}
	if promo != nil && strings.TrimSpace(promo.Code) != "" {
		// Re-resolve by code string so an expired code cannot be replayed
		// from a stale checkout. Restriction checks already ran at checkout.
		pc, err := s.processor.FindPromotionCode(ctx, promo.Code)
		if err != nil {
			return nil, err
		}
		if pc != nil {
			in.PromotionCodeID = pc.ID
		} else if coupon, err := s.processor.GetCoupon(ctx, promo.Code); err == nil && coupon != nil {
			in.CouponID = coupon.ID
		}
	}

	sub, err := s.processor.CreateSubscription(ctx, in)
	if err != nil {
		return nil, err
	}

	// Clean slate: never merge into a previous plan's record.
	if err := s.store.DeleteSubscription(ctx, userID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := &ledger.SubscriptionRecord{
		ID:                   sub.ID,
		StripeSubscriptionID: sub.ID,
		Status:               statusFromProcessor(sub.Status),
		PriceID:              priceID,
		Plan:                 s.planName(priceID),
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		LastUpdated:          now,
	}
	if err := s.store.SaveSubscription(ctx, userID, rec); err != nil {
		return nil, err
	}
	if _, err := s.credits.GrantPlanCredits(ctx, userID, priceID); err != nil {
		return nil, err
	}

	return &Result{SubscriptionID: sub.ID, Status: rec.Status}, nil
}

// ChangeSubscription swaps the subscription's single billing item to a new
// price. Invoice proration is the processor's job; locally a plan change is a
// hard credit reset to the new allotment.
func (s *Service) ChangeSubscription(ctx context.Context, userID, newPriceID string) (*Result, error) {
	local, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := storedSubscriptionID(local)
	if subID == "" {
		return nil, ErrNoSubscription
	}

	remote, err := s.processor.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	updated, err := s.processor.UpdateSubscriptionPrice(ctx, subID, remote.ItemID, newPriceID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	local.PriceID = newPriceID
	local.Plan = s.planName(newPriceID)
	local.Status = statusFromProcessor(updated.Status)
	local.CurrentPeriodStart = updated.CurrentPeriodStart
	local.CurrentPeriodEnd = updated.CurrentPeriodEnd
	local.CancelAtPeriodEnd = updated.CancelAtPeriodEnd
	local.LastUpdated = now
	if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
		return nil, err
	}
	if _, err := s.credits.GrantPlanCredits(ctx, userID, newPriceID); err != nil {
		return nil, err
	}

	return &Result{SubscriptionID: updated.ID, Status: local.Status}, nil
}

// CancelSubscription requests cancellation. Processor-managed subscriptions
// stay active until period end; legacy records cancel locally right away.
// Credits are never touched here; revocation happens when the period-end
// webhook arrives.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*Result, error) {
	local, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := storedSubscriptionID(local)
	if subID == "" {
		return nil, ErrNoSubscription
	}

	now := s.now().UTC()

	if !strings.HasPrefix(subID, processorSubscriptionPrefix) {
		// Legacy subscription: nothing to cancel remotely and no
		// processor-tracked period end to honor.
		local.Status = ledger.StatusCanceled
		local.SubscriptionCanceled = true
		local.CanceledAt = now
		local.LastUpdated = now
		if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
			return nil, err
		}
		return &Result{
			SubscriptionID:        subID,
			Status:                ledger.StatusCanceled,
			Message:               "Subscription canceled",
			ImmediateCancellation: true,
		}, nil
	}

	updated, err := s.processor.CancelAtPeriodEnd(ctx, subID)
	if err != nil {
		if errors.Is(err, payments.ErrResourceGone) {
			// The processor has forgotten this subscription; the local
			// record must not keep claiming one.
			log.Printf("subscription %s missing at processor for user %s, clearing local record", subID, userID)
			local.ID = ""
			local.StripeSubscriptionID = ""
			local.Status = ledger.StatusInactive
			local.LastUpdated = now
			if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
				return nil, err
			}
			return &Result{
				Status:  ledger.StatusInactive,
				Message: "Subscription no longer exists; local record cleared",
			}, nil
		}
		return nil, err
	}

	local.Status = ledger.StatusCanceling
	local.CancelAtPeriodEnd = true
	local.CanceledAt = now
	local.PeriodEndDate = updated.CurrentPeriodEnd
	local.LastUpdated = now
	if err := s.store.SaveSubscription(ctx, userID, local); err != nil {
		return nil, err
	}
	return &Result{
		SubscriptionID: subID,
		Status:         ledger.StatusCanceling,
		Message:        "Subscription will cancel at period end",
		PeriodEndDate:  updated.CurrentPeriodEnd.Format(time.RFC3339),
	}, nil
}

func (s *Service) planName(priceID string) string {
	if plan, ok := s.table.PlanForPrice(priceID); ok {
		return plans.DisplayName(plan)
	}
	return plans.DisplayName(plans.PlanFree)
}

func storedSubscriptionID(rec *ledger.SubscriptionRecord) string {
	if rec == nil {
		return ""
	}
	if rec.StripeSubscriptionID != "" {
		return rec.StripeSubscriptionID
	}
	return rec.ID
}

// statusFromProcessor collapses the processor's status set onto the domain's
// four states.
func statusFromProcessor(status string) string {
	switch status {
	case "active", "trialing", "past_due":
		return ledger.StatusActive
	case "canceled":
		return ledger.StatusCanceled
	default:
		return ledger.StatusInactive
	}
}
