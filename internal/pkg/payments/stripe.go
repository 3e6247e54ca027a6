package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/auto-analyst/billing/internal/pkg/env"
)

// metadata key carrying a comma-separated price allow-list on a coupon.
// An empty value is an explicit deny-all, not a no-op.
const couponPricesMetadataKey = "applies_to_prices"

// StripeProcessor implements Processor on the Stripe API. It is constructed
// explicitly and injected into services; there is no package-level client.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessorFromEnv builds a Stripe-backed processor from
// STRIPE_SECRET_KEY. Missing credentials yield ErrNotConfigured so callers
// can distinguish "unconfigured" from a failed remote call.
func NewStripeProcessorFromEnv() (*StripeProcessor, error) {
	key := strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if key == "" {
		return nil, ErrNotConfigured
	}
	return NewStripeProcessor(key), nil
}

// NewStripeProcessor builds a processor for the given secret key.
func NewStripeProcessor(key string) *StripeProcessor {
	return &StripeProcessor{api: client.New(key, nil)}
}

func (p *StripeProcessor) EnsureCustomer(ctx context.Context, email, userID string) (*Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	iter := p.api.Customers.List(listParams)
	if iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}

	createParams := &stripe.CustomerParams{Email: stripe.String(email)}
	createParams.Context = ctx
	createParams.AddMetadata("userId", userID)
	c, err := p.api.Customers.New(createParams)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (p *StripeProcessor) GetPrice(ctx context.Context, id string) (*Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	pr, err := p.api.Prices.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	out := &Price{
		ID:         pr.ID,
		UnitAmount: pr.UnitAmount,
		Currency:   string(pr.Currency),
	}
	if pr.Product != nil {
		out.ProductID = pr.Product.ID
	}
	if pr.Recurring != nil {
		out.Interval = string(pr.Recurring.Interval)
	}
	return out, nil
}

func (p *StripeProcessor) GetProduct(ctx context.Context, id string) (*Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	prod, err := p.api.Products.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &Product{ID: prod.ID, Name: prod.Name}, nil
}

func (p *StripeProcessor) FindPromotionCode(ctx context.Context, code string) (*PromotionCode, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := p.api.PromotionCodes.List(params)
	if iter.Next() {
		pc := iter.PromotionCode()
		out := &PromotionCode{ID: pc.ID, Code: pc.Code}
		if pc.Coupon != nil {
			out.CouponID = pc.Coupon.ID
		}
		return out, nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}
	return nil, nil
}

func (p *StripeProcessor) GetCoupon(ctx context.Context, id string) (*Coupon, error) {
	params := &stripe.CouponParams{}
	params.Context = ctx
	params.AddExpand("applies_to")
	c, err := p.api.Coupons.Get(id, params)
	if err != nil {
		mapped := mapStripeError(err)
		if errors.Is(mapped, ErrResourceGone) {
			return nil, nil
		}
		return nil, mapped
	}
	out := &Coupon{
		ID:         c.ID,
		AmountOff:  c.AmountOff,
		PercentOff: c.PercentOff,
	}
	if c.AppliesTo != nil && len(c.AppliesTo.Products) > 0 {
		out.AppliesToProducts = append([]string(nil), c.AppliesTo.Products...)
	}
	if raw, ok := c.Metadata[couponPricesMetadataKey]; ok {
		out.AppliesToPrices = splitPriceList(raw)
	}
	return out, nil
}

func (p *StripeProcessor) CreateSetupIntent(ctx context.Context, customerID string, metadata map[string]string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
		Usage:    stripe.String("off_session"),
		AutomaticPaymentMethods: &stripe.SetupIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	si, err := p.api.SetupIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return normalizeSetupIntent(si), nil
}

func (p *StripeProcessor) GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx
	si, err := p.api.SetupIntents.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return normalizeSetupIntent(si), nil
}

func (p *StripeProcessor) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(in.PriceID)},
		},
	}
	params.Context = ctx
	if in.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(in.PaymentMethodID)
	}
	if in.PromotionCodeID != "" {
		params.PromotionCode = stripe.String(in.PromotionCodeID)
	} else if in.CouponID != "" {
		params.Coupon = stripe.String(in.CouponID)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return NormalizeSubscription(sub), nil
}

func (p *StripeProcessor) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return NormalizeSubscription(sub), nil
}

func (p *StripeProcessor) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return NormalizeSubscription(sub), nil
}

func (p *StripeProcessor) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return NormalizeSubscription(sub), nil
}

func normalizeSetupIntent(si *stripe.SetupIntent) *SetupIntent {
	out := &SetupIntent{
		ID:           si.ID,
		Status:       string(si.Status),
		ClientSecret: si.ClientSecret,
		Metadata:     si.Metadata,
	}
	if si.Customer != nil {
		out.CustomerID = si.Customer.ID
	}
	if si.PaymentMethod != nil {
		out.PaymentMethodID = si.PaymentMethod.ID
	}
	return out
}

// NormalizeSubscription maps a raw Stripe subscription (API response or
// webhook payload) onto the domain type.
func NormalizeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.CurrentPeriodStart != 0 {
		out.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if sub.CurrentPeriodEnd != 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}

func splitPriceList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		// Present but empty: deny-all.
		return []string{}
	}
	parts := strings.Split(raw, ",")
	prices := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			prices = append(prices, v)
		}
	}
	return prices
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return ErrResourceGone
	}
	return err
}
