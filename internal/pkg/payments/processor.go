package payments

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured is returned when no processor credentials are present.
	// Handlers surface this as a 500 with a generic message.
	ErrNotConfigured = errors.New("payments: processor is not configured")

	// ErrResourceGone maps the processor's resource_missing error. Callers
	// self-heal local state instead of surfacing a hard failure.
	ErrResourceGone = errors.New("payments: resource no longer exists at the processor")
)

// Customer is the processor-side billing identity for a user.
type Customer struct {
	ID    string
	Email string
}

// Price is a purchasable price with its owning product reference.
type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
}

// Product carries the display name used in promo error messages and
// checkout summaries.
type Product struct {
	ID   string
	Name string
}

// PromotionCode is an active, user-facing promo code mapped to a coupon.
type PromotionCode struct {
	ID       string
	Code     string
	CouponID string
}

// Coupon is the normalized discount rule. Restriction semantics:
// AppliesToProducts nil means unrestricted; non-empty is an allow-list.
// AppliesToPrices nil means unrestricted; present-but-empty is an explicit
// deny-all and rejects every price.
type Coupon struct {
	ID                string
	AmountOff         int64
	PercentOff        float64
	AppliesToProducts []string
	AppliesToPrices   []string
}

// SetupIntent represents collected payment-method state prior to
// subscription activation.
type SetupIntent struct {
	ID              string
	Status          string
	ClientSecret    string
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// Subscription is the normalized processor subscription. Metadata carries
// the userId stamped at creation time, which webhook processing relies on.
type Subscription struct {
	ID                 string
	Status             string
	ItemID             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// CreateSubscriptionInput collects everything a subscription-creation call
// needs. Exactly one of PromotionCodeID/CouponID may be set.
type CreateSubscriptionInput struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	PromotionCodeID string
	CouponID        string
	Metadata        map[string]string
}

// Processor is the narrow payment-processor interface the lifecycle handlers
// and the promotion validator depend on. Lookup methods return (nil, nil)
// when the resource does not exist.
type Processor interface {
	EnsureCustomer(ctx context.Context, email, userID string) (*Customer, error)
	GetPrice(ctx context.Context, id string) (*Price, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	FindPromotionCode(ctx context.Context, code string) (*PromotionCode, error)
	GetCoupon(ctx context.Context, id string) (*Coupon, error)
	CreateSetupIntent(ctx context.Context, customerID string, metadata map[string]string) (*SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error)
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
}
