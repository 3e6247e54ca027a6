package subscription

// PromoCodeInfo is the discount summary returned from checkout and echoed
// back verbatim on subscription creation. The engine re-resolves the code's
// existence at creation time but trusts the echoed summary for bookkeeping.
type PromoCodeInfo struct {
	Code              string   `json:"code"`
	PromotionCodeID   string   `json:"validatedPromotionCode,omitempty"`
	CouponID          string   `json:"couponId,omitempty"`
	DiscountType      string   `json:"discountType,omitempty"`
	DiscountAmount    int64    `json:"discountAmount"`
	PercentOff        float64  `json:"percentOff,omitempty"`
	ProductName       string   `json:"productName,omitempty"`
	BillingCycle      string   `json:"billingCycle,omitempty"`
	AppliesToProducts []string `json:"appliesToProducts,omitempty"`
	AppliesToPrices   []string `json:"appliesToPrices,omitempty"`
}

// CheckoutSessionResult is returned to the caller for rendering; the
// PromoCodeInfo is expected back unchanged on subscription creation.
type CheckoutSessionResult struct {
	ClientSecret   string         `json:"clientSecret"`
	OriginalAmount int64          `json:"originalAmount"`
	DiscountAmount int64          `json:"discountAmount"`
	FinalAmount    int64          `json:"finalAmount"`
	PromoCodeInfo  *PromoCodeInfo `json:"promoCodeInfo,omitempty"`
}

// Result is the common outcome of the lifecycle mutations.
type Result struct {
	SubscriptionID        string `json:"subscriptionId,omitempty"`
	Status                string `json:"status,omitempty"`
	Message               string `json:"message,omitempty"`
	PeriodEndDate         string `json:"periodEndDate,omitempty"`
	ImmediateCancellation bool   `json:"immediateCancellation,omitempty"`
}
