package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PromotionError is a user-actionable rejection of a promo code. Handlers
// surface the reason verbatim with a 400.
type PromotionError struct {
	Reason string
}

func (e *PromotionError) Error() string {
	return e.Reason
}

// IsPromotionError reports whether err is a promo-code rejection as opposed
// to a failed remote call.
func IsPromotionError(err error) bool {
	var pe *PromotionError
	return errors.As(err, &pe)
}

// PromoEvaluation is the outcome of validating a promo code against a price.
// It is computed per checkout attempt and never persisted.
type PromoEvaluation struct {
	Code              string   `json:"code"`
	PromotionCodeID   string   `json:"validatedPromotionCode,omitempty"`
	CouponID          string   `json:"couponId"`
	DiscountType      string   `json:"discountType"`
	DiscountAmount    int64    `json:"discountAmount"`
	PercentOff        float64  `json:"percentOff,omitempty"`
	AppliesToProducts []string `json:"appliesToProducts,omitempty"`
	AppliesToPrices   []string `json:"appliesToPrices,omitempty"`
}

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)

// ValidatePromoCode resolves a promo code and checks it against the target
// price. Codes resolve first as promotion codes, then directly as coupon IDs.
// Restriction order: product allow-list, then price list (where a present but
// empty price list rejects every price). A discount that computes to zero on
// this price is rejected as not applicable.
func ValidatePromoCode(ctx context.Context, processor Processor, code string, price *Price) (*PromoEvaluation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &PromotionError{Reason: "No promo code provided"}
	}

	var promotionCodeID, couponID string
	pc, err := processor.FindPromotionCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		promotionCodeID = pc.ID
		couponID = pc.CouponID
	} else {
		// Some codes are coupon IDs themselves.
		coupon, err := processor.GetCoupon(ctx, code)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, &PromotionError{Reason: fmt.Sprintf("Promo code %q is invalid or expired", code)}
		}
		couponID = coupon.ID
	}

	coupon, err := processor.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, &PromotionError{Reason: fmt.Sprintf("Promo code %q is invalid or expired", code)}
	}

	if len(coupon.AppliesToProducts) > 0 && !contains(coupon.AppliesToProducts, price.ProductID) {
		return nil, &PromotionError{
			Reason: fmt.Sprintf("Promo code %q only applies to: %s", code, allowedProductNames(ctx, processor, coupon.AppliesToProducts)),
		}
	}

	if coupon.AppliesToPrices != nil {
		if len(coupon.AppliesToPrices) == 0 {
			// Explicit deny-all: a present but empty price list qualifies
			// no purchase.
			return nil, &PromotionError{Reason: fmt.Sprintf("Promo code %q is not applicable to any plan", code)}
		}
		if !contains(coupon.AppliesToPrices, price.ID) {
			return nil, &PromotionError{Reason: fmt.Sprintf("Promo code %q does not apply to the selected plan", code)}
		}
	}

	eval := &PromoEvaluation{
		Code:              code,
		PromotionCodeID:   promotionCodeID,
		CouponID:          coupon.ID,
		AppliesToProducts: coupon.AppliesToProducts,
		AppliesToPrices:   coupon.AppliesToPrices,
	}
	if coupon.AmountOff > 0 {
		eval.DiscountType = DiscountTypeAmount
		eval.DiscountAmount = coupon.AmountOff
	} else {
		eval.DiscountType = DiscountTypePercentage
		eval.PercentOff = coupon.PercentOff
		eval.DiscountAmount = int64(math.Round(float64(price.UnitAmount) * coupon.PercentOff / 100))
	}
	if eval.DiscountAmount == 0 {
		// A coupon that yields no savings on this price does not apply.
		return nil, &PromotionError{Reason: fmt.Sprintf("Promo code %q does not reduce the price of this plan", code)}
	}
	return eval, nil
}

// allowedProductNames resolves product IDs to display names for rejection
// messages. Lookup failures fall back to the raw ID rather than failing the
// validation.
func allowedProductNames(ctx context.Context, processor Processor, productIDs []string) string {
	names := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if product, err := processor.GetProduct(ctx, id); err == nil && product != nil && product.Name != "" {
			names = append(names, product.Name)
			continue
		}
		names = append(names, id)
	}
	return strings.Join(names, ", ")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
