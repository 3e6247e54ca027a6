package plans

import (
	"strings"

	"github.com/auto-analyst/billing/internal/pkg/env"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanStandard   Plan = "standard"
	PlanEnterprise Plan = "enterprise"
)

// Credit allotments granted per billing cycle.
const (
	FreeMonthlyCredits    = 20
	StandardCredits       = 500
	EnterpriseCredits     = 2000
	DefaultUnlimitedTotal = 999999
)

// CreditsFor returns the per-cycle credit allotment for a plan.
func CreditsFor(plan Plan) int {
	switch plan {
	case PlanStandard:
		return StandardCredits
	case PlanEnterprise:
		return EnterpriseCredits
	default:
		return FreeMonthlyCredits
	}
}

// DisplayName returns the marketing name shown to users.
func DisplayName(plan Plan) string {
	switch plan {
	case PlanStandard:
		return "Standard"
	case PlanEnterprise:
		return "Enterprise"
	default:
		return "Free"
	}
}

// Table maps processor price IDs to internal plans. Price IDs are
// deployment-specific, so the table is built from the environment.
type Table struct {
	byPrice map[string]Plan
}

// NewTableFromEnv builds the price-id mapping from STRIPE_PRICE_* variables.
func NewTableFromEnv() *Table {
	t := &Table{byPrice: make(map[string]Plan)}
	t.register(env.GetEnv("STRIPE_PRICE_STANDARD_MONTHLY", ""), PlanStandard)
	t.register(env.GetEnv("STRIPE_PRICE_STANDARD_YEARLY", ""), PlanStandard)
	t.register(env.GetEnv("STRIPE_PRICE_ENTERPRISE_MONTHLY", ""), PlanEnterprise)
	t.register(env.GetEnv("STRIPE_PRICE_ENTERPRISE_YEARLY", ""), PlanEnterprise)
	return t
}

// NewTable builds a table from an explicit price-id mapping (used by tests
// and by deployments that configure prices outside the environment).
func NewTable(byPrice map[string]Plan) *Table {
	t := &Table{byPrice: make(map[string]Plan, len(byPrice))}
	for priceID, plan := range byPrice {
		t.register(priceID, plan)
	}
	return t
}

func (t *Table) register(priceID string, plan Plan) {
	if strings.TrimSpace(priceID) == "" {
		return
	}
	t.byPrice[priceID] = plan
}

// PlanForPrice resolves a processor price ID to an internal plan.
func (t *Table) PlanForPrice(priceID string) (Plan, bool) {
	plan, ok := t.byPrice[priceID]
	return plan, ok
}

// CreditsForPrice returns the allotment for a price ID, falling back to the
// free allotment for unmapped prices.
func (t *Table) CreditsForPrice(priceID string) int {
	if plan, ok := t.PlanForPrice(priceID); ok {
		return CreditsFor(plan)
	}
	return FreeMonthlyCredits
}

// PlanForName maps a processor product/plan display name to an internal plan.
// Kept as a fallback for ledger records that predate the price-id table and
// only carry the display name.
func PlanForName(name string) Plan {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "enterprise"):
		return PlanEnterprise
	case strings.Contains(n, "standard"):
		return PlanStandard
	default:
		return PlanFree
	}
}

// IsUnlimited reports whether a stored total is the unlimited sentinel.
// The substitution to a display value happens at the presentation boundary,
// never inside stored state.
func IsUnlimited(total int) bool {
	return total >= DefaultUnlimitedTotal
}
