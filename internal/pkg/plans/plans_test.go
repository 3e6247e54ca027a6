package plans

import "testing"

func TestCreditsFor(t *testing.T) {
	tests := []struct {
		in   Plan
		want int
	}{
		{in: PlanFree, want: FreeMonthlyCredits},
		{in: PlanStandard, want: StandardCredits},
		{in: PlanEnterprise, want: EnterpriseCredits},
		{in: Plan("unknown"), want: FreeMonthlyCredits},
	}

	for _, tt := range tests {
		if got := CreditsFor(tt.in); got != tt.want {
			t.Fatalf("CreditsFor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPlanForName(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "Standard", want: PlanStandard},
		{in: "standard plan", want: PlanStandard},
		{in: "ENTERPRISE", want: PlanEnterprise},
		{in: "Enterprise (Yearly)", want: PlanEnterprise},
		{in: "Free", want: PlanFree},
		{in: "", want: PlanFree},
		{in: "something else", want: PlanFree},
	}

	for _, tt := range tests {
		if got := PlanForName(tt.in); got != tt.want {
			t.Fatalf("PlanForName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTablePriceLookup(t *testing.T) {
	table := NewTable(map[string]Plan{
		"price_std":  PlanStandard,
		"price_ent":  PlanEnterprise,
		"  ":         PlanStandard,
		"price_free": PlanFree,
	})

	if plan, ok := table.PlanForPrice("price_std"); !ok || plan != PlanStandard {
		t.Fatalf("PlanForPrice(price_std) = %q, %t", plan, ok)
	}
	if _, ok := table.PlanForPrice("price_missing"); ok {
		t.Fatalf("expected missing price to not resolve")
	}
	if got := table.CreditsForPrice("price_ent"); got != EnterpriseCredits {
		t.Fatalf("CreditsForPrice(price_ent) = %d, want %d", got, EnterpriseCredits)
	}
	if got := table.CreditsForPrice("price_missing"); got != FreeMonthlyCredits {
		t.Fatalf("CreditsForPrice for unmapped price = %d, want %d", got, FreeMonthlyCredits)
	}
}

func TestIsUnlimited(t *testing.T) {
	if IsUnlimited(StandardCredits) || IsUnlimited(EnterpriseCredits) {
		t.Fatalf("regular allotments must not be unlimited")
	}
	if !IsUnlimited(DefaultUnlimitedTotal) {
		t.Fatalf("expected sentinel total to be unlimited")
	}
	if !IsUnlimited(DefaultUnlimitedTotal + 1) {
		t.Fatalf("expected totals above the sentinel to be unlimited")
	}
}
