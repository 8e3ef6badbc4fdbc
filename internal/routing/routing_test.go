package routing

import (
	"testing"

	"github.com/freerouter/gateway/internal/tier"
)

type fakeRegistry struct {
	windows  map[string]int
	prices   map[string][2]float64
	registered map[string]bool
}

func (f *fakeRegistry) Pricing(modelID string) (float64, float64) {
	if p, ok := f.prices[modelID]; ok {
		return p[0], p[1]
	}
	return 15.0, 75.0
}

func (f *fakeRegistry) ContextWindow(modelID string) int {
	return f.windows[modelID]
}

func (f *fakeRegistry) Has(modelID string) bool {
	return f.registered[modelID]
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		windows: map[string]int{
			"anthropic/claude-haiku":  200000,
			"anthropic/claude-sonnet": 200000,
			"anthropic/claude-opus":   200000,
			"openai/gpt-4o-mini":      8000,
		},
		prices: map[string][2]float64{
			"anthropic/claude-haiku":  {0.8, 4},
			"anthropic/claude-sonnet": {3, 15},
			"anthropic/claude-opus":   {15, 75},
		},
		registered: map[string]bool{
			"anthropic/claude-haiku":  true,
			"anthropic/claude-sonnet": true,
			"anthropic/claude-opus":   true,
			"openai/gpt-4o-mini":      true,
		},
	}
}

func baseTable() TierTable {
	return TierTable{
		tier.Simple:    {Primary: "anthropic/claude-haiku", Fallback: []ModelID{"openai/gpt-4o-mini"}},
		tier.Medium:    {Primary: "anthropic/claude-sonnet", Fallback: []ModelID{"anthropic/claude-haiku"}},
		tier.Complex:   {Primary: "anthropic/claude-opus", Fallback: []ModelID{"anthropic/claude-sonnet"}},
		tier.Reasoning: {Primary: "anthropic/claude-opus", Fallback: []ModelID{}},
	}
}

func TestSelectForTierEveryTierResolves(t *testing.T) {
	sel := NewSelector(baseTable(), nil, newFakeRegistry(), tier.Medium)
	for _, tt := range tier.All {
		tCopy := tt
		decision, chain, err := sel.SelectForTier(&tCopy, 0.9, MethodRules, "test", false, 10, 10, 0)
		if err != nil {
			t.Fatalf("tier %v: %v", tt, err)
		}
		if decision.Tier != tt {
			t.Fatalf("decision.Tier = %v, want %v", decision.Tier, tt)
		}
		if len(chain) == 0 {
			t.Fatalf("tier %v: empty fallback chain", tt)
		}
		if decision.Savings < 0 || decision.Savings > 1 {
			t.Fatalf("tier %v: savings out of [0,1]: %v", tt, decision.Savings)
		}
	}
}

func TestSelectForTierNilFallsBackToAmbiguousDefault(t *testing.T) {
	sel := NewSelector(baseTable(), nil, newFakeRegistry(), tier.Medium)
	decision, _, err := sel.SelectForTier(nil, 0.3, MethodRules, "ambiguous", false, 10, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Tier != tier.Medium {
		t.Fatalf("decision.Tier = %v, want MEDIUM (the configured ambiguous default)", decision.Tier)
	}
}

func TestBuildChainFiltersByContextWindow(t *testing.T) {
	reg := newFakeRegistry()
	sel := NewSelector(baseTable(), nil, reg, tier.Medium)
	simple := tier.Simple
	_, chain, err := sel.SelectForTier(&simple, 0.9, MethodRules, "test", false, 10000, 10000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range chain {
		if string(m) == "openai/gpt-4o-mini" {
			t.Fatalf("expected the 8k-context fallback to be filtered out for a 10k-token request, chain=%v", chain)
		}
	}
}

func TestBuildChainRestoresFullChainWhenFilterEmpties(t *testing.T) {
	reg := &fakeRegistry{
		windows:    map[string]int{"anthropic/claude-haiku": 1000, "openai/gpt-4o-mini": 500},
		prices:     map[string][2]float64{},
		registered: map[string]bool{"anthropic/claude-haiku": true, "openai/gpt-4o-mini": true},
	}
	table := TierTable{
		tier.Simple: {Primary: "anthropic/claude-haiku", Fallback: []ModelID{"openai/gpt-4o-mini"}},
	}
	sel := NewSelector(table, nil, reg, tier.Simple)
	simple := tier.Simple
	_, chain, err := sel.SelectForTier(&simple, 0.9, MethodRules, "test", false, 50000, 50000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected the full unfiltered chain restored, got %v", chain)
	}
}

func TestSelectExplicitUnregisteredModelErrors(t *testing.T) {
	sel := NewSelector(baseTable(), nil, newFakeRegistry(), tier.Medium)
	_, err := sel.SelectExplicit("anthropic/does-not-exist", 10, 10, 0)
	if err == nil {
		t.Fatalf("expected an error for an unregistered explicit model")
	}
}

func TestSelectExplicitMethod(t *testing.T) {
	sel := NewSelector(baseTable(), nil, newFakeRegistry(), tier.Medium)
	decision, err := sel.SelectExplicit("anthropic/claude-opus", 10, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Method != MethodExplicit {
		t.Fatalf("method = %v, want explicit", decision.Method)
	}
}

func TestCostEstimateUsesMaxTokens(t *testing.T) {
	sel := NewSelector(baseTable(), nil, newFakeRegistry(), tier.Medium)
	medium := tier.Medium

	withoutMax, _, err := sel.SelectForTier(&medium, 0.9, MethodRules, "test", false, 1000, 1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withMax, _, err := sel.SelectForTier(&medium, 0.9, MethodRules, "test", false, 1000, 1000, 20000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if withoutMax.CostEstimate == withMax.CostEstimate {
		t.Fatalf("expected cost estimate to change with max_tokens, got %v both times", withMax.CostEstimate)
	}

	inputPrice, outputPrice := newFakeRegistry().Pricing("anthropic/claude-sonnet")
	wantWithMax := float64(1000)/1e6*inputPrice + float64(20000)/1e6*outputPrice
	if withMax.CostEstimate != wantWithMax {
		t.Fatalf("CostEstimate = %v, want %v", withMax.CostEstimate, wantWithMax)
	}

	wantWithoutMax := float64(1000)/1e6*inputPrice + float64(assumedCompletionTokens)/1e6*outputPrice
	if withoutMax.CostEstimate != wantWithoutMax {
		t.Fatalf("CostEstimate (no max_tokens) = %v, want the assumed-completion fallback %v", withoutMax.CostEstimate, wantWithoutMax)
	}
}

func TestAgenticTableUsedWhenPresent(t *testing.T) {
	agentic := TierTable{
		tier.Simple: {Primary: "anthropic/claude-sonnet"},
	}
	sel := NewSelector(baseTable(), agentic, newFakeRegistry(), tier.Medium)
	simple := tier.Simple
	decision, _, err := sel.SelectForTier(&simple, 0.9, MethodRules, "agentic", true, 10, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Model != "anthropic/claude-sonnet" {
		t.Fatalf("model = %v, want the agentic table's sonnet entry", decision.Model)
	}
}
