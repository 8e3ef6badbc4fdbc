// Package routing turns a classifier tier into a concrete upstream
// model plus a cost-aware fallback chain. It never talks to an
// upstream itself; internal/gateway walks the chain it returns through
// the providers.Registry.
package routing

import (
	"fmt"

	"github.com/freerouter/gateway/internal/tier"
)

// ModelID is a "<provider>/<model>" string, or a bare model name that
// defaults to the anthropic provider (providers.ResolveModel).
type ModelID string

// TierEntry is one row of a TierTable: the preferred model for the
// tier plus an ordered fallback chain tried if the primary's circuit
// is open or it errors before sending headers.
type TierEntry struct {
	Primary  ModelID
	Fallback []ModelID
}

// TierTable maps each of the four tiers to its entry. A second table
// (the "agentic" table) is swapped in whenever the classifier's
// agentic score clears ScoringConfig.AgenticThreshold, since
// agent-shaped requests often need a tool-capable model even at low
// linguistic complexity.
type TierTable map[tier.Tier]TierEntry

// Method records how a RoutingDecision's tier was determined.
type Method string

const (
	MethodRules    Method = "rules"
	MethodOverride Method = "override"
	MethodExplicit Method = "explicit"
)

// RoutingDecision is built per request by internal/gateway; its tier and
// reasoning are surfaced via the X-FreeRouter-Tier and
// X-FreeRouter-Reasoning response headers.
type RoutingDecision struct {
	Model        ModelID
	Tier         tier.Tier
	Confidence   float64
	Method       Method
	Reasoning    string
	CostEstimate float64
	BaselineCost float64
	Savings      float64
}

// PricingSource is the subset of providers.Registry the selector
// needs; kept as an interface so routing never imports providers.
type PricingSource interface {
	Pricing(modelID string) (input, output float64)
	ContextWindow(modelID string) int
	Has(modelID string) bool
}

// baselineInputPrice and baselineOutputPrice are the Opus-class rate used
// as the "what it would have cost to always use the best model" reference
// for the savings metric, per §3's baselineCost definition.
const baselineInputPrice = 15.0
const baselineOutputPrice = 75.0

// assumedCompletionTokens approximates a typical completion length
// when estimating cost ahead of the actual response, used only when the
// caller set no max_tokens. It enters both costEstimate and baselineCost,
// so it also sets the absolute CostEstimate value.
const assumedCompletionTokens = 500

// Selector resolves tiers to models using a config snapshot's tier
// tables. It holds no mutable state and is safe for concurrent use;
// a config reload builds a new Selector rather than mutating this one.
type Selector struct {
	base                 TierTable
	agentic              TierTable
	registry             PricingSource
	ambiguousDefaultTier tier.Tier
}

func NewSelector(base, agentic TierTable, registry PricingSource, ambiguousDefaultTier tier.Tier) *Selector {
	return &Selector{base: base, agentic: agentic, registry: registry, ambiguousDefaultTier: ambiguousDefaultTier}
}

// SelectForTier resolves a classified (or overridden) tier to a
// RoutingDecision and its fallback chain. t may be nil, meaning the
// classifier's confidence fell below threshold; the selector then
// falls back to ambiguousDefaultTier with method unchanged.
func (s *Selector) SelectForTier(t *tier.Tier, confidence float64, method Method, reasoning string, useAgentic bool, userTokens, totalTokens, maxOutputTokens int) (RoutingDecision, []ModelID, error) {
	resolved := s.ambiguousDefaultTier
	if t != nil {
		resolved = *t
	}

	table := s.base
	if useAgentic && s.agentic != nil {
		if _, ok := s.agentic[resolved]; ok {
			table = s.agentic
		}
	}

	entry, ok := table[resolved]
	if !ok {
		return RoutingDecision{}, nil, fmt.Errorf("routing: no tier table entry for %s", resolved)
	}
	if !s.registry.Has(string(entry.Primary)) {
		return RoutingDecision{}, nil, fmt.Errorf("routing: tier %s primary model %q not registered", resolved, entry.Primary)
	}

	chain := s.buildChain(entry, totalTokens)

	decision := s.decisionFor(entry.Primary, resolved, confidence, method, reasoning, userTokens, totalTokens, maxOutputTokens)
	return decision, chain, nil
}

// SelectExplicit builds a RoutingDecision for a request that named a
// concrete model instead of "auto"; no classification runs.
func (s *Selector) SelectExplicit(model ModelID, userTokens, totalTokens, maxOutputTokens int) (RoutingDecision, error) {
	if !s.registry.Has(string(model)) {
		return RoutingDecision{}, fmt.Errorf("routing: explicit model %q not registered", model)
	}
	decision := s.decisionFor(model, 0, 1.0, MethodExplicit, "explicit model requested", userTokens, totalTokens, maxOutputTokens)
	return decision, nil
}

func (s *Selector) decisionFor(model ModelID, t tier.Tier, confidence float64, method Method, reasoning string, userTokens, totalTokens, maxOutputTokens int) RoutingDecision {
	inputPrice, outputPrice := s.registry.Pricing(string(model))
	costEstimate := estimateCost(userTokens, totalTokens, maxOutputTokens, inputPrice, outputPrice)
	baselineCost := estimateCost(userTokens, totalTokens, maxOutputTokens, baselineInputPrice, baselineOutputPrice)

	savings := 0.0
	if baselineCost > 0 {
		savings = 1 - costEstimate/baselineCost
		if savings < 0 {
			savings = 0
		}
	}

	return RoutingDecision{
		Model:        model,
		Tier:         t,
		Confidence:   confidence,
		Method:       method,
		Reasoning:    reasoning,
		CostEstimate: costEstimate,
		BaselineCost: baselineCost,
		Savings:      savings,
	}
}

func estimateCost(userTokens, totalTokens, maxOutputTokens int, inputPrice, outputPrice float64) float64 {
	inputTokens := totalTokens
	if inputTokens == 0 {
		inputTokens = userTokens
	}
	outputTokens := maxOutputTokens
	if outputTokens <= 0 {
		outputTokens = assumedCompletionTokens
	}
	return float64(inputTokens)/1e6*inputPrice + float64(outputTokens)/1e6*outputPrice
}

// buildChain implements §4.4: drop any chain entry, the primary included,
// whose advertised context window can't hold the request (totalTokens * 1.1 headroom
// for the response), falling back to the unfiltered chain if filtering
// would leave nothing to try at all.
func (s *Selector) buildChain(entry TierEntry, totalTokens int) []ModelID {
	full := append([]ModelID{entry.Primary}, entry.Fallback...)
	if totalTokens == 0 {
		return full
	}

	needed := float64(totalTokens) * 1.1
	var filtered []ModelID
	for _, m := range full {
		cw := s.registry.ContextWindow(string(m))
		if cw == 0 || float64(cw) >= needed {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return full
	}
	return filtered
}
