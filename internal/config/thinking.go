package config

import (
	"strings"

	"github.com/freerouter/gateway/internal/providers"
	"github.com/freerouter/gateway/internal/tier"
)

// defaultThinkingBudget is the fixed budget attached at MEDIUM tier when
// a config file doesn't override Thinking.BudgetTokens.
const defaultThinkingBudget = 4096

// defaultAdaptivePatterns matches the bare model name (not the
// provider-qualified ModelId) against the opus-4-6 family that supports
// self-directed adaptive thinking.
var defaultAdaptivePatterns = []string{"opus-4-6", "opus-4.6"}

// ResolveThinking decides the ThinkingPolicy for one dispatch: adaptive
// budget at COMPLEX/REASONING for a model matching an adaptive pattern,
// a fixed enabled budget at MEDIUM (optionally restricted to an explicit
// model allowlist), and no thinking anywhere else. Only Anthropic
// descriptors ever see anything but the zero policy; the caller is
// expected to pass providers.ThinkingPolicy{} straight through for
// every other API family.
func ResolveThinking(t tier.Tier, bareModel string, th Thinking) providers.ThinkingPolicy {
	switch t {
	case tier.Complex, tier.Reasoning:
		if matchesAny(bareModel, adaptivePatternsOrDefault(th)) {
			return providers.ThinkingPolicy{Kind: "adaptive"}
		}
	case tier.Medium:
		if modelEnabled(bareModel, th) {
			budget := th.BudgetTokens
			if budget <= 0 {
				budget = defaultThinkingBudget
			}
			return providers.ThinkingPolicy{Kind: "enabled", BudgetTokens: budget}
		}
	}
	return providers.ThinkingPolicy{}
}

// modelEnabled reports whether bareModel is allowed fixed-budget
// thinking at MEDIUM tier. An empty EnabledModels list means
// unrestricted: the spec's MEDIUM-tier rule doesn't name a capability
// gate the way the adaptive branch does, so absence of a list is read
// as "every Anthropic model at this tier", while a populated list acts
// as an explicit allowlist.
func modelEnabled(bareModel string, th Thinking) bool {
	if len(th.EnabledModels) == 0 {
		return true
	}
	return th.EnabledModels[bareModel]
}

func adaptivePatternsOrDefault(th Thinking) []string {
	if len(th.AdaptivePatterns) > 0 {
		return th.AdaptivePatterns
	}
	return defaultAdaptivePatterns
}

func matchesAny(model string, patterns []string) bool {
	lower := strings.ToLower(model)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
