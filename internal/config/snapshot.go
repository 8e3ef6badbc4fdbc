package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/freerouter/gateway/internal/classify"
	"github.com/freerouter/gateway/internal/providers"
	"github.com/freerouter/gateway/internal/routing"
	"github.com/freerouter/gateway/internal/tier"
)

// Timeouts holds the per-tier request deadlines and the streaming
// stall-detection window from §4.7/§5.
type Timeouts struct {
	PerTier     map[tier.Tier]time.Duration
	StreamStall time.Duration
}

// Thinking holds the extended-thinking policy: which models may get
// fixed-budget thinking at MEDIUM, that budget, and the model-name
// patterns that get adaptive thinking at COMPLEX/REASONING.
type Thinking struct {
	EnabledModels    map[string]bool
	BudgetTokens     int
	AdaptivePatterns []string
}

// Snapshot is the complete, immutable configuration in force at a point
// in time. A reload builds a new Snapshot and atomically swaps it in;
// nothing ever mutates a live Snapshot's fields.
type Snapshot struct {
	Port     int
	Host     string
	Descriptors map[string]providers.Descriptor
	BaseTiers    routing.TierTable
	AgenticTiers routing.TierTable
	TierBoundaries TierBoundaries
	Scoring  classify.ScoringConfig
	Timeouts Timeouts
	Thinking Thinking
}

type TierBoundaries struct {
	B1, B2, B3 float64
}

// Store holds the live Snapshot behind an atomic.Pointer so request
// handlers can read it without locking while a reload builds and swaps
// in a new one (§5's shared-resource model).
type Store struct {
	ptr atomic.Pointer[Snapshot]
}

func NewStore(initial Snapshot) *Store {
	s := &Store{}
	s.ptr.Store(&initial)
	return s
}

func (s *Store) Load() *Snapshot {
	return s.ptr.Load()
}

// Reload validates next before swapping it in; on validation failure
// the previously active Snapshot stays live and the error is returned
// to the caller (the /reload-config handler), per §5.
func (s *Store) Reload(next Snapshot) error {
	if err := validate(next); err != nil {
		return err
	}
	s.ptr.Store(&next)
	return nil
}

func validate(snap Snapshot) error {
	if len(snap.Descriptors) == 0 {
		return fmt.Errorf("config: no providers configured")
	}
	for _, t := range tier.All {
		entry, ok := snap.BaseTiers[t]
		if !ok {
			return fmt.Errorf("config: tier table missing entry for %s", t)
		}
		if !modelResolves(snap.Descriptors, string(entry.Primary)) {
			return fmt.Errorf("config: tier %s primary model %q has no registered provider", t, entry.Primary)
		}
		for _, fb := range entry.Fallback {
			if !modelResolves(snap.Descriptors, string(fb)) {
				return fmt.Errorf("config: tier %s fallback model %q has no registered provider", t, fb)
			}
		}
	}
	for t, entry := range snap.AgenticTiers {
		if !modelResolves(snap.Descriptors, string(entry.Primary)) {
			return fmt.Errorf("config: agentic tier %s primary model %q has no registered provider", t, entry.Primary)
		}
	}
	return nil
}

func modelResolves(descriptors map[string]providers.Descriptor, modelID string) bool {
	providerID, _ := providers.ResolveModel(modelID)
	_, ok := descriptors[providerID]
	return ok
}

// Default builds the built-in Snapshot; callers overlay a loaded
// FileConfig with Merge. Credentials are never part of a Snapshot; the
// EnvAuthSource supplies those at Registry construction time so that
// /config can redact credential fields without touching routing state.
func Default() Snapshot {
	return Snapshot{
		Port:        8787,
		Host:        "0.0.0.0",
		Descriptors: defaultDescriptors(),
		BaseTiers:   defaultBaseTiers(),
		AgenticTiers: defaultAgenticTiers(),
		TierBoundaries: TierBoundaries{B1: 0.0, B2: 0.03, B3: 0.15},
		Scoring:     classify.DefaultScoringConfig(),
		Timeouts: Timeouts{
			PerTier: map[tier.Tier]time.Duration{
				tier.Simple:    30 * time.Second,
				tier.Medium:    60 * time.Second,
				tier.Complex:   120 * time.Second,
				tier.Reasoning: 120 * time.Second,
			},
			StreamStall: 30 * time.Second,
		},
		Thinking: Thinking{
			BudgetTokens: defaultThinkingBudget,
		},
	}
}

func defaultDescriptors() map[string]providers.Descriptor {
	return map[string]providers.Descriptor{
		"anthropic": {
			ID: "anthropic", API: providers.APIAnthropic, BaseURL: "https://api.anthropic.com",
			DefaultModel: "claude-sonnet-4-20250514",
			ModelCatalog: map[string]providers.ModelCatalogEntry{
				"claude-haiku-4-20250514":  {ContextWindow: 200000, InputPrice: 0.8, OutputPrice: 4},
				"claude-sonnet-4-20250514": {ContextWindow: 200000, InputPrice: 3, OutputPrice: 15},
				"claude-opus-4-6":          {ContextWindow: 200000, InputPrice: 15, OutputPrice: 75},
			},
		},
		"openai": {
			ID: "openai", API: providers.APIOpenAI, BaseURL: "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
			ModelCatalog: map[string]providers.ModelCatalogEntry{
				"gpt-4o-mini": {ContextWindow: 128000, InputPrice: 0.15, OutputPrice: 0.6},
				"gpt-4o":      {ContextWindow: 128000, InputPrice: 2.5, OutputPrice: 10},
			},
		},
		"openrouter": {
			ID: "openrouter", API: providers.APIOpenAI, BaseURL: "https://openrouter.ai/api/v1",
			StaticHeaders: map[string]string{"HTTP-Referer": "https://freerouter.dev", "X-Title": "FreeRouter"},
			DefaultModel:  "thudm/glm-4-9b-chat",
			ModelCatalog: map[string]providers.ModelCatalogEntry{
				"thudm/glm-4-9b-chat": {ContextWindow: 32000, InputPrice: 0.1, OutputPrice: 0.1},
			},
		},
		"ollama": {
			ID: "ollama", API: providers.APIOpenAI, BaseURL: strFromEnv("OLLAMA_BASE_URL", "http://localhost:11434") + "/v1",
			DefaultModel: "llama3.1",
			ModelCatalog: map[string]providers.ModelCatalogEntry{
				"llama3.1": {ContextWindow: 128000, InputPrice: 0, OutputPrice: 0},
			},
		},
		"huggingface": {
			ID: "huggingface", API: providers.APIOpenAI, BaseURL: "https://router.huggingface.co/v1",
			DefaultModel: "meta-llama/Llama-3.1-8B-Instruct",
		},
		"mistral": {
			ID: "mistral", API: providers.APIOpenAI, BaseURL: "https://api.mistral.ai/v1",
			DefaultModel: "mistral-small-latest",
			ModelCatalog: map[string]providers.ModelCatalogEntry{
				"mistral-small-latest": {ContextWindow: 32000, InputPrice: 0.2, OutputPrice: 0.6},
			},
		},
	}
}

func defaultBaseTiers() routing.TierTable {
	return routing.TierTable{
		tier.Simple: {
			Primary:  "anthropic/claude-haiku-4-20250514",
			Fallback: []routing.ModelID{"openrouter/thudm/glm-4-9b-chat"},
		},
		tier.Medium: {
			Primary:  "anthropic/claude-sonnet-4-20250514",
			Fallback: []routing.ModelID{"anthropic/claude-haiku-4-20250514"},
		},
		tier.Complex: {
			Primary:  "anthropic/claude-sonnet-4-20250514",
			Fallback: []routing.ModelID{"anthropic/claude-opus-4-6"},
		},
		tier.Reasoning: {
			Primary:  "anthropic/claude-opus-4-6",
			Fallback: []routing.ModelID{"anthropic/claude-sonnet-4-20250514"},
		},
	}
}

func defaultAgenticTiers() routing.TierTable {
	return routing.TierTable{
		tier.Simple:  {Primary: "anthropic/claude-sonnet-4-20250514", Fallback: []routing.ModelID{"anthropic/claude-haiku-4-20250514"}},
		tier.Medium:  {Primary: "anthropic/claude-sonnet-4-20250514", Fallback: []routing.ModelID{"anthropic/claude-opus-4-6"}},
		tier.Complex: {Primary: "anthropic/claude-opus-4-6", Fallback: []routing.ModelID{"anthropic/claude-sonnet-4-20250514"}},
		tier.Reasoning: {Primary: "anthropic/claude-opus-4-6", Fallback: []routing.ModelID{}},
	}
}

// Merge applies a FileConfig over a base Snapshot. Providers and tier
// tables are merged per key: a provider field or tier entry the file
// sets replaces the base's, and the rest of the base is kept. Lists
// (fallback chains, thinking models and patterns) and a provider's
// static headers and model catalog are replaced whole, not merged.
func Merge(base Snapshot, fc FileConfig) Snapshot {
	out := base
	if fc.Port != 0 {
		out.Port = fc.Port
	}
	if fc.Host != "" {
		out.Host = fc.Host
	}
	if len(fc.Providers) > 0 {
		out.Descriptors = mergeDescriptors(base.Descriptors, fc.Providers)
	}
	if len(fc.Tiers) > 0 {
		out.BaseTiers = fileTierTable(base.BaseTiers, fc.Tiers)
	}
	if len(fc.AgenticTiers) > 0 {
		out.AgenticTiers = fileTierTable(base.AgenticTiers, fc.AgenticTiers)
	}
	if fc.TierBoundaries != nil {
		if fc.TierBoundaries.B1 != nil {
			out.TierBoundaries.B1 = *fc.TierBoundaries.B1
			out.Scoring.Boundary1 = *fc.TierBoundaries.B1
		}
		if fc.TierBoundaries.B2 != nil {
			out.TierBoundaries.B2 = *fc.TierBoundaries.B2
			out.Scoring.Boundary2 = *fc.TierBoundaries.B2
		}
		if fc.TierBoundaries.B3 != nil {
			out.TierBoundaries.B3 = *fc.TierBoundaries.B3
			out.Scoring.Boundary3 = *fc.TierBoundaries.B3
		}
	}
	if fc.Thinking != nil {
		if len(fc.Thinking.EnabledModels) > 0 {
			enabled := make(map[string]bool, len(fc.Thinking.EnabledModels))
			for _, m := range fc.Thinking.EnabledModels {
				enabled[m] = true
			}
			out.Thinking.EnabledModels = enabled
		}
		if len(fc.Thinking.AdaptivePatterns) > 0 {
			out.Thinking.AdaptivePatterns = fc.Thinking.AdaptivePatterns
		}
		if fc.Thinking.BudgetTokens > 0 {
			out.Thinking.BudgetTokens = fc.Thinking.BudgetTokens
		}
	}
	if fc.Timeouts != nil {
		out.Timeouts = mergeTimeouts(base.Timeouts, *fc.Timeouts)
	}
	return out
}

func mergeDescriptors(base map[string]providers.Descriptor, files map[string]ProviderFile) map[string]providers.Descriptor {
	out := make(map[string]providers.Descriptor, len(base))
	for k, v := range base {
		out[k] = v
	}
	for id, pf := range files {
		d := out[id]
		d.ID = id
		if pf.API != "" {
			d.API = providers.API(pf.API)
		}
		if pf.BaseURL != "" {
			d.BaseURL = pf.BaseURL
		}
		if len(pf.StaticHeaders) > 0 {
			d.StaticHeaders = pf.StaticHeaders
		}
		if pf.DefaultModel != "" {
			d.DefaultModel = pf.DefaultModel
		}
		if len(pf.Models) > 0 {
			catalog := make(map[string]providers.ModelCatalogEntry, len(pf.Models))
			for m, mf := range pf.Models {
				catalog[m] = providers.ModelCatalogEntry{
					ContextWindow: mf.ContextWindow,
					InputPrice:    mf.InputPrice,
					OutputPrice:   mf.OutputPrice,
				}
			}
			d.ModelCatalog = catalog
		}
		out[id] = d
	}
	return out
}

func fileTierTable(base routing.TierTable, files map[string]TierFile) routing.TierTable {
	out := make(routing.TierTable, len(base))
	for t, entry := range base {
		out[t] = entry
	}
	for name, tf := range files {
		t, ok := tier.ParseTier(name)
		if !ok {
			continue
		}
		fallback := make([]routing.ModelID, len(tf.Fallback))
		for i, f := range tf.Fallback {
			fallback[i] = routing.ModelID(f)
		}
		out[t] = routing.TierEntry{Primary: routing.ModelID(tf.Primary), Fallback: fallback}
	}
	return out
}

func mergeTimeouts(base Timeouts, tf TimeoutsFile) Timeouts {
	out := Timeouts{PerTier: make(map[tier.Tier]time.Duration, len(base.PerTier)), StreamStall: base.StreamStall}
	for k, v := range base.PerTier {
		out.PerTier[k] = v
	}
	if tf.SimpleMs > 0 {
		out.PerTier[tier.Simple] = time.Duration(tf.SimpleMs) * time.Millisecond
	}
	if tf.MediumMs > 0 {
		out.PerTier[tier.Medium] = time.Duration(tf.MediumMs) * time.Millisecond
	}
	if tf.ComplexMs > 0 {
		out.PerTier[tier.Complex] = time.Duration(tf.ComplexMs) * time.Millisecond
	}
	if tf.ReasoningMs > 0 {
		out.PerTier[tier.Reasoning] = time.Duration(tf.ReasoningMs) * time.Millisecond
	}
	if tf.StreamStallMs > 0 {
		out.StreamStall = time.Duration(tf.StreamStallMs) * time.Millisecond
	}
	return out
}
