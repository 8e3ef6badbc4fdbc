package providers

import (
	"fmt"
	"net/http"
)

// Credential is what the external auth module hands back for a provider:
// either an OAuth token or an API key, never both populated meaningfully.
type Credential struct {
	Token  string
	APIKey string
}

// IsOAuth reports whether the credential is an Anthropic OAuth token,
// identified by the "sk-ant-oat" prefix convention (§4.5).
func (c Credential) IsOAuth() bool {
	return len(c.Token) >= len("sk-ant-oat") && c.Token[:len("sk-ant-oat")] == "sk-ant-oat"
}

// AuthSource is the external credential collaborator: getAuth(provider).
type AuthSource interface {
	GetAuth(providerID string) Credential
}

// Registry resolves a ModelId to a live, circuit-broken Provider plus the
// descriptor that produced it. It is built once per config snapshot and
// is read-only for the lifetime of that snapshot (§5 shared-resource
// model): a reload builds a fresh Registry rather than mutating this one.
type Registry struct {
	descriptors map[string]Descriptor
	providers   map[string]*CircuitBreaker
}

// NewRegistry constructs providers for every descriptor and wraps each in
// a circuit breaker, matching the teacher's per-provider CircuitBreaker
// wiring in multi_provider.go.
func NewRegistry(descriptors map[string]Descriptor, auth AuthSource, breaker CircuitBreakerConfig) (*Registry, error) {
	r := &Registry{
		descriptors: descriptors,
		providers:   make(map[string]*CircuitBreaker, len(descriptors)),
	}

	httpClient := &http.Client{}
	for id, d := range descriptors {
		cred := auth.GetAuth(id)
		var p Provider
		switch d.API {
		case APIAnthropic:
			p = NewAnthropicProvider(d, cred, httpClient)
		case APIOpenAI:
			p = NewOpenAIPassthroughProvider(d, cred, httpClient)
		default:
			return nil, fmt.Errorf("provider %q: unknown api %q", id, d.API)
		}
		r.providers[id] = NewCircuitBreaker(p, breaker)
	}
	return r, nil
}

// Resolve looks up the Provider and bare model name for a ModelId. It
// implements invariant (d): callers must check the error before using
// the RoutingDecision's model against any upstream.
func (r *Registry) Resolve(modelID string) (*CircuitBreaker, Descriptor, string, error) {
	providerID, model := ResolveModel(modelID)
	d, ok := r.descriptors[providerID]
	if !ok {
		return nil, Descriptor{}, "", fmt.Errorf("provider %q not registered for model %q", providerID, modelID)
	}
	p, ok := r.providers[providerID]
	if !ok {
		return nil, Descriptor{}, "", fmt.Errorf("provider %q has no constructed client", providerID)
	}
	return p, d, model, nil
}

// Has reports whether modelID resolves to a registered provider, without
// constructing anything — used by routing.Selector before it builds a
// decision.
func (r *Registry) Has(modelID string) bool {
	providerID, _ := ResolveModel(modelID)
	_, ok := r.descriptors[providerID]
	return ok
}

// ContextWindow returns the advertised context window for a model, or 0
// if unknown (the fallback-chain filter in §4.4 treats 0 as "unbounded").
func (r *Registry) ContextWindow(modelID string) int {
	providerID, model := ResolveModel(modelID)
	d, ok := r.descriptors[providerID]
	if !ok {
		return 0
	}
	entry, ok := d.ModelCatalog[model]
	if !ok {
		return 0
	}
	return entry.ContextWindow
}

// Pricing returns the per-million-token input/output price for a model,
// falling back to the Opus-class defaults (15/75) used as the baseline
// cost reference when a model is absent from the catalog or its catalog
// entry lists both prices as zero.
func (r *Registry) Pricing(modelID string) (input, output float64) {
	providerID, model := ResolveModel(modelID)
	if d, ok := r.descriptors[providerID]; ok {
		if entry, ok := d.ModelCatalog[model]; ok && (entry.InputPrice > 0 || entry.OutputPrice > 0) {
			return entry.InputPrice, entry.OutputPrice
		}
	}
	return 15.0, 75.0
}
