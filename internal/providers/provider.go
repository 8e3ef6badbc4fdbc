package providers

import "context"

// Provider is implemented by each upstream API family the gateway can
// translate to and from. Complete and StreamChat both take a context so
// the gateway's per-tier deadlines and stall timeout apply uniformly,
// generalizing the teacher's streaming-only ctx usage to every call site
// that crosses the network. The thinking policy travels as a plain value
// here rather than a tier.Tier so this package never depends on tier;
// internal/config decides the policy and hands it down already resolved.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy) (FrontResponse, error)
	StreamChat(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy, emit func(FrontChunk) error) error
}

// ThinkingPolicy is the resolved decision on whether and how a request
// should attach Anthropic extended thinking. Kind is "" (no thinking),
// "adaptive" (model self-directed budget) or "enabled" (fixed budget).
// Providers outside the Anthropic family ignore it entirely.
type ThinkingPolicy struct {
	Kind         string
	BudgetTokens int
}

// API identifies which wire protocol a provider descriptor speaks.
type API string

const (
	APIAnthropic API = "anthropic"
	APIOpenAI    API = "openai"
)

// ModelCatalogEntry carries per-model facts the router and translator need:
// pricing for cost estimation and an advertised context window for
// fallback-chain filtering.
type ModelCatalogEntry struct {
	ContextWindow int
	InputPrice    float64 // dollars per million input tokens
	OutputPrice   float64 // dollars per million output tokens
}

// Descriptor configures one upstream provider: where to send requests,
// which wire protocol to speak, and any static headers the teacher's
// provider constructors hard-coded per vendor.
type Descriptor struct {
	ID             string
	API            API
	BaseURL        string
	StaticHeaders  map[string]string
	DefaultModel   string
	ModelCatalog   map[string]ModelCatalogEntry
}

// ResolveModel splits a ModelId of the form "<provider>/<model>" into its
// provider key and bare model name. A ModelId without "/" implies the
// default provider, "anthropic", per the spec's ModelId convention.
func ResolveModel(modelID string) (providerID, model string) {
	for i := 0; i < len(modelID); i++ {
		if modelID[i] == '/' {
			return modelID[:i], modelID[i+1:]
		}
	}
	return "anthropic", modelID
}
