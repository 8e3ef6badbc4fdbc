// Package gateway wires the classifier, router and provider registry
// into the HTTP surface described in §6: chat completions, model
// listing, health, stats, and the config-reload endpoints.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/freerouter/gateway/internal/config"
	"github.com/freerouter/gateway/internal/providers"
	"github.com/freerouter/gateway/internal/routing"
	"github.com/freerouter/gateway/internal/tier"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthSource is the subset of config.EnvAuthSource the Gateway needs;
// kept as an interface so tests can substitute a fake.
type AuthSource interface {
	providers.AuthSource
	Reload()
}

// Gateway owns the live Registry/Selector pair built from the current
// config.Snapshot, rebuilding both on every successful reload. Grounded
// on the teacher's Server, generalized from a single provider+registry
// pair to the classify/route/translate pipeline this spec adds.
type Gateway struct {
	configStore *config.Store
	auth        AuthSource
	breakerCfg  providers.CircuitBreakerConfig

	registryPtr  atomic.Pointer[providers.Registry]
	selectorPtr  atomic.Pointer[routing.Selector]

	stats *Stats

	startedAt time.Time

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	promReg  *prometheus.Registry
}

func NewGateway(store *config.Store, auth AuthSource) (*Gateway, error) {
	g := &Gateway{
		configStore: store,
		auth:        auth,
		breakerCfg:  providers.CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: 60 * time.Second},
		stats:       NewStats(),
		startedAt:   time.Now(),
	}

	g.promReg = prometheus.NewRegistry()
	g.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freerouter_requests_total",
		Help: "Total chat completion requests by tier and status.",
	}, []string{"tier", "status"})
	g.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freerouter_request_duration_seconds",
		Help:    "Chat completion request durations by tier.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})
	g.promReg.MustRegister(g.requests, g.latency)

	if err := g.rebuild(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) rebuild() error {
	snap := g.configStore.Load()
	registry, err := providers.NewRegistry(snap.Descriptors, g.auth, g.breakerCfg)
	if err != nil {
		return err
	}
	selector := routing.NewSelector(snap.BaseTiers, snap.AgenticTiers, registry, tier.Medium)
	g.registryPtr.Store(registry)
	g.selectorPtr.Store(selector)
	return nil
}

func (g *Gateway) registry() *providers.Registry { return g.registryPtr.Load() }
func (g *Gateway) selector() *routing.Selector    { return g.selectorPtr.Load() }

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/chat/completions", g.cors(g.handleChatCompletions))
	mux.HandleFunc("/chat/completions", g.cors(g.handleChatCompletions))
	mux.HandleFunc("/v1/models", g.cors(g.handleModels))
	mux.HandleFunc("/models", g.cors(g.handleModels))
	mux.HandleFunc("/health", g.cors(g.handleHealth))
	mux.HandleFunc("/stats", g.cors(g.handleStats))
	mux.HandleFunc("/v1/router/metrics", g.cors(g.handleRouterMetrics))
	mux.HandleFunc("/config", g.cors(g.handleConfig))
	mux.HandleFunc("/reload", g.cors(g.handleReload))
	mux.HandleFunc("/reload-config", g.cors(g.handleReloadConfig))
	mux.Handle("/metrics", promhttp.HandlerFor(g.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", g.cors(g.handleNotFound))
}

func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req providers.FrontRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	start := time.Now()
	result := g.dispatch(w, r, req)
	duration := time.Since(start)

	status := "ok"
	if result.failed {
		status = "error"
		g.stats.RecordError()
	}
	if result.timedOut {
		status = "timeout"
		g.stats.RecordTimeout()
	}
	if !result.failed {
		g.stats.RecordRequest(result.tier, result.model)
		g.stats.RecordCost(result.tier, result.cost)
	}
	g.requests.WithLabelValues(result.tier.String(), status).Inc()
	g.latency.WithLabelValues(result.tier.String()).Observe(duration.Seconds())
}

func (g *Gateway) handleModels(w http.ResponseWriter, r *http.Request) {
	snap := g.configStore.Load()
	created := g.startedAt.Unix()
	data := []map[string]any{{"id": "auto", "object": "model", "created": created, "owned_by": "freerouter"}}
	for providerID, d := range snap.Descriptors {
		for model := range d.ModelCatalog {
			data = append(data, map[string]any{
				"id": providerID + "/" + model, "object": "model",
				"created": created, "owned_by": providerID,
			})
		}
		if d.DefaultModel != "" {
			if _, ok := d.ModelCatalog[d.DefaultModel]; !ok {
				data = append(data, map[string]any{
					"id": providerID + "/" + d.DefaultModel, "object": "model",
					"created": created, "owned_by": providerID,
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  g.stats.Snapshot(),
	})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.stats.Snapshot())
}

// handleRouterMetrics extends /stats with the running cost readout:
// the request/tier/model counters plus CostTracker's totalSpend view,
// without its budget-enforcement half (see Stats's doc comment).
func (g *Gateway) handleRouterMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": g.stats.Snapshot(),
		"cost":  g.stats.CostSnapshot(),
	})
}

func (g *Gateway) handleConfig(w http.ResponseWriter, r *http.Request) {
	snap := g.configStore.Load()
	redacted := make(map[string]any, len(snap.Descriptors))
	for id, d := range snap.Descriptors {
		redacted[id] = map[string]any{
			"api":          d.API,
			"baseUrl":      d.BaseURL,
			"defaultModel": d.DefaultModel,
			"auth":         "***",
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"port":      snap.Port,
		"host":      snap.Host,
		"providers": redacted,
	})
}

func (g *Gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.auth.Reload()
	if err := g.rebuild(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (g *Gateway) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := config.ConfigPath()
	if path != "" {
		fc, err := config.LoadFile(path)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next := config.Merge(config.Default(), fc)
		if err := g.configStore.Reload(next); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	g.auth.Reload()
	if err := g.rebuild(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (g *Gateway) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"message": "not found", "type": "not_found", "code": 404},
	})
}

func (g *Gateway) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (g *Gateway) logJSON(fields map[string]any) {
	b, err := json.Marshal(fields)
	if err != nil {
		log.Printf("gateway: log encode error: %v", err)
		return
	}
	log.Println(string(b))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error", "code": status},
	})
}
