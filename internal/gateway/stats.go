package gateway

import (
	"sync"
	"sync/atomic"

	"github.com/freerouter/gateway/internal/tier"
)

// Stats accumulates the counters exposed at /health and /stats. The
// total, error, timeout and per-tier counters are updated with atomics;
// the per-model counts and the spend fields are guarded by mu, which
// every recorded request takes. The spend side (totalSpend/perTierSpend) is
// adapted from the teacher's CostTracker.TrackUsage accumulation, minus
// its budget-enforcement half (CheckBudget/dailyBudget/monthlyBudget),
// which this router doesn't do (no admission control, per §9's
// non-goals): this only ever adds up actual and estimated spend, it
// never rejects a request over it.
type Stats struct {
	total    int64
	errors   int64
	timeouts int64

	perTier [4]int64

	mu           sync.Mutex
	perModel     map[string]int64
	totalSpend   float64
	perTierSpend [4]float64
	requestCount int64
}

func NewStats() *Stats {
	return &Stats{perModel: make(map[string]int64)}
}

func (s *Stats) RecordRequest(t tier.Tier, model string) {
	atomic.AddInt64(&s.total, 1)
	atomic.AddInt64(&s.perTier[t], 1)
	s.mu.Lock()
	s.perModel[model]++
	s.mu.Unlock()
}

func (s *Stats) RecordError() {
	atomic.AddInt64(&s.errors, 1)
}

func (s *Stats) RecordTimeout() {
	atomic.AddInt64(&s.timeouts, 1)
}

// RecordCost adds one request's spend to the running total, broken
// down by tier the same way RecordRequest breaks down the request
// count.
func (s *Stats) RecordCost(t tier.Tier, cost float64) {
	s.mu.Lock()
	s.totalSpend += cost
	s.perTierSpend[t] += cost
	s.requestCount++
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time read of every counter, safe to marshal.
type StatsSnapshot struct {
	TotalRequests int64            `json:"totalRequests"`
	Errors        int64            `json:"errors"`
	Timeouts      int64            `json:"timeouts"`
	PerTier       map[string]int64 `json:"perTier"`
	PerModel      map[string]int64 `json:"perModel"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	perTier := make(map[string]int64, 4)
	for _, t := range tier.All {
		perTier[t.String()] = atomic.LoadInt64(&s.perTier[t])
	}

	s.mu.Lock()
	perModel := make(map[string]int64, len(s.perModel))
	for k, v := range s.perModel {
		perModel[k] = v
	}
	s.mu.Unlock()

	return StatsSnapshot{
		TotalRequests: atomic.LoadInt64(&s.total),
		Errors:        atomic.LoadInt64(&s.errors),
		Timeouts:      atomic.LoadInt64(&s.timeouts),
		PerTier:       perTier,
		PerModel:      perModel,
	}
}

// CostStatus is the running-spend readout /v1/router/metrics adds on
// top of /stats's request counters; narrowed from the teacher's
// CostStatus to the fields this router actually tracks (no budgets, no
// daily/monthly reset windows).
type CostStatus struct {
	TotalSpendUSD float64            `json:"totalSpendUsd"`
	RequestCount  int64              `json:"requestCount"`
	PerTierUSD    map[string]float64 `json:"perTierUsd"`
}

func (s *Stats) CostSnapshot() CostStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	perTier := make(map[string]float64, 4)
	for _, t := range tier.All {
		perTier[t.String()] = s.perTierSpend[t]
	}
	return CostStatus{
		TotalSpendUSD: s.totalSpend,
		RequestCount:  s.requestCount,
		PerTierUSD:    perTier,
	}
}
