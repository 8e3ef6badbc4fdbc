package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/freerouter/gateway/internal/classify"
	"github.com/freerouter/gateway/internal/config"
	"github.com/freerouter/gateway/internal/providers"
	"github.com/freerouter/gateway/internal/routing"
	"github.com/freerouter/gateway/internal/tier"
)

// autoModel is the sentinel model name that triggers classification
// instead of routing straight to a named upstream model.
const autoModel = "auto"

const reasoningHeaderMaxLen = 200

// classifyRequest implements §4.1-§4.3: extract context, check for a
// mode override, and otherwise run the weighted classifier. It mutates
// req.Messages in place to strip a matched override prefix so the
// stripped text is what actually reaches the upstream model.
func classifyRequest(req *providers.FrontRequest, scoring classify.ScoringConfig) (*tier.Tier, float64, routing.Method, bool, int, int, string, error) {
	msgs := make([]classify.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = classify.Message{Role: m.Role, Content: m.Text()}
	}

	extracted, err := classify.Extract(msgs)
	if err != nil {
		return nil, 0, "", false, 0, 0, "", err
	}

	if ov, ok := classify.DetectOverride(extracted.LastUserMessage); ok {
		stripLastUserMessage(req, ov.Stripped)
		t := ov.Tier
		return &t, 1.0, routing.MethodOverride, false, estimateTokens(ov.Stripped), estimateTokens(extracted.SystemPrompt) + estimateTokens(ov.Stripped), "mode override", nil
	}

	result := classify.Classify(extracted.ClassificationInput, extracted.SystemPrompt, extracted.LastUserMessage, scoring)
	useAgentic := result.AgenticScore >= scoring.AgenticThreshold
	reasoning := fmt.Sprintf("score=%.3f confidence=%.2f agentic=%.2f", result.Score, result.Confidence, result.AgenticScore)
	return result.Tier, result.Confidence, routing.MethodRules, useAgentic, result.UserTokens, result.TotalTokens, reasoning, nil
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// stripLastUserMessage rewrites the last user message's raw content to
// the override-stripped text, preserving a plain-string content shape
// regardless of what the caller originally sent.
func stripLastUserMessage(req *providers.FrontRequest, stripped string) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			encoded, _ := json.Marshal(stripped)
			req.Messages[i].RawContent = encoded
			return
		}
	}
}

// dispatchResult carries what happened for a dispatch call, used by the
// caller to update Stats after the response has already been written.
type dispatchResult struct {
	tier     tier.Tier
	model    string
	timedOut bool
	failed   bool
	cost     float64
}

// dispatch implements the READ_BODY..response part of the request
// lifecycle in §4.7: classify/route, then walk the fallback chain,
// retrying on any pre-headers failure and giving up (no fallback) once
// bytes have reached the client.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, req providers.FrontRequest) dispatchResult {
	snap := g.configStore.Load()
	selector := g.selector()
	registry := g.registry()

	var decision routing.RoutingDecision
	var chain []routing.ModelID
	var decidedTier tier.Tier
	var err error

	if req.Model == "" || req.Model == autoModel {
		t, confidence, method, useAgentic, userTokens, totalTokens, reasoning, cerr := classifyRequest(&req, snap.Scoring)
		if cerr != nil {
			writeError(w, http.StatusBadRequest, cerr.Error())
			return dispatchResult{failed: true}
		}
		decision, chain, err = selector.SelectForTier(t, confidence, method, reasoning, useAgentic, userTokens, totalTokens, req.MaxTokens)
		if t != nil {
			decidedTier = *t
		} else {
			decidedTier = decision.Tier
		}
	} else {
		decision, err = selector.SelectExplicit(routing.ModelID(req.Model), estimateTokens(req.Messages[len(req.Messages)-1].Text()), 0, req.MaxTokens)
		chain = []routing.ModelID{decision.Model}
		decidedTier = tier.Complex // generous default deadline for a named model
	}

	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return dispatchResult{failed: true}
	}

	deadline := snap.Timeouts.PerTier[decidedTier]
	if deadline == 0 {
		deadline = snap.Timeouts.PerTier[tier.Complex]
	}

	w.Header().Set("X-FreeRouter-Tier", decision.Tier.String())
	w.Header().Set("X-FreeRouter-Reasoning", truncate(decision.Reasoning, reasoningHeaderMaxLen))

	if req.Stream {
		return g.dispatchStream(w, r, req, chain, registry, deadline, snap.Timeouts.StreamStall, decidedTier, snap.Thinking, decision.CostEstimate)
	}
	return g.dispatchComplete(w, r, req, chain, registry, deadline, decidedTier, snap.Thinking)
}

// thinkingPolicyFor resolves the thinking policy for one upstream call.
// Only Anthropic descriptors ever attach thinking; every other API
// family gets the zero policy regardless of tier or model.
func thinkingPolicyFor(d providers.Descriptor, bareModel string, t tier.Tier, th config.Thinking) providers.ThinkingPolicy {
	if d.API != providers.APIAnthropic {
		return providers.ThinkingPolicy{}
	}
	return config.ResolveThinking(t, bareModel, th)
}

func (g *Gateway) dispatchComplete(w http.ResponseWriter, r *http.Request, req providers.FrontRequest, chain []routing.ModelID, registry *providers.Registry, deadline time.Duration, t tier.Tier, th config.Thinking) dispatchResult {
	var lastErr error
	for i, modelID := range chain {
		cb, d, bareModel, rerr := registry.Resolve(string(modelID))
		if rerr != nil {
			lastErr = rerr
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), deadline)
		resp, err := cb.Complete(ctx, req, bareModel, thinkingPolicyFor(d, bareModel, t, th))
		cancel()
		if err == nil {
			w.Header().Set("X-FreeRouter-Model", string(modelID))
			writeJSON(w, http.StatusOK, resp)
			inPrice, outPrice := registry.Pricing(string(modelID))
			cost := float64(resp.Usage.PromptTokens)/1e6*inPrice + float64(resp.Usage.CompletionTokens)/1e6*outPrice
			return dispatchResult{tier: t, model: string(modelID), cost: cost}
		}

		lastErr = err
		timedOut := errors.Is(err, context.DeadlineExceeded)
		g.logJSON(map[string]any{
			"event": "fallback", "model": string(modelID), "attempt": i, "error": err.Error(), "timed_out": timedOut,
		})
		if timedOut && i == len(chain)-1 {
			writeError(w, http.StatusGatewayTimeout, "upstream timed out")
			return dispatchResult{failed: true, timedOut: true}
		}
	}

	writeError(w, http.StatusBadGateway, fmt.Sprintf("all upstreams failed: %v", lastErr))
	return dispatchResult{failed: true}
}

func (g *Gateway) dispatchStream(w http.ResponseWriter, r *http.Request, req providers.FrontRequest, chain []routing.ModelID, registry *providers.Registry, deadline, stallTimeout time.Duration, t tier.Tier, th config.Thinking, estimatedCost float64) dispatchResult {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return dispatchResult{failed: true}
	}

	var lastErr error
	for i, modelID := range chain {
		cb, d, bareModel, rerr := registry.Resolve(string(modelID))
		if rerr != nil {
			lastErr = rerr
			continue
		}

		headersSent := false
		ctx, cancel := context.WithTimeout(r.Context(), deadline)
		stallTimer := time.AfterFunc(stallTimeout, cancel)

		err := cb.StreamChat(ctx, req, bareModel, thinkingPolicyFor(d, bareModel, t, th), func(chunk providers.FrontChunk) error {
			if !headersSent {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Set("Connection", "keep-alive")
				w.Header().Set("X-FreeRouter-Model", string(modelID))
				w.WriteHeader(http.StatusOK)
				headersSent = true
			}
			stallTimer.Reset(stallTimeout)
			data, merr := json.Marshal(chunk)
			if merr != nil {
				return merr
			}
			if _, werr := w.Write([]byte("data: ")); werr != nil {
				return werr
			}
			if _, werr := w.Write(data); werr != nil {
				return werr
			}
			if _, werr := w.Write([]byte("\n\n")); werr != nil {
				return werr
			}
			flusher.Flush()
			return nil
		})
		stallTimer.Stop()
		cancel()

		if err == nil {
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
			flusher.Flush()
			return dispatchResult{tier: t, model: string(modelID), cost: estimatedCost}
		}

		if !headersSent {
			lastErr = err
			timedOut := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			g.logJSON(map[string]any{
				"event": "fallback", "model": string(modelID), "attempt": i, "error": err.Error(), "timed_out": timedOut,
			})
			if i < len(chain)-1 {
				continue
			}
			if timedOut {
				writeError(w, http.StatusGatewayTimeout, "upstream timed out")
				return dispatchResult{failed: true, timedOut: true}
			}
			writeError(w, http.StatusBadGateway, fmt.Sprintf("all upstreams failed: %v", err))
			return dispatchResult{failed: true}
		}

		// Headers already committed: no fallback, emit an SSE error tail.
		writeSSEError(w, flusher, err)
		return dispatchResult{failed: true, tier: t, model: string(modelID)}
	}

	writeError(w, http.StatusBadGateway, fmt.Sprintf("all upstreams failed: %v", lastErr))
	return dispatchResult{failed: true}
}

func writeSSEError(w http.ResponseWriter, flusher http.Flusher, err error) {
	payload, _ := json.Marshal(map[string]any{
		"error": map[string]string{"message": err.Error(), "type": "upstream_error"},
	})
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
