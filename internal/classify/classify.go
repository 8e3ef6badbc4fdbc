package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/freerouter/gateway/internal/tier"
)

// Result is the full output of Classify: the chosen tier (nil when the
// sigmoid confidence falls below ConfidenceThreshold, in which case the
// router falls back to its own ambiguousDefaultTier), the raw weighted
// score, confidence, agentic score, and the per-dimension signal values
// for observability. The gateway's X-FreeRouter-Reasoning header carries
// only the score, confidence and agentic score, not the signals.
type Result struct {
	Tier         *tier.Tier
	Score        float64
	Confidence   float64
	Signals      map[string]float64
	AgenticScore float64
	UserTokens   int
	TotalTokens  int
}

var structuredOutputPattern = regexp.MustCompile(`(?i)json|structured|schema`)

// Classify scores the classification input across fourteen dimensions,
// combines them with the configured weights, maps the result to a tier
// via the three boundaries, and applies the post-score overrides from
// §4.3 (token-count force-complex, structured-output minimum tier).
func Classify(prompt, systemPrompt, lastUserMessage string, cfg ScoringConfig) Result {
	userTokens := estimateTokens(lastUserMessage)
	totalTokens := estimateTokens(prompt) + estimateTokens(systemPrompt)

	lowerPrompt := strings.ToLower(prompt)
	lowerUser := strings.ToLower(lastUserMessage)

	signals := map[string]float64{
		"code":               keywordSignal(lowerPrompt, cfg.Keywords.Code),
		"reasoning":          keywordSignal(lowerPrompt, cfg.Keywords.Reasoning),
		"token_length":       tokenLengthSignal(userTokens, cfg),
		"technical":          keywordSignal(lowerPrompt, cfg.Keywords.Technical),
		"creative":           keywordSignal(lowerPrompt, cfg.Keywords.Creative),
		"imperative":         keywordSignal(lowerPrompt, cfg.Keywords.Imperative),
		"constraint":         keywordSignal(lowerPrompt, cfg.Keywords.Constraint),
		"output_format":      keywordSignal(lowerPrompt, cfg.Keywords.OutputFormat),
		"reference":          keywordSignal(lowerPrompt, cfg.Keywords.Reference),
		"negation":           -keywordSignal(lowerPrompt, cfg.Keywords.Negation),
		"domain_specific":    keywordSignal(lowerPrompt, cfg.Keywords.DomainSpecific),
		"agentic":            keywordSignal(lowerPrompt, cfg.Keywords.Agentic),
		"multi_step":         multiStepSignal(lowerPrompt),
		"question_complexity": questionComplexitySignal(prompt),
		"simple":             -keywordSignal(lowerUser, cfg.Keywords.Simple),
	}

	w := cfg.Weights
	score := signals["code"]*w.Code +
		signals["reasoning"]*w.Reasoning +
		signals["token_length"]*w.TokenLength +
		signals["technical"]*w.Technical +
		signals["creative"]*w.Creative +
		signals["imperative"]*w.Imperative +
		signals["constraint"]*w.Constraint +
		signals["output_format"]*w.OutputFormat +
		signals["reference"]*w.Reference +
		signals["negation"]*w.Negation +
		signals["domain_specific"]*w.DomainSpecific +
		signals["agentic"]*w.Agentic +
		signals["multi_step"]*w.MultiStep +
		signals["question_complexity"]*w.QuestionComplexity +
		signals["simple"]*w.Simple

	agenticScore := signals["agentic"]*0.6 + signals["multi_step"]*0.4

	t, confidence := tierForScore(score, cfg)

	res := Result{
		Tier:         t,
		Score:        score,
		Confidence:   confidence,
		Signals:      signals,
		AgenticScore: agenticScore,
		UserTokens:   userTokens,
		TotalTokens:  totalTokens,
	}

	applyOverrides(&res, lastUserMessage, cfg)
	return res
}

// applyOverrides implements the two post-score rules from §4.3: a hard
// token ceiling forces REASONING-adjacent complexity regardless of
// keyword signal, and structured-output requests from the user (not the
// system prompt) never route below StructuredOutputMinTier.
func applyOverrides(res *Result, lastUserMessage string, cfg ScoringConfig) {
	if res.TotalTokens > cfg.MaxTokensForceComplex {
		forced := tier.Complex
		res.Tier = &forced
		res.Confidence = 0.95
		return
	}

	if structuredOutputPattern.MatchString(lastUserMessage) {
		min := tier.Tier(cfg.StructuredOutputMinTier)
		if res.Tier == nil || *res.Tier < min {
			res.Tier = &min
		}
	}
}

func tierForScore(score float64, cfg ScoringConfig) (*tier.Tier, float64) {
	var t tier.Tier
	var nearest float64
	switch {
	case score <= cfg.Boundary1:
		t = tier.Simple
		nearest = cfg.Boundary1 - score
	case score < cfg.Boundary2:
		t = tier.Medium
		nearest = math.Min(score-cfg.Boundary1, cfg.Boundary2-score)
	case score < cfg.Boundary3:
		t = tier.Complex
		nearest = math.Min(score-cfg.Boundary2, cfg.Boundary3-score)
	default:
		t = tier.Reasoning
		nearest = score - cfg.Boundary3
	}

	dist := math.Abs(nearest)
	confidence := 1 / (1 + math.Exp(-cfg.ConfidenceSteepness*dist))

	if confidence < cfg.ConfidenceThreshold {
		return nil, confidence
	}
	return &t, confidence
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

func keywordSignal(lower string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	return math.Min(float64(matches)/3.0, 1.0)
}

func tokenLengthSignal(userTokens int, cfg ScoringConfig) float64 {
	switch {
	case userTokens <= cfg.SimpleTokenBand:
		return 0
	case userTokens >= cfg.ComplexTokenBand:
		return 1
	default:
		span := float64(cfg.ComplexTokenBand - cfg.SimpleTokenBand)
		return float64(userTokens-cfg.SimpleTokenBand) / span
	}
}

var stepPattern = regexp.MustCompile(`(?im)^\s*(\d+[.)]|step\s+\d+)`)

func multiStepSignal(lower string) float64 {
	count := len(stepPattern.FindAllString(lower, -1))
	if strings.Contains(lower, "then") || strings.Contains(lower, "after that") {
		count++
	}
	return math.Min(float64(count)/3.0, 1.0)
}

func questionComplexitySignal(prompt string) float64 {
	qMarks := strings.Count(prompt, "?")
	return math.Min(float64(qMarks)/3.0, 1.0)
}
