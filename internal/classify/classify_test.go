package classify

import (
	"strings"
	"testing"

	"github.com/freerouter/gateway/internal/tier"
)

func TestClassifySimpleGreeting(t *testing.T) {
	cfg := DefaultScoringConfig()
	res := Classify("hello", "", "hello", cfg)
	if res.Tier == nil {
		t.Fatalf("expected a confident tier for a greeting, got nil (confidence %v)", res.Confidence)
	}
	if *res.Tier != tier.Simple {
		t.Fatalf("tier = %v, want SIMPLE", *res.Tier)
	}
}

func TestClassifyForcesComplexOverMaxTokens(t *testing.T) {
	cfg := DefaultScoringConfig()
	huge := strings.Repeat("a", (cfg.MaxTokensForceComplex+1)*4)
	res := Classify(huge, "", "question", cfg)
	if res.Tier == nil || *res.Tier != tier.Complex {
		t.Fatalf("expected forced COMPLEX tier, got %v", res.Tier)
	}
	if res.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95 on forced override, got %v", res.Confidence)
	}
}

func TestClassifyDoesNotForceAtExactBoundary(t *testing.T) {
	cfg := DefaultScoringConfig()
	exact := strings.Repeat("a", cfg.MaxTokensForceComplex*4)
	res := Classify(exact, "", "question", cfg)
	if res.TotalTokens > cfg.MaxTokensForceComplex && (res.Tier == nil || *res.Tier != tier.Complex) {
		t.Fatalf("unexpected state at exact boundary: tokens=%d tier=%v", res.TotalTokens, res.Tier)
	}
}

func TestClassifyStructuredOutputUpgradesFromUserPromptOnly(t *testing.T) {
	cfg := DefaultScoringConfig()
	res := Classify("give me json please", "", "give me json please", cfg)
	if res.Tier == nil {
		t.Fatalf("expected a tier, got nil")
	}
	if *res.Tier < tier.Medium {
		t.Fatalf("tier = %v, want at least MEDIUM after structured-output override", *res.Tier)
	}
}

func TestClassifySystemPromptJSONDoesNotTriggerUpgrade(t *testing.T) {
	cfg := DefaultScoringConfig()
	res := Classify("hello", "return responses as json", "hello", cfg)
	if res.Tier == nil {
		t.Fatalf("expected a tier, got nil")
	}
	if *res.Tier != tier.Simple {
		t.Fatalf("tier = %v, want SIMPLE: structured-output override must only look at the user message, not the system prompt", *res.Tier)
	}
}

func TestClassifyLongSystemPromptDoesNotInflateComplexity(t *testing.T) {
	cfg := DefaultScoringConfig()
	longSystem := strings.Repeat("be helpful and polite. ", 2000) // ~40000 chars
	res := Classify("hello\n"+longSystem, longSystem, "hello", cfg)
	if res.Tier == nil {
		t.Fatalf("expected a tier, got nil")
	}
	if *res.Tier != tier.Simple {
		t.Fatalf("tier = %v, want SIMPLE: a bulky but low-signal system prompt should not shift the tier", *res.Tier)
	}
}

func TestClassifyLowConfidenceReturnsNilTier(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.ConfidenceThreshold = 0.999999
	res := Classify("some moderately technical question about architecture", "", "some moderately technical question about architecture", cfg)
	if res.Tier != nil {
		t.Fatalf("expected nil tier with an unreachable confidence threshold, got %v", *res.Tier)
	}
}

func TestClassifyAgenticSignalPresent(t *testing.T) {
	cfg := DefaultScoringConfig()
	res := Classify("first search for the file, then call the function to update it, then run the command to test", "", "first search for the file, then call the function to update it, then run the command to test", cfg)
	if res.AgenticScore <= 0 {
		t.Fatalf("expected a positive agentic score, got %v", res.AgenticScore)
	}
}
