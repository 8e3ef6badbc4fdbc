package classify

import (
	"regexp"
	"strings"

	"github.com/freerouter/gateway/internal/tier"
)

// overrideWords maps a mode word to the tier it forces. Unlisted words
// never match: the regexes below capture any word, and DetectOverride
// rejects a captured word that is not a key of this map.
var overrideWords = map[string]tier.Tier{
	"simple":    tier.Simple,
	"basic":     tier.Simple,
	"cheap":     tier.Simple,
	"medium":    tier.Medium,
	"balanced":  tier.Medium,
	"complex":   tier.Complex,
	"advanced":  tier.Complex,
	"max":       tier.Reasoning,
	"reasoning": tier.Reasoning,
	"think":     tier.Reasoning,
	"deep":      tier.Reasoning,
}

// Three patterns, tried in order, each anchored at the start of the
// string and case-insensitive (§4.2).
var (
	slashPattern = regexp.MustCompile(`(?is)^/(\w+)\s+`)
	modePattern  = regexp.MustCompile(`(?is)^(\w+)\s+mode[:,\s]+`)
	bracketPattern = regexp.MustCompile(`(?is)^\[(\w+)\]\s?`)
)

// Override is the result of a successful mode-override match.
type Override struct {
	Tier       tier.Tier
	Stripped   string // input with the matched prefix removed
}

// DetectOverride implements §4.2. It only matches the sentinel-model
// case is enforced by the caller (the override parser itself is pure and
// takes no opinion on req.Model). Returns ok=false if no prefix matched
// or the matched word isn't in the alias table.
func DetectOverride(input string) (Override, bool) {
	for _, pat := range []*regexp.Regexp{slashPattern, modePattern, bracketPattern} {
		m := pat.FindStringSubmatchIndex(input)
		if m == nil {
			continue
		}
		word := strings.ToLower(input[m[2]:m[3]])
		t, ok := overrideWords[word]
		if !ok {
			continue
		}
		return Override{Tier: t, Stripped: input[m[1]:]}, true
	}
	return Override{}, false
}
