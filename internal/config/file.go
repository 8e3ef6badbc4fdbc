package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileConfig is the on-disk shape of freerouter.config.json. Every field
// is optional; Merge lays FileConfig over the built-in defaults so a
// config file can override just the pieces it cares about (§5). See
// Merge for which collections are merged per key and which are replaced
// whole.
type FileConfig struct {
	Port     int                         `json:"port,omitempty"`
	Host     string                      `json:"host,omitempty"`
	Providers map[string]ProviderFile    `json:"providers,omitempty"`
	Tiers     map[string]TierFile        `json:"tiers,omitempty"`
	AgenticTiers map[string]TierFile     `json:"agenticTiers,omitempty"`
	TierBoundaries *TierBoundariesFile   `json:"tierBoundaries,omitempty"`
	Thinking  *ThinkingFile              `json:"thinking,omitempty"`
	Timeouts  *TimeoutsFile              `json:"timeouts,omitempty"`
}

type ProviderFile struct {
	API           string            `json:"api"`
	BaseURL       string            `json:"baseUrl,omitempty"`
	StaticHeaders map[string]string `json:"staticHeaders,omitempty"`
	DefaultModel  string            `json:"defaultModel,omitempty"`
	Models        map[string]ModelFile `json:"models,omitempty"`
}

type ModelFile struct {
	ContextWindow int     `json:"contextWindow,omitempty"`
	InputPrice    float64 `json:"inputPrice,omitempty"`
	OutputPrice   float64 `json:"outputPrice,omitempty"`
}

type TierFile struct {
	Primary  string   `json:"primary"`
	Fallback []string `json:"fallback,omitempty"`
}

type TierBoundariesFile struct {
	B1 *float64 `json:"b1,omitempty"`
	B2 *float64 `json:"b2,omitempty"`
	B3 *float64 `json:"b3,omitempty"`
}

type ThinkingFile struct {
	AdaptivePatterns []string `json:"adaptivePatterns,omitempty"`
	EnabledModels    []string `json:"enabledModels,omitempty"`
	BudgetTokens     int      `json:"budgetTokens,omitempty"`
}

type TimeoutsFile struct {
	SimpleMs    int `json:"simpleMs,omitempty"`
	MediumMs    int `json:"mediumMs,omitempty"`
	ComplexMs   int `json:"complexMs,omitempty"`
	ReasoningMs int `json:"reasoningMs,omitempty"`
	StreamStallMs int `json:"streamStallMs,omitempty"`
}

// ConfigPath resolves the search order from §5: FREEROUTER_CONFIG env
// var, ./freerouter.config.json, ~/.config/freerouter/config.json. It
// returns "" if none exist, which the caller treats as "use defaults".
func ConfigPath() string {
	if v := os.Getenv("FREEROUTER_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("freerouter.config.json"); err == nil {
		return "freerouter.config.json"
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "freerouter", "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadFile reads and parses a config file, expanding a leading "~/" in
// string values understood to be paths and substituting "$VAR"
// references against the process environment.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	expandFileConfig(&fc)
	return fc, nil
}

func expandFileConfig(fc *FileConfig) {
	fc.Host = expandString(fc.Host)
	for id, p := range fc.Providers {
		p.BaseURL = expandString(p.BaseURL)
		for k, v := range p.StaticHeaders {
			p.StaticHeaders[k] = expandString(v)
		}
		fc.Providers[id] = p
	}
}

func expandString(s string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return os.Expand(s, func(name string) string {
		return os.Getenv(name)
	})
}
