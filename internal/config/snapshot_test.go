package config

import (
	"testing"

	"github.com/freerouter/gateway/internal/tier"
)

func TestDefaultSnapshotValidates(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("default snapshot failed validation: %v", err)
	}
}

func TestReloadRejectsUnresolvedTierModel(t *testing.T) {
	store := NewStore(Default())
	bad := Default()
	entry := bad.BaseTiers[tier.Simple]
	entry.Primary = "nosuchprovider/ghost-model"
	bad.BaseTiers[tier.Simple] = entry

	if err := store.Reload(bad); err == nil {
		t.Fatalf("expected reload to reject an unresolved primary model")
	}
	if store.Load().BaseTiers[tier.Simple].Primary != Default().BaseTiers[tier.Simple].Primary {
		t.Fatalf("a failed reload must leave the previous snapshot in place")
	}
}

func TestMergeOverridesPort(t *testing.T) {
	base := Default()
	merged := Merge(base, FileConfig{Port: 9999})
	if merged.Port != 9999 {
		t.Fatalf("Port = %d, want 9999", merged.Port)
	}
}

func TestMergeTierTableReplacesNotAppends(t *testing.T) {
	base := Default()
	fc := FileConfig{
		Tiers: map[string]TierFile{
			"SIMPLE": {Primary: "openai/gpt-4o-mini"},
		},
	}
	merged := Merge(base, fc)
	if len(merged.BaseTiers) != len(base.BaseTiers) {
		t.Fatalf("expected tiers the file does not name to keep their defaults, got %d entries", len(merged.BaseTiers))
	}
	if merged.BaseTiers[tier.Simple].Primary != "openai/gpt-4o-mini" {
		t.Fatalf("got %v", merged.BaseTiers[tier.Simple])
	}
}

func TestMergeProviderOverlayKeepsOtherProviders(t *testing.T) {
	base := Default()
	fc := FileConfig{
		Providers: map[string]ProviderFile{
			"anthropic": {BaseURL: "https://custom.example.com"},
		},
	}
	merged := Merge(base, fc)
	if merged.Descriptors["anthropic"].BaseURL != "https://custom.example.com" {
		t.Fatalf("anthropic BaseURL not overridden")
	}
	if _, ok := merged.Descriptors["openai"]; !ok {
		t.Fatalf("expected openai descriptor to survive the merge untouched")
	}
}
