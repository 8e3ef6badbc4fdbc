package config

import (
	"os"
	"sync"

	"github.com/freerouter/gateway/internal/providers"
)

// envVarsByProvider lists the credential env var(s) each provider
// descriptor ID reads. Anthropic prefers an OAuth token over an API
// key when both are set, matching the CLI's own precedence.
var envVarsByProvider = map[string][2]string{
	"anthropic":   {"ANTHROPIC_OAUTH_TOKEN", "ANTHROPIC_API_KEY"},
	"openai":      {"", "OPENAI_API_KEY"},
	"openrouter":  {"", "OPENROUTER_API_KEY"},
	"huggingface": {"", "HUGGINGFACE_API_KEY"},
	"mistral":     {"", "MISTRAL_API_KEY"},
	"ollama":      {"", "OLLAMA_API_KEY"}, // usually unused, ollama is typically unauthenticated
}

// EnvAuthSource implements providers.AuthSource by reading credential
// env vars. It caches the map so repeated GetAuth calls during a single
// request lifecycle don't hit os.Getenv per provider; Reload() is called
// on /reload to pick up changed env vars without restarting the process.
type EnvAuthSource struct {
	mu    sync.RWMutex
	creds map[string]providers.Credential
}

func NewEnvAuthSource() *EnvAuthSource {
	s := &EnvAuthSource{}
	s.Reload()
	return s
}

func (s *EnvAuthSource) Reload() {
	creds := make(map[string]providers.Credential, len(envVarsByProvider))
	for id, vars := range envVarsByProvider {
		oauthVar, apiKeyVar := vars[0], vars[1]
		var cred providers.Credential
		if oauthVar != "" {
			cred.Token = os.Getenv(oauthVar)
		}
		if apiKeyVar != "" {
			cred.APIKey = os.Getenv(apiKeyVar)
		}
		creds[id] = cred
	}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
}

func (s *EnvAuthSource) GetAuth(providerID string) providers.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds[providerID]
}
