package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// anthropicOAuthBetas is sent as the anthropic-beta header on every
// OAuth-authenticated request; it advertises the feature set the
// Claude Code CLI itself negotiates (§4.5).
const anthropicOAuthBetas = "oauth-2025-04-20,prompt-caching-2024-07-31"

// AnthropicProvider implements Provider against Anthropic's messages
// API, translating the OpenAI-compatible front shape on the way in and
// out. Grounded on the teacher's AnthropicProvider in internal/llm, with
// the request/response bodies replaced by the tool/thinking-aware wire
// types in anthropic_translate.go and anthropic_stream.go.
type AnthropicProvider struct {
	descriptor Descriptor
	cred       Credential
	httpClient *http.Client
}

func NewAnthropicProvider(d Descriptor, cred Credential, httpClient *http.Client) *AnthropicProvider {
	baseURL := d.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	d.BaseURL = baseURL
	return &AnthropicProvider{descriptor: d, cred: cred, httpClient: httpClient}
}

func (p *AnthropicProvider) ID() string { return p.descriptor.ID }

func (p *AnthropicProvider) setHeaders(httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Accept", "application/json")

	if p.cred.IsOAuth() {
		httpReq.Header.Set("Authorization", "Bearer "+p.cred.Token)
		httpReq.Header.Set("anthropic-beta", anthropicOAuthBetas)
		httpReq.Header.Set("User-Agent", "claude-cli/1.0 (external, cli)")
		httpReq.Header.Set("X-App", "cli")
		httpReq.Header.Set("anthropic-dangerous-direct-browser-access", "true")
	} else {
		httpReq.Header.Set("x-api-key", p.cred.APIKey)
	}

	for k, v := range p.descriptor.StaticHeaders {
		httpReq.Header.Set(k, v)
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy) (FrontResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if thinking.Kind == "enabled" {
		maxTokens += thinking.BudgetTokens
	}

	anthropicReq, err := ToAnthropicRequest(req, model, p.cred, maxTokens, thinking)
	if err != nil {
		return FrontResponse{}, fmt.Errorf("build anthropic request: %w", err)
	}

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return FrontResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.descriptor.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return FrontResponse{}, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return FrontResponse{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return FrontResponse{}, fmt.Errorf("anthropic error %d: %s", resp.StatusCode, string(respBody))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return FrontResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return FromAnthropicResponse(anthropicResp, model), nil
}

// StreamChat implements Provider.StreamChat. The thinking policy is
// resolved by internal/config per tier/model and handed down already
// decided, so the translation here is the same branch Complete uses.
func (p *AnthropicProvider) StreamChat(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy, emit func(FrontChunk) error) error {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if thinking.Kind == "enabled" {
		maxTokens += thinking.BudgetTokens
	}

	anthropicReq, err := ToAnthropicRequest(req, model, p.cred, maxTokens, thinking)
	if err != nil {
		return fmt.Errorf("build anthropic request: %w", err)
	}
	anthropicReq.Stream = true

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.descriptor.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic error %d: %s", resp.StatusCode, string(respBody))
	}

	state := newAnthropicStreamState(model)
	buf := make([]byte, 0, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := readSSELine(resp.Body, &buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}

		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		event, err := decodeAnthropicEvent(data)
		if err != nil {
			continue // skip malformed events, matching the teacher's tolerance
		}
		if err := state.handleEvent(event, emit); err != nil {
			return err
		}
		if event.Type == "message_stop" {
			return nil
		}
	}
}

// readSSELine reads a single line from an SSE stream, one byte at a
// time; adapted verbatim from the teacher's internal/llm helper.
func readSSELine(r io.Reader, buf *[]byte) ([]byte, error) {
	*buf = (*buf)[:0]
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if err != nil {
			return *buf, err
		}
		if n == 0 {
			continue
		}
		if b[0] == '\n' {
			return *buf, nil
		}
		*buf = append(*buf, b[0])
	}
}
