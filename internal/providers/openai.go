package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIPassthroughProvider implements Provider for every upstream that
// already speaks the OpenAI chat-completions wire format (openai,
// openrouter, huggingface's router, mistral, a local ollama server).
// Grounded on the teacher's OpenAIProvider, generalized from one
// hard-coded vendor to any Descriptor by parameterizing BaseURL and
// per-vendor StaticHeaders (e.g. OpenRouter's HTTP-Referer).
type OpenAIPassthroughProvider struct {
	descriptor Descriptor
	client     *openai.Client
}

func NewOpenAIPassthroughProvider(d Descriptor, cred Credential, httpClient *http.Client) *OpenAIPassthroughProvider {
	key := cred.APIKey
	if key == "" {
		key = cred.Token
	}

	cfg := openai.DefaultConfig(key)
	if d.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(d.BaseURL, "/")
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := *httpClient
	if len(d.StaticHeaders) > 0 {
		client.Transport = &headerRoundTripper{headers: d.StaticHeaders, next: transport}
	}
	cfg.HTTPClient = &client

	return &OpenAIPassthroughProvider{descriptor: d, client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIPassthroughProvider) ID() string { return p.descriptor.ID }

// Complete ignores thinking: the OpenAI wire family has no extended-
// thinking concept, and the gateway's thinkingPolicyFor never resolves a
// non-Anthropic descriptor to anything but ThinkingPolicy{}.
func (p *OpenAIPassthroughProvider) Complete(ctx context.Context, req FrontRequest, model string, _ ThinkingPolicy) (FrontResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, model, false))
	if err != nil {
		return FrontResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return FrontResponse{}, errors.New("openai passthrough: no choices returned")
	}

	choices := make([]Choice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = Choice{
			Index:        i,
			FinishReason: string(c.FinishReason),
			Message: OutMessage{
				Role:      c.Message.Role,
				Content:   c.Message.Content,
				ToolCalls: toFrontToolCalls(c.Message.ToolCalls),
			},
		}
	}

	return FrontResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   "freerouter/" + model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIPassthroughProvider) StreamChat(ctx context.Context, req FrontRequest, model string, _ ThinkingPolicy, emit func(FrontChunk) error) error {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, model, true))
	if err != nil {
		return err
	}
	defer stream.Close()

	sawDone := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		choices := make([]ChunkChoice, len(resp.Choices))
		for i, c := range resp.Choices {
			var finish *string
			if c.FinishReason != "" {
				s := string(c.FinishReason)
				finish = &s
				sawDone = true
			}
			choices[i] = ChunkChoice{
				Index: i,
				Delta: ChunkDelta{
					Role:      c.Delta.Role,
					Content:   c.Delta.Content,
					ToolCalls: toDeltaToolCalls(c.Delta.ToolCalls),
				},
				FinishReason: finish,
			}
		}

		if err := emit(FrontChunk{
			ID:      resp.ID,
			Object:  "chat.completion.chunk",
			Created: resp.Created,
			Model:   "freerouter/" + model,
			Choices: choices,
		}); err != nil {
			return err
		}
	}

	if !sawDone {
		reason := "stop"
		return emit(FrontChunk{
			Object: "chat.completion.chunk",
			Model:  "freerouter/" + model,
			Choices: []ChunkChoice{{FinishReason: &reason}},
		})
	}
	return nil
}

func (p *OpenAIPassthroughProvider) buildRequest(req FrontRequest, model string, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
	}
	if len(req.ToolChoice) > 0 {
		out.ToolChoice = decodeToolChoice(req.ToolChoice)
	}
	return out
}

func toOpenAIMessages(in []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(in))
	for i, m := range in {
		out[i] = openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Text(),
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toOpenAIToolCalls(m.ToolCalls),
		}
	}
	return out
}

func toOpenAIToolCalls(in []ToolCall) []openai.ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, len(in))
	for i, tc := range in {
		out[i] = openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolType(tc.Type),
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func toFrontToolCalls(in []openai.ToolCall) []ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]ToolCall, len(in))
	for i, tc := range in {
		out[i] = ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: ToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func toDeltaToolCalls(in []openai.ToolCall) []DeltaToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]DeltaToolCall, len(in))
	for i, tc := range in {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
		}
		out[i] = DeltaToolCall{
			Index: idx,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: ToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

func toOpenAITools(in []Tool) []openai.Tool {
	out := make([]openai.Tool, len(in))
	for i, t := range in {
		out[i] = openai.Tool{
			Type: openai.ToolType(t.Type),
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		}
	}
	return out
}

func decodeToolChoice(raw []byte) any {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &named); err == nil {
		return openai.ToolChoice{
			Type:     openai.ToolType(named.Type),
			Function: openai.ToolFunction{Name: named.Function.Name},
		}
	}
	return "auto"
}

// headerRoundTripper injects a provider's static headers (e.g.
// OpenRouter's HTTP-Referer/X-Title) into every outgoing request.
type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return h.next.RoundTrip(req)
}
