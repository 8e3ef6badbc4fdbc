package providers

import (
	"encoding/json"
	"strings"
)

// anthropicRequest is the request body for Anthropic's messages API.
// System is json.RawMessage because its shape depends on the credential:
// a plain JSON string for API-key auth, a two-block cached array for
// OAuth (see buildSystemBlocks).
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      json.RawMessage    `json:"system,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	ToolChoice  json.RawMessage    `json:"tool_choice,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicSystemBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// anthropicContentBlock covers every block shape the translator needs:
// text, tool_use (assistant-issued calls) and tool_result (their replies).
type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// claudeCodeIdentity is prepended to the system blocks for OAuth-token
// requests. Anthropic's OAuth tokens are scoped to its CLI client and
// the upstream rejects requests from OAuth credentials that don't
// identify themselves this way (§4.5).
const claudeCodeIdentity = "You are Claude Code, Anthropic's official CLI for Claude."

// ToAnthropicRequest translates a front-side FrontRequest into the
// Anthropic wire shape. policy is already resolved by internal/config
// against tier and model capability; this function only attaches what
// it's told to.
func ToAnthropicRequest(req FrontRequest, model string, cred Credential, maxTokens int, policy ThinkingPolicy) (anthropicRequest, error) {
	system, err := buildSystemBlocks(req, cred.IsOAuth())
	if err != nil {
		return anthropicRequest{}, err
	}

	out := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Stream:    req.Stream,
		System:    system,
	}

	messages, err := buildAnthropicMessages(req.Messages)
	if err != nil {
		return anthropicRequest{}, err
	}
	out.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]anthropicTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema := t.Function.Parameters
			if len(schema) == 0 {
				schema = json.RawMessage(`{"type":"object","properties":{}}`)
			}
			tools = append(tools, anthropicTool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				InputSchema: schema,
			})
		}
		out.Tools = tools
		out.ToolChoice = translateToolChoice(req.ToolChoice)
	}

	switch policy.Kind {
	case "adaptive":
		out.Thinking = &anthropicThinking{Type: "adaptive"}
		out.Temperature = nil // Anthropic rejects temperature alongside thinking
	case "enabled":
		out.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: policy.BudgetTokens}
		out.Temperature = nil
	default:
		out.Temperature = req.Temperature
	}

	return out, nil
}

// buildSystemBlocks implements the system-prompt rule: every system and
// developer message is concatenated into one string with the same "\n"
// join the context-extraction step uses, then for OAuth credentials
// that string becomes the second of exactly two ephemeral-cached blocks
// (the Claude Code identity block first); for API-key credentials it's
// emitted as a plain JSON string, matching how a non-CLI caller of the
// messages API sends "system".
func buildSystemBlocks(req FrontRequest, isOAuth bool) (json.RawMessage, error) {
	var parts []string
	for _, m := range req.Messages {
		if m.Role != "system" && m.Role != "developer" {
			continue
		}
		if text := m.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	joined := strings.Join(parts, "\n")

	if !isOAuth {
		if joined == "" {
			return nil, nil
		}
		return json.Marshal(joined)
	}

	blocks := []anthropicSystemBlock{
		{Type: "text", Text: claudeCodeIdentity, CacheControl: &anthropicCacheControl{Type: "ephemeral"}},
	}
	if joined != "" {
		blocks = append(blocks, anthropicSystemBlock{
			Type:         "text",
			Text:         joined,
			CacheControl: &anthropicCacheControl{Type: "ephemeral"},
		})
	}
	return json.Marshal(blocks)
}

// buildAnthropicMessages converts the conversation turns, coalescing a
// run of consecutive tool-result messages into the content array of the
// preceding all-tool-result user turn only when that turn directly
// precedes them — a conservative rule that never merges tool results
// across an intervening assistant or text-bearing user turn.
func buildAnthropicMessages(in []Message) ([]anthropicMessage, error) {
	var out []anthropicMessage
	trailingAllToolResults := false

	for _, m := range in {
		if m.Role == "system" || m.Role == "developer" {
			continue
		}

		switch m.Role {
		case "tool":
			block := anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Text(),
			}
			if trailingAllToolResults && len(out) > 0 {
				out[len(out)-1].Content = append(out[len(out)-1].Content, block)
			} else {
				out = append(out, anthropicMessage{Role: "user", Content: []anthropicContentBlock{block}})
				trailingAllToolResults = true
			}
		case "assistant":
			var blocks []anthropicContentBlock
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: text})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if len(input) == 0 || !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
			trailingAllToolResults = false
		default: // user
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Text()}},
			})
			trailingAllToolResults = false
		}
	}
	return out, nil
}

// translateToolChoice maps the OpenAI-shaped tool_choice value (a bare
// string "none"/"auto"/"required" or a {"type":"function","function":
// {"name":...}} object) to Anthropic's {"type":...} shape.
func translateToolChoice(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "none":
			return json.RawMessage(`{"type":"none"}`)
		case "required":
			return json.RawMessage(`{"type":"any"}`)
		default: // "auto"
			return json.RawMessage(`{"type":"auto"}`)
		}
	}

	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &named); err == nil && named.Function.Name != "" {
		out, _ := json.Marshal(map[string]string{"type": "tool", "name": named.Function.Name})
		return out
	}
	return json.RawMessage(`{"type":"auto"}`)
}

// FromAnthropicResponse translates a non-streaming Anthropic response
// into the front-side FrontResponse shape, namespacing the model under
// "freerouter/" so clients can see which upstream actually served them.
func FromAnthropicResponse(resp anthropicResponse, requestedModel string) FrontResponse {
	var text string
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			args := block.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}

	return FrontResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Model:   "freerouter/" + requestedModel,
		Choices: []Choice{{
			Index: 0,
			Message: OutMessage{
				Role:      "assistant",
				Content:   text,
				ToolCalls: toolCalls,
			},
			FinishReason: mapStopReason(resp.StopReason, len(toolCalls) > 0),
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

func mapStopReason(stopReason string, hasToolCalls bool) string {
	switch stopReason {
	case "tool_use":
		return "tool_calls"
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	case "stop_sequence":
		return "stop"
	default:
		if hasToolCalls {
			return "tool_calls"
		}
		return "stop"
	}
}
