package providers

import (
	"encoding/json"
	"testing"
)

func rawContent(t *testing.T, s string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestBuildSystemBlocksAPIKeyConcatenatesPlainString(t *testing.T) {
	req := FrontRequest{Messages: []Message{
		{Role: "system", RawContent: rawContent(t, "be terse")},
		{Role: "developer", RawContent: rawContent(t, "obey the user")},
		{Role: "user", RawContent: rawContent(t, "hi")},
	}}

	system, err := buildSystemBlocks(req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got string
	if err := json.Unmarshal(system, &got); err != nil {
		t.Fatalf("expected a plain JSON string, got %s: %v", system, err)
	}
	want := "be terse\nobey the user"
	if got != want {
		t.Fatalf("system = %q, want %q", got, want)
	}
}

func TestBuildSystemBlocksAPIKeyNoSystemMessagesOmitsField(t *testing.T) {
	req := FrontRequest{Messages: []Message{{Role: "user", RawContent: rawContent(t, "hi")}}}

	system, err := buildSystemBlocks(req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system != nil {
		t.Fatalf("expected nil system for a request with no system/developer messages, got %s", system)
	}
}

func TestBuildSystemBlocksOAuthEmitsTwoCachedBlocks(t *testing.T) {
	req := FrontRequest{Messages: []Message{
		{Role: "system", RawContent: rawContent(t, "be terse")},
		{Role: "system", RawContent: rawContent(t, "never apologize")},
		{Role: "user", RawContent: rawContent(t, "hi")},
	}}

	system, err := buildSystemBlocks(req, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var blocks []anthropicSystemBlock
	if err := json.Unmarshal(system, &blocks); err != nil {
		t.Fatalf("expected an array of blocks, got %s: %v", system, err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected exactly two blocks (identity + concatenated system), got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Text != claudeCodeIdentity {
		t.Fatalf("blocks[0].Text = %q, want the claude code identity string", blocks[0].Text)
	}
	if blocks[0].CacheControl == nil || blocks[0].CacheControl.Type != "ephemeral" {
		t.Fatalf("blocks[0] is not ephemeral-cached: %+v", blocks[0])
	}
	want := "be terse\nnever apologize"
	if blocks[1].Text != want {
		t.Fatalf("blocks[1].Text = %q, want %q", blocks[1].Text, want)
	}
	if blocks[1].CacheControl == nil || blocks[1].CacheControl.Type != "ephemeral" {
		t.Fatalf("blocks[1] is not ephemeral-cached: %+v", blocks[1])
	}
}

func TestBuildSystemBlocksOAuthNoSystemMessagesStillEmitsIdentity(t *testing.T) {
	req := FrontRequest{Messages: []Message{{Role: "user", RawContent: rawContent(t, "hi")}}}

	system, err := buildSystemBlocks(req, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var blocks []anthropicSystemBlock
	if err := json.Unmarshal(system, &blocks); err != nil {
		t.Fatalf("expected an array of blocks, got %s: %v", system, err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected only the identity block when there are no system messages, got %d", len(blocks))
	}
}

func TestToAnthropicRequestAdaptiveThinkingSuppressesTemperature(t *testing.T) {
	temp := 0.7
	req := FrontRequest{
		Messages:    []Message{{Role: "user", RawContent: rawContent(t, "hi")}},
		Temperature: &temp,
	}

	out, err := ToAnthropicRequest(req, "claude-opus-4-6", Credential{APIKey: "x"}, 4096, ThinkingPolicy{Kind: "adaptive"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Thinking == nil || out.Thinking.Type != "adaptive" {
		t.Fatalf("Thinking = %+v, want adaptive", out.Thinking)
	}
	if out.Thinking.BudgetTokens != 0 {
		t.Fatalf("BudgetTokens = %d, want 0 for adaptive thinking", out.Thinking.BudgetTokens)
	}
	if out.Temperature != nil {
		t.Fatalf("Temperature = %v, want nil alongside thinking", out.Temperature)
	}
}

func TestToAnthropicRequestEnabledThinkingCarriesBudget(t *testing.T) {
	req := FrontRequest{Messages: []Message{{Role: "user", RawContent: rawContent(t, "hi")}}}

	out, err := ToAnthropicRequest(req, "claude-sonnet-4", Credential{APIKey: "x"}, 8192, ThinkingPolicy{Kind: "enabled", BudgetTokens: 4096})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Thinking == nil || out.Thinking.Type != "enabled" {
		t.Fatalf("Thinking = %+v, want enabled", out.Thinking)
	}
	if out.Thinking.BudgetTokens != 4096 {
		t.Fatalf("BudgetTokens = %d, want 4096", out.Thinking.BudgetTokens)
	}
	if out.MaxTokens != 8192 {
		t.Fatalf("MaxTokens = %d, want the caller-raised 8192", out.MaxTokens)
	}
}

func TestToAnthropicRequestNoThinkingKeepsTemperature(t *testing.T) {
	temp := 0.3
	req := FrontRequest{
		Messages:    []Message{{Role: "user", RawContent: rawContent(t, "hi")}},
		Temperature: &temp,
	}

	out, err := ToAnthropicRequest(req, "claude-haiku-4", Credential{APIKey: "x"}, 4096, ThinkingPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Thinking != nil {
		t.Fatalf("Thinking = %+v, want nil", out.Thinking)
	}
	if out.Temperature == nil || *out.Temperature != temp {
		t.Fatalf("Temperature = %v, want %v", out.Temperature, temp)
	}
}

func TestBuildAnthropicMessagesCoalescesAdjacentToolResults(t *testing.T) {
	in := []Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "call_1", Type: "function", Function: ToolCallFunc{Name: "a", Arguments: "{}"}},
			{ID: "call_2", Type: "function", Function: ToolCallFunc{Name: "b", Arguments: "{}"}},
		}},
		{Role: "tool", ToolCallID: "call_1", RawContent: rawContent(t, "result a")},
		{Role: "tool", ToolCallID: "call_2", RawContent: rawContent(t, "result b")},
	}

	out, err := buildAnthropicMessages(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected assistant turn + one coalesced user turn, got %d messages", len(out))
	}
	toolTurn := out[1]
	if toolTurn.Role != "user" {
		t.Fatalf("coalesced turn role = %q, want user", toolTurn.Role)
	}
	if len(toolTurn.Content) != 2 {
		t.Fatalf("expected both tool results coalesced into one turn, got %d blocks", len(toolTurn.Content))
	}
}

func TestBuildAnthropicMessagesDoesNotMergeAcrossAssistantTurn(t *testing.T) {
	in := []Message{
		{Role: "tool", ToolCallID: "call_1", RawContent: rawContent(t, "result a")},
		{Role: "assistant", RawContent: rawContent(t, "ok")},
		{Role: "tool", ToolCallID: "call_2", RawContent: rawContent(t, "result b")},
	}

	out, err := buildAnthropicMessages(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected the intervening assistant turn to block coalescing, got %d messages", len(out))
	}
}

func TestTranslateToolChoiceMapsBareStrings(t *testing.T) {
	cases := map[string]string{
		`"none"`:     `{"type":"none"}`,
		`"required"`: `{"type":"any"}`,
		`"auto"`:     `{"type":"auto"}`,
	}
	for in, want := range cases {
		got := translateToolChoice(json.RawMessage(in))
		if string(got) != want {
			t.Fatalf("translateToolChoice(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestTranslateToolChoiceMapsNamedFunction(t *testing.T) {
	in := json.RawMessage(`{"type":"function","function":{"name":"lookup"}}`)
	got := translateToolChoice(in)
	var decoded map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "tool" || decoded["name"] != "lookup" {
		t.Fatalf("translateToolChoice(named) = %v", decoded)
	}
}

func TestFromAnthropicResponseMapsToolUseAndStopReason(t *testing.T) {
	resp := anthropicResponse{
		ID:    "msg_1",
		Model: "claude-sonnet-4",
		Content: []anthropicContentBlock{
			{Type: "tool_use", ID: "call_1", Name: "lookup", Input: json.RawMessage(`{"q":"x"}`)},
		},
		StopReason: "tool_use",
		Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 5},
	}

	out := FromAnthropicResponse(resp, "claude-sonnet-4")
	if out.Model != "freerouter/claude-sonnet-4" {
		t.Fatalf("Model = %q", out.Model)
	}
	if len(out.Choices) != 1 || out.Choices[0].FinishReason != "tool_calls" {
		t.Fatalf("FinishReason = %q, want tool_calls", out.Choices[0].FinishReason)
	}
	if len(out.Choices[0].Message.ToolCalls) != 1 || out.Choices[0].Message.ToolCalls[0].Function.Name != "lookup" {
		t.Fatalf("ToolCalls = %+v", out.Choices[0].Message.ToolCalls)
	}
	if out.Usage.TotalTokens != 15 {
		t.Fatalf("TotalTokens = %d, want 15", out.Usage.TotalTokens)
	}
}
