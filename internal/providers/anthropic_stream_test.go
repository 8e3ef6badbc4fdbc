package providers

import "testing"

func collectChunks(t *testing.T, state *anthropicStreamState, events []anthropicStreamEvent) []FrontChunk {
	t.Helper()
	var chunks []FrontChunk
	for _, e := range events {
		if err := state.handleEvent(e, func(c FrontChunk) error {
			chunks = append(chunks, c)
			return nil
		}); err != nil {
			t.Fatalf("handleEvent(%s): %v", e.Type, err)
		}
	}
	return chunks
}

func textDeltaEvent(text string) anthropicStreamEvent {
	e := anthropicStreamEvent{Type: "content_block_delta"}
	e.Delta.Type = "text_delta"
	e.Delta.Text = text
	return e
}

func TestStreamStateEmitsTextDeltasInOrder(t *testing.T) {
	state := newAnthropicStreamState("claude-sonnet-4")
	textStart := anthropicStreamEvent{Type: "content_block_start"}
	textStart.ContentBlock.Type = "text"
	events := []anthropicStreamEvent{
		textStart,
		textDeltaEvent("hello"),
		textDeltaEvent(" world"),
		{Type: "content_block_stop"},
	}
	chunks := collectChunks(t, state, events)

	if len(chunks) != 3 {
		t.Fatalf("expected role-open chunk + two text deltas, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Choices[0].Delta.Role != "assistant" {
		t.Fatalf("first chunk should open the assistant role, got %+v", chunks[0].Choices[0].Delta)
	}
	if chunks[1].Choices[0].Delta.Content != "hello" || chunks[2].Choices[0].Delta.Content != " world" {
		t.Fatalf("text deltas out of order or wrong content: %+v", chunks)
	}
}

func TestStreamStateSuppressesThinkingDeltas(t *testing.T) {
	state := newAnthropicStreamState("claude-opus-4-6")
	thinkingStart := anthropicStreamEvent{Type: "content_block_start"}
	thinkingStart.ContentBlock.Type = "thinking"
	thinkingDelta := anthropicStreamEvent{Type: "content_block_delta"}
	thinkingDelta.Delta.Type = "thinking_delta"
	thinkingDelta.Delta.Text = "pondering..."
	sigDelta := anthropicStreamEvent{Type: "content_block_delta"}
	sigDelta.Delta.Type = "signature_delta"

	chunks := collectChunks(t, state, []anthropicStreamEvent{thinkingStart, thinkingDelta, sigDelta, {Type: "content_block_stop"}})
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks emitted for a thinking block, got %+v", chunks)
	}
}

func TestStreamStateAssignsStableToolCallIndices(t *testing.T) {
	state := newAnthropicStreamState("claude-sonnet-4")

	firstStart := anthropicStreamEvent{Type: "content_block_start"}
	firstStart.ContentBlock.Type = "tool_use"
	firstStart.ContentBlock.ID = "call_1"
	firstStart.ContentBlock.Name = "lookup"

	firstDelta := anthropicStreamEvent{Type: "content_block_delta"}
	firstDelta.Delta.Type = "input_json_delta"
	firstDelta.Delta.PartialJSON = `{"q":`

	secondStart := anthropicStreamEvent{Type: "content_block_start"}
	secondStart.ContentBlock.Type = "tool_use"
	secondStart.ContentBlock.ID = "call_2"
	secondStart.ContentBlock.Name = "search"

	chunks := collectChunks(t, state, []anthropicStreamEvent{firstStart, firstDelta, {Type: "content_block_stop"}, secondStart})

	if len(chunks) != 3 {
		t.Fatalf("expected tool_use start + input delta + second tool_use start, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Choices[0].Delta.ToolCalls[0].Index != 0 {
		t.Fatalf("first tool call index = %d, want 0", chunks[0].Choices[0].Delta.ToolCalls[0].Index)
	}
	if chunks[1].Choices[0].Delta.ToolCalls[0].Index != 0 {
		t.Fatalf("first tool call's argument delta index = %d, want 0", chunks[1].Choices[0].Delta.ToolCalls[0].Index)
	}
	if chunks[2].Choices[0].Delta.ToolCalls[0].Index != 1 {
		t.Fatalf("second tool call index = %d, want 1", chunks[2].Choices[0].Delta.ToolCalls[0].Index)
	}
}

func TestStreamStateMessageStopMapsStopReasonAndToolCalls(t *testing.T) {
	state := newAnthropicStreamState("claude-sonnet-4")
	toolStart := anthropicStreamEvent{Type: "content_block_start"}
	toolStart.ContentBlock.Type = "tool_use"
	toolStart.ContentBlock.ID = "call_1"

	msgDelta := anthropicStreamEvent{Type: "message_delta"}
	msgDelta.Delta.StopReason = "tool_use"

	chunks := collectChunks(t, state, []anthropicStreamEvent{toolStart, msgDelta, {Type: "message_stop"}})
	last := chunks[len(chunks)-1]
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "tool_calls" {
		t.Fatalf("finish reason = %v, want tool_calls", last.Choices[0].FinishReason)
	}
}

func TestStreamStateMessageStopDefaultsToStop(t *testing.T) {
	state := newAnthropicStreamState("claude-haiku-4")
	chunks := collectChunks(t, state, []anthropicStreamEvent{{Type: "message_stop"}})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one final chunk, got %d", len(chunks))
	}
	if *chunks[0].Choices[0].FinishReason != "stop" {
		t.Fatalf("finish reason = %q, want stop", *chunks[0].Choices[0].FinishReason)
	}
}

func TestDecodeAnthropicEventRoundTrips(t *testing.T) {
	event, err := decodeAnthropicEvent([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != "content_block_delta" || event.Delta.Text != "hi" {
		t.Fatalf("decoded event = %+v", event)
	}
}
