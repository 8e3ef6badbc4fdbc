package providers

import (
	"encoding/json"
)

// anthropicStreamEvent covers every SSE event type the translator acts
// on; fields not relevant to a given type are left zero.
type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicStreamState tracks the in-flight content block across SSE
// events so content_block_delta knows whether it's looking at a text,
// thinking, or tool_use block, and assigns each tool_use block a stable
// OpenAI-style delta index.
type anthropicStreamState struct {
	model           string
	currentBlockType string
	currentToolIndex int
	toolCallIndex    int
	lastStopReason   string
	sawToolCalls     bool
}

func newAnthropicStreamState(model string) *anthropicStreamState {
	return &anthropicStreamState{model: model, toolCallIndex: -1}
}

// handleEvent processes one decoded SSE event and emits zero or more
// FrontChunks. Thinking deltas are tracked only to keep block-type state
// consistent; their text is never emitted to the client (§8's
// no-thinking-leak property).
func (s *anthropicStreamState) handleEvent(event anthropicStreamEvent, emit func(FrontChunk) error) error {
	switch event.Type {
	case "content_block_start":
		s.currentBlockType = event.ContentBlock.Type
		if event.ContentBlock.Type == "tool_use" {
			s.toolCallIndex++
			s.sawToolCalls = true
			return emit(s.chunk(ChunkDelta{
				ToolCalls: []DeltaToolCall{{
					Index: s.toolCallIndex,
					ID:    event.ContentBlock.ID,
					Type:  "function",
					Function: ToolCallFunc{
						Name:      event.ContentBlock.Name,
						Arguments: "",
					},
				}},
			}))
		}
		if event.ContentBlock.Type == "text" {
			return emit(s.chunk(ChunkDelta{Role: "assistant"}))
		}
		return nil

	case "content_block_delta":
		switch event.Delta.Type {
		case "text_delta":
			if s.currentBlockType != "text" || event.Delta.Text == "" {
				return nil
			}
			return emit(s.chunk(ChunkDelta{Content: event.Delta.Text}))
		case "input_json_delta":
			if s.currentBlockType != "tool_use" {
				return nil
			}
			return emit(s.chunk(ChunkDelta{
				ToolCalls: []DeltaToolCall{{
					Index:    s.toolCallIndex,
					Function: ToolCallFunc{Arguments: event.Delta.PartialJSON},
				}},
			}))
		case "thinking_delta", "signature_delta":
			return nil // never forwarded to the client
		}
		return nil

	case "content_block_stop":
		s.currentBlockType = ""
		return nil

	case "message_delta":
		if event.Delta.StopReason != "" {
			s.lastStopReason = event.Delta.StopReason
		}
		return nil

	case "message_stop":
		reason := mapStopReason(s.lastStopReason, s.sawToolCalls)
		return emit(s.finalChunk(reason))

	default:
		return nil
	}
}

func (s *anthropicStreamState) chunk(delta ChunkDelta) FrontChunk {
	return FrontChunk{
		Object: "chat.completion.chunk",
		Model:  "freerouter/" + s.model,
		Choices: []ChunkChoice{{
			Index: 0,
			Delta: delta,
		}},
	}
}

func (s *anthropicStreamState) finalChunk(finishReason string) FrontChunk {
	return FrontChunk{
		Object: "chat.completion.chunk",
		Model:  "freerouter/" + s.model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        ChunkDelta{},
			FinishReason: &finishReason,
		}},
	}
}

// decodeAnthropicEvent is a small wrapper kept separate from the HTTP
// loop so the SSE byte-handling in anthropic.go and the event semantics
// here can be tested independently.
func decodeAnthropicEvent(data []byte) (anthropicStreamEvent, error) {
	var event anthropicStreamEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
