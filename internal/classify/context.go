package classify

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoUserMessage is returned when no user message can be extracted from
// the request's message list.
var ErrNoUserMessage = errors.New("classify: no user message found")

// Message is the subset of a front message the context extractor reads.
// It avoids importing the providers package so the classifier stays a
// dependency-free leaf, per the request-flow diagram in the spec.
// Callers adapt their wire message type to this before calling Extract.
type Message struct {
	Role    string
	Content string
}

const contextTruncateLen = 500

// Extracted is the result of splitting a message list for classification.
type Extracted struct {
	SystemPrompt       string // joined system + developer messages, in order
	ClassificationInput string // truncated context + full last user message
	LastUserMessage    string
}

// Extract implements §4.1: concatenate system/developer messages into a
// system prompt, take the last three non-system messages as context, and
// build the classification input from the truncated earlier turns plus
// the full text of the final user message.
func Extract(messages []Message) (Extracted, error) {
	var systemParts []string
	var conversation []Message

	for _, m := range messages {
		switch m.Role {
		case "system", "developer":
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		default:
			conversation = append(conversation, m)
		}
	}

	systemPrompt := strings.Join(systemParts, "\n")

	lastUserIdx := -1
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == "user" {
			lastUserIdx = i
			break
		}
	}
	if lastUserIdx == -1 {
		return Extracted{}, ErrNoUserMessage
	}

	start := len(conversation) - 3
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	for i := start; i < len(conversation); i++ {
		if i == lastUserIdx {
			continue
		}
		m := conversation[i]
		content := m.Content
		if len(content) > contextTruncateLen {
			content = content[:contextTruncateLen]
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	sb.WriteString(conversation[lastUserIdx].Content)

	return Extracted{
		SystemPrompt:         systemPrompt,
		ClassificationInput:  sb.String(),
		LastUserMessage:      conversation[lastUserIdx].Content,
	}, nil
}

// unmarshalContentText flattens a raw JSON message content field (string
// or content-parts array) to plain text; used by adapters building
// []Message from wire types that carry json.RawMessage content.
func unmarshalContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		out := ""
		for _, p := range parts {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	}
	return ""
}

// TextFromRaw exposes unmarshalContentText for adapters outside this
// package that need to build a classify.Message from wire JSON content.
func TextFromRaw(raw json.RawMessage) string {
	return unmarshalContentText(raw)
}
