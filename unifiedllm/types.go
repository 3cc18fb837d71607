package unifiedllm

import (
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

// ContentKind is the discriminator tag for ContentPart.
type ContentKind string

const (
	ContentText ContentKind = "text"
)

// ContentPart is a tagged union representing one part of a message.
type ContentPart struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// Message is the fundamental unit of conversation.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
	Name    string        `json:"name,omitempty"`
}

// TextContent returns the concatenation of all text content parts.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// NewMessage creates a Message with a single text part.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart(text)}}
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return NewMessage(RoleSystem, text)
}

// UserMessage creates a user Message with text content.
func UserMessage(text string) Message {
	return NewMessage(RoleUser, text)
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return NewMessage(RoleAssistant, text)
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string `json:"reason"` // "stop", "length", "tool_calls", "content_filter", "error", "other"
	Raw    string `json:"raw,omitempty"`
}

// Usage tracks token consumption as reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Request is the input to ProviderAdapter.Complete.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// ProviderOptions are sent to the provider verbatim as top-level request
	// fields (temperature, max_tokens, ...).
	ProviderOptions map[string]interface{} `json:"provider_options,omitempty"`
}

// Response is the output of ProviderAdapter.Complete.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// Text returns the concatenated text from all text parts in the response message.
func (r Response) Text() string {
	return r.Message.TextContent()
}

// QueryResult is the normalized result of ChatModel.Query.
type QueryResult struct {
	Content string `json:"content"`
}

// MergeOptions overlays overrides on base and returns a new map. Keys present
// in both take the override's value. Neither input is modified.
func MergeOptions(base, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
