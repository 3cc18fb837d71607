package unifiedllm

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	t.Run("SystemMessage", func(t *testing.T) {
		msg := SystemMessage("You are helpful.")
		if msg.Role != RoleSystem {
			t.Errorf("expected role %q, got %q", RoleSystem, msg.Role)
		}
		if msg.TextContent() != "You are helpful." {
			t.Errorf("expected text %q, got %q", "You are helpful.", msg.TextContent())
		}
	})

	t.Run("UserMessage", func(t *testing.T) {
		msg := UserMessage("Hello")
		if msg.Role != RoleUser {
			t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
		}
		if msg.TextContent() != "Hello" {
			t.Errorf("expected text %q, got %q", "Hello", msg.TextContent())
		}
	})

	t.Run("AssistantMessage", func(t *testing.T) {
		msg := AssistantMessage("Hi there")
		if msg.Role != RoleAssistant {
			t.Errorf("expected role %q, got %q", RoleAssistant, msg.Role)
		}
		if msg.TextContent() != "Hi there" {
			t.Errorf("expected text %q, got %q", "Hi there", msg.TextContent())
		}
	})
}

func TestMessageTextContentConcatenates(t *testing.T) {
	msg := Message{
		Role:    RoleUser,
		Content: []ContentPart{TextPart("Hello, "), TextPart("world")},
	}
	if msg.TextContent() != "Hello, world" {
		t.Errorf("expected %q, got %q", "Hello, world", msg.TextContent())
	}
}

func TestMergeOptions(t *testing.T) {
	base := map[string]interface{}{"temperature": 0.0, "max_tokens": 100}
	overrides := map[string]interface{}{"temperature": 0.7, "top_p": 0.9}

	merged := MergeOptions(base, overrides)

	if merged["temperature"] != 0.7 {
		t.Errorf("expected override to win, got %v", merged["temperature"])
	}
	if merged["max_tokens"] != 100 {
		t.Errorf("expected base value kept, got %v", merged["max_tokens"])
	}
	if merged["top_p"] != 0.9 {
		t.Errorf("expected override-only key, got %v", merged["top_p"])
	}
	if len(merged) != 3 {
		t.Errorf("expected 3 keys, got %d", len(merged))
	}

	// Inputs are untouched.
	if base["temperature"] != 0.0 || len(base) != 2 {
		t.Errorf("base was modified: %v", base)
	}
	if len(overrides) != 2 {
		t.Errorf("overrides were modified: %v", overrides)
	}
}

func TestMergeOptionsNil(t *testing.T) {
	merged := MergeOptions(nil, nil)
	if merged == nil {
		t.Fatal("expected non-nil map")
	}
	if len(merged) != 0 {
		t.Errorf("expected empty map, got %v", merged)
	}
}

func TestResponseText(t *testing.T) {
	resp := Response{Message: AssistantMessage("answer")}
	if resp.Text() != "answer" {
		t.Errorf("expected %q, got %q", "answer", resp.Text())
	}
}

func TestQueryResultJSON(t *testing.T) {
	data, err := json.Marshal(QueryResult{Content: "hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"content":"hi"}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}
