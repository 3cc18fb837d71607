package unifiedllm

import (
	"context"
	"errors"
	"testing"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

// recordingLLM stands in for a gollm.LLM. Like gollm, it keeps options set
// with SetOption and stores the prompt's system prompt as an option.
type recordingLLM struct {
	gollm.LLM

	options map[string]interface{}
	seen    []map[string]interface{}
	err     error
}

func newRecordingLLM() *recordingLLM {
	return &recordingLLM{options: map[string]interface{}{}}
}

func (r *recordingLLM) SetOption(key string, value interface{}) {
	r.options[key] = value
}

func (r *recordingLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	if prompt.SystemPrompt != "" {
		r.options["system_prompt"] = prompt.SystemPrompt
	}
	snapshot := make(map[string]interface{}, len(r.options))
	for k, v := range r.options {
		snapshot[k] = v
	}
	r.seen = append(r.seen, snapshot)
	if r.err != nil {
		return "", r.err
	}
	return "ok", nil
}

func TestGollmAdapterName(t *testing.T) {
	// Test that we can create adapters for known providers.
	// Note: These will fail if the environment doesn't have API keys,
	// but we test the Name() method behavior.
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "test-key-not-real")
		if err != nil {
			t.Logf("skipping %s adapter creation (expected without real key): %v", provider, err)
			continue
		}
		if adapter.Name() != provider {
			t.Errorf("expected name %q, got %q", provider, adapter.Name())
		}
	}
}

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}

	tests := []struct {
		errMsg   string
		expected string
	}{
		{"401 Unauthorized", "*unifiedllm.AuthenticationError"},
		{"invalid api key", "*unifiedllm.AuthenticationError"},
		{"403 Forbidden", "*unifiedllm.AccessDeniedError"},
		{"404 not found", "*unifiedllm.NotFoundError"},
		{"429 rate limit exceeded", "*unifiedllm.RateLimitError"},
		{"context length exceeded", "*unifiedllm.ContextLengthError"},
		{"500 internal server error", "*unifiedllm.ServerError"},
		{"timeout waiting for response", "*unifiedllm.RequestTimeoutError"},
		{"content filter triggered", "*unifiedllm.ContentFilterError"},
		{"something unknown", "*unifiedllm.ProviderError"},
	}

	for _, tt := range tests {
		err := adapter.translateError(errForMsg(tt.errMsg))
		if err == nil {
			t.Errorf("expected non-nil error for %q", tt.errMsg)
			continue
		}
		// Verify the error is classifiable.
		switch tt.expected {
		case "*unifiedllm.AuthenticationError":
			if _, ok := err.(*AuthenticationError); !ok {
				t.Errorf("for %q: expected AuthenticationError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.AccessDeniedError":
			if _, ok := err.(*AccessDeniedError); !ok {
				t.Errorf("for %q: expected AccessDeniedError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.NotFoundError":
			if _, ok := err.(*NotFoundError); !ok {
				t.Errorf("for %q: expected NotFoundError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.RateLimitError":
			if _, ok := err.(*RateLimitError); !ok {
				t.Errorf("for %q: expected RateLimitError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.ContextLengthError":
			if _, ok := err.(*ContextLengthError); !ok {
				t.Errorf("for %q: expected ContextLengthError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.ServerError":
			if _, ok := err.(*ServerError); !ok {
				t.Errorf("for %q: expected ServerError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.RequestTimeoutError":
			if _, ok := err.(*RequestTimeoutError); !ok {
				t.Errorf("for %q: expected RequestTimeoutError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.ContentFilterError":
			if _, ok := err.(*ContentFilterError); !ok {
				t.Errorf("for %q: expected ContentFilterError, got %T", tt.errMsg, err)
			}
		case "*unifiedllm.ProviderError":
			if _, ok := err.(*ProviderError); !ok {
				t.Errorf("for %q: expected ProviderError, got %T", tt.errMsg, err)
			}
		}
	}
}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
func errForMsg(msg string) error     { return &simpleError{msg: msg} }

func TestFlattenConversation(t *testing.T) {
	system, input := flattenConversation([]Message{
		SystemMessage("Be brief."),
		NewMessage(RoleDeveloper, "Answer in English."),
		UserMessage("Hi"),
		AssistantMessage("Hello!"),
		AssistantMessage(""),
		UserMessage("What is 2+2?"),
	})

	if system != "Be brief.\nAnswer in English." {
		t.Errorf("unexpected system prompt: %q", system)
	}
	want := "Hi\n[Assistant]: Hello!\nWhat is 2+2?"
	if input != want {
		t.Errorf("expected input %q, got %q", want, input)
	}
}

func TestFlattenConversationEmpty(t *testing.T) {
	system, input := flattenConversation(nil)
	if system != "" {
		t.Errorf("expected empty system prompt, got %q", system)
	}
	if input != "Hello" {
		t.Errorf("expected placeholder input %q, got %q", "Hello", input)
	}
}

func TestGollmAdapterBuildResponse(t *testing.T) {
	adapter := &GollmAdapter{provider: "anthropic", model: "claude-opus-4-6"}

	resp := adapter.buildResponse(Request{}, "done")
	if resp.Text() != "done" {
		t.Errorf("expected text %q, got %q", "done", resp.Text())
	}
	if resp.Model != "claude-opus-4-6" {
		t.Errorf("expected default model, got %q", resp.Model)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", resp.Provider)
	}

	resp = adapter.buildResponse(Request{Model: "claude-sonnet-4-5"}, "")
	if resp.Model != "claude-sonnet-4-5" {
		t.Errorf("expected request model, got %q", resp.Model)
	}
}

func TestGollmAdapterOverridesDoNotLeak(t *testing.T) {
	fake := newRecordingLLM()
	adapter := NewGollmAdapterFromLLM("openai", fake, WithModel("gpt-5.2-mini"))
	model, err := NewModel("gpt-5.2-mini", WithAdapter(adapter), WithStats(NewStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	msgs := []Message{SystemMessage("Be brief."), UserMessage("Hi")}
	if _, err := model.Query(ctx, msgs, map[string]interface{}{"temperature": 0.1}); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if _, err := model.Query(ctx, []Message{UserMessage("Hi again")}, nil); err != nil {
		t.Fatalf("second query: %v", err)
	}

	if len(fake.seen) != 2 {
		t.Fatalf("expected 2 generate calls, got %d", len(fake.seen))
	}
	first, second := fake.seen[0], fake.seen[1]
	if first["temperature"] != 0.1 {
		t.Errorf("expected first call temperature 0.1, got %v", first["temperature"])
	}
	if first["system_prompt"] != "Be brief." {
		t.Errorf("expected first call system prompt, got %v", first["system_prompt"])
	}
	if second["temperature"] != nil {
		t.Errorf("expected temperature unset on second call, got %v", second["temperature"])
	}
	if second["system_prompt"] != "" {
		t.Errorf("expected system prompt cleared on second call, got %v", second["system_prompt"])
	}
	if second["model"] != "gpt-5.2-mini" {
		t.Errorf("expected model kept, got %v", second["model"])
	}
}

func TestGollmAdapterRestoresBaseOptions(t *testing.T) {
	fake := newRecordingLLM()
	adapter := &GollmAdapter{
		provider:    "openai",
		llm:         fake,
		model:       "gpt-5.2-mini",
		baseOptions: map[string]interface{}{"model": "gpt-5.2-mini", "temperature": 0.7},
	}

	fake.err = errors.New("500 internal server error")
	_, err := adapter.Complete(context.Background(), Request{
		Model:           "gpt-5.2-mini",
		Messages:        []Message{UserMessage("Hi")},
		ProviderOptions: map[string]interface{}{"temperature": 0.1, "top_p": 0.5},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if fake.options["temperature"] != 0.7 {
		t.Errorf("expected temperature restored to 0.7 after a failed call, got %v", fake.options["temperature"])
	}
	if v, ok := fake.options["top_p"]; !ok || v != nil {
		t.Errorf("expected top_p reset to nil, got %v (present=%v)", v, ok)
	}
	if fake.options["model"] != "gpt-5.2-mini" {
		t.Errorf("expected model restored, got %v", fake.options["model"])
	}
}
