package unifiedllm

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter. errs scripts the outcome
// of each attempt in order; once exhausted, err or response is returned.
type mockAdapter struct {
	name     string
	response *Response
	err      error
	errs     []error

	mu       sync.Mutex
	requests []Request
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if n <= len(m.errs) && m.errs[n-1] != nil {
		return nil, m.errs[n-1]
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockAdapter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockAdapter) lastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		response: &Response{
			ID:       "test_resp",
			Model:    "test-model",
			Provider: name,
			Message: Message{
				Role:    RoleAssistant,
				Content: []ContentPart{TextPart(text)},
			},
			FinishReason: FinishReason{Reason: "stop"},
			Usage:        Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		},
	}
}

func testEnvironment() map[string]string {
	return map[string]string{
		"TRAPI_INSTANCE":    "gcr/shared",
		"TRAPI_API_VERSION": "2024-10-21",
		"TRAPI_SCOPE":       "api://trapi/.default",
		"TRAPI_URL":         "https://trapi.example.com",
	}
}

func TestIsGatewayModel(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"gpt-4o_2024-11-20", true},
		{"trapi-model", true},
		{"my-trapi-model", true},
		{"TRAPI_MODEL_NAME", true},
		{"model-with-gcr/preview", true},
		{"gpt-4o", true},
		{"gpt5", true},
		{"claude-opus-4-6", false},
		{"opus", false},
		{"some-local-model", false},
	}

	for _, tt := range tests {
		if got := IsGatewayModel(tt.name); got != tt.want {
			t.Errorf("IsGatewayModel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewModelGateway(t *testing.T) {
	mock := newMockAdapter(GatewayProvider, "Hello!")
	model, err := NewModel("gpt-4o",
		WithAdapter(mock),
		WithStats(NewStats()),
		WithResolveOptions(WithEnvironment(testEnvironment())),
		WithModelKwargs(map[string]interface{}{"temperature": 0.0}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Provider() != GatewayProvider {
		t.Errorf("expected provider %q, got %q", GatewayProvider, model.Provider())
	}
	if model.Config().Instance != "gcr/shared" {
		t.Errorf("expected instance from environment, got %q", model.Config().Instance)
	}
	if model.policy.MaxRetries != 9 {
		t.Errorf("expected gateway retry policy, got max_retries %d", model.policy.MaxRetries)
	}

	res, err := model.Query(context.Background(), []Message{UserMessage("Hi")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "Hello!" {
		t.Errorf("expected %q, got %q", "Hello!", res.Content)
	}
	req := mock.lastRequest()
	if req.Model != "gpt-4o_2024-11-20" {
		t.Errorf("expected deployment, got %q", req.Model)
	}
	if req.ProviderOptions["temperature"] != 0.0 {
		t.Errorf("expected model kwargs forwarded, got %v", req.ProviderOptions)
	}
}

func TestNewModelGatewayRoutedNames(t *testing.T) {
	for _, name := range []string{"trapi/gpt-4o", "gcr/preview/gpt-4o"} {
		t.Run(name, func(t *testing.T) {
			if !IsGatewayModel(name) {
				t.Fatalf("expected %q to be a gateway model", name)
			}
			mock := newMockAdapter(GatewayProvider, "routed")
			model, err := NewModel(name,
				WithAdapter(mock),
				WithStats(NewStats()),
				WithResolveOptions(WithEnvironment(testEnvironment())),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			res, err := model.Query(context.Background(), []Message{UserMessage("Hi")}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Content != "routed" {
				t.Errorf("expected %q, got %q", "routed", res.Content)
			}
			if got := mock.lastRequest().Model; got != "gpt-4o_2024-11-20" {
				t.Errorf("expected deployment gpt-4o_2024-11-20, got %q", got)
			}
			if model.ModelName() != name {
				t.Errorf("expected model name %q kept, got %q", name, model.ModelName())
			}
		})
	}
}

func TestNewModelGatewayMissingConfig(t *testing.T) {
	_, err := NewModel("trapi-model",
		WithAdapter(newMockAdapter(GatewayProvider, "")),
		WithResolveOptions(WithEnvironment(map[string]string{})),
	)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	if cfgErr.Field != "instance" {
		t.Errorf("expected field %q, got %q", "instance", cfgErr.Field)
	}
}

func TestNewModelDirect(t *testing.T) {
	mock := newMockAdapter("anthropic", "Direct")
	model, err := NewModel("opus", WithAdapter(mock), WithStats(NewStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Provider() != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", model.Provider())
	}
	if model.policy.MaxRetries != DefaultRetryPolicy().MaxRetries {
		t.Errorf("expected default retry policy, got max_retries %d", model.policy.MaxRetries)
	}

	res, err := model.Query(context.Background(), []Message{UserMessage("Hi")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "Direct" {
		t.Errorf("expected %q, got %q", "Direct", res.Content)
	}
	if got := mock.lastRequest().Model; got != "claude-opus-4-6" {
		t.Errorf("expected alias resolved to catalog ID, got %q", got)
	}
}

func TestNewModelDirectPassesUnknownNames(t *testing.T) {
	mock := newMockAdapter("openai", "ok")
	model, err := NewModel("some-local-model", WithAdapter(mock), WithStats(NewStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Query(context.Background(), []Message{UserMessage("Hi")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mock.lastRequest().Model; got != "some-local-model" {
		t.Errorf("expected name passed through, got %q", got)
	}
}

func TestModelMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			order = append(order, name+":before")
			resp, err := next(ctx, req)
			order = append(order, name+":after")
			return resp, err
		}
	}

	model, err := NewModel("opus",
		WithAdapter(newMockAdapter("anthropic", "ok")),
		WithStats(NewStats()),
		WithMiddleware(mw("first"), mw("second")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Query(context.Background(), []Message{UserMessage("Hi")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"first:before", "second:before", "second:after", "first:after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("step %d: expected %q, got %q", i, expected[i], order[i])
		}
	}
}
