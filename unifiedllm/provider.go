package unifiedllm

import "context"

// ProviderAdapter is the interface every provider backend must implement.
// ChatModel depends only on this interface, so gateway and direct providers
// are interchangeable behind it.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "trapi", "openai", "anthropic").
	Name() string

	// Complete sends one blocking request and returns the full response.
	// It does not retry; retry policy belongs to the caller.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}
