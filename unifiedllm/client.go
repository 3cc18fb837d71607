package unifiedllm

import (
	"fmt"
	"strings"
)

// defaultDirectProvider is used for direct models the catalog does not know.
const defaultDirectProvider = "openai"

// IsGatewayModel reports whether name should be served through the TRAPI
// gateway rather than a direct provider.
func IsGatewayModel(name string) bool {
	if strings.Contains(strings.ToLower(name), "trapi") || strings.Contains(name, "gcr/preview") {
		return true
	}
	info := GetModelInfo(name)
	return info != nil && info.Provider == GatewayProvider
}

// NewModel builds a ChatModel for name. Gateway models go through
// NewGatewayModel with configuration taken from the environment; any other
// name is served directly through gollm, with the provider inferred from the
// catalog.
func NewModel(name string, opts ...ModelOption) (*ChatModel, error) {
	mo := newModelOptions(opts)

	if IsGatewayModel(name) {
		return NewGatewayModel(GatewayConfig{ModelName: name, ModelKwargs: mo.modelKwargs}, opts...)
	}

	provider := defaultDirectProvider
	modelID := name
	if info := GetModelInfo(name); info != nil {
		provider = info.Provider
		modelID = info.ID
	}

	adapter := mo.adapter
	if adapter == nil {
		gollmOpts := append([]GollmAdapterOption{WithModel(modelID)}, mo.gollmOpts...)
		ga, err := NewGollmAdapter(provider, "", gollmOpts...)
		if err != nil {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("provider %q is not available for model %q", provider, name),
				Cause:   err,
			}}
		}
		adapter = ga
	}

	policy := DefaultRetryPolicy()
	if mo.policy != nil {
		policy = *mo.policy
	}

	cfg := GatewayConfig{ModelName: name, ModelKwargs: mo.modelKwargs}
	return newChatModel(name, cfg, adapter, resolveModelID, policy, mo), nil
}
