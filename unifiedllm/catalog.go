package unifiedllm

import "strings"

// GatewayProvider is the provider identifier of models served through the
// TRAPI gateway.
const GatewayProvider = "trapi"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	DisplayName   string `json:"display_name"`
	ContextWindow int    `json:"context_window"`
	MaxOutput     *int   `json:"max_output,omitempty"`
	// Deployment is the gateway deployment identifier sent as the request
	// model. Set only for gateway models.
	Deployment string   `json:"deployment,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int { return &v }

// Models is the built-in model catalog.
var Models = []ModelInfo{
	// TRAPI gateway deployments
	{
		ID: "gpt-4o", Provider: GatewayProvider, DisplayName: "GPT-4o (2024-11-20)",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		Deployment: "gpt-4o_2024-11-20",
	},
	{
		ID: "gpt-4o-mini", Provider: GatewayProvider, DisplayName: "GPT-4o mini",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		Deployment: "gpt-4o-mini_2024-07-18",
	},
	{
		ID: "gpt-4.1", Provider: GatewayProvider, DisplayName: "GPT-4.1",
		ContextWindow: 1047576, MaxOutput: intPtr(32768),
		Deployment: "gpt-4.1_2025-04-14",
	},
	{
		ID: "gpt-4.1-mini", Provider: GatewayProvider, DisplayName: "GPT-4.1 mini",
		ContextWindow: 1047576, MaxOutput: intPtr(32768),
		Deployment: "gpt-4.1-mini_2025-04-14",
	},
	{
		ID: "o1", Provider: GatewayProvider, DisplayName: "o1",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		Deployment: "o1_2024-12-17",
	},
	{
		ID: "o3-mini", Provider: GatewayProvider, DisplayName: "o3-mini",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		Deployment: "o3-mini_2025-01-31",
	},
	{
		ID: "o3", Provider: GatewayProvider, DisplayName: "o3",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		Deployment: "o3_2025-04-16",
	},
	{
		ID: "o4-mini", Provider: GatewayProvider, DisplayName: "o4-mini",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		Deployment: "o4-mini_2025-04-16",
	},
	{
		ID: "gpt-5", Provider: GatewayProvider, DisplayName: "GPT-5",
		ContextWindow: 400000, MaxOutput: intPtr(128000),
		Deployment: "gpt-5_2025-08-07",
		Aliases:    []string{"gpt5"},
	},

	// Direct providers, reached through gollm
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(16384),
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: intPtr(32768),
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: intPtr(16384),
	},
}

// names returns every name the entry answers to.
func (m ModelInfo) names() []string {
	names := append([]string{m.ID}, m.Aliases...)
	if m.Deployment != "" && m.Deployment != m.ID {
		names = append(names, m.Deployment)
	}
	return names
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
// Gateway entries also answer to their deployment identifier.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		for _, name := range Models[i].names() {
			if name == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// gatewayRoutePrefixes mark a name as gateway-bound without being part of
// the catalog name, as in "trapi/gpt-4o" or "gcr/preview/gpt-4o".
var gatewayRoutePrefixes = []string{"trapi/", "gcr/preview/"}

// stripGatewayRoute removes any leading gateway route prefixes from name.
func stripGatewayRoute(name string) string {
	for {
		stripped := name
		for _, p := range gatewayRoutePrefixes {
			if len(stripped) > len(p) && strings.EqualFold(stripped[:len(p)], p) {
				stripped = stripped[len(p):]
			}
		}
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// ResolveDeployment maps a logical model name to the deployment identifier
// the gateway expects. Gateway route prefixes are ignored. Names outside the
// gateway catalog are an error.
func ResolveDeployment(name string) (string, error) {
	info := GetModelInfo(stripGatewayRoute(name))
	if info == nil || info.Provider != GatewayProvider || info.Deployment == "" {
		return "", newUnknownModelError(name)
	}
	return info.Deployment, nil
}

// resolveModelID maps an alias to its canonical catalog ID and passes unknown
// names through unchanged. Used for providers that accept arbitrary model IDs.
func resolveModelID(name string) (string, error) {
	if info := GetModelInfo(name); info != nil {
		return info.ID, nil
	}
	return name, nil
}
