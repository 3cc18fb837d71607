// Package unifiedllm is a chat completion client for models served through
// the TRAPI gateway, which fronts Azure OpenAI deployments and authenticates
// callers with Azure AD bearer tokens instead of API keys.
//
// # Architecture
//
//   - GatewayConfig and ResolveGatewayConfig: explicit settings with
//     TRAPI_* environment fallbacks, validated up front
//   - CredentialChain: Azure CLI login, then managed identity, chained by
//     azidentity; tokens are cached by the azcore bearer token policy
//   - ResolveDeployment: logical model name to deployment identifier
//   - ChatModel: merges request options, retries with exponential backoff
//     and records usage in a shared Stats
//
// # Quick Start
//
//	model, err := unifiedllm.NewGatewayModel(unifiedllm.GatewayConfig{
//	    ModelName:   "gpt-4o",
//	    ModelKwargs: map[string]interface{}{"temperature": 0.0},
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := model.Query(ctx, []unifiedllm.Message{
//	    unifiedllm.UserMessage("Hello"),
//	}, nil)
//	fmt.Println(res.Content)
//
// Instance, API version, scope and URL come from TRAPI_INSTANCE,
// TRAPI_API_VERSION, TRAPI_SCOPE and TRAPI_URL when not set explicitly.
//
// # Retries
//
// Every failure except cancellation is retried, up to ten attempts in total,
// waiting 4s, 4s, 4s, 8s, 16s, 32s and then 60s between them. Each retry is
// logged as a warning through logrus. Cancelling the context stops the loop
// and returns an *AbortError.
//
// # Usage Stats
//
// All models share DefaultStats unless given their own with WithStats. Stats
// implements prometheus.Collector:
//
//	prometheus.MustRegister(unifiedllm.DefaultStats())
//
// # Direct Providers
//
// NewModel routes names that are not gateway models to a GollmAdapter, which
// wraps github.com/teilomillet/gollm for OpenAI, Anthropic and the other
// providers gollm supports.
package unifiedllm
