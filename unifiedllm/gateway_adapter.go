package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GatewayAdapter implements ProviderAdapter against the Azure OpenAI
// compatible chat completions endpoint of a TRAPI gateway instance.
type GatewayAdapter struct {
	client   openai.Client
	endpoint string
	cfg      GatewayConfig
}

var _ ProviderAdapter = (*GatewayAdapter)(nil)

// GatewayAdapterOption configures a GatewayAdapter.
type GatewayAdapterOption func(*gatewayAdapterConfig)

type gatewayAdapterConfig struct {
	httpClient *http.Client
	extraOpts  []option.RequestOption
}

// WithHTTPClient replaces the HTTP client used to reach the gateway.
func WithHTTPClient(hc *http.Client) GatewayAdapterOption {
	return func(c *gatewayAdapterConfig) {
		c.httpClient = hc
	}
}

// WithRequestOptions adds extra openai-go request options to every call.
func WithRequestOptions(opts ...option.RequestOption) GatewayAdapterOption {
	return func(c *gatewayAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGatewayAdapter creates an adapter for a resolved configuration. Tokens for
// cfg.Scope are fetched from cred lazily and cached until shortly before they
// expire.
func NewGatewayAdapter(cfg GatewayConfig, cred azcore.TokenCredential, opts ...GatewayAdapterOption) *GatewayAdapter {
	ac := &gatewayAdapterConfig{}
	for _, opt := range opts {
		opt(ac)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if ac.httpClient == nil {
		ac.httpClient = newHTTPClient(cfg.RequestTimeout)
	}

	// The deployment is part of the path, so the base URL is set per request.
	clientOpts := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint() + "/openai/"),
		option.WithQuery("api-version", cfg.APIVersion),
		option.WithHTTPClient(ac.httpClient),
		option.WithMaxRetries(0), // We handle retries ourselves.
		option.WithMiddleware(bearerTokenMiddleware(newBearerTokenPolicy(scopedCredential(cfg.Scope, cred), cfg.Scope))),
	}
	clientOpts = append(clientOpts, ac.extraOpts...)

	return &GatewayAdapter{
		client:   openai.NewClient(clientOpts...),
		endpoint: cfg.Endpoint(),
		cfg:      cfg.clone(),
	}
}

// Name returns the provider identifier.
func (a *GatewayAdapter) Name() string {
	return GatewayProvider
}

// Endpoint returns the instance endpoint requests are sent to.
func (a *GatewayAdapter) Endpoint() string {
	return a.endpoint
}

// Complete sends one chat completion request. req.Model must already be a
// deployment identifier. ProviderOptions become top-level JSON fields.
func (a *GatewayAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	messages, err := translateMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(a.deploymentURL(req.Model)),
		option.WithHeader("x-ms-client-request-id", uuid.New().String()),
	}
	for _, k := range sortedKeys(req.ProviderOptions) {
		reqOpts = append(reqOpts, option.WithJSONSet(k, req.ProviderOptions[k]))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	completion, err := a.client.Chat.Completions.New(attemptCtx, params, reqOpts...)
	if err != nil {
		return nil, a.translateError(ctx, attemptCtx, err)
	}

	return a.buildResponse(req, completion), nil
}

// deploymentURL is the base URL chat/completions is resolved against.
func (a *GatewayAdapter) deploymentURL(deployment string) string {
	return a.endpoint + "/openai/deployments/" + url.PathEscape(deployment) + "/"
}

func translateMessages(msgs []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, msg := range msgs {
		text := msg.TextContent()
		switch msg.Role {
		case RoleSystem, RoleDeveloper:
			out = append(out, openai.SystemMessage(text))
		case RoleUser:
			out = append(out, openai.UserMessage(text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		default:
			return nil, invalidRequest(fmt.Sprintf("message %d has unsupported role %q", i, msg.Role))
		}
	}
	return out, nil
}

func invalidRequest(msg string) *InvalidRequestError {
	return &InvalidRequestError{ProviderError: ProviderError{
		SDKError: SDKError{Message: msg},
		Provider: GatewayProvider,
	}}
}

// buildResponse extracts the first choice. A missing choice or null content
// yields an empty message rather than an error.
func (a *GatewayAdapter) buildResponse(req Request, completion *openai.ChatCompletion) *Response {
	var text, finish string
	if len(completion.Choices) > 0 {
		choice := completion.Choices[0]
		text = choice.Message.Content
		finish = string(choice.FinishReason)
	}

	model := completion.Model
	if model == "" {
		model = req.Model
	}
	id := completion.ID
	if id == "" {
		id = "resp_" + uuid.New().String()[:8]
	}

	return &Response{
		ID:           id,
		Model:        model,
		Provider:     GatewayProvider,
		Message:      AssistantMessage(text),
		FinishReason: FinishReason{Reason: finish, Raw: finish},
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
}

// translateError converts a transport failure into the unified error
// hierarchy. Caller cancellation wins over everything else; an expired
// per-attempt deadline becomes a retryable timeout.
func (a *GatewayAdapter) translateError(ctx, attemptCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return &AbortError{SDKError: SDKError{Message: "gateway request cancelled", Cause: ctx.Err()}}
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d from gateway", apiErr.StatusCode)
		}
		var retryAfter *float64
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return ErrorFromStatusCode(apiErr.StatusCode, msg, GatewayProvider, apiErr.Code, nil, retryAfter)
	}

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &RequestTimeoutError{SDKError: SDKError{
			Message: fmt.Sprintf("gateway request exceeded %s", a.cfg.RequestTimeout),
			Cause:   err,
		}}
	}

	return &NetworkError{SDKError: SDKError{Message: "gateway request failed", Cause: err}}
}
