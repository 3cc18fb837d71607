package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sirupsen/logrus"
)

// Middleware wraps a provider call. It receives the request and a next function
// that calls the downstream handler, and returns the response. Middleware runs
// once per attempt, inside the retry loop.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// reservedOptions are request fields owned by ChatModel. Overrides may not
// replace them.
var reservedOptions = []string{"model", "messages"}

// ChatModel sends chat completion queries for one logical model name. It
// resolves the deployment, retries failed attempts and records usage.
//
// A ChatModel is safe for concurrent use.
type ChatModel struct {
	modelName  string
	cfg        GatewayConfig
	adapter    ProviderAdapter
	resolve    func(name string) (string, error)
	policy     RetryPolicy
	stats      *Stats
	logger     logrus.FieldLogger
	middleware []Middleware

	mu    sync.Mutex
	calls int64
	cost  float64
}

// ModelOption configures a ChatModel.
type ModelOption func(*modelOptions)

type modelOptions struct {
	stats       *Stats
	logger      logrus.FieldLogger
	policy      *RetryPolicy
	credential  azcore.TokenCredential
	adapter     ProviderAdapter
	resolveOpts []ResolveOption
	adapterOpts []GatewayAdapterOption
	gollmOpts   []GollmAdapterOption
	middleware  []Middleware
	modelKwargs map[string]interface{}
}

// WithStats records usage into s instead of DefaultStats().
func WithStats(s *Stats) ModelOption {
	return func(o *modelOptions) {
		o.stats = s
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l logrus.FieldLogger) ModelOption {
	return func(o *modelOptions) {
		o.logger = l
	}
}

// WithRetryPolicy replaces the default retry policy. OnRetry is still
// installed by the model when the given policy has none.
func WithRetryPolicy(p RetryPolicy) ModelOption {
	return func(o *modelOptions) {
		o.policy = &p
	}
}

// WithCredential replaces the default Azure credential chain.
func WithCredential(cred azcore.TokenCredential) ModelOption {
	return func(o *modelOptions) {
		o.credential = cred
	}
}

// WithAdapter replaces the provider adapter entirely.
func WithAdapter(a ProviderAdapter) ModelOption {
	return func(o *modelOptions) {
		o.adapter = a
	}
}

// WithResolveOptions passes options through to ResolveGatewayConfig.
func WithResolveOptions(opts ...ResolveOption) ModelOption {
	return func(o *modelOptions) {
		o.resolveOpts = append(o.resolveOpts, opts...)
	}
}

// WithGatewayAdapterOptions passes options through to NewGatewayAdapter.
func WithGatewayAdapterOptions(opts ...GatewayAdapterOption) ModelOption {
	return func(o *modelOptions) {
		o.adapterOpts = append(o.adapterOpts, opts...)
	}
}

// WithGollmAdapterOptions passes options through to NewGollmAdapter.
func WithGollmAdapterOptions(opts ...GollmAdapterOption) ModelOption {
	return func(o *modelOptions) {
		o.gollmOpts = append(o.gollmOpts, opts...)
	}
}

// WithMiddleware adds middleware around every attempt.
func WithMiddleware(mw ...Middleware) ModelOption {
	return func(o *modelOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithModelKwargs sets default request options for models built by NewModel.
// Gateway models take them from GatewayConfig.ModelKwargs instead when set.
func WithModelKwargs(kwargs map[string]interface{}) ModelOption {
	return func(o *modelOptions) {
		o.modelKwargs = kwargs
	}
}

func newModelOptions(opts []ModelOption) *modelOptions {
	mo := &modelOptions{}
	for _, opt := range opts {
		opt(mo)
	}
	if mo.stats == nil {
		mo.stats = DefaultStats()
	}
	if mo.logger == nil {
		mo.logger = logrus.StandardLogger().WithField("component", "trapi_model")
	}
	return mo
}

// NewGatewayModel resolves cfg against the environment and builds a model
// that talks to the TRAPI gateway. Unless WithCredential is given, tokens
// come from DefaultCredentialChain for the configured scope.
func NewGatewayModel(cfg GatewayConfig, opts ...ModelOption) (*ChatModel, error) {
	mo := newModelOptions(opts)

	resolved, err := ResolveGatewayConfig(cfg, mo.resolveOpts...)
	if err != nil {
		return nil, err
	}

	adapter := mo.adapter
	if adapter == nil {
		cred := mo.credential
		if cred == nil {
			chain, err := DefaultCredentialChain(resolved.Scope)
			if err != nil {
				var authErr *AuthenticationError
				if errors.As(err, &authErr) {
					return nil, authErr
				}
				return nil, &AuthenticationError{ProviderError: ProviderError{
					SDKError: SDKError{Message: "building credential chain", Cause: err},
					Provider: GatewayProvider,
				}}
			}
			cred = chain
		}
		adapter = NewGatewayAdapter(resolved, cred, mo.adapterOpts...)
	}

	policy := GatewayRetryPolicy(resolved.ShouldRetryAuthErrors())
	if mo.policy != nil {
		policy = *mo.policy
	}

	return newChatModel(resolved.ModelName, resolved, adapter, ResolveDeployment, policy, mo), nil
}

func newChatModel(name string, cfg GatewayConfig, adapter ProviderAdapter, resolve func(string) (string, error), policy RetryPolicy, mo *modelOptions) *ChatModel {
	m := &ChatModel{
		modelName:  name,
		cfg:        cfg.clone(),
		adapter:    adapter,
		resolve:    resolve,
		stats:      mo.stats,
		logger:     mo.logger.WithField("model", name),
		middleware: mo.middleware,
	}
	if policy.OnRetry == nil {
		policy.OnRetry = m.logRetry
	}
	m.policy = policy
	return m
}

func (m *ChatModel) logRetry(err error, attempt int, delay time.Duration) {
	m.logger.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay.String(),
	}).WithError(err).Warn("model query failed, retrying")
}

// ModelName returns the logical model name queries are sent for.
func (m *ChatModel) ModelName() string {
	return m.modelName
}

// Provider returns the name of the underlying adapter.
func (m *ChatModel) Provider() string {
	return m.adapter.Name()
}

// Query sends messages to the model and returns the content of the first
// choice. overrides are merged over the configured model kwargs for this call
// only.
//
// Stats are updated only when a response is received. Cancellation of ctx
// stops the retry loop and yields an *AbortError.
func (m *ChatModel) Query(ctx context.Context, messages []Message, overrides map[string]interface{}) (*QueryResult, error) {
	merged := MergeOptions(m.cfg.ModelKwargs, overrides)
	for _, key := range reservedOptions {
		if _, ok := merged[key]; ok {
			return nil, &InvalidRequestError{ProviderError: ProviderError{
				SDKError: SDKError{Message: fmt.Sprintf("request option %q cannot be overridden", key)},
				Provider: m.adapter.Name(),
			}}
		}
	}

	deployment, err := m.resolve(m.modelName)
	if err != nil {
		return nil, err
	}

	req := Request{
		Model:           deployment,
		Messages:        messages,
		ProviderOptions: merged,
	}

	resp, err := Retry(ctx, m.policy, func(ctx context.Context) (*Response, error) {
		return m.complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	// Cost tracking is not supported by the gateway; each call counts as 0.
	const cost = 0.0
	m.mu.Lock()
	m.calls++
	m.cost += cost
	m.mu.Unlock()
	m.stats.Add(cost)

	return &QueryResult{Content: resp.Text()}, nil
}

func (m *ChatModel) complete(ctx context.Context, req Request) (*Response, error) {
	handler := m.adapter.Complete

	// Apply middleware in reverse order so first registered runs first.
	for i := len(m.middleware) - 1; i >= 0; i-- {
		mw := m.middleware[i]
		next := handler
		handler = func(ctx context.Context, r Request) (*Response, error) {
			return mw(ctx, r, next)
		}
	}

	return handler(ctx, req)
}

// Calls returns the number of successful queries made through this model.
func (m *ChatModel) Calls() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Cost returns the cost accumulated by this model.
func (m *ChatModel) Cost() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cost
}

// Stats returns the accumulator this model reports into.
func (m *ChatModel) Stats() *Stats {
	return m.stats
}

// Config returns a copy of the resolved configuration.
func (m *ChatModel) Config() GatewayConfig {
	return m.cfg.clone()
}

// TemplateVars returns the configuration and usage counters as a flat map
// for prompt templating.
func (m *ChatModel) TemplateVars() map[string]interface{} {
	calls, cost := m.Calls(), m.Cost()
	vars := map[string]interface{}{
		"model_name":        m.modelName,
		"instance":          m.cfg.Instance,
		"api_version":       m.cfg.APIVersion,
		"scope":             m.cfg.Scope,
		"trapi_url":         m.cfg.URL,
		"model_kwargs":      maps.Clone(m.cfg.ModelKwargs),
		"request_timeout":   m.cfg.RequestTimeout.String(),
		"retry_auth_errors": m.cfg.ShouldRetryAuthErrors(),
		"n_model_calls":     calls,
		"model_cost":        cost,
	}
	return vars
}

// Close releases resources held by the adapter, if any.
func (m *ChatModel) Close() error {
	if closer, ok := m.adapter.(Closer); ok {
		return closer.Close()
	}
	return nil
}

// sortedKeys returns the keys of opts in lexical order.
func sortedKeys(opts map[string]interface{}) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
