package unifiedllm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go/option"
)

// CredentialSource is one authentication mechanism in a CredentialChain.
type CredentialSource struct {
	Name       string
	Credential azcore.TokenCredential
}

// CredentialChain is a token credential bound to the gateway scope. Source
// selection, memoization of the working source, and token caching are left to
// azidentity and the azcore bearer token policy; the chain only turns their
// failures into AuthenticationError.
type CredentialChain struct {
	scope string
	names []string
	cred  azcore.TokenCredential
}

var _ azcore.TokenCredential = (*CredentialChain)(nil)

// NewCredentialChain creates a chain bound to scope that tries sources in
// order via azidentity.ChainedTokenCredential.
func NewCredentialChain(scope string, sources ...CredentialSource) (*CredentialChain, error) {
	names := make([]string, 0, len(sources))
	creds := make([]azcore.TokenCredential, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name)
		creds = append(creds, src.Credential)
	}

	chained, err := azidentity.NewChainedTokenCredential(creds, nil)
	if err != nil {
		return nil, &AuthenticationError{ProviderError: ProviderError{
			SDKError: SDKError{Message: fmt.Sprintf("building credential chain for scope %s", scope), Cause: err},
			Provider: GatewayProvider,
		}}
	}
	return &CredentialChain{scope: scope, names: names, cred: chained}, nil
}

// DefaultCredentialChain returns the developer-first chain: the Azure CLI
// login, then the host's managed identity.
func DefaultCredentialChain(scope string) (*CredentialChain, error) {
	cli, err := azidentity.NewAzureCLICredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure CLI credential: %w", err)
	}
	msi, err := azidentity.NewManagedIdentityCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating managed identity credential: %w", err)
	}
	return NewCredentialChain(scope,
		CredentialSource{Name: "AzureCLICredential", Credential: cli},
		CredentialSource{Name: "ManagedIdentityCredential", Credential: msi},
	)
}

// scopedCredential wraps an arbitrary credential so its failures surface as
// AuthenticationError too.
func scopedCredential(scope string, cred azcore.TokenCredential) *CredentialChain {
	if c, ok := cred.(*CredentialChain); ok {
		return c
	}
	return &CredentialChain{scope: scope, names: []string{fmt.Sprintf("%T", cred)}, cred: cred}
}

// Scope returns the scope the chain was built for.
func (c *CredentialChain) Scope() string {
	return c.scope
}

// GetToken implements azcore.TokenCredential.
func (c *CredentialChain) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.cred.GetToken(ctx, opts)
	if err == nil {
		return tok, nil
	}
	if ctx.Err() != nil {
		return azcore.AccessToken{}, ctx.Err()
	}

	msg := fmt.Sprintf("failed to acquire token for scope %s", c.scope)
	if len(c.names) > 0 {
		msg += " (tried " + strings.Join(c.names, ", ") + ")"
	}
	return azcore.AccessToken{}, &AuthenticationError{ProviderError: ProviderError{
		SDKError: SDKError{Message: msg, Cause: err},
		Provider: GatewayProvider,
	}}
}

// newBearerTokenPolicy caches tokens for scope and refreshes them shortly
// before they expire. Plain HTTP is allowed for local gateways and proxies.
func newBearerTokenPolicy(cred *CredentialChain, scope string) *runtime.BearerTokenPolicy {
	return runtime.NewBearerTokenPolicy(cred, []string{scope}, &policy.BearerTokenOptions{
		InsecureAllowCredentialWithHTTP: true,
	})
}

// bearerTokenMiddleware runs each outbound request through an azcore pipeline
// holding only the bearer token policy, then hands it back to openai-go.
func bearerTokenMiddleware(bearer *runtime.BearerTokenPolicy) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		pipeline := runtime.NewPipeline("trapi", "v1", runtime.PipelineOptions{}, &policy.ClientOptions{
			InsecureAllowCredentialWithHTTP: true,
			Retry:                           policy.RetryOptions{MaxRetries: -1},
			Telemetry:                       policy.TelemetryOptions{Disabled: true},
			PerRetryPolicies: []policy.Policy{
				bearer,
				nextPolicy(next),
			},
		})

		azReq, err := runtime.NewRequestFromRequest(req)
		if err != nil {
			return nil, err
		}
		return pipeline.Do(azReq)
	}
}

// nextPolicy terminates the azcore pipeline by returning to the openai-go
// middleware chain.
type nextPolicy option.MiddlewareNext

func (n nextPolicy) Do(req *policy.Request) (*http.Response, error) {
	return option.MiddlewareNext(n)(req.Raw())
}
