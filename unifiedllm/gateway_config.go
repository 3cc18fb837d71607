package unifiedllm

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultRequestTimeout bounds a single gateway attempt when no timeout is
// configured.
const DefaultRequestTimeout = 120 * time.Second

// GatewayConfig holds everything needed to reach a TRAPI gateway deployment.
// Every string field is required.
type GatewayConfig struct {
	ModelName  string `json:"model_name" yaml:"model_name" validate:"required"`
	Instance   string `json:"instance" yaml:"instance" validate:"required"`
	APIVersion string `json:"api_version" yaml:"api_version" validate:"required"`
	Scope      string `json:"scope" yaml:"scope" validate:"required"`
	URL        string `json:"trapi_url" yaml:"trapi_url" validate:"required,url"`

	// ModelKwargs are sent with every request as top-level fields.
	ModelKwargs map[string]interface{} `json:"model_kwargs" yaml:"model_kwargs"`

	// RequestTimeout bounds each attempt. Zero falls back to
	// TRAPI_REQUEST_TIMEOUT, then DefaultRequestTimeout.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// RetryAuthErrors controls whether authentication failures go through
	// the backoff loop. Nil falls back to TRAPI_RETRY_AUTH_ERRORS (default true).
	RetryAuthErrors *bool `json:"retry_auth_errors" yaml:"retry_auth_errors"`
}

// Endpoint returns the Azure OpenAI endpoint for the configured instance.
func (c GatewayConfig) Endpoint() string {
	return strings.TrimRight(c.URL, "/") + "/" + strings.Trim(c.Instance, "/")
}

// ShouldRetryAuthErrors reports the effective auth retry setting.
func (c GatewayConfig) ShouldRetryAuthErrors() bool {
	return c.RetryAuthErrors == nil || *c.RetryAuthErrors
}

func (c GatewayConfig) clone() GatewayConfig {
	out := c
	out.ModelKwargs = maps.Clone(c.ModelKwargs)
	if out.ModelKwargs == nil {
		out.ModelKwargs = map[string]interface{}{}
	}
	if c.RetryAuthErrors != nil {
		v := *c.RetryAuthErrors
		out.RetryAuthErrors = &v
	}
	return out
}

// gatewayEnv is the environment layer. The model name has no environment
// fallback on purpose: callers always choose it.
type gatewayEnv struct {
	Instance        string        `env:"TRAPI_INSTANCE"`
	APIVersion      string        `env:"TRAPI_API_VERSION"`
	Scope           string        `env:"TRAPI_SCOPE"`
	URL             string        `env:"TRAPI_URL"`
	RequestTimeout  time.Duration `env:"TRAPI_REQUEST_TIMEOUT" envDefault:"120s"`
	RetryAuthErrors bool          `env:"TRAPI_RETRY_AUTH_ERRORS" envDefault:"true"`
}

type resolveConfig struct {
	environment map[string]string
}

// ResolveOption configures ResolveGatewayConfig.
type ResolveOption func(*resolveConfig)

// WithEnvironment resolves defaults from the given map instead of the process
// environment.
func WithEnvironment(environment map[string]string) ResolveOption {
	return func(c *resolveConfig) {
		c.environment = environment
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their option names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ResolveGatewayConfig fills every empty field of explicit from the
// environment and validates the result. A field that is still missing yields
// a *ConfigurationError naming it.
func ResolveGatewayConfig(explicit GatewayConfig, opts ...ResolveOption) (GatewayConfig, error) {
	rc := &resolveConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	var defaults gatewayEnv
	envOpts := env.Options{}
	if rc.environment != nil {
		envOpts.Environment = rc.environment
	}
	if err := env.ParseWithOptions(&defaults, envOpts); err != nil {
		return GatewayConfig{}, &ConfigurationError{SDKError: SDKError{
			Message: "reading gateway environment", Cause: err,
		}}
	}

	cfg := explicit.clone()
	cfg.Instance = firstNonEmpty(cfg.Instance, defaults.Instance)
	cfg.APIVersion = firstNonEmpty(cfg.APIVersion, defaults.APIVersion)
	cfg.Scope = firstNonEmpty(cfg.Scope, defaults.Scope)
	cfg.URL = firstNonEmpty(cfg.URL, defaults.URL)
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryAuthErrors == nil {
		retry := defaults.RetryAuthErrors
		cfg.RetryAuthErrors = &retry
	}

	if err := validateGatewayConfig(cfg); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

func validateGatewayConfig(cfg GatewayConfig) error {
	if cfg.RequestTimeout < 0 {
		return &ConfigurationError{
			SDKError: SDKError{Message: fmt.Sprintf("request_timeout must be positive, got %s", cfg.RequestTimeout)},
			Field:    "request_timeout",
		}
	}

	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{SDKError: SDKError{Message: "invalid gateway configuration", Cause: err}}
	}

	fe := verrs[0]
	msg := fmt.Sprintf("missing required gateway setting %q", fe.Field())
	if fe.Tag() != "required" {
		msg = fmt.Sprintf("invalid gateway setting %q: failed %q check", fe.Field(), fe.Tag())
	}
	return &ConfigurationError{SDKError: SDKError{Message: msg}, Field: fe.Field()}
}

// LoadGatewayConfigFile reads a YAML file holding GatewayConfig fields. The
// result is meant to be passed to ResolveGatewayConfig.
func LoadGatewayConfigFile(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("reading gateway config %s: %w", path, err)
	}
	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("parsing gateway config %s: %w", path, err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
