package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/martinemde/trapi/unifiedllm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:               "trapi",
	Short:             "TRAPI gateway chat client",
	Long:              "trapi sends chat completion requests to models behind the TRAPI gateway using Azure AD credentials.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("model", "m", "gpt-4o", "Logical model name")
	flags.String("instance", "", "Gateway instance path (default $TRAPI_INSTANCE)")
	flags.String("api-version", "", "Azure OpenAI API version (default $TRAPI_API_VERSION)")
	flags.String("scope", "", "Token scope (default $TRAPI_SCOPE)")
	flags.String("trapi-url", "", "Gateway base URL (default $TRAPI_URL)")
	flags.Duration("request-timeout", 0, "Per-attempt timeout (default $TRAPI_REQUEST_TIMEOUT or 120s)")
	flags.StringP("config", "c", "", "YAML gateway config file")
	flags.String("env-file", ".env", "Dotenv file to load before resolving settings")
	flags.Bool("metrics", false, "Print usage metrics to stderr on exit")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.Bool("debug", false, "Debug output")

	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("instance", flags.Lookup("instance"))
	_ = viper.BindPFlag("api_version", flags.Lookup("api-version"))
	_ = viper.BindPFlag("scope", flags.Lookup("scope"))
	_ = viper.BindPFlag("trapi_url", flags.Lookup("trapi-url"))
	_ = viper.BindPFlag("request_timeout", flags.Lookup("request-timeout"))
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("env_file", flags.Lookup("env-file"))
	_ = viper.BindPFlag("metrics", flags.Lookup("metrics"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	viper.SetEnvPrefix("TRAPI_CLI")
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, args []string) error {
	if err := loadDotEnv(viper.GetString("env_file")); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case viper.GetBool("debug"):
		logrus.SetLevel(logrus.DebugLevel)
	case viper.GetBool("verbose"):
		logrus.SetLevel(logrus.InfoLevel)
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
	return nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// gatewayConfig assembles the explicit settings from the config file and
// flags. Flags win over the file; anything left empty is resolved from the
// environment by the library.
func gatewayConfig() (unifiedllm.GatewayConfig, error) {
	var cfg unifiedllm.GatewayConfig
	if path := viper.GetString("config"); path != "" {
		loaded, err := unifiedllm.LoadGatewayConfigFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{"instance", &cfg.Instance},
		{"api_version", &cfg.APIVersion},
		{"scope", &cfg.Scope},
		{"trapi_url", &cfg.URL},
	}
	for _, o := range overrides {
		if v := viper.GetString(o.key); v != "" {
			*o.dst = v
		}
	}
	if cfg.ModelName == "" || rootCmd.PersistentFlags().Changed("model") {
		cfg.ModelName = viper.GetString("model")
	}
	if d := viper.GetDuration("request_timeout"); d > 0 {
		cfg.RequestTimeout = d
	}
	return cfg, nil
}

// newChatModel builds a model for the configured name, through the gateway
// when the name belongs to it and through a direct provider otherwise.
func newChatModel() (*unifiedllm.ChatModel, error) {
	cfg, err := gatewayConfig()
	if err != nil {
		return nil, err
	}

	logger := logrus.WithField("component", "trapi_cli")
	if unifiedllm.IsGatewayModel(cfg.ModelName) {
		return unifiedllm.NewGatewayModel(cfg, unifiedllm.WithLogger(logger))
	}
	logger.WithField("model", cfg.ModelName).Info("model is not served by the gateway, using direct provider")
	return unifiedllm.NewModel(cfg.ModelName,
		unifiedllm.WithLogger(logger),
		unifiedllm.WithModelKwargs(cfg.ModelKwargs),
	)
}

// writeMetrics prints the usage counters in the Prometheus text format.
func writeMetrics(w io.Writer, stats *unifiedllm.Stats) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(stats); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
