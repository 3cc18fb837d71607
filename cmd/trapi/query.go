package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/martinemde/trapi/unifiedllm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var queryCmd = &cobra.Command{
	Use:   "query [prompt...]",
	Short: "Send one or more prompts and print the replies",
	Long: "Send each prompt as a separate single-turn query and print the replies in order. " +
		"Multiple prompts are sent concurrently. With no arguments the prompt is read from stdin.",
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("system", "", "System prompt")
	queryCmd.Flags().StringArray("set", nil, "Request option override as key=value (repeatable)")
	queryCmd.Flags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	system, _ := cmd.Flags().GetString("system")
	sets, _ := cmd.Flags().GetStringArray("set")
	asJSON, _ := cmd.Flags().GetBool("json")

	overrides, err := parseOverrides(sets)
	if err != nil {
		return err
	}

	prompts := args
	if len(prompts) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading prompt from stdin: %w", err)
		}
		prompt := strings.TrimSpace(string(data))
		if prompt == "" {
			return fmt.Errorf("no prompt given")
		}
		prompts = []string{prompt}
	}

	model, err := newChatModel()
	if err != nil {
		return err
	}
	defer model.Close()
	if viper.GetBool("metrics") {
		defer func() { _ = writeMetrics(os.Stderr, model.Stats()) }()
	}

	results, err := unifiedllm.GenerateBatch(cmd.Context(), unifiedllm.GenerateOptions{
		ChatModel:       model,
		System:          system,
		ProviderOptions: overrides,
	}, prompts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed error
	for i, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "[query %d] failed: %v\n", i+1, r.Err)
			failed = r.Err
			continue
		}
		if asJSON {
			enc := json.NewEncoder(out)
			if err := enc.Encode(r.Result); err != nil {
				return err
			}
			continue
		}
		if len(results) > 1 {
			fmt.Fprintf(out, "--- %d ---\n", i+1)
		}
		fmt.Fprintln(out, r.Result.Content)
	}
	return failed
}

// parseOverrides turns key=value pairs into request options. Values are
// decoded as JSON when possible so numbers and booleans keep their type.
func parseOverrides(pairs []string) (map[string]interface{}, error) {
	overrides := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		overrides[key] = value
	}
	return overrides, nil
}
