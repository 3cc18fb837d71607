package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/martinemde/trapi/unifiedllm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive multi-turn conversation",
	Long:  "Read user turns from stdin, one per line, and keep the conversation history between turns. Type /exit to quit.",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("system", "", "System prompt")
	chatCmd.Flags().StringArray("set", nil, "Request option override as key=value (repeatable)")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	system, _ := cmd.Flags().GetString("system")
	sets, _ := cmd.Flags().GetStringArray("set")

	overrides, err := parseOverrides(sets)
	if err != nil {
		return err
	}

	model, err := newChatModel()
	if err != nil {
		return err
	}
	defer model.Close()

	var history []unifiedllm.Message
	if system != "" {
		history = append(history, unifiedllm.SystemMessage(system))
	}

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprint(os.Stderr, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(os.Stderr, "> ")
			continue
		case "/exit", "/quit":
			return finishChat(model)
		}

		history = append(history, unifiedllm.UserMessage(line))
		res, err := model.Query(cmd.Context(), history, overrides)
		if err != nil {
			// Drop the unanswered turn so the user can retry it.
			history = history[:len(history)-1]
			fmt.Fprintf(os.Stderr, "error: %v\n> ", err)
			if unifiedllm.IsCancellation(err) {
				return finishChat(model)
			}
			continue
		}
		history = append(history, unifiedllm.AssistantMessage(res.Content))
		fmt.Fprintln(out, res.Content)
		fmt.Fprint(os.Stderr, "> ")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return finishChat(model)
}

func finishChat(model *unifiedllm.ChatModel) error {
	fmt.Fprintf(os.Stderr, "\n%d calls, cost %.4f\n", model.Calls(), model.Cost())
	if viper.GetBool("metrics") {
		return writeMetrics(os.Stderr, model.Stats())
	}
	return nil
}
