package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/martinemde/trapi/unifiedllm"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models and their gateway deployments",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().Bool("all", false, "Include models served by direct providers")

	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	provider := unifiedllm.GatewayProvider
	if all {
		provider = ""
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPROVIDER\tDEPLOYMENT\tALIASES")
	for _, m := range unifiedllm.ListModels(provider) {
		deployment := m.Deployment
		if deployment == "" {
			deployment = "-"
		}
		aliases := strings.Join(m.Aliases, ",")
		if aliases == "" {
			aliases = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Provider, deployment, aliases)
	}
	return w.Flush()
}
