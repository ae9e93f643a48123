package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the built-in model catalog and pricing",
	Example: `  tabletalk models list
  tabletalk models list --provider ollama
  tabletalk models show openai/gpt-4o-mini`,
}

var modelsListProvider string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(strings.TrimSpace(modelsListProvider))
		if provider != "" {
			if _, ok := ai.DefaultModel(provider); !ok {
				return fmt.Errorf("unknown provider %q (known: %s)", provider, strings.Join(ai.Providers(), ", "))
			}
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
		for _, m := range ai.Catalog(provider) {
			name := m.Name
			if def, _ := ai.DefaultModel(m.Provider); def == m.Name {
				name += " (default)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\t%.5f\n", m.Provider, name, m.ContextTokens, m.InputPerK, m.OutputPerK)
		}
		return tw.Flush()
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show catalog details for one model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mi, ok := ai.LookupModel(args[0])
		if !ok {
			return fmt.Errorf("model %q not in catalog; see 'tabletalk models list'", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mi)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsListCmd.Flags().StringVar(&modelsListProvider, "provider", "", "only list models for this provider")
}
