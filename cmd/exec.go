package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk-cli/internal/extract"
)

var execSheet string

var execCmd = &cobra.Command{
	Use:   "exec <file> <code-file|->",
	Short: "Run an analyzeData function against a dataset without a model",
	Long: `exec feeds a model-style response (code, optionally fenced) through the same
extractor and sandbox that answer questions in code mode. Use "-" to read the
response from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0], execSheet)
		if err != nil {
			return err
		}
		var raw []byte
		if args[1] == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("read code: %w", err)
		}
		res := extract.Analyze(string(raw))
		debugf("extracted code via %s rule (%d bytes)", res.Rule, len(res.Code))
		fmt.Fprintln(cmd.OutOrStdout(), executorFor(c).Run(cmd.Context(), res.Code, ds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execSheet, "sheet", "", "worksheet name for .xlsx files (default first sheet)")
}
