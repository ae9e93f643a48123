package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk-cli/internal/analysis"
	"github.com/KaramelBytes/tabletalk-cli/internal/retrieval"
	"github.com/KaramelBytes/tabletalk-cli/internal/schema"
)

var (
	inspectQuestion string
	inspectSheet    string
	inspectStats    bool
	inspectGroupBy  string
	inspectCorr     bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show schema, chunk plan and (optionally) chunk ranking for a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0], inspectSheet)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		sample := schema.DefaultSampleSize
		if c != nil && c.SchemaSampleSize > 0 {
			sample = c.SchemaSampleSize
		}
		sc := schema.Infer(ds, sample)
		fmt.Fprintf(out, "Rows: %d\nColumns: %d\n\n", ds.Len(), len(ds.Columns))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COLUMN\tTYPE")
		for _, col := range sc.Columns {
			fmt.Fprintf(tw, "%s\t%s\n", col, sc.TypeOf(col))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if inspectStats || inspectGroupBy != "" || inspectCorr {
			opt := analysis.DefaultOptions()
			opt.GroupBy = inspectGroupBy
			opt.Correlations = inspectCorr
			fmt.Fprintf(out, "\n%s", analysis.Describe(ds, sc, opt).Markdown())
		}

		plan := retrieval.Plan(ds)
		chunks := retrieval.ChunkDataset(ds)
		fmt.Fprintf(out, "\nChunk plan: %d chunks of ≤%d rows (≈%.1f tokens/row, target %d tokens)\n",
			len(chunks), plan.ChunkSize, plan.AvgTokensPerRow, retrieval.TargetChunkTokens)
		for _, ch := range chunks {
			fmt.Fprintf(out, "  %s rows %d-%d (~%d tokens)\n", ch.ID, ch.Start, ch.End, ch.Tokens)
		}

		if inspectQuestion != "" {
			fmt.Fprintf(out, "\nKeywords: %v\n", retrieval.Keywords(inspectQuestion))
			ranked := retrieval.Rank(inspectQuestion, chunks)
			if len(ranked) == 0 {
				fmt.Fprintln(out, "No chunk matched; direct mode would fall back to the leading rows.")
				return nil
			}
			for i, r := range ranked {
				fmt.Fprintf(out, "  %d. %s score=%d\n", i+1, r.ID, r.Score)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectQuestion, "question", "q", "", "rank chunks against this question")
	inspectCmd.Flags().BoolVar(&inspectStats, "stats", false, "print per-column statistics")
	inspectCmd.Flags().StringVar(&inspectGroupBy, "group-by", "", "summarize numeric columns per value of this column")
	inspectCmd.Flags().BoolVar(&inspectCorr, "correlations", false, "print Pearson correlations among numeric columns")
	inspectCmd.Flags().StringVar(&inspectSheet, "sheet", "", "worksheet name for .xlsx files (default first sheet)")
}
