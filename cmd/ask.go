package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/tabletalk-cli/internal/config"
	"github.com/KaramelBytes/tabletalk-cli/internal/session"
	"github.com/KaramelBytes/tabletalk-cli/internal/utils"
)

var (
	askMode        string
	askProvider    string
	askModel       string
	askMaxTokens   int
	askTemperature float64
	askDryRun      bool
	askPrintPrompt bool
	askJSON        bool
	askSheet       string
	askStream      bool
)

type askOutput struct {
	SessionID string   `json:"session_id"`
	Question  string   `json:"question"`
	Mode      string   `json:"mode"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	Answer    string   `json:"answer"`
	Code      string   `json:"code,omitempty"`
	Rule      string   `json:"extraction_rule,omitempty"`
	Ranked    []string `json:"ranked_chunks,omitempty"`
	Error     string   `json:"error,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask <file> <question...>",
	Short: "Ask one question about a CSV/TSV/XLSX file",
	Example: `  tabletalk ask people.csv "What is the average age?"
  tabletalk ask sales.xlsx --sheet Q3 --mode direct "Which region sold the most?"
  tabletalk ask people.csv --dry-run "How many rows mention Oslo?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		mode, err := resolveMode(askMode, c)
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0], askSheet)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if askDryRun {
			sess := session.New(nil, sessionOptions(c, mode))
			sess.Load(ds)
			msgs := sess.Preview(question)
			if msgs == nil {
				return fmt.Errorf("nothing to send: question is empty")
			}
			provider, err := resolveProvider(askProvider, c)
			if err != nil {
				return err
			}
			model := resolveModel(askModel, provider, c)
			printMessages(out, msgs)
			sections := make(map[string]string, len(msgs))
			labels := make([]string, len(msgs))
			for i, m := range msgs {
				labels[i] = fmt.Sprintf("%02d %s", i+1, m.Role)
				sections[labels[i]] = m.Content
			}
			breakdown := utils.TokenBreakdown(sections)
			tokens := 0
			fmt.Fprintf(out, "Request ID: %s\n", uuid.NewString())
			fmt.Fprintf(out, "Mode: %s  Provider: %s  Model: %s\n", mode, provider, model)
			fmt.Fprintln(out, "Token breakdown:")
			for _, l := range labels {
				fmt.Fprintf(out, "  %s: %d\n", l, breakdown[l])
				tokens += breakdown[l]
			}
			fmt.Fprintf(out, "Estimated prompt tokens: %d\n", tokens)
			if cost, ok := ai.EstimateCostUSD(model, tokens, maxTokensFor(c)); ok {
				fmt.Fprintf(out, "Estimated max cost: $%.6f\n", cost)
			}
			return nil
		}

		provider, err := resolveProvider(askProvider, c)
		if err != nil {
			return err
		}
		model := resolveModel(askModel, provider, c)
		rt, err := buildRuntime(provider, c)
		if err != nil {
			return err
		}
		streamed := false
		rc := session.RuntimeCompleter{
			Runtime:     rt,
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokensFor(c),
			Temperature: temperatureFor(cmd, c),
		}
		if askStream && mode == session.ModeDirect && !askJSON {
			rc.OnDelta = func(d string) {
				streamed = true
				fmt.Fprint(out, d)
			}
		}
		var completer session.Completer = rc
		if askPrintPrompt {
			completer = session.CompleterFunc(func(ctx context.Context, msgs []ai.Message) (string, error) {
				printMessages(os.Stderr, msgs)
				return rc.Complete(ctx, msgs)
			})
		}

		sess := session.New(completer, sessionOptions(c, mode))
		res := sess.Load(ds)
		debugf("session %s: %d rows, %d chunks", sess.ID(), res.RowCount, res.ChunkCount)

		sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ctx, cancel := requestContext(sigCtx, c)
		defer cancel()

		ans := sess.AskDetailed(ctx, question)
		if ans.Code != "" {
			debugf("generated code (%s rule):\n%s", ans.Rule, ans.Code)
		}
		var hint error
		if ans.Err != nil {
			hint = explainProviderError(ans.Err, provider, model)
		}

		if askJSON {
			o := askOutput{
				SessionID: sess.ID(), Question: question, Mode: string(ans.Mode),
				Provider: provider, Model: model, Answer: ans.Text,
				Code: ans.Code, Rule: string(ans.Rule), Ranked: ans.Ranked,
			}
			if hint != nil {
				o.Error = hint.Error()
			}
			b, err := utils.PrettyJSON(o)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return hint
		}
		if streamed {
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, ans.Text)
		}
		return hint
	},
}

func maxTokensFor(c *cfgpkg.Global) int {
	if askMaxTokens > 0 {
		return askMaxTokens
	}
	if c != nil {
		return c.MaxTokens
	}
	return 0
}

func temperatureFor(cmd *cobra.Command, c *cfgpkg.Global) float64 {
	if f := cmd.Flags().Lookup("temperature"); f != nil && f.Changed {
		return askTemperature
	}
	if c != nil {
		return c.Temperature
	}
	return 0
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askMode, "mode", "", "answering mode: code or direct (default from config)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "model provider: openrouter, gemini or ollama")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (default per provider)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "max completion tokens (overrides config)")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", 0, "sampling temperature (overrides config)")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "print the prompt and token estimate without calling the provider")
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the prompt to stderr before sending")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit a JSON result")
	askCmd.Flags().StringVar(&askSheet, "sheet", "", "worksheet name for .xlsx files (default first sheet)")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream direct-mode answers as they arrive")
}
