package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk-cli/internal/session"
)

var (
	chatMode     string
	chatProvider string
	chatModel    string
	chatSheet    string
)

const chatHelp = `Commands:
  /mode code|direct  switch answering mode
  /schema            show inferred column types
  /history           show the direct-mode conversation
  /reset             clear the conversation
  /load <file>       load another file (history is kept)
  /help              show this help
  /quit              exit`

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Interactive question loop over one dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		mode, err := resolveMode(chatMode, c)
		if err != nil {
			return err
		}
		provider, err := resolveProvider(chatProvider, c)
		if err != nil {
			return err
		}
		model := resolveModel(chatModel, provider, c)
		rt, err := buildRuntime(provider, c)
		if err != nil {
			return err
		}
		sess := session.New(session.RuntimeCompleter{
			Runtime:     rt,
			Provider:    provider,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		}, sessionOptions(c, mode))

		out := cmd.OutOrStdout()
		if err := chatLoad(out, sess, args[0], chatSheet); err != nil {
			return err
		}
		fmt.Fprintf(out, "Mode: %s  Provider: %s  Model: %s  (/help for commands)\n", sess.Mode(), provider, model)

		sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				fmt.Fprintln(out)
				return sc.Err()
			}
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				quit, err := chatCommand(out, sess, line)
				if err != nil {
					fmt.Fprintf(out, "✗ %v\n", err)
				}
				if quit {
					return nil
				}
				continue
			}
			ctx, cancel := requestContext(sigCtx, c)
			ans := sess.AskDetailed(ctx, line)
			cancel()
			if ans.Code != "" {
				debugf("generated code (%s rule):\n%s", ans.Rule, ans.Code)
			}
			fmt.Fprintln(out, ans.Text)
			if ans.Err != nil {
				fmt.Fprintf(os.Stderr, "⚠ %v\n", explainProviderError(ans.Err, provider, model))
			}
			if sigCtx.Err() != nil {
				return nil
			}
		}
	},
}

func chatLoad(out io.Writer, sess *session.Session, path, sheet string) error {
	ds, err := loadDataset(path, sheet)
	if err != nil {
		return err
	}
	res := sess.Load(ds)
	fmt.Fprintf(out, "✓ Loaded %s: %d rows, %d columns, %d chunks\n", path, res.RowCount, len(ds.Columns), res.ChunkCount)
	return nil
}

// chatCommand handles one slash command; quit reports /quit.
func chatCommand(out io.Writer, sess *session.Session, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/mode":
		if len(fields) < 2 {
			fmt.Fprintf(out, "mode: %s\n", sess.Mode())
			return false, nil
		}
		m, err := session.ParseMode(fields[1])
		if err != nil {
			return false, err
		}
		sess.SetMode(m)
		fmt.Fprintf(out, "✓ mode: %s\n", m)
	case "/schema":
		fmt.Fprintln(out, sess.Schema().String())
	case "/history":
		h := sess.History()
		if len(h) == 0 {
			fmt.Fprintln(out, "(no history)")
		}
		for _, m := range h {
			fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
		}
	case "/reset":
		sess.ResetHistory()
		fmt.Fprintln(out, "✓ history cleared")
	case "/load":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /load <file>")
		}
		return false, chatLoad(out, sess, strings.TrimSpace(strings.TrimPrefix(line, "/load")), "")
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "answering mode: code or direct (default from config)")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "model provider: openrouter, gemini or ollama")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model name (default per provider)")
	chatCmd.Flags().StringVar(&chatSheet, "sheet", "", "worksheet name for .xlsx files (default first sheet)")
}
