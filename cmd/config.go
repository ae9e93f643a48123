package cmd

import (
	"fmt"

	cfgpkg "github.com/KaramelBytes/tabletalk-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set TableTalk configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "api_key: %s\n", mask(c.APIKey))
		fmt.Fprintf(out, "gemini_api_key: %s\n", mask(c.GeminiAPIKey))
		fmt.Fprintf(out, "default_provider: %s\n", c.DefaultProvider)
		fmt.Fprintf(out, "default_model: %s\n", c.DefaultModel)
		fmt.Fprintf(out, "mode: %s\n", c.Mode)
		fmt.Fprintf(out, "max_tokens: %d\n", c.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", c.Temperature)
		fmt.Fprintf(out, "schema_sample_size: %d\n", c.SchemaSampleSize)
		fmt.Fprintf(out, "exec_timeout_ms: %d\n", c.ExecTimeoutMs)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", c.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", c.RetryMaxDelayMs)
		fmt.Fprintf(out, "request_timeout_sec: %d\n", c.RequestTimeoutSec)
		fmt.Fprintf(out, "rate_limit_rps: %.2f\n", c.RateLimitRPS)
		fmt.Fprintf(out, "ollama_host: %s\n", c.OllamaHost)
		fmt.Fprintf(out, "ollama_timeout_sec: %d\n", c.OllamaTimeoutSec)
		if c.GeminiBaseURL != "" {
			fmt.Fprintf(out, "gemini_base_url: %s\n", c.GeminiBaseURL)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable config keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range cfgpkg.Keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
