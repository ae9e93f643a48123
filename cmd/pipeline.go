package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/tabletalk-cli/internal/config"
	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
	"github.com/KaramelBytes/tabletalk-cli/internal/parser"
	"github.com/KaramelBytes/tabletalk-cli/internal/sandbox"
	"github.com/KaramelBytes/tabletalk-cli/internal/session"
)

// loadDataset reads a CSV/TSV/XLSX file. A file that exists but cannot be
// parsed yields an empty dataset and a warning, so the session still loads.
func loadDataset(path, sheet string) (*dataset.Dataset, error) {
	var (
		ds  *dataset.Dataset
		err error
	)
	if sheet != "" {
		ds, err = parser.LoadXLSX(path, sheet)
	} else {
		ds, err = parser.LoadFile(path)
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; continuing with 0 rows\n", err)
		return &dataset.Dataset{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// resolveProvider picks the provider from the flag, then config, then the default.
func resolveProvider(flag string, c *cfgpkg.Global) (string, error) {
	p := strings.ToLower(strings.TrimSpace(flag))
	if p == "" && c != nil {
		p = strings.ToLower(c.DefaultProvider)
	}
	if p == "" {
		p = ai.ProviderOpenRouter
	}
	if p == "google" {
		p = ai.ProviderGemini
	}
	if p == "local" {
		p = ai.ProviderOllama
	}
	if _, ok := ai.DefaultModel(p); !ok {
		return "", fmt.Errorf("unknown provider %q (known: %s)", p, strings.Join(ai.Providers(), ", "))
	}
	return p, nil
}

// resolveModel picks the model from the flag, then config, then the provider default.
// A configured default that belongs to another provider is ignored.
func resolveModel(flag, provider string, c *cfgpkg.Global) string {
	if m := strings.TrimSpace(flag); m != "" {
		return m
	}
	if c != nil && c.DefaultModel != "" {
		if mi, ok := ai.LookupModel(c.DefaultModel); !ok || mi.Provider == provider {
			return c.DefaultModel
		}
	}
	m, _ := ai.DefaultModel(provider)
	return m
}

// buildRuntime creates the provider runtime from config.
func buildRuntime(provider string, c *cfgpkg.Global) (ai.Runtime, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout:  time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:     c.RetryMaxAttempts,
		BaseDelay:    time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RateLimitRPS: c.RateLimitRPS,
	}
	switch provider {
	case ai.ProviderOpenRouter:
		if c.APIKey == "" {
			return nil, fmt.Errorf("OpenRouter API key not set: export OPENROUTER_API_KEY or run 'tabletalk config set api_key <key>'")
		}
		rc.APIKey = c.APIKey
	case ai.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return nil, fmt.Errorf("Gemini API key not set: export GEMINI_API_KEY or run 'tabletalk config set gemini_api_key <key>'")
		}
		rc.APIKey = c.GeminiAPIKey
		rc.BaseURL = c.GeminiBaseURL
	case ai.ProviderOllama:
		rc.Host = c.OllamaHost
		if c.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
		}
	}
	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	debugf("runtime %s (timeout=%s retries=%d rps=%.2f)", provider, rc.HTTPTimeout, rc.RetryMax, rc.RateLimitRPS)
	return rt, nil
}

// sessionOptions maps config onto pipeline options.
func sessionOptions(c *cfgpkg.Global, mode session.Mode) session.Options {
	opts := session.Options{Mode: mode}
	if c != nil {
		opts.SchemaSampleSize = c.SchemaSampleSize
		opts.Executor = executorFor(c)
	}
	if debug {
		opts.Logger = debugf
	}
	return opts
}

func executorFor(c *cfgpkg.Global) sandbox.Executor {
	var ex sandbox.Executor
	if c != nil && c.ExecTimeoutMs > 0 {
		ex.Timeout = time.Duration(c.ExecTimeoutMs) * time.Millisecond
	}
	return ex
}

// resolveMode picks the answering mode from the flag, then config.
func resolveMode(flag string, c *cfgpkg.Global) (session.Mode, error) {
	m := strings.TrimSpace(flag)
	if m == "" && c != nil {
		m = c.Mode
	}
	if m == "" {
		return session.ModeCode, nil
	}
	return session.ParseMode(m)
}

// requestContext bounds one question by request_timeout_sec (0 = none).
func requestContext(parent context.Context, c *cfgpkg.Global) (context.Context, context.CancelFunc) {
	if c == nil || c.RequestTimeoutSec <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(c.RequestTimeoutSec)*time.Second)
}

// printMessages renders a message list for --print-prompt and --dry-run.
func printMessages(w io.Writer, msgs []ai.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "----- %s -----\n%s\n", m.Role, m.Content)
	}
	fmt.Fprintln(w, "-----")
}

// explainProviderError adds a user-facing hint for common provider failures.
func explainProviderError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out; raise request_timeout_sec or --http-timeout: %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set TABLETALK_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check the %s API key in config (~/.tabletalk/config.yaml) or the environment: %w", provider, err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds or set rate_limit_rps: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'tabletalk models list': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try direct mode on fewer rows or a smaller --max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}
