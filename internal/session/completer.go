package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/ai"
)

// Completer turns an ordered message list into response text.
type Completer interface {
	Complete(ctx context.Context, msgs []ai.Message) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, msgs []ai.Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, msgs []ai.Message) (string, error) {
	return f(ctx, msgs)
}

// ProviderError wraps any failure of the model provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RuntimeCompleter adapts an ai.Runtime to Completer. When OnDelta is set and
// the runtime streams, partial output is forwarded as it arrives.
type RuntimeCompleter struct {
	Runtime     ai.Runtime
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	OnDelta     func(string)
}

func (c RuntimeCompleter) Complete(ctx context.Context, msgs []ai.Message) (string, error) {
	if c.Runtime == nil {
		return "", &ProviderError{Provider: c.Provider, Err: fmt.Errorf("no runtime configured")}
	}
	req := ai.GenerateRequest{Model: c.Model, Messages: msgs, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
	if sr, ok := c.Runtime.(ai.StreamRuntime); ok && c.OnDelta != nil {
		var sb strings.Builder
		err := sr.GenerateStream(ctx, req, func(d string) {
			sb.WriteString(d)
			c.OnDelta(d)
		})
		if err != nil {
			return "", &ProviderError{Provider: c.Provider, Err: err}
		}
		return sb.String(), nil
	}
	resp, err := c.Runtime.Generate(ctx, req)
	if err != nil {
		return "", &ProviderError{Provider: c.Provider, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.Provider, Err: fmt.Errorf("no content returned from model")}
	}
	return resp.Text(), nil
}
