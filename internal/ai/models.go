package ai

import "sort"

// Model metadata and simple pricing helpers for dry-run estimates.
// Prices are illustrative.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"openai/gpt-4o-mini": {
		Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter,
		ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006,
	},
	"openai/gpt-4o": {
		Name: "openai/gpt-4o", Provider: ProviderOpenRouter,
		ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01,
	},
	"openai/gpt-3.5-turbo": {
		Name: "openai/gpt-3.5-turbo", Provider: ProviderOpenRouter,
		ContextTokens: 16385, InputPerK: 0.0005, OutputPerK: 0.0015,
	},
	"anthropic/claude-3.5-sonnet": {
		Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter,
		ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015,
	},
	"anthropic/claude-3-haiku": {
		Name: "anthropic/claude-3-haiku", Provider: ProviderOpenRouter,
		ContextTokens: 200000, InputPerK: 0.00025, OutputPerK: 0.00125,
	},
	"deepseek/deepseek-r1:free": {
		Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter,
		ContextTokens: 128000,
	},
	"gemini-2.0-flash": {
		Name: "gemini-2.0-flash", Provider: ProviderGemini,
		ContextTokens: 1000000, InputPerK: 0.0001, OutputPerK: 0.0004,
	},
	"gemini-1.5-pro": {
		Name: "gemini-1.5-pro", Provider: ProviderGemini,
		ContextTokens: 2000000, InputPerK: 0.00125, OutputPerK: 0.005,
	},
	"llama3.1:8b": {
		Name: "llama3.1:8b", Provider: ProviderOllama,
		ContextTokens: 131072,
	},
	"qwen2.5-coder:7b": {
		Name: "qwen2.5-coder:7b", Provider: ProviderOllama,
		ContextTokens: 32768,
	},
	"mistral:7b-instruct": {
		Name: "mistral:7b-instruct", Provider: ProviderOllama,
		ContextTokens: 8192,
	},
}

var defaultModels = map[string]string{
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderGemini:     "gemini-2.0-flash",
	ProviderOllama:     "llama3.1:8b",
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(provider string) (string, bool) {
	m, ok := defaultModels[provider]
	return m, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// Catalog returns catalog entries sorted by provider then name. An empty
// provider selects all entries.
func Catalog(provider string) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		if provider == "" || v.Provider == provider {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
