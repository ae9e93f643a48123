package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiClient adapts the Gemini API (google.golang.org/genai) to Runtime.
// The underlying SDK client is created on first use.
type GeminiClient struct {
	apiKey           string
	baseURL          string
	httpTimeout      time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient returns a Gemini runtime. baseURL may be empty.
func NewGeminiClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *GeminiClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &GeminiClient{
		apiKey:           strings.TrimSpace(apiKey),
		baseURL:          strings.TrimSpace(baseURL),
		httpTimeout:      httpTimeout,
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

func (c *GeminiClient) init(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.initErr = errors.New("GEMINI_API_KEY is missing")
			return
		}
		cc := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: c.httpTimeout},
		}
		if c.baseURL != "" {
			cc.HTTPOptions.BaseURL = c.baseURL
		}
		c.client, c.initErr = genai.NewClient(ctx, cc)
	})
	return c.client, c.initErr
}

// geminiModel accepts both "gemini-2.0-flash" and catalog names such as
// "google/gemini-2.0-flash".
func geminiModel(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "google/")
}

// geminiRequest splits system messages into the system instruction and maps
// assistant turns to the "model" role.
func geminiRequest(req GenerateRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	cfg := &genai.GenerateContentConfig{CandidateCount: 1}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	return contents, cfg
}

func (c *GeminiClient) validate(req GenerateRequest) error {
	if geminiModel(req.Model) == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}

// Generate calls models.generateContent, retrying transient failures.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	client, err := c.init(ctx)
	if err != nil {
		return nil, err
	}
	contents, cfg := geminiRequest(req)
	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := client.Models.GenerateContent(ctx, geminiModel(req.Model), contents, cfg)
		if err == nil {
			return fromGemini(resp), nil
		}
		lastErr = classifyGeminiErr(err, c.baseURL)
		if !IsTransient(lastErr) || attempt == c.retryMaxAttempts {
			break
		}
		sleep := withJitter(backoff)
		if sleep > c.retryMaxDelay {
			sleep = c.retryMaxDelay
		}
		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

// GenerateStream streams partial text from models.streamGenerateContent.
func (c *GeminiClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	if err := c.validate(req); err != nil {
		return err
	}
	client, err := c.init(ctx)
	if err != nil {
		return err
	}
	contents, cfg := geminiRequest(req)
	for resp, err := range client.Models.GenerateContentStream(ctx, geminiModel(req.Model), contents, cfg) {
		if err != nil {
			return classifyGeminiErr(err, c.baseURL)
		}
		if t := resp.Text(); t != "" {
			onDelta(t)
		}
	}
	return nil
}

func fromGemini(resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{
		ID:        resp.ResponseID,
		RequestID: resp.ResponseID,
		Choices:   []Choice{{Message: Message{Role: RoleAssistant, Content: resp.Text()}}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

// classifyGeminiErr maps genai.APIError codes onto this package's typed errors.
func classifyGeminiErr(err error, host string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		ae := &APIError{StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message}
		if apiErr.Code == http.StatusNotFound && containsFold(apiErr.Message, "model") {
			return &ModelNotFoundError{APIError: ae}
		}
		return classifyAPIError(ae, nil)
	}
	if isRetryableNetErr(err) {
		return &UnreachableError{Host: host, Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
