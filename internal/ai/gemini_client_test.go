package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGeminiGenerate(t *testing.T) {
	var gotKey, gotBody string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent") {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": "function analyzeData(data) { return 1; }"}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20},
			"responseId":    "resp-1",
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("k-123", srv.URL+"/", 2*time.Second, 1, 0, 0)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "google/gemini-2.0-flash",
		Messages: []Message{
			{Role: RoleSystem, Content: "schema prompt"},
			{Role: RoleUser, Content: "Write the function."},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text() != "function analyzeData(data) { return 1; }" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 20 || resp.RequestID != "resp-1" {
		t.Fatalf("unexpected metadata %+v", resp)
	}
	if gotKey != "k-123" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
	if !strings.Contains(gotBody, "schema prompt") || !strings.Contains(gotBody, "systemInstruction") {
		t.Fatalf("system prompt not sent as system instruction: %s", gotBody)
	}
}

func TestGeminiAuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 401, "message": "API key not valid", "status": "UNAUTHENTICATED"}})
	}))
	defer srv.Close()

	c := NewGeminiClient("bad", srv.URL+"/", 2*time.Second, 3, time.Millisecond, time.Millisecond)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.0-flash", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T %v", err, err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", n)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	c := NewGeminiClient("", "", 0, 0, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.0-flash", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestGeminiRequestMapping(t *testing.T) {
	contents, cfg := geminiRequest(GenerateRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "q1"},
			{Role: RoleAssistant, Content: "a1"},
			{Role: RoleUser, Content: "q2"},
		},
		MaxTokens:   100,
		Temperature: 0.2,
	})
	if len(contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Fatalf("assistant turns map to model role, got %q", contents[1].Role)
	}
	if cfg.SystemInstruction == nil || cfg.MaxOutputTokens != 100 || cfg.Temperature == nil {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
