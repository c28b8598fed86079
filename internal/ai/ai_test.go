package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spec-kit/helpdesk/internal/config"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		var body geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 2 || body.Contents[0].Parts[1].Text != "hello" {
			t.Errorf("unexpected request %+v", body)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi there"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("k", "test-model", srv.URL, srv.Client())
	out, err := g.Generate(context.Background(), Prompt{System: "sys", User: "hello"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hi there" {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestGeminiUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGemini("k", "", srv.URL, srv.Client())
	_, err := g.Generate(context.Background(), Prompt{User: "hello"})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", upstream.Status)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGemini("k", "", srv.URL, srv.Client()).Generate(context.Background(), Prompt{User: "x"})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestMissingKey(t *testing.T) {
	for _, g := range []Generator{NewGemini("", "", "", nil), NewOpenAI("", "", "", nil)} {
		if _, err := g.Generate(context.Background(), Prompt{User: "x"}); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte(`{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"answer"}]}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAI("k", "", srv.URL, srv.Client()).Generate(context.Background(), Prompt{System: "s", User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "answer" {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(config.AIConfig{Provider: "bard"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
