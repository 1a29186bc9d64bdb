package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsRelay/internal/domain"
)

func TestChatClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "llama" || len(body.Messages) != 2 || body.Messages[1].Content != "write" {
			t.Errorf("unexpected payload: %+v", body)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"title\": \"x\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewChatClient(Options{Name: "groq", Endpoint: srv.URL, Model: "llama", APIKey: "key"})
	text, outcome, err := client.Generate(context.Background(), "write")
	if err != nil || outcome != domain.OutcomeSuccess {
		t.Fatalf("Generate: %v %v", outcome, err)
	}
	if text != `{"title": "x"}` {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestRateLimitOutcome(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "quota"}`))
	}))
	defer srv.Close()

	gens := []interface {
		Generate(context.Context, string) (string, domain.Outcome, error)
	}{
		NewChatClient(Options{Name: "grok", Endpoint: srv.URL, Model: "m", APIKey: "k"}),
		NewGeminiClient(Options{Name: "gemini", Endpoint: srv.URL, Model: "m", APIKey: "k"}),
		NewPollinationsClient(Options{Name: "free", Endpoint: srv.URL}),
	}
	for _, gen := range gens {
		_, outcome, err := gen.Generate(context.Background(), "p")
		if outcome != domain.OutcomeRateLimited || err == nil {
			t.Fatalf("expected rate limited outcome, got %v %v", outcome, err)
		}
	}
}

func TestServerErrorIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, outcome, _ := NewChatClient(Options{Name: "groq", Endpoint: srv.URL, Model: "m", APIKey: "k"}).Generate(context.Background(), "p")
	if outcome != domain.OutcomeFailure {
		t.Fatalf("expected failure, got %v", outcome)
	}
}

func TestGeminiClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing key")
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "draft"}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(Options{Name: "gemini", Endpoint: srv.URL + "/v1beta/", Model: "gemini-1.5-flash", APIKey: "secret"})
	text, _, err := client.Generate(context.Background(), "p")
	if err != nil || text != "draft" {
		t.Fatalf("Generate: %q %v", text, err)
	}
}

func TestPollinationsTruncatesPrompt(t *testing.T) {
	t.Parallel()

	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen = len([]rune(strings.TrimPrefix(r.URL.Path, "/")))
		_, _ = w.Write([]byte("raw text"))
	}))
	defer srv.Close()

	client := NewPollinationsClient(Options{Name: "free", Endpoint: srv.URL})
	text, _, err := client.Generate(context.Background(), strings.Repeat("a", 5000))
	if err != nil || text != "raw text" {
		t.Fatalf("Generate: %q %v", text, err)
	}
	if gotLen != maxFreePromptRunes {
		t.Fatalf("expected prompt of %d runes, got %d", maxFreePromptRunes, gotLen)
	}
}

func TestFactory(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{KindGemini, KindOpenAI, KindPollinations} {
		gen, err := New(kind, Options{Name: kind})
		if err != nil || gen.Name() != kind {
			t.Fatalf("New(%s): %v", kind, err)
		}
	}
	if _, err := New("bard", Options{}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if Usable(KindGemini, "") || !Usable(KindPollinations, "") {
		t.Fatalf("unexpected usability")
	}
}
