package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsRelay/internal/domain"
)

func TestPagePost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/feed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("access_token") != "secret" || r.Form.Get("link") != "https://example.com/a" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		_, _ = w.Write([]byte(`{"id": "12345_678"}`))
	}))
	defer srv.Close()

	page := NewPage("12345", "secret", srv.URL)
	receipt, err := page.Post(context.Background(), domain.PostContent{ArticleID: 1, Text: "hello", Link: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if receipt.PostID != "12345_678" || receipt.Platform != "facebook" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestPagePost_GraphError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid OAuth access token.", "code": 190}}`))
	}))
	defer srv.Close()

	_, err := NewPage("1", "bad", srv.URL).Post(context.Background(), domain.PostContent{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "Invalid OAuth access token") {
		t.Fatalf("expected graph error, got %v", err)
	}
}

func TestPagePost_Misconfigured(t *testing.T) {
	t.Parallel()

	if _, err := NewPage("", "", "").Post(context.Background(), domain.PostContent{}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
