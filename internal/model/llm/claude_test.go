package llm

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClaudeClient_ChatParsesMessagesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"text":"hello from claude"}]}`))
	}))
	defer srv.Close()
	t.Setenv("ANTHROPIC_BASE_URL", srv.URL)

	client, err := NewClaudeClient("claude-3-opus-20240229", "test-key")
	if err != nil {
		t.Fatalf("NewClaudeClient: %v", err)
	}

	got, err := client.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Chat: %+v", err)
	}
	if got != "hello from claude" {
		t.Errorf("content: %q", got)
	}

	got, err = client.Generate("hi", GenerateOptions{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Generate: %+v", err)
	}
	if got != "hello from claude" {
		t.Errorf("content: %q", got)
	}
}

func TestClaudeClient_EmptyContentIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()
	t.Setenv("ANTHROPIC_BASE_URL", srv.URL)

	client, err := NewClaudeClient("", "test-key")
	if err != nil {
		t.Fatalf("NewClaudeClient: %v", err)
	}
	if _, err := client.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{}); err == nil {
		t.Error("empty content should be an error")
	}
}
