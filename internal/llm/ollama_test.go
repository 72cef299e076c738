package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_ChatSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected stream=false")
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "  echo hello\n"},
		})
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL, Model: "test-model"}, nil)
	got, err := c.Complete(context.Background(), "propose a command")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "echo hello" {
		t.Errorf("Expected trimmed 'echo hello', got %q", got)
	}
}

func TestOllamaClient_SystemMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 {
			t.Fatalf("Expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "be terse" {
			t.Errorf("Unexpected system message: %+v", req.Messages[0])
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "ok"},
		})
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	if _, err := c.CompleteWithSystem(context.Background(), "be terse", "hi"); err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
}

func TestOllamaClient_GenerateFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			http.Error(w, "chat unsupported", http.StatusNotFound)
		case "/api/generate":
			var req ollamaGenerateRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Stream {
				t.Error("Expected stream=false on generate")
			}
			json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "fallback answer"})
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	got, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "fallback answer" {
		t.Errorf("Expected fallback answer, got %q", got)
	}
}

func TestOllamaClient_EmptyChatFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			json.NewEncoder(w).Encode(ollamaChatResponse{})
		case "/api/generate":
			json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "from generate"})
		}
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	got, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "from generate" {
		t.Errorf("Expected generate response, got %q", got)
	}
}

func TestOllamaClient_BothEndpointsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			json.NewEncoder(w).Encode(ollamaChatResponse{})
		case "/api/generate":
			json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  "})
		}
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("Expected error when both endpoints answer empty")
	}
}

func TestOllamaClient_Healthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"version":"0.5.0"}`))
	}))
	defer ts.Close()

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	if err := c.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy failed: %v", err)
	}
}

func TestOllamaClient_HealthyUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // immediately unreachable

	c := NewOllamaClient(OllamaConfig{Host: ts.URL}, nil)
	if err := c.Healthy(context.Background()); err == nil {
		t.Error("Expected error for unreachable daemon")
	}
}

func TestOllamaClient_Defaults(t *testing.T) {
	c := NewOllamaClient(OllamaConfig{}, nil)
	if c.Name() != "ollama" {
		t.Errorf("Unexpected name: %s", c.Name())
	}
	if !c.Available() {
		t.Error("Ollama should always be available")
	}
	if c.Model() != "qwen2.5:0.5b-instruct" {
		t.Errorf("Unexpected default model: %s", c.Model())
	}
	if c.host != "http://127.0.0.1:11434" {
		t.Errorf("Unexpected default host: %s", c.host)
	}
}

func TestOllamaClient_TrailingSlashHost(t *testing.T) {
	c := NewOllamaClient(OllamaConfig{Host: "http://localhost:11434/"}, nil)
	if c.host != "http://localhost:11434" {
		t.Errorf("Expected trailing slash stripped, got %s", c.host)
	}
}
