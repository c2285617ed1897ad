package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mnemos/mnemos/internal/adapters/retry"
)

func noRetryClient(baseURL string) *Client {
	c := NewClient(baseURL, "sk-test", "deepseek-chat", 512, 0.7)
	c.retryConfig = retry.BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxRetries:      0,
		Multiplier:      1.0,
	}
	return c
}

func completionBody(msg ChatMessage) string {
	resp := ChatCompletionResponse{Model: "deepseek-chat"}
	resp.Choices = []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{{Message: msg, FinishReason: "stop"}}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	for _, raw := range []string{"http://host", "http://host/", "http://host/v1", "http://host/v1/"} {
		c := NewClient(raw, "", "m", 0, 0)
		if c.baseURL != "http://host" {
			t.Errorf("NewClient(%q): baseURL = %q, want http://host", raw, c.baseURL)
		}
	}
}

func TestChatReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "deepseek-chat" || len(req.Messages) != 1 {
			t.Errorf("request = %+v", req)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		w.Write([]byte(completionBody(ChatMessage{Role: "assistant", Content: "hello"})))
	}))
	defer srv.Close()

	resp, err := noRetryClient(srv.URL).Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content() != "hello" {
		t.Errorf("Content() = %q, want hello", resp.Content())
	}
	if resp.ToolCalls() != nil {
		t.Errorf("ToolCalls() = %v, want nil", resp.ToolCalls())
	}
}

func TestChatWithToolsParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "lookup" {
			t.Errorf("tools = %+v", req.Tools)
		}
		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %q, want auto", req.ToolChoice)
		}
		w.Write([]byte(completionBody(ChatMessage{
			Role: "assistant",
			ToolCalls: []ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: FunctionCall{Name: "lookup", Arguments: `{"query":"x"}`},
			}},
		})))
	}))
	defer srv.Close()

	tools := []Tool{{Type: "function", Function: ToolFunction{Name: "lookup", Description: "look things up"}}}
	resp, err := noRetryClient(srv.URL).ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].Function.Name != "lookup" {
		t.Errorf("tool calls = %+v", calls)
	}
}

func TestChatWithTemperatureOverrides(t *testing.T) {
	var got float64 = -1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		got = req.Temperature
		w.Write([]byte(completionBody(ChatMessage{Role: "assistant", Content: "ok"})))
	}))
	defer srv.Close()

	if _, err := noRetryClient(srv.URL).ChatWithTemperature(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.1); err != nil {
		t.Fatalf("ChatWithTemperature: %v", err)
	}
	if got != 0.1 {
		t.Errorf("temperature = %v, want 0.1", got)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := noRetryClient(srv.URL).Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want provider message included", err)
	}
}

func TestResponseHelpersOnEmptyChoices(t *testing.T) {
	var resp ChatCompletionResponse
	if resp.Content() != "" {
		t.Errorf("Content() = %q, want empty", resp.Content())
	}
	if resp.ToolCalls() != nil {
		t.Errorf("ToolCalls() = %v, want nil", resp.ToolCalls())
	}
}
