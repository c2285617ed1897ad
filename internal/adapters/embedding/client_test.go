package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnemos/mnemos/internal/adapters/retry"
)

func noRetry() retry.BackoffConfig {
	return retry.BackoffConfig{MaxRetries: 0, Multiplier: 1}
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434/", "http://localhost:11434"},
		{"http://localhost:11434/v1", "http://localhost:11434"},
		{"http://localhost:11434/v1/", "http://localhost:11434"},
	}
	for _, tt := range tests {
		client := NewClient(tt.input, "", "e5-large", 0)
		if client.baseURL != tt.want {
			t.Errorf("NewClient(%q).baseURL = %q, want %q", tt.input, client.baseURL, tt.want)
		}
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"model": "e5-large",
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-embed", "e5-large", 3)
	result, err := client.Embed(context.Background(), "北京的天气")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(result.Embedding) != 3 || result.Dimensions != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Model != "e5-large" {
		t.Errorf("model = %q", result.Model)
	}
	if gotAuth != "Bearer sk-embed" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/v1/embeddings" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "e5-large",
			"data": []map[string]any{
				{"embedding": []float32{0.2}, "index": 1},
				{"embedding": []float32{0.1}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "e5-large", 1)
	results, err := client.EmbedBatch(context.Background(), []string{"甲", "乙"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].Embedding[0] != 0.1 || results[1].Embedding[0] != 0.2 {
		t.Errorf("results out of order: %v, %v", results[0].Embedding, results[1].Embedding)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	client := NewClient("http://localhost:1", "", "e5-large", 0)
	results, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len = %d, want 0", len(results))
	}
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "e5-large",
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "e5-large", 768)
	_, err := client.Embed(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "768") {
		t.Errorf("error = %v, want dimension mismatch", err)
	}
}

func TestEmbedSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not loaded"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "e5-large", 0)
	client.retryConfig = noRetry()
	if _, err := client.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected an error for 400")
	}
}

func TestEmbedEmptyResponseData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "e5-large", "data": []any{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "e5-large", 0)
	_, err := client.Embed(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "no embedding") {
		t.Errorf("error = %v, want no embedding returned", err)
	}
}

func TestEmbedBreakerOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "e5-large", 0)
	client.retryConfig = noRetry()

	for i := 0; i < 5; i++ {
		client.Embed(context.Background(), "text")
	}
	if _, err := client.Embed(context.Background(), "text"); err == nil ||
		!strings.Contains(err.Error(), "circuit breaker") {
		t.Errorf("error = %v, want circuit breaker open", err)
	}
}
