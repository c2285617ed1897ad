// Package embedding calls an OpenAI-compatible /v1/embeddings endpoint.
// Requests retry with backoff and run behind a circuit breaker so a dead
// embedding server fails fast instead of stalling every memory operation.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mnemos/mnemos/internal/adapters/circuitbreaker"
	"github.com/mnemos/mnemos/internal/adapters/retry"
	"github.com/mnemos/mnemos/internal/ports"
)

const requestTimeout = 30 * time.Second

// Client implements ports.EmbeddingService.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
}

// NewClient builds a client for the given endpoint. A dimensions of 0
// disables dimension validation.
func NewClient(baseURL, apiKey, model string, dimensions int) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		dimensions:  dimensions,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
	}
}

type embeddingRequest struct {
	Input any    `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (c *Client) Embed(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return results[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]*ports.EmbeddingResult, error) {
	if len(texts) == 0 {
		return []*ports.EmbeddingResult{}, nil
	}

	var results []*ports.EmbeddingResult
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		var err error
		results, err = c.embed(ctx, texts)
		return err
	})
	if err != nil {
		log.Printf("[embedding] request failed: model=%s, inputs=%d, breaker=%s, error=%v",
			c.model, len(texts), c.breaker.State(), err)
	}
	return results, err
}

func (c *Client) GetDimensions() int {
	return c.dimensions
}

func (c *Client) embed(ctx context.Context, texts []string) ([]*ports.EmbeddingResult, error) {
	payload := embeddingRequest{Model: c.model}
	if len(texts) == 1 {
		payload.Input = texts[0]
	} else {
		payload.Input = texts
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]*ports.EmbeddingResult, len(parsed.Data))
	for _, item := range parsed.Data {
		got := len(item.Embedding)
		if c.dimensions > 0 && got != c.dimensions {
			return nil, fmt.Errorf("expected %d dimensions but got %d", c.dimensions, got)
		}
		results[item.Index] = &ports.EmbeddingResult{
			Embedding:  item.Embedding,
			Model:      parsed.Model,
			Dimensions: got,
		}
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	url := c.baseURL + "/v1/embeddings"

	var respBody []byte
	err := retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("embedding API returned %s: %s", resp.Status, respBody)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}
