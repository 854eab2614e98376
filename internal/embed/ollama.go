package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaEmbedder calls an Ollama-compatible /api/embeddings endpoint.
type OllamaEmbedder struct {
	endpoint string
	model    string
	dims     int
	client   *http.Client
}

// NewOllamaEmbedder creates an embedder backed by the HTTP endpoint.
// The caller's context bounds each request; no client-level timeout is set.
func NewOllamaEmbedder(endpoint, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: endpoint,
		model:    model,
		dims:     dims,
		client:   &http.Client{},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests an embedding and unit-normalizes the result.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if o.dims > 0 && len(parsed.Embedding) != o.dims {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", o.dims, len(parsed.Embedding))
	}

	return Normalize(parsed.Embedding), nil
}

// Dimensions returns the expected vector length.
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

// Version identifies the endpoint model.
func (o *OllamaEmbedder) Version() string { return "ollama/" + o.model }
