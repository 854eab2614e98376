package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(Settings{Provider: "quantum", Dimensions: 8}, nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewEmbedder_RequiresDimensions(t *testing.T) {
	_, err := NewEmbedder(Settings{Provider: "local"}, nil)
	if err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestNewEmbedder_DefaultsToLocal(t *testing.T) {
	e, err := NewEmbedder(Settings{Dimensions: 32, MaxRetries: 1, TimeoutSeconds: 5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Dimensions() != 32 {
		t.Errorf("expected 32 dims, got %d", e.Dimensions())
	}
	if e.Version() != "local-hash/1" {
		t.Errorf("unexpected version: %s", e.Version())
	}
}

// failingEmbedder always errors, to exercise the retry wrapper.
type failingEmbedder struct{ calls int }

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return nil, fmt.Errorf("model offline")
}
func (f *failingEmbedder) Dimensions() int { return 4 }
func (f *failingEmbedder) Version() string { return "fail/1" }

func TestRetryingEmbedder_WrapsUnavailable(t *testing.T) {
	inner := &failingEmbedder{}
	r := &retryingEmbedder{inner: inner, timeout: 5 * time.Second, maxTries: 3, log: zap.NewNop()}

	_, err := r.Embed(context.Background(), "anything")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestOllamaEmbedder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{3, 4}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 2)
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	// 3-4-5 triangle normalizes to 0.6, 0.8.
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("expected normalized vector, got %v", v)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 2)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 2)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 500")
	}
}
