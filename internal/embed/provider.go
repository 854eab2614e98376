/*
Package embed implements the embedding pipeline for the discovery engine.

It converts entity text (name, description, tags, flattened metadata,
tool descriptions) into fixed-length unit vectors. Two providers are
available:

  - local: a deterministic feature-hashing embedder, pure Go, no network
  - ollama: an Ollama-compatible HTTP embeddings endpoint

Embedding is deterministic for a fixed provider: the same input text
always yields the same vector. The synchronizer relies on this plus the
source text hash to skip re-embedding unchanged entities.
*/
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the embedding provider cannot be
// reached or refuses the request. The engine degrades to keyword-only
// search for affected queries and marks affected entities stale.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder generates fixed-length embedding vectors from text.
// Implementations abstract over local and remote providers.
type Embedder interface {
	// Embed returns the embedding for text. The returned vector is
	// unit-normalized so inner product equals cosine similarity.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length the provider produces.
	Dimensions() int

	// Version identifies the model so cached embeddings can be
	// invalidated when the provider changes.
	Version() string
}

// Settings configures the embedding provider.
type Settings struct {
	// Provider selects the embedder: "local" or "ollama".
	Provider string `json:"provider"`

	// Endpoint is the base URL for HTTP providers (e.g. http://localhost:11434).
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the model name passed to HTTP providers.
	Model string `json:"model,omitempty"`

	// Dimensions is the vector length. Required for the local provider;
	// used to validate HTTP responses.
	Dimensions int `json:"dimensions"`

	// TimeoutSeconds bounds a single embedding call.
	TimeoutSeconds int `json:"timeoutSeconds"`

	// MaxRetries bounds retry attempts for a failed embedding call.
	MaxRetries int `json:"maxRetries"`
}

// DefaultSettings returns the default embedding configuration.
func DefaultSettings() Settings {
	return Settings{
		Provider:       "local",
		Dimensions:     256,
		TimeoutSeconds: 30,
		MaxRetries:     3,
	}
}

// NewEmbedder constructs the configured provider wrapped with bounded
// retry. Unknown provider names are an error, not a silent fallback.
func NewEmbedder(s Settings, log *zap.Logger) (Embedder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if s.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", s.Dimensions)
	}

	var inner Embedder
	switch s.Provider {
	case "", "local":
		inner = NewLocalEmbedder(s.Dimensions)
	case "ollama":
		inner = NewOllamaEmbedder(s.Endpoint, s.Model, s.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}

	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTries := uint(s.MaxRetries) + 1

	return &retryingEmbedder{inner: inner, timeout: timeout, maxTries: maxTries, log: log}, nil
}

// retryingEmbedder wraps a provider with a per-call timeout and bounded
// exponential backoff.
type retryingEmbedder struct {
	inner    Embedder
	timeout  time.Duration
	maxTries uint
	log      *zap.Logger
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond

	vector, err := backoff.Retry(callCtx, func() ([]float32, error) {
		return r.inner.Embed(callCtx, text)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			r.log.Debug("retrying embedding call", zap.Duration("after", d), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return vector, nil
}

func (r *retryingEmbedder) Dimensions() int { return r.inner.Dimensions() }
func (r *retryingEmbedder) Version() string { return r.inner.Version() }
