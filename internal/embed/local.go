package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic feature-hashing embedder. Tokens are
// hashed into a fixed number of buckets with a sign bit, then the vector
// is unit-normalized. It captures lexical overlap rather than deep
// semantics, but it is fast, dependency-free, and fully deterministic,
// which makes it the default provider and the one used in tests.
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder creates a local embedder producing vectors of the
// given length.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	return &LocalEmbedder{dims: dims}
}

// Embed hashes the text's tokens into a unit vector. Never fails.
func (l *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, l.dims)

	for _, token := range hashTokens(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(l.dims))
		// Use a high bit for the sign so bucket and sign are independent.
		if sum&(1<<63) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}

	return Normalize(vector), nil
}

// Dimensions returns the configured vector length.
func (l *LocalEmbedder) Dimensions() int { return l.dims }

// Version identifies the hashing scheme.
func (l *LocalEmbedder) Version() string { return "local-hash/1" }

// hashTokens lowercases and splits text on non-alphanumeric runes.
// Single-character tokens carry no signal and are dropped.
func hashTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Normalize scales a vector to unit length. Zero vectors are returned
// unchanged so they never match anything rather than dividing by zero.
func Normalize(vector []float32) []float32 {
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}
