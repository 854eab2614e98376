/*
Package engine exposes the discovery engine to the thin API, MCP, and
CLI layers.

A discovery request flows: caller scope → allowed id set (pre-filter),
query text → embedding (prioritized slot in the shared pool), vector
index top-k restricted to the allowed set, hybrid re-ranking, and
partitioning by entity kind. Discovery errors degrade to keyword-only or
empty results rather than failing: discovery is advisory, not
transactional. Registration-path errors surface immediately.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/scope"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/syncer"
	"github.com/mcpgw/registry/internal/vector"
)

// ReindexAll is the Reindex target that forces re-embedding of every
// discoverable entity.
const ReindexAll = "all"

const maxResultsCap = 50

// Options holds the engine's fetch tuning. Like ranking weights these
// are adjustable configuration, not behavioral contracts.
type Options struct {
	// FetchMultiplier scales the vector-index k relative to the
	// requested result count, leaving headroom for post-filtering.
	FetchMultiplier int `json:"fetchMultiplier"`

	// MaxFetchK is the hard cap on a single vector query's k during the
	// over-fetch loop, so scope filtering never retries unboundedly.
	MaxFetchK int `json:"maxFetchK"`

	// NativeFilterLimit is the allowed-set size up to which the filter
	// is pushed into the index scan. Larger sets use over-fetch plus
	// post-filtering to keep the per-candidate predicate cost off the
	// hot scan.
	NativeFilterLimit int `json:"nativeFilterLimit"`
}

// DefaultOptions returns the default fetch tuning.
func DefaultOptions() Options {
	return Options{
		FetchMultiplier:   5,
		MaxFetchK:         500,
		NativeFilterLimit: 2048,
	}
}

// Engine is the discovery and reindex façade.
type Engine struct {
	store    store.Store
	index    *vector.Index
	keywords *search.KeywordIndex
	ranker   *search.Ranker
	embedder embed.Embedder
	pool     *syncer.Pool
	sync     *syncer.Syncer
	opts     Options
	log      *zap.Logger
}

// New wires the engine from its collaborators.
func New(st store.Store, index *vector.Index, keywords *search.KeywordIndex,
	ranker *search.Ranker, embedder embed.Embedder, pool *syncer.Pool,
	sync *syncer.Syncer, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FetchMultiplier <= 0 {
		opts.FetchMultiplier = DefaultOptions().FetchMultiplier
	}
	if opts.MaxFetchK <= 0 {
		opts.MaxFetchK = DefaultOptions().MaxFetchK
	}
	if opts.NativeFilterLimit <= 0 {
		opts.NativeFilterLimit = DefaultOptions().NativeFilterLimit
	}
	return &Engine{
		store:    st,
		index:    index,
		keywords: keywords,
		ranker:   ranker,
		embedder: embedder,
		pool:     pool,
		sync:     sync,
		opts:     opts,
		log:      log,
	}
}

// Discover runs a scoped hybrid search. Zero results from scope
// restriction and zero results from no semantic match are
// indistinguishable by design. When the embedding provider is down the
// result degrades to keyword-only ranking instead of erroring.
func (e *Engine) Discover(ctx context.Context, query string, caller scope.CallerScope,
	maxResults int, kinds []store.Kind) (search.Response, error) {

	empty := search.Partition(nil, 0)
	if strings.TrimSpace(query) == "" {
		return empty, nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	allowed, err := scope.AllowedIDs(e.store, caller, kinds)
	if err != nil {
		return empty, fmt.Errorf("failed to compute caller scope: %w", err)
	}
	if len(allowed) == 0 {
		return empty, nil
	}

	queryVector, err := e.embedQuery(ctx, query)
	if err != nil {
		if errors.Is(err, embed.ErrUnavailable) {
			e.log.Warn("embedding unavailable, using keyword-only ranking", zap.Error(err))
			return e.keywordFallback(query, allowed, maxResults)
		}
		return empty, err
	}

	hits := e.vectorCandidates(queryVector, allowed, maxResults)
	ranked := e.ranker.Rank(query, hits, e.keywords.Doc)
	return search.Partition(ranked, maxResults), nil
}

// embedQuery computes the query embedding using a prioritized slot so
// interactive queries are never starved by background re-embedding.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := e.pool.AcquireQuery(ctx); err != nil {
		return nil, err
	}
	defer e.pool.ReleaseQuery()
	return e.embedder.Embed(ctx, query)
}

// vectorCandidates queries the index restricted to the allowed set.
// Small allowed sets are filtered natively during the scan. Large ones
// use over-fetch: request k*multiplier, post-filter, and double k while
// fewer than needed survive, up to the hard cap.
func (e *Engine) vectorCandidates(queryVector []float32, allowed map[string]struct{}, maxResults int) []vector.Hit {
	// Headroom for all three partitions.
	needed := maxResults * 3

	if len(allowed) <= e.opts.NativeFilterLimit {
		k := needed * e.opts.FetchMultiplier
		if k > e.opts.MaxFetchK {
			k = e.opts.MaxFetchK
		}
		return e.index.Query(queryVector, k, func(id string) bool {
			_, ok := allowed[id]
			return ok
		})
	}

	k := needed * e.opts.FetchMultiplier
	total := e.index.Len()
	for {
		if k > e.opts.MaxFetchK {
			k = e.opts.MaxFetchK
		}
		hits := e.index.Query(queryVector, k, nil)
		filtered := hits[:0]
		for _, h := range hits {
			if _, ok := allowed[h.ID]; ok {
				filtered = append(filtered, h)
			}
		}
		// Fail safe: return what survived once we have enough, exhausted
		// the index, or hit the cap. A possibly-shorter result beats
		// blocking indefinitely.
		if len(filtered) >= needed || len(hits) >= total || k >= e.opts.MaxFetchK {
			return filtered
		}
		k *= 2
	}
}

// keywordFallback serves scope-filtered BM25 results when the embedding
// provider is unavailable.
func (e *Engine) keywordFallback(query string, allowed map[string]struct{}, maxResults int) (search.Response, error) {
	hits, err := e.keywords.Search(query, maxResults*3, func(id string) bool {
		_, ok := allowed[id]
		return ok
	})
	if err != nil {
		return search.Partition(nil, 0), fmt.Errorf("keyword fallback failed: %w", err)
	}
	ranked := e.ranker.RankKeywordOnly(query, hits, e.keywords.Doc)
	return search.Partition(ranked, maxResults), nil
}

// Reindex forces re-embedding of one entity or, with target "all", of
// everything discoverable. The operation is idempotent: repeating it
// leaves exactly one embedding per id.
func (e *Engine) Reindex(ctx context.Context, target string) error {
	if target == ReindexAll {
		return e.sync.ReindexAll(ctx)
	}

	if _, err := e.store.GetEntity(target); err != nil {
		return err
	}
	if err := e.sync.Apply(ctx, target, true); err != nil {
		return err
	}
	// Refresh the server's tools as well; their text embeds its name.
	tools, err := e.store.ToolsFor(target)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := e.sync.Apply(ctx, store.ToolID(target, t.Name), true); err != nil {
			return err
		}
	}
	return nil
}
