package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/vector"
)

// countingEmbedder wraps the local embedder to observe embedding calls
// and to simulate provider outages.
type countingEmbedder struct {
	inner *embed.LocalEmbedder
	calls atomic.Int64
	fail  atomic.Bool
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embed.NewLocalEmbedder(64)}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.fail.Load() {
		return nil, fmt.Errorf("%w: provider down", embed.ErrUnavailable)
	}
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Version() string { return c.inner.Version() }

type fixture struct {
	store    *store.SQLiteStore
	index    *vector.Index
	keywords *search.KeywordIndex
	embedder *countingEmbedder
	sync     *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, st.Init())
	t.Cleanup(func() { st.Close() })

	keywords, err := search.NewKeywordIndex()
	require.NoError(t, err)
	t.Cleanup(func() { keywords.Close() })

	embedder := newCountingEmbedder()
	index := vector.New()
	sync := New(st, embedder, index, keywords, NewPool(2), Options{
		Workers:    2,
		QueueDepth: 16,
	}, zap.NewNop())

	return &fixture{store: st, index: index, keywords: keywords, embedder: embedder, sync: sync}
}

func (f *fixture) registerServer(t *testing.T, id string, tools ...store.Tool) {
	t.Helper()
	_, err := f.store.PutEntity(store.Entity{
		ID:          id,
		Kind:        store.KindServer,
		DisplayName: "Service " + id,
		Description: "Test service for " + id,
		Enabled:     true,
		Safety:      store.SafetySafe,
	})
	require.NoError(t, err)
	if len(tools) > 0 {
		require.NoError(t, f.store.ReplaceTools(id, tools))
	}
}

func TestApply_IndexesEntityAndTool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerServer(t, "/fininfo", store.Tool{
		ServerID: "/fininfo", Name: "get_stock_price", Description: "Get a price",
	})
	toolID := store.ToolID("/fininfo", "get_stock_price")

	require.NoError(t, f.sync.Apply(ctx, "/fininfo", false))
	require.NoError(t, f.sync.Apply(ctx, toolID, false))

	assert.True(t, f.index.Has("/fininfo"))
	assert.True(t, f.index.Has(toolID))
	assert.Equal(t, StateIndexed, f.sync.StateFor("/fininfo"))
	assert.Equal(t, StateIndexed, f.sync.StateFor(toolID))

	doc, ok := f.keywords.Doc(toolID)
	require.True(t, ok)
	assert.Equal(t, store.KindTool, doc.Kind)
	assert.Equal(t, "/fininfo", doc.ServerID)
}

func TestApply_SkipsUnchangedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	require.NoError(t, f.sync.Apply(ctx, "/a", false))

	assert.Equal(t, int64(1), f.embedder.calls.Load(),
		"unchanged text must reuse the cached embedding")

	// Force bypasses the hash check.
	require.NoError(t, f.sync.Apply(ctx, "/a", true))
	assert.Equal(t, int64(2), f.embedder.calls.Load())
}

func TestApply_ReembedsChangedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	require.NoError(t, f.sync.Apply(ctx, "/a", false))

	e, err := f.store.GetEntity("/a")
	require.NoError(t, err)
	e.Description = "completely different description"
	_, err = f.store.PutEntity(e)
	require.NoError(t, err)

	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	assert.Equal(t, int64(2), f.embedder.calls.Load())
}

func TestApply_DisableKeepsEmbedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	require.True(t, f.index.Has("/a"))

	require.NoError(t, f.store.SetEnabled("/a", false))
	require.NoError(t, f.sync.Apply(ctx, "/a", false))

	assert.False(t, f.index.Has("/a"), "disabled entity must leave the vector index")
	_, ok := f.keywords.Doc("/a")
	assert.False(t, ok, "disabled entity must leave the keyword index")

	// The cached embedding survives, so re-enabling needs no model call.
	_, _, err := f.store.GetEmbedding("/a")
	require.NoError(t, err)

	require.NoError(t, f.store.SetEnabled("/a", true))
	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	assert.True(t, f.index.Has("/a"))
	assert.Equal(t, int64(1), f.embedder.calls.Load(), "re-enable must reuse the cache")
}

func TestApply_DeleteRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	require.NoError(t, f.store.DeleteEntity("/a"))
	require.NoError(t, f.sync.Apply(ctx, "/a", false))

	assert.False(t, f.index.Has("/a"))
	_, ok := f.keywords.Doc("/a")
	assert.False(t, ok)
	assert.Equal(t, StateAbsent, f.sync.StateFor("/a"))
}

func TestApply_EmbedderDownLeavesStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	f.embedder.fail.Store(true)
	err := f.sync.Apply(ctx, "/a", false)
	require.Error(t, err)

	assert.Equal(t, StateStale, f.sync.StateFor("/a"))
	// The keyword side needs no model call and is already serving.
	_, ok := f.keywords.Doc("/a")
	assert.True(t, ok)

	// Recovery: next Apply converges.
	f.embedder.fail.Store(false)
	require.NoError(t, f.sync.Apply(ctx, "/a", false))
	assert.Equal(t, StateIndexed, f.sync.StateFor("/a"))
	assert.True(t, f.index.Has("/a"))
}

func TestReconcile_Converges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerServer(t, "/fininfo", store.Tool{
		ServerID: "/fininfo", Name: "get_stock_price", Description: "Get a price",
	})
	f.registerServer(t, "/weather")
	toolID := store.ToolID("/fininfo", "get_stock_price")

	require.NoError(t, f.sync.Reconcile(ctx))
	assert.Equal(t, 3, f.index.Len())
	assert.True(t, f.index.Has(toolID))

	// Simulate index damage: drop one entry, add an orphan.
	f.index.Remove("/weather")
	f.index.Upsert("/ghost", []float32{1, 0})

	require.NoError(t, f.sync.Reconcile(ctx))
	assert.True(t, f.index.Has("/weather"))
	assert.False(t, f.index.Has("/ghost"))
	assert.Equal(t, 3, f.index.Len())
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")
	f.registerServer(t, "/b")

	require.NoError(t, f.sync.Reconcile(ctx))
	calls := f.embedder.calls.Load()

	// Re-running against an unchanged store does no embedding work.
	require.NoError(t, f.sync.Reconcile(ctx))
	require.NoError(t, f.sync.Reconcile(ctx))
	assert.Equal(t, calls, f.embedder.calls.Load())
	assert.Equal(t, 2, f.index.Len())
}

func TestReindexAll_ForcesReembedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerServer(t, "/a")

	require.NoError(t, f.sync.Reconcile(ctx))
	require.Equal(t, int64(1), f.embedder.calls.Load())

	require.NoError(t, f.sync.ReindexAll(ctx))
	assert.Equal(t, int64(2), f.embedder.calls.Load())
	assert.Equal(t, 1, f.index.Len(), "reindex must not duplicate entries")
}

func TestStart_EventDrivenIndexing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.sync.Start(ctx))
	defer f.sync.Stop()

	f.registerServer(t, "/late", store.Tool{
		ServerID: "/late", Name: "do_thing", Description: "thing",
	})

	waitFor(t, func() bool {
		return f.index.Has("/late") && f.index.Has(store.ToolID("/late", "do_thing"))
	})

	// Dropping a tool from the manifest removes its index entry.
	require.NoError(t, f.store.ReplaceTools("/late", nil))
	waitFor(t, func() bool {
		return !f.index.Has(store.ToolID("/late", "do_thing"))
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSnippet_TruncatesOnRuneBoundary(t *testing.T) {
	short := "a plain description"
	assert.Equal(t, short, snippet(short))

	// Multi-byte runes straddling the cutoff must not be split.
	long := strings.Repeat("é", 200)
	got := snippet(long)
	assert.True(t, utf8.ValidString(got), "snippet must stay valid UTF-8")
	assert.LessOrEqual(t, len(got), maxSnippetLen)

	ascii := strings.Repeat("x", 200)
	assert.Len(t, snippet(ascii), maxSnippetLen)
}
