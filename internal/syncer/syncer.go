/*
Package syncer keeps the vector and keyword indexes consistent with the
entity store.

Each entity moves through a small state machine (absent, indexing,
indexed, stale, removing) driven by store change events. Operations on
the same entity id are serialized through a sharded lock; operations on
different entities proceed independently. A stale entity keeps serving
its last-known-good vector: briefly out of date beats invisible.

The synchronizer also owns reconciliation: an idempotent sweep that
re-derives the indexes from the store, run at startup and periodically
as self-healing.
*/
package syncer

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/vector"
)

// State is an entity's position in the indexing lifecycle.
type State string

const (
	StateAbsent   State = "absent"
	StateIndexing State = "indexing"
	StateIndexed  State = "indexed"
	StateStale    State = "stale"
	StateRemoving State = "removing"
)

const lockShards = 64

// Options configures the synchronizer.
type Options struct {
	// Workers is the number of goroutines draining the task queue.
	Workers int

	// QueueDepth caps pending background tasks. When the queue is full,
	// new tasks are dropped and the entity is left stale for the next
	// reconciliation sweep to heal.
	QueueDepth int

	// SweepInterval is the period of the self-healing reconciliation.
	// Zero disables periodic sweeps (startup reconciliation still runs).
	SweepInterval time.Duration
}

// DefaultOptions returns the default synchronizer tuning.
func DefaultOptions() Options {
	return Options{
		Workers:       2,
		QueueDepth:    256,
		SweepInterval: 10 * time.Minute,
	}
}

type task struct {
	id    string
	force bool
}

// Syncer applies store change events to the derived indexes.
type Syncer struct {
	store    store.Store
	embedder embed.Embedder
	index    *vector.Index
	keywords *search.KeywordIndex
	pool     *Pool
	log      *zap.Logger
	opts     Options

	queue chan task
	locks [lockShards]sync.Mutex

	stateMu sync.Mutex
	states  map[string]State

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a synchronizer wiring the store to the given indexes.
func New(st store.Store, embedder embed.Embedder, index *vector.Index,
	keywords *search.KeywordIndex, pool *Pool, opts Options, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultOptions().QueueDepth
	}
	return &Syncer{
		store:    st,
		embedder: embedder,
		index:    index,
		keywords: keywords,
		pool:     pool,
		log:      log,
		opts:     opts,
		queue:    make(chan task, opts.QueueDepth),
		states:   make(map[string]State),
	}
}

// Start subscribes to store events, runs the startup reconciliation, and
// launches the worker goroutines plus the periodic sweep.
func (s *Syncer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Reconcile(ctx); err != nil {
		return err
	}

	s.unsubscribe = s.store.Subscribe(s.handleEvent)

	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	if s.opts.SweepInterval > 0 {
		s.wg.Add(1)
		go s.sweep(ctx)
	}
	return nil
}

// Stop detaches from the store and waits for in-flight work to finish.
func (s *Syncer) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// StateFor reports the lifecycle state of an id.
func (s *Syncer) StateFor(id string) State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if st, ok := s.states[id]; ok {
		return st
	}
	return StateAbsent
}

func (s *Syncer) setState(id string, st State) {
	s.stateMu.Lock()
	if st == StateAbsent {
		delete(s.states, id)
	} else {
		s.states[id] = st
	}
	s.stateMu.Unlock()
}

// handleEvent translates a store change into tasks for the entity and
// its tool pseudo-entities.
func (s *Syncer) handleEvent(ev store.ChangeEvent) {
	s.enqueue(task{id: ev.EntityID})

	// A server change can add, edit, or drop tools. Enqueue both the
	// current manifest and anything indexed under the server's prefix so
	// dropped tools get removed.
	for _, id := range s.toolIDsFor(ev.EntityID) {
		s.enqueue(task{id: id})
	}
}

// toolIDsFor returns the union of the server's current tool pseudo-ids
// and those still present in the index.
func (s *Syncer) toolIDsFor(serverID string) []string {
	seen := make(map[string]struct{})

	if tools, err := s.store.ToolsFor(serverID); err == nil {
		for _, t := range tools {
			seen[store.ToolID(serverID, t.Name)] = struct{}{}
		}
	}
	prefix := serverID + "#"
	for _, id := range s.index.IDs() {
		if strings.HasPrefix(id, prefix) {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// enqueue adds a task without blocking. A full queue leaves the entity
// stale; the periodic sweep will converge it.
func (s *Syncer) enqueue(t task) {
	select {
	case s.queue <- t:
	default:
		s.log.Warn("sync queue full, deferring to sweep", zap.String("entity", t.id))
		s.setState(t.id, StateStale)
	}
}

func (s *Syncer) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			if err := s.Apply(ctx, t.id, t.force); err != nil {
				s.log.Warn("failed to sync entity", zap.String("entity", t.id), zap.Error(err))
			}
		}
	}
}

func (s *Syncer) sweep(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				s.log.Warn("periodic reconciliation failed", zap.Error(err))
			}
		}
	}
}

func (s *Syncer) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockShards]
}

// Apply brings one entity's index entries in line with the store. It is
// the single entry point for all index mutations, serialized per id via
// the sharded lock. With force set, a cached embedding is recomputed
// even when the source text hash is unchanged.
func (s *Syncer) Apply(ctx context.Context, id string, force bool) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	doc, discoverable, err := s.resolve(id)
	if errors.Is(err, store.ErrNotFound) {
		// Hard removal: entity (or its parent server / manifest entry)
		// is gone from the store.
		s.setState(id, StateRemoving)
		s.index.Remove(id)
		if kerr := s.keywords.Remove(id); kerr != nil {
			s.log.Warn("failed to remove keyword doc", zap.String("entity", id), zap.Error(kerr))
		}
		if derr := s.store.DeleteEmbedding(id); derr != nil {
			s.log.Warn("failed to delete embedding", zap.String("entity", id), zap.Error(derr))
		}
		s.setState(id, StateAbsent)
		return nil
	}
	if err != nil {
		return err
	}

	if !discoverable {
		// Membership toggle: drop from the indexes but keep the cached
		// embedding so re-enabling needs no re-embed.
		s.index.Remove(id)
		if kerr := s.keywords.Remove(id); kerr != nil {
			s.log.Warn("failed to remove keyword doc", zap.String("entity", id), zap.Error(kerr))
		}
		s.setState(id, StateAbsent)
		return nil
	}

	textHash := embed.TextHash(doc.Text)
	cachedVector, cachedHash, err := s.store.GetEmbedding(id)
	haveCache := err == nil

	if haveCache && cachedHash == textHash && !force {
		// Unchanged text: reuse the cached vector. Covers both the
		// skip optimization and cheap re-enable.
		s.index.Upsert(id, cachedVector)
		if kerr := s.keywords.Upsert(doc); kerr != nil {
			return kerr
		}
		s.setState(id, StateIndexed)
		return nil
	}

	// Text changed (or forced): the entity is stale until re-embedding
	// completes. Keep the old vector serving queries meanwhile.
	if haveCache {
		s.setState(id, StateStale)
	} else {
		s.setState(id, StateIndexing)
	}

	// Keyword side needs no model call; update it immediately.
	if kerr := s.keywords.Upsert(doc); kerr != nil {
		return kerr
	}

	if perr := s.pool.AcquireBackground(ctx); perr != nil {
		return perr
	}
	vectorData, embedErr := s.embedder.Embed(ctx, doc.Text)
	s.pool.ReleaseBackground()

	if embedErr != nil {
		// Bounded retries already happened inside the embedder. Leave
		// the entity stale (old vector keeps serving if one exists) and
		// let the sweep try again.
		s.setState(id, StateStale)
		return embedErr
	}

	if serr := s.store.SaveEmbedding(id, vectorData, textHash, s.embedder.Version()); serr != nil {
		s.setState(id, StateStale)
		return serr
	}
	s.index.Upsert(id, vectorData)
	s.setState(id, StateIndexed)
	return nil
}

// resolve loads the doc for an id, handling tool pseudo-entities by
// looking through their parent server. The discoverable flag folds in
// enablement and the safety verdict; tools inherit both from the parent.
func (s *Syncer) resolve(id string) (search.Doc, bool, error) {
	if serverID, toolName, isTool := splitToolID(id); isTool {
		server, err := s.store.GetEntity(serverID)
		if err != nil {
			return search.Doc{}, false, err
		}
		tools, err := s.store.ToolsFor(serverID)
		if err != nil {
			return search.Doc{}, false, err
		}
		for _, t := range tools {
			if t.Name == toolName {
				text := embed.ToolIndexableText(t, server.DisplayName)
				return search.Doc{
					ID:          id,
					Kind:        store.KindTool,
					DisplayName: t.Name,
					ServerID:    serverID,
					Snippet:     snippet(t.Description),
					Text:        text,
				}, server.Discoverable(), nil
			}
		}
		// Manifest entry dropped.
		return search.Doc{}, false, store.ErrNotFound
	}

	e, err := s.store.GetEntity(id)
	if err != nil {
		return search.Doc{}, false, err
	}
	tools, err := s.store.ToolsFor(id)
	if err != nil {
		return search.Doc{}, false, err
	}
	return search.Doc{
		ID:          e.ID,
		Kind:        e.Kind,
		DisplayName: e.DisplayName,
		Snippet:     snippet(e.Description),
		Text:        embed.IndexableText(e, tools),
	}, e.Discoverable(), nil
}

func splitToolID(id string) (serverID, toolName string, ok bool) {
	i := strings.Index(id, "#")
	if i < 0 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

const maxSnippetLen = 180

// snippet truncates on a rune boundary so the result stays valid UTF-8.
func snippet(description string) string {
	if len(description) <= maxSnippetLen {
		return description
	}
	cut := maxSnippetLen
	for cut > 0 && !utf8.RuneStart(description[cut]) {
		cut--
	}
	return description[:cut]
}
