/*
Package cli implements the mcpgw cobra subcommands.

Commands that touch the registry share one wiring path (buildRuntime)
so the store, indexes, synchronizer, and engine are always assembled
the same way.
*/
package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/config"
	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/engine"
	"github.com/mcpgw/registry/internal/logger"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/syncer"
	"github.com/mcpgw/registry/internal/vector"
)

// runtime bundles the wired components behind the CLI commands.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.SQLiteStore
	index    *vector.Index
	keywords *search.KeywordIndex
	syncer   *syncer.Syncer
	engine   *engine.Engine
}

// buildRuntime loads configuration and assembles the engine. The
// synchronizer is started, which runs the startup reconciliation: the
// vector index is rebuilt from the store plus cached embeddings.
func buildRuntime(ctx context.Context, logLevel string, jsonLog bool) (*runtime, error) {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logLevel, jsonLog)
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	st := store.NewSQLiteStore(dbPath, log.Named("store"))
	if err := st.Init(); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	embedder, err := embed.NewEmbedder(cfg.Embedding, log.Named("embed"))
	if err != nil {
		st.Close()
		return nil, err
	}

	keywords, err := search.NewKeywordIndex()
	if err != nil {
		st.Close()
		return nil, err
	}

	index := vector.New()
	pool := syncer.NewPool(cfg.Sync.Workers)
	sync := syncer.New(st, embedder, index, keywords, pool, syncer.Options{
		Workers:       cfg.Sync.Workers,
		QueueDepth:    cfg.Sync.QueueDepth,
		SweepInterval: cfg.Sync.SweepInterval(),
	}, log.Named("syncer"))

	if err := sync.Start(ctx); err != nil {
		keywords.Close()
		st.Close()
		return nil, fmt.Errorf("failed to start synchronizer: %w", err)
	}

	eng := engine.New(st, index, keywords, search.NewRanker(cfg.Ranking),
		embedder, pool, sync, cfg.Fetch, log.Named("engine"))

	return &runtime{
		cfg:      cfg,
		log:      log,
		store:    st,
		index:    index,
		keywords: keywords,
		syncer:   sync,
		engine:   eng,
	}, nil
}

// close stops the synchronizer and releases store and index resources.
func (r *runtime) close() {
	r.syncer.Stop()
	if err := r.keywords.Close(); err != nil {
		r.log.Warn("failed to close keyword index", zap.Error(err))
	}
	if err := r.store.Close(); err != nil {
		r.log.Warn("failed to close store", zap.Error(err))
	}
	r.log.Sync()
}
