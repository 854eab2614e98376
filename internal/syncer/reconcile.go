package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/store"
)

// Reconcile re-derives the indexes from the entity store: every
// discoverable entity (and tool pseudo-entity) ends up indexed with a
// current embedding, and every index entry without a store record is
// removed. The pass is idempotent and safe to re-run at any time; it is
// used at startup, as the periodic self-healing sweep, and as the
// recovery path when index corruption is detected.
//
// Entities whose embedding call fails are left stale rather than failing
// the whole batch.
func (s *Syncer) Reconcile(ctx context.Context) error {
	desired, err := s.desiredIDs()
	if err != nil {
		return fmt.Errorf("failed to compute desired index set: %w", err)
	}

	hashes, err := s.store.EmbeddingHashes()
	if err != nil {
		return fmt.Errorf("failed to load embedding hashes: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	// Insert or refresh everything the store says should be indexed.
	// Unchanged entities are skipped via the text hash inside Apply.
	for id, textHash := range desired {
		if s.index.Has(id) && hashes[id] == textHash {
			continue
		}
		id := id
		g.Go(func() error {
			if err := s.Apply(gctx, id, false); err != nil {
				// Stale is an acceptable outcome; the next sweep retries.
				s.log.Warn("reconcile: entity left stale", zap.String("entity", id), zap.Error(err))
			}
			return nil
		})
	}

	// Remove index entries with no corresponding store record.
	for _, id := range s.index.IDs() {
		if _, ok := desired[id]; ok {
			continue
		}
		id := id
		g.Go(func() error {
			if err := s.Apply(gctx, id, false); err != nil {
				s.log.Warn("reconcile: failed to remove entry", zap.String("entity", id), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Info("reconciliation complete",
		zap.Int("desired", len(desired)),
		zap.Int("indexed", s.index.Len()))
	return nil
}

// ReindexAll forces re-embedding of every discoverable entity,
// bypassing the source-text-hash skip. Used by the administrative
// reindex trigger; idempotent.
func (s *Syncer) ReindexAll(ctx context.Context) error {
	desired, err := s.desiredIDs()
	if err != nil {
		return fmt.Errorf("failed to compute desired index set: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for id := range desired {
		id := id
		g.Go(func() error {
			return s.Apply(gctx, id, true)
		})
	}
	return g.Wait()
}

// desiredIDs returns every id that should currently be indexed, mapped
// to the hash of its indexable text.
func (s *Syncer) desiredIDs() (map[string]string, error) {
	entities, err := s.store.ListEntities(store.Filter{DiscoverableOnly: true})
	if err != nil {
		return nil, err
	}

	desired := make(map[string]string, len(entities))
	for _, e := range entities {
		tools, err := s.store.ToolsFor(e.ID)
		if err != nil {
			return nil, err
		}
		desired[e.ID] = embed.TextHash(embed.IndexableText(e, tools))

		if e.Kind == store.KindServer {
			for _, t := range tools {
				desired[store.ToolID(e.ID, t.Name)] =
					embed.TextHash(embed.ToolIndexableText(t, e.DisplayName))
			}
		}
	}
	return desired, nil
}
