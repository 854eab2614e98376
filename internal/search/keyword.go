package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// KeywordHit is a single BM25 result.
type KeywordHit struct {
	ID    string
	Score float64
}

// KeywordIndex is the bleve-backed keyword index maintained alongside
// the vector index. It serves BM25 fallback search when the embedding
// provider is down, and holds the Doc snapshot the ranker reads from.
type KeywordIndex struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	docs       map[string]Doc
}

// NewKeywordIndex creates an in-memory keyword index. Like the vector
// index it is derived state, rebuilt from the store on startup, so there
// is nothing to persist.
func NewKeywordIndex() (*KeywordIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &KeywordIndex{
		bleveIndex: index,
		docs:       make(map[string]Doc),
	}, nil
}

// buildIndexMapping creates the bleve index mapping for entity docs.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	textFieldMapping := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	// Kind is stored for filtering, not free-text matched.
	kindFieldMapping := bleve.NewKeywordFieldMapping()
	kindFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("kind", kindFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Upsert indexes or re-indexes a document.
func (k *KeywordIndex) Upsert(doc Doc) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	fields := map[string]interface{}{
		"name": doc.DisplayName,
		"text": doc.Text,
		"kind": string(doc.Kind),
	}
	if err := k.bleveIndex.Index(doc.ID, fields); err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.ID, err)
	}
	k.docs[doc.ID] = doc
	return nil
}

// Remove deletes a document. Removing an absent id is a no-op.
func (k *KeywordIndex) Remove(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.bleveIndex.Delete(id); err != nil {
		return fmt.Errorf("failed to delete %s from keyword index: %w", id, err)
	}
	delete(k.docs, id)
	return nil
}

// Doc returns the snapshot for an indexed id.
func (k *KeywordIndex) Doc(id string) (Doc, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	doc, ok := k.docs[id]
	return doc, ok
}

// Count returns the number of indexed documents.
func (k *KeywordIndex) Count() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.docs)
}

// Search performs BM25 keyword search and returns ids with scores,
// restricted to allowed ids when a filter is given.
func (k *KeywordIndex) Search(queryText string, limit int, allow func(id string) bool) ([]KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(queryText)
	searchRequest := bleve.NewSearchRequestOptions(matchQuery, limit*2, 0, false)

	results, err := k.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]KeywordHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		if allow != nil && !allow(hit.ID) {
			continue
		}
		hits = append(hits, KeywordHit{ID: hit.ID, Score: hit.Score})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Close releases index resources.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.bleveIndex != nil {
		return k.bleveIndex.Close()
	}
	return nil
}
