/*
Package vector implements the in-memory nearest-neighbor index used for
semantic discovery.

The index stores unit-normalized float32 vectors keyed by entity id,
sharded by a hash of the id so mutations on unrelated entities do not
contend. Cosine similarity reduces to an inner product because vectors
are normalized at insert time.

The index is a derived structure: it can always be rebuilt from the
entity store plus cached embeddings, and no information lives only here.
*/
package vector

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/mcpgw/registry/internal/embed"
)

const shardCount = 16

// Hit is a single query result.
type Hit struct {
	// ID is the entity or tool pseudo-entity id.
	ID string

	// Score is the cosine similarity in [-1, 1].
	Score float64
}

// Filter restricts query candidates to allowed ids. A nil filter allows
// everything.
type Filter func(id string) bool

// Index is a sharded flat inner-product index.
type Index struct {
	shards [shardCount]*shard
}

type shard struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// New creates an empty index.
func New() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i] = &shard{vectors: make(map[string][]float32)}
	}
	return idx
}

func (idx *Index) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return idx.shards[h.Sum32()%shardCount]
}

// Upsert inserts or replaces the vector for an id. The vector is
// normalized so queries can use a plain inner product.
func (idx *Index) Upsert(id string, vector []float32) {
	normalized := embed.Normalize(append([]float32(nil), vector...))
	s := idx.shardFor(id)
	s.mu.Lock()
	s.vectors[id] = normalized
	s.mu.Unlock()
}

// Remove deletes an id from the index. Removing an absent id is a no-op.
func (idx *Index) Remove(id string) {
	s := idx.shardFor(id)
	s.mu.Lock()
	delete(s.vectors, id)
	s.mu.Unlock()
}

// Has reports whether an id is currently indexed.
func (idx *Index) Has(id string) bool {
	s := idx.shardFor(id)
	s.mu.RLock()
	_, ok := s.vectors[id]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	n := 0
	for _, s := range idx.shards {
		s.mu.RLock()
		n += len(s.vectors)
		s.mu.RUnlock()
	}
	return n
}

// IDs returns all indexed ids. Used by reconciliation to find index
// entries with no corresponding store record.
func (idx *Index) IDs() []string {
	var ids []string
	for _, s := range idx.shards {
		s.mu.RLock()
		for id := range s.vectors {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Query returns the top-k most similar ids, restricted to the filter
// when one is given. Results are ordered by descending similarity with
// ties broken by id so repeated queries are byte-identical.
func (idx *Index) Query(vector []float32, k int, allow Filter) []Hit {
	if k <= 0 {
		return nil
	}
	query := embed.Normalize(append([]float32(nil), vector...))

	var hits []Hit
	for _, s := range idx.shards {
		s.mu.RLock()
		for id, v := range s.vectors {
			if allow != nil && !allow(id) {
				continue
			}
			hits = append(hits, Hit{ID: id, Score: dot(query, v)})
		}
		s.mu.RUnlock()
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
