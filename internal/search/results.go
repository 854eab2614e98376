/*
Package search implements hybrid ranking for the discovery engine.

It combines cosine similarity from the vector index with keyword-overlap
scoring and an exact display-name boost, and maintains a bleve keyword
index used for BM25 fallback when the embedding provider is unavailable.
*/
package search

import "github.com/mcpgw/registry/internal/store"

// ScoredResult is a single ranked discovery result.
type ScoredResult struct {
	// EntityID is the registration path, or the pseudo-entity id for tools.
	EntityID string `json:"entityId"`

	// DisplayName is the entity's display name; for tools, the tool name.
	DisplayName string `json:"displayName"`

	// Kind is server, tool, or agent.
	Kind store.Kind `json:"kind"`

	// ServerID is set for tools: the parent server's registration path.
	ServerID string `json:"serverId,omitempty"`

	// Score is the final hybrid score, higher is better.
	Score float64 `json:"score"`

	// Snippet is a short match context shown alongside the result.
	Snippet string `json:"snippet,omitempty"`

	// nameMatch records that the query named this entity verbatim. Such
	// hits sort ahead of every non-matching hit regardless of score, so
	// an explicit name reference always wins over vector proximity.
	nameMatch bool
}

// Response is a discovery result set partitioned by entity kind.
// Global rank order is preserved within each partition.
type Response struct {
	Servers []ScoredResult `json:"servers"`
	Tools   []ScoredResult `json:"tools"`
	Agents  []ScoredResult `json:"agents"`
}

// Doc is the ranker's view of an indexed entity: everything needed to
// score and present it without another store round-trip.
type Doc struct {
	ID          string
	Kind        store.Kind
	DisplayName string
	ServerID    string
	Snippet     string
	Text        string
}

// Partition splits globally ranked results into per-kind lists, keeping
// order and capping each partition at maxResults.
func Partition(results []ScoredResult, maxResults int) Response {
	resp := Response{
		Servers: []ScoredResult{},
		Tools:   []ScoredResult{},
		Agents:  []ScoredResult{},
	}
	for _, r := range results {
		switch r.Kind {
		case store.KindServer:
			if len(resp.Servers) < maxResults {
				resp.Servers = append(resp.Servers, r)
			}
		case store.KindTool:
			if len(resp.Tools) < maxResults {
				resp.Tools = append(resp.Tools, r)
			}
		case store.KindAgent:
			if len(resp.Agents) < maxResults {
				resp.Agents = append(resp.Agents, r)
			}
		}
	}
	return resp
}
