package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mcpgw/registry/internal/vector"
)

// Weights are the hybrid scoring constants. They are tuning parameters,
// not behavioral contracts; adjust via configuration.
type Weights struct {
	// Vector weights the cosine similarity component.
	Vector float64 `json:"vector"`

	// Keyword weights the query-term overlap component.
	Keyword float64 `json:"keyword"`

	// ExactMatchBoost is added to the score when the query matches the
	// display name verbatim. Ordering does not depend on it: exact-name
	// matches always sort ahead of non-matches; the boost only widens
	// the reported score gap.
	ExactMatchBoost float64 `json:"exactMatchBoost"`

	// MinScore is the floor below which hits are dropped rather than
	// returned as low-quality noise.
	MinScore float64 `json:"minScore"`
}

// DefaultWeights returns the default scoring constants (70% vector,
// 30% keyword).
func DefaultWeights() Weights {
	return Weights{
		Vector:          0.7,
		Keyword:         0.3,
		ExactMatchBoost: 0.25,
		MinScore:        0.05,
	}
}

// stopwords are filtered from queries before keyword matching to
// prevent false matches on filler words.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"about": {}, "as": {}, "into": {}, "through": {}, "from": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "which": {},
	"how": {}, "why": {}, "get": {}, "set": {}, "put": {},
}

// Tokenize lowercases the query, splits on non-alphanumeric runes, and
// drops stopwords and tokens shorter than three characters. An empty
// result means the query carries no keyword signal; callers fall back
// to vector-only ranking.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// KeywordScore returns the fraction of query tokens literally present in
// the document text. Text is expected lowercased.
func KeywordScore(tokens []string, loweredText string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(loweredText, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// Ranker merges vector similarity with keyword signals into one ranked
// list. Ranking is purely functional over a snapshot: it mutates nothing,
// so a cancelled request simply stops computing.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker with the given weights.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Rank re-scores vector hits using the hybrid formula
//
//	score = w_vector*similarity + w_keyword*keywordScore + boost
//
// and sorts descending with a stable tie-break on entity id. A hit whose
// display name the query matches verbatim orders ahead of every
// non-matching hit, whatever the scores: a caller asking for an entity
// by name gets that entity first even when another one sits closer in
// vector space. Hits whose final score falls below the floor are
// dropped; hits whose id has no document (deleted between query and
// rank) are skipped.
func (r *Ranker) Rank(query string, hits []vector.Hit, lookup func(id string) (Doc, bool)) []ScoredResult {
	tokens := Tokenize(query)
	normalizedQuery := strings.TrimSpace(strings.ToLower(query))

	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		doc, ok := lookup(hit.ID)
		if !ok {
			continue
		}

		similarity := hit.Score
		if similarity < 0 {
			similarity = 0
		}

		lowered := strings.ToLower(doc.Text)
		keyword := KeywordScore(tokens, lowered)

		match := nameMatchesQuery(normalizedQuery, doc.DisplayName)
		var boost float64
		if match {
			boost = r.weights.ExactMatchBoost
		}

		score := r.weights.Vector*similarity + r.weights.Keyword*keyword + boost
		if score < r.weights.MinScore {
			continue
		}

		results = append(results, ScoredResult{
			EntityID:    doc.ID,
			DisplayName: doc.DisplayName,
			Kind:        doc.Kind,
			ServerID:    doc.ServerID,
			Score:       score,
			Snippet:     doc.Snippet,
			nameMatch:   match,
		})
	}

	sortResults(results)
	return results
}

// RankKeywordOnly scores documents by keyword overlap alone. Used when
// the embedding provider is unavailable so discovery degrades instead of
// erroring.
func (r *Ranker) RankKeywordOnly(query string, hits []KeywordHit, lookup func(id string) (Doc, bool)) []ScoredResult {
	tokens := Tokenize(query)
	normalizedQuery := strings.TrimSpace(strings.ToLower(query))

	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		doc, ok := lookup(hit.ID)
		if !ok {
			continue
		}

		keyword := KeywordScore(tokens, strings.ToLower(doc.Text))

		match := nameMatchesQuery(normalizedQuery, doc.DisplayName)
		var boost float64
		if match {
			boost = r.weights.ExactMatchBoost
		}

		score := r.weights.Keyword*keyword + boost
		if score < r.weights.MinScore {
			continue
		}

		results = append(results, ScoredResult{
			EntityID:    doc.ID,
			DisplayName: doc.DisplayName,
			Kind:        doc.Kind,
			ServerID:    doc.ServerID,
			Score:       score,
			Snippet:     doc.Snippet,
			nameMatch:   match,
		})
	}

	sortResults(results)
	return results
}

// nameMatchesQuery reports whether the query names the entity verbatim:
// either equal to the display name or containing it as a whole term.
// Substring hits inside a larger word ("superledger" vs "ledger") do
// not count; the occurrence must be delimited by non-alphanumeric runes
// or the query edges.
func nameMatchesQuery(normalizedQuery, displayName string) bool {
	name := strings.TrimSpace(strings.ToLower(displayName))
	if name == "" || normalizedQuery == "" {
		return false
	}
	if normalizedQuery == name {
		return true
	}
	for start := 0; ; {
		i := strings.Index(normalizedQuery[start:], name)
		if i < 0 {
			return false
		}
		i += start
		if boundaryBefore(normalizedQuery, i) && boundaryAfter(normalizedQuery, i+len(name)) {
			return true
		}
		start = i + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func sortResults(results []ScoredResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].nameMatch != results[j].nameMatch {
			return results[i].nameMatch
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].EntityID < results[j].EntityID
	})
}
