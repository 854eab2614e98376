package search

import (
	"reflect"
	"testing"

	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/vector"
)

func TestTokenize_DropsStopwordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("What is the price of a stock?")
	want := []string{"price", "stock"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("expected %v, got %v", want, tokens)
	}
}

func TestTokenize_Empty(t *testing.T) {
	if tokens := Tokenize("is the a of"); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}

func TestKeywordScore_Fraction(t *testing.T) {
	tokens := []string{"stock", "price", "forecast"}
	text := "get the latest stock price for a ticker"

	got := KeywordScore(tokens, text)
	want := 2.0 / 3.0
	if got != want {
		t.Errorf("expected %f, got %f", want, got)
	}

	if KeywordScore(nil, text) != 0 {
		t.Error("no tokens should score 0")
	}
}

func docLookup(docs map[string]Doc) func(string) (Doc, bool) {
	return func(id string) (Doc, bool) {
		d, ok := docs[id]
		return d, ok
	}
}

func TestRank_HybridFormula(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/a": {ID: "/a", Kind: store.KindServer, DisplayName: "Alpha", Text: "stock price data"},
	}

	results := r.Rank("stock price", []vector.Hit{{ID: "/a", Score: 0.5}}, docLookup(docs))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// 0.7*0.5 + 0.3*1.0 (both tokens match) + no boost
	want := 0.7*0.5 + 0.3*1.0
	if diff := results[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score %f, got %f", want, results[0].Score)
	}
}

func TestRank_ExactNameMatchBoost(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/named": {ID: "/named", Kind: store.KindServer, DisplayName: "Fininfo", Text: "financial data"},
		"/other": {ID: "/other", Kind: store.KindServer, DisplayName: "Marketwatch", Text: "financial data"},
	}
	hits := []vector.Hit{
		{ID: "/named", Score: 0.4},
		{ID: "/other", Score: 0.4},
	}

	results := r.Rank("use fininfo for quotes", hits, docLookup(docs))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].EntityID != "/named" {
		t.Errorf("expected boosted entity first, got %s", results[0].EntityID)
	}
	if results[0].Score-results[1].Score < 0.2 {
		t.Errorf("boost too small: %f vs %f", results[0].Score, results[1].Score)
	}
}

func TestRank_ExactNameOutranksCloserVector(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/named": {ID: "/named", Kind: store.KindServer, DisplayName: "Ledger",
			Text: "general accounting records"},
		"/competitor": {ID: "/competitor", Kind: store.KindServer, DisplayName: "Bookkeeper",
			Text: "ledger ledger ledger ledger ledger ledger ledger ledger ledger ledger"},
	}
	// The competitor is much closer in vector space and also matches the
	// query token, yet the entity named in the query must still rank first.
	hits := []vector.Hit{
		{ID: "/competitor", Score: 0.99},
		{ID: "/named", Score: 0.3},
	}

	results := r.Rank("Ledger", hits, docLookup(docs))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].EntityID != "/named" {
		t.Errorf("expected exact-named entity first, got %s (%f vs %f)",
			results[0].EntityID, results[0].Score, results[1].Score)
	}
}

func TestNameMatchesQuery_WordBoundary(t *testing.T) {
	cases := []struct {
		query string
		name  string
		want  bool
	}{
		{"ledger", "Ledger", true},
		{"use ledger for accounting", "Ledger", true},
		{"find ledger, please", "Ledger", true},
		{"superledger tools", "Ledger", false},
		{"ledgers", "Ledger", false},
		{"", "Ledger", false},
		{"ledger", "", false},
	}
	for _, tc := range cases {
		got := nameMatchesQuery(tc.query, tc.name)
		if got != tc.want {
			t.Errorf("nameMatchesQuery(%q, %q) = %v, want %v", tc.query, tc.name, got, tc.want)
		}
	}
}

func TestRank_DropsBelowFloor(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/weak": {ID: "/weak", Kind: store.KindServer, DisplayName: "Weak", Text: "nothing relevant"},
	}

	results := r.Rank("stock price", []vector.Hit{{ID: "/weak", Score: 0.01}}, docLookup(docs))
	if len(results) != 0 {
		t.Errorf("expected sub-floor hit dropped, got %v", results)
	}
}

func TestRank_NegativeSimilarityClamped(t *testing.T) {
	r := NewRanker(Weights{Vector: 0.7, Keyword: 0.3, MinScore: 0})
	docs := map[string]Doc{
		"/a": {ID: "/a", Kind: store.KindServer, DisplayName: "A", Text: "stock price"},
	}

	results := r.Rank("stock", []vector.Hit{{ID: "/a", Score: -0.9}}, docLookup(docs))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// Vector component clamps to zero, only keyword contributes.
	if diff := results[0].Score - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected 0.3, got %f", results[0].Score)
	}
}

func TestRank_SkipsMissingDocs(t *testing.T) {
	r := NewRanker(DefaultWeights())
	results := r.Rank("anything", []vector.Hit{{ID: "/gone", Score: 0.9}}, docLookup(nil))
	if len(results) != 0 {
		t.Errorf("expected deleted doc skipped, got %v", results)
	}
}

func TestRank_DeterministicTieBreak(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/b": {ID: "/b", Kind: store.KindServer, DisplayName: "B", Text: "same text stock"},
		"/a": {ID: "/a", Kind: store.KindServer, DisplayName: "A", Text: "same text stock"},
	}
	hits := []vector.Hit{
		{ID: "/b", Score: 0.5},
		{ID: "/a", Score: 0.5},
	}

	first := r.Rank("stock", hits, docLookup(docs))
	for i := 0; i < 10; i++ {
		again := r.Rank("stock", hits, docLookup(docs))
		if !reflect.DeepEqual(first, again) {
			t.Fatal("rank output not deterministic")
		}
	}
	if first[0].EntityID != "/a" {
		t.Errorf("expected id tie-break, got %s first", first[0].EntityID)
	}
}

func TestRankKeywordOnly_NoVectorComponent(t *testing.T) {
	r := NewRanker(DefaultWeights())
	docs := map[string]Doc{
		"/a": {ID: "/a", Kind: store.KindTool, DisplayName: "get_stock_price", ServerID: "/fininfo", Text: "tool get stock price ticker"},
	}

	results := r.RankKeywordOnly("stock price", []KeywordHit{{ID: "/a", Score: 2.4}}, docLookup(docs))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// Both tokens match: 0.3*1.0, no boost.
	if diff := results[0].Score - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected 0.3, got %f", results[0].Score)
	}
	if results[0].ServerID != "/fininfo" {
		t.Errorf("expected parent server carried, got %q", results[0].ServerID)
	}
}
