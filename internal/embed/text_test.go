package embed

import (
	"strings"
	"testing"

	"github.com/mcpgw/registry/internal/store"
)

func TestIndexableText_Format(t *testing.T) {
	e := store.Entity{
		ID:          "/fininfo",
		DisplayName: "Financial Info Service",
		Description: "Stock quotes and market data",
		Tags:        []string{"finance", "stocks"},
	}
	tools := []store.Tool{
		{Name: "get_stock_price", Description: "Get the latest price"},
	}

	text := IndexableText(e, tools)

	for _, want := range []string{
		"Name: Financial Info Service",
		"Description: Stock quotes and market data",
		"Tags: finance, stocks",
		"Tool: get_stock_price. Description: Get the latest price",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestIndexableText_Deterministic(t *testing.T) {
	e := store.Entity{
		DisplayName: "Service",
		Metadata: store.Metadata{
			"zeta":  store.MetaStr("last"),
			"alpha": store.MetaStr("first"),
			"num":   store.MetaNum(2.5),
		},
	}

	a := IndexableText(e, nil)
	b := IndexableText(e, nil)
	if a != b {
		t.Fatal("identical entities must produce identical text")
	}

	// Metadata keys come out sorted regardless of map iteration order.
	if strings.Index(a, "alpha:first") > strings.Index(a, "zeta:last") {
		t.Errorf("metadata keys not sorted:\n%s", a)
	}
}

func TestFlattenMetadata_Nested(t *testing.T) {
	md := store.Metadata{
		"limits": {Kind: store.MetaMap, Map: map[string]store.MetaValue{
			"qps": store.MetaNum(100),
		}},
		"regions": {Kind: store.MetaList, List: []store.MetaValue{
			store.MetaStr("eu"), store.MetaStr("us"),
		}},
		"beta": {Kind: store.MetaBool, Bool: true},
	}

	lines := FlattenMetadata(md)
	joined := strings.Join(lines, "\n")

	for _, want := range []string{"limits.qps:100", "regions:eu", "regions:us", "beta:true"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %v", want, lines)
		}
	}
}

func TestToolIndexableText_IncludesServerName(t *testing.T) {
	text := ToolIndexableText(store.Tool{Name: "get_forecast", Description: "Rain odds"}, "Weather Service")
	if !strings.Contains(text, "get_forecast") || !strings.Contains(text, "Weather Service") {
		t.Errorf("unexpected tool text: %s", text)
	}
}

func TestTextHash_Stable(t *testing.T) {
	if TextHash("abc") != TextHash("abc") {
		t.Fatal("hash must be stable")
	}
	if TextHash("abc") == TextHash("abd") {
		t.Fatal("different texts must hash differently")
	}
	if len(TextHash("abc")) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(TextHash("abc")))
	}
}
