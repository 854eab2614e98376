package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mcpgw/registry/internal/store"
)

// IndexableText builds the canonical text an entity is embedded and
// keyword-matched against. The format is deterministic: identical
// entities always produce identical text, which is what makes the
// source-text-hash skip optimization sound.
func IndexableText(e store.Entity, tools []store.Tool) string {
	var parts []string
	parts = append(parts, "Name: "+e.DisplayName)
	parts = append(parts, "Description: "+e.Description)
	parts = append(parts, "Tags: "+strings.Join(e.Tags, ", "))

	if len(tools) > 0 {
		snippets := make([]string, 0, len(tools))
		for _, t := range tools {
			snippets = append(snippets, fmt.Sprintf("Tool: %s. Description: %s", t.Name, t.Description))
		}
		parts = append(parts, "Tools:\n"+strings.Join(snippets, "\n"))
	}

	if flat := FlattenMetadata(e.Metadata); len(flat) > 0 {
		parts = append(parts, "Metadata:\n"+strings.Join(flat, "\n"))
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// ToolIndexableText builds the text for a tool pseudo-entity. The parent
// server's display name is included so a query matching either the tool
// or its server succeeds.
func ToolIndexableText(t store.Tool, serverName string) string {
	return fmt.Sprintf("Tool: %s. Description: %s. Server: %s", t.Name, t.Description, serverName)
}

// FlattenMetadata converts tagged metadata into sorted "key:value" lines
// so registrant metadata becomes searchable as plain tokens. Nested maps
// flatten with dotted key paths; lists join their flattened items.
func FlattenMetadata(md store.Metadata) []string {
	if len(md) == 0 {
		return nil
	}

	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		lines = append(lines, flattenValue(k, md[k])...)
	}
	return lines
}

func flattenValue(key string, v store.MetaValue) []string {
	switch v.Kind {
	case store.MetaString:
		return []string{key + ":" + v.Str}
	case store.MetaNumber:
		return []string{key + ":" + strconv.FormatFloat(v.Num, 'g', -1, 64)}
	case store.MetaBool:
		return []string{key + ":" + strconv.FormatBool(v.Bool)}
	case store.MetaList:
		var items []string
		for _, item := range v.List {
			items = append(items, flattenValue(key, item)...)
		}
		return items
	case store.MetaMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []string
		for _, k := range keys {
			lines = append(lines, flattenValue(key+"."+k, v.Map[k])...)
		}
		return lines
	}
	return nil
}

// TextHash returns the hex SHA256 of indexable text. Stored alongside
// each embedding so unchanged entities can be skipped cheaply.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
