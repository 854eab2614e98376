/*
Package store provides data models for the entity registry.

These models represent registered MCP servers, their tools, A2A agents,
access-group memberships, and cached embedding vectors used by the
discovery engine.
*/
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the type of a registered entity.
type Kind string

const (
	// KindServer is a registered MCP server.
	KindServer Kind = "server"

	// KindTool is an individual tool indexed as a child of a server.
	KindTool Kind = "tool"

	// KindAgent is a registered A2A agent.
	KindAgent Kind = "agent"
)

// SafetyStatus is the verdict reported by the external security scanner.
type SafetyStatus string

const (
	SafetySafe    SafetyStatus = "safe"
	SafetyUnsafe  SafetyStatus = "unsafe"
	SafetyPending SafetyStatus = "pending"
	SafetyUnknown SafetyStatus = "unknown"
)

// PublicGroup is the implicit wildcard group. Entities assigned to it are
// visible to every caller regardless of scope.
const PublicGroup = "public"

// Entity represents a registered MCP server or A2A agent.
type Entity struct {
	// ID is the unique registration path (e.g. "/fininfo").
	ID string `json:"id"`

	// Kind is "server" or "agent". Tools are stored separately and
	// surfaced as pseudo-entities with parent linkage.
	Kind Kind `json:"kind"`

	// DisplayName is the human-readable name shown in results.
	DisplayName string `json:"displayName"`

	// Description is the free-text description used for indexing.
	Description string `json:"description"`

	// Tags are searchable labels.
	Tags []string `json:"tags,omitempty"`

	// Metadata holds arbitrary registrant-supplied key/value pairs.
	// Flattened into indexable text so it is searchable as plain tokens.
	Metadata Metadata `json:"metadata,omitempty"`

	// Enabled controls discovery eligibility. Disabled entities stay in
	// the store but never appear in results.
	Enabled bool `json:"enabled"`

	// OwnerGroup is the group that registered the entity.
	OwnerGroup string `json:"ownerGroup,omitempty"`

	// Safety is the latest scanner verdict. Anything other than "safe"
	// excludes the entity from discovery, same as disabling it.
	Safety SafetyStatus `json:"safety"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Discoverable reports whether the entity is eligible for discovery.
// Disabled, unsafe, and pending entities are excluded.
func (e Entity) Discoverable() bool {
	return e.Enabled && e.Safety == SafetySafe
}

// Tool is a single tool from a server's manifest. Its lifecycle is tied
// to the parent server: the set is replaced whenever the manifest changes.
type Tool struct {
	// ServerID is the registration path of the parent server.
	ServerID string `json:"serverId"`

	// Name is the tool name as reported by the server.
	Name string `json:"name"`

	// Description is the tool's own description text.
	Description string `json:"description"`
}

// ToolID returns the pseudo-entity id under which a tool is indexed.
// The "#" separator cannot occur in registration paths, so tool ids can
// never collide with server or agent ids.
func ToolID(serverID, toolName string) string {
	return serverID + "#" + toolName
}

// ChangeKind classifies a store mutation.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeEnabled  ChangeKind = "enabled"
	ChangeDisabled ChangeKind = "disabled"
)

// ChangeEvent is emitted after every successful mutation. The index
// synchronizer consumes these to keep the vector index consistent.
type ChangeEvent struct {
	EntityID string
	Kind     ChangeKind
}

// Filter restricts ListEntities results.
type Filter struct {
	// Kinds limits results to the given kinds. Empty means all.
	Kinds []Kind

	// DiscoverableOnly keeps only enabled entities with a safe verdict.
	DiscoverableOnly bool

	// Group keeps only members of the given access group.
	Group string
}

// MetaKind tags the runtime type of a MetaValue.
type MetaKind int

const (
	MetaNull MetaKind = iota
	MetaString
	MetaNumber
	MetaBool
	MetaList
	MetaMap
)

// MetaValue is a tagged representation of an arbitrary JSON value.
// Registrant metadata arrives as free-form JSON; modeling it as a closed
// sum keeps flattening and comparison pure and type-checked instead of
// reflecting into interface{} shapes.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Bool bool
	List []MetaValue
	Map  map[string]MetaValue
}

// Metadata is the custom metadata attached to an entity.
type Metadata map[string]MetaValue

// MarshalJSON renders the tagged value back to plain JSON.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case MetaNull:
		return []byte("null"), nil
	case MetaString:
		return json.Marshal(v.Str)
	case MetaNumber:
		return json.Marshal(v.Num)
	case MetaBool:
		return json.Marshal(v.Bool)
	case MetaList:
		return json.Marshal(v.List)
	case MetaMap:
		return json.Marshal(v.Map)
	}
	return nil, fmt.Errorf("unknown meta kind %d", v.Kind)
}

// UnmarshalJSON parses plain JSON into the tagged representation.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = metaFromInterface(raw)
	return nil
}

// metaFromInterface converts a decoded JSON value into a MetaValue.
func metaFromInterface(raw interface{}) MetaValue {
	switch t := raw.(type) {
	case nil:
		return MetaValue{Kind: MetaNull}
	case string:
		return MetaValue{Kind: MetaString, Str: t}
	case json.Number:
		f, _ := t.Float64()
		return MetaValue{Kind: MetaNumber, Num: f}
	case bool:
		return MetaValue{Kind: MetaBool, Bool: t}
	case []interface{}:
		list := make([]MetaValue, len(t))
		for i, item := range t {
			list[i] = metaFromInterface(item)
		}
		return MetaValue{Kind: MetaList, List: list}
	case map[string]interface{}:
		m := make(map[string]MetaValue, len(t))
		for k, item := range t {
			m[k] = metaFromInterface(item)
		}
		return MetaValue{Kind: MetaMap, Map: m}
	}
	return MetaValue{Kind: MetaNull}
}

// MetaStr returns a string-tagged MetaValue.
func MetaStr(s string) MetaValue { return MetaValue{Kind: MetaString, Str: s} }

// MetaNum returns a number-tagged MetaValue.
func MetaNum(f float64) MetaValue { return MetaValue{Kind: MetaNumber, Num: f} }
