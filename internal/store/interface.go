/*
Package store implements the durable entity registry.

The store is the single source of truth for registered servers, tools,
agents, access-group memberships, and cached embedding vectors. It is
backed by SQLite via modernc.org/sqlite (pure Go, CGo-free). The vector
index is a derived structure and can always be rebuilt from this store.

Every mutating call emits a ChangeEvent to registered subscribers; the
index synchronizer uses these to keep the vector and keyword indexes
consistent without polling.
*/
package store

// Store defines the persistence contract for the registry.
type Store interface {
	// Init opens the database and runs migrations.
	Init() error

	// PutEntity creates or updates an entity. Re-registering an existing
	// id updates it in place; created reports whether the id was new.
	PutEntity(e Entity) (created bool, err error)

	// GetEntity returns the entity with the given id, or ErrNotFound.
	GetEntity(id string) (Entity, error)

	// DeleteEntity removes an entity, its tools, group memberships, and
	// cached embeddings. Returns ErrNotFound for unknown ids.
	DeleteEntity(id string) error

	// ListEntities returns entities matching the filter, ordered by id.
	ListEntities(f Filter) ([]Entity, error)

	// SetEnabled toggles discovery eligibility without removing the entity.
	SetEnabled(id string, enabled bool) error

	// SetSafety records the security scanner's verdict for an entity.
	SetSafety(id string, status SafetyStatus) error

	// ReplaceTools atomically swaps a server's tool manifest.
	ReplaceTools(serverID string, tools []Tool) error

	// ToolsFor returns the tool manifest of a server, ordered by name.
	ToolsFor(serverID string) ([]Tool, error)

	// AssignGroup adds an entity to an access group.
	AssignGroup(groupPath, entityID string) error

	// RemoveGroup removes an entity from an access group.
	RemoveGroup(groupPath, entityID string) error

	// GroupsFor returns the group paths an entity belongs to.
	GroupsFor(entityID string) ([]string, error)

	// MemberIDs returns the union of member entity ids across the given
	// group paths.
	MemberIDs(groupPaths []string) (map[string]struct{}, error)

	// SaveEmbedding caches an embedding vector for an entity or tool
	// pseudo-entity, keyed by the hash of the text it was computed from.
	SaveEmbedding(entityID string, vector []float32, textHash, modelVersion string) error

	// GetEmbedding returns the cached vector and source text hash for an
	// id, or ErrNotFound if no embedding is cached.
	GetEmbedding(entityID string) (vector []float32, textHash string, err error)

	// DeleteEmbedding removes a cached embedding.
	DeleteEmbedding(entityID string) error

	// EmbeddingHashes returns the source text hash for every cached
	// embedding. Used by reconciliation to skip unchanged entities.
	EmbeddingHashes() (map[string]string, error)

	// Subscribe registers a change listener. The returned function
	// removes it. Listeners are invoked synchronously after each commit.
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())

	// Close closes the database connection.
	Close() error
}
