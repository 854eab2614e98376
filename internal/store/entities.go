package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PutEntity creates or updates an entity. Re-registering an existing id
// with the same kind updates it in place (idempotent registration);
// registering an existing id under a different kind is a conflict.
func (s *SQLiteStore) PutEntity(e Entity) (bool, error) {
	if e.ID == "" {
		return false, fmt.Errorf("entity id is required")
	}
	if e.Safety == "" {
		e.Safety = SafetyUnknown
	}

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return false, fmt.Errorf("failed to marshal tags: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	existing, err := s.getEntityLocked(e.ID)
	created := errors.Is(err, ErrNotFound)
	if err != nil && !created {
		s.mu.Unlock()
		return false, err
	}
	if !created && existing.Kind != e.Kind {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s is %s, not %s", ErrConflict, e.ID, existing.Kind, e.Kind)
	}

	if created {
		e.CreatedAt = now
	} else {
		e.CreatedAt = existing.CreatedAt
	}
	e.UpdatedAt = now

	query := `
		INSERT INTO entities (id, kind, display_name, description, tags, metadata, enabled, owner_group, safety, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			tags = excluded.tags,
			metadata = excluded.metadata,
			enabled = excluded.enabled,
			owner_group = excluded.owner_group,
			safety = excluded.safety,
			updated_at = excluded.updated_at
	`
	_, err = s.db.Exec(query,
		e.ID, string(e.Kind), e.DisplayName, e.Description,
		string(tags), string(meta), boolToInt(e.Enabled), e.OwnerGroup,
		string(e.Safety), e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano),
	)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("failed to put entity %s: %w", e.ID, err)
	}

	if created {
		s.emit(ChangeEvent{EntityID: e.ID, Kind: ChangeCreated})
	} else {
		s.emit(ChangeEvent{EntityID: e.ID, Kind: ChangeUpdated})
	}
	return created, nil
}

// GetEntity returns the entity with the given id.
func (s *SQLiteStore) GetEntity(id string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntityLocked(id)
}

func (s *SQLiteStore) getEntityLocked(id string) (Entity, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, display_name, description, tags, metadata, enabled, owner_group, safety, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// DeleteEntity removes an entity along with its tools, group
// memberships, and cached embeddings.
func (s *SQLiteStore) DeleteEntity(id string) error {
	s.mu.Lock()
	res, err := s.db.Exec("DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to delete entity %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Cascade: tools, memberships, and embeddings (both the entity's own
	// and its tools' pseudo-entity embeddings).
	if _, err := s.db.Exec("DELETE FROM tools WHERE server_id = ?", id); err != nil {
		s.log.Warn("failed to delete tools", zap.String("server", id), zap.Error(err))
	}
	if _, err := s.db.Exec("DELETE FROM group_members WHERE entity_id = ?", id); err != nil {
		s.log.Warn("failed to delete group memberships", zap.String("entity", id), zap.Error(err))
	}
	if _, err := s.db.Exec("DELETE FROM embeddings WHERE entity_id = ? OR entity_id LIKE ?", id, id+"#%"); err != nil {
		s.log.Warn("failed to delete embeddings", zap.String("entity", id), zap.Error(err))
	}
	s.mu.Unlock()

	s.emit(ChangeEvent{EntityID: id, Kind: ChangeDeleted})
	return nil
}

// ListEntities returns entities matching the filter, ordered by id for
// deterministic iteration.
func (s *SQLiteStore) ListEntities(f Filter) ([]Entity, error) {
	query := `
		SELECT id, kind, display_name, description, tags, metadata, enabled, owner_group, safety, created_at, updated_at
		FROM entities
	`
	var conds []string
	var args []interface{}

	if len(f.Kinds) > 0 {
		placeholders := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		conds = append(conds, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.DiscoverableOnly {
		conds = append(conds, "enabled = 1 AND safety = ?")
		args = append(args, string(SafetySafe))
	}
	if f.Group != "" {
		conds = append(conds, "id IN (SELECT entity_id FROM group_members WHERE group_path = ?)")
		args = append(args, f.Group)
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// SetEnabled toggles discovery eligibility.
func (s *SQLiteStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	res, err := s.db.Exec(
		"UPDATE entities SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to set enabled for %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	kind := ChangeDisabled
	if enabled {
		kind = ChangeEnabled
	}
	s.emit(ChangeEvent{EntityID: id, Kind: kind})
	return nil
}

// SetSafety records the scanner verdict. A verdict other than "safe"
// excludes the entity from discovery through the same predicate as
// disabling, so the corresponding enabled/disabled event is emitted.
func (s *SQLiteStore) SetSafety(id string, status SafetyStatus) error {
	s.mu.Lock()
	res, err := s.db.Exec(
		"UPDATE entities SET safety = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to set safety for %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	kind := ChangeDisabled
	if status == SafetySafe {
		kind = ChangeEnabled
	}
	s.emit(ChangeEvent{EntityID: id, Kind: kind})
	return nil
}

// ReplaceTools atomically swaps a server's tool manifest and emits an
// update event so the synchronizer re-indexes the server and its tools.
func (s *SQLiteStore) ReplaceTools(serverID string, tools []Tool) error {
	s.mu.Lock()
	if _, err := s.getEntityLocked(serverID); err != nil {
		s.mu.Unlock()
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM tools WHERE server_id = ?", serverID); err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return fmt.Errorf("failed to clear tools for %s: %w", serverID, err)
	}
	for _, t := range tools {
		if _, err := tx.Exec(
			"INSERT INTO tools (server_id, name, description) VALUES (?, ?, ?)",
			serverID, t.Name, t.Description,
		); err != nil {
			tx.Rollback()
			s.mu.Unlock()
			return fmt.Errorf("failed to insert tool %s/%s: %w", serverID, t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to commit tools for %s: %w", serverID, err)
	}
	s.mu.Unlock()

	s.emit(ChangeEvent{EntityID: serverID, Kind: ChangeUpdated})
	return nil
}

// ToolsFor returns a server's tool manifest ordered by name.
func (s *SQLiteStore) ToolsFor(serverID string) ([]Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT server_id, name, description FROM tools WHERE server_id = ? ORDER BY name",
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools for %s: %w", serverID, err)
	}
	defer rows.Close()

	var tools []Tool
	for rows.Next() {
		var t Tool
		if err := rows.Scan(&t.ServerID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEntity.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (Entity, error) {
	var e Entity
	var kind, safety, tags, meta, createdAt, updatedAt string
	var enabled int

	err := row.Scan(&e.ID, &kind, &e.DisplayName, &e.Description, &tags, &meta,
		&enabled, &e.OwnerGroup, &safety, &createdAt, &updatedAt)
	if err != nil {
		return Entity{}, err
	}

	e.Kind = Kind(kind)
	e.Safety = SafetyStatus(safety)
	e.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return Entity{}, fmt.Errorf("failed to unmarshal tags for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		return Entity{}, fmt.Errorf("failed to unmarshal metadata for %s: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Entity{}, fmt.Errorf("failed to parse created_at for %s: %w", e.ID, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Entity{}, fmt.Errorf("failed to parse updated_at for %s: %w", e.ID, err)
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
