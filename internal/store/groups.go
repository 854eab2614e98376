package store

import (
	"fmt"
	"strings"
)

// AssignGroup adds an entity to an access group. Assigning an existing
// membership is a no-op. Emits an update event because group membership
// changes who can discover the entity.
func (s *SQLiteStore) AssignGroup(groupPath, entityID string) error {
	if groupPath == "" {
		return fmt.Errorf("group path is required")
	}

	s.mu.Lock()
	if _, err := s.getEntityLocked(entityID); err != nil {
		s.mu.Unlock()
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO group_members (group_path, entity_id) VALUES (?, ?)",
		groupPath, entityID,
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to assign %s to group %s: %w", entityID, groupPath, err)
	}

	s.emit(ChangeEvent{EntityID: entityID, Kind: ChangeUpdated})
	return nil
}

// RemoveGroup removes an entity from an access group.
func (s *SQLiteStore) RemoveGroup(groupPath, entityID string) error {
	s.mu.Lock()
	res, err := s.db.Exec(
		"DELETE FROM group_members WHERE group_path = ? AND entity_id = ?",
		groupPath, entityID,
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to remove %s from group %s: %w", entityID, groupPath, err)
	}
	n, _ := res.RowsAffected()
	s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("%w: %s in group %s", ErrNotFound, entityID, groupPath)
	}

	s.emit(ChangeEvent{EntityID: entityID, Kind: ChangeUpdated})
	return nil
}

// GroupsFor returns the group paths an entity belongs to, sorted.
func (s *SQLiteStore) GroupsFor(entityID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT group_path FROM group_members WHERE entity_id = ? ORDER BY group_path",
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for %s: %w", entityID, err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// MemberIDs returns the union of member entity ids across the given
// group paths.
func (s *SQLiteStore) MemberIDs(groupPaths []string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if len(groupPaths) == 0 {
		return ids, nil
	}

	placeholders := make([]string, len(groupPaths))
	args := make([]interface{}, len(groupPaths))
	for i, g := range groupPaths {
		placeholders[i] = "?"
		args[i] = g
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT DISTINCT entity_id FROM group_members WHERE group_path IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
