package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveEmbedding caches an embedding vector for an entity or tool
// pseudo-entity. The text hash lets the synchronizer skip re-embedding
// entities whose indexable text has not changed.
func (s *SQLiteStore) SaveEmbedding(entityID string, vector []float32, textHash, modelVersion string) error {
	vectorJSON, err := vectorToJSON(vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR REPLACE INTO embeddings (entity_id, vector, text_hash, model_version, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, entityID, vectorJSON, textHash, modelVersion,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save embedding for %s: %w", entityID, err)
	}
	return nil
}

// GetEmbedding returns the cached vector and source text hash for an id.
func (s *SQLiteStore) GetEmbedding(entityID string) ([]float32, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT vector, text_hash FROM embeddings WHERE entity_id = ?",
		entityID,
	)

	var vectorJSON, textHash string
	if err := row.Scan(&vectorJSON, &textHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: embedding for %s", ErrNotFound, entityID)
		}
		return nil, "", fmt.Errorf("failed to query embedding for %s: %w", entityID, err)
	}

	vector, err := jsonToVector(vectorJSON)
	if err != nil {
		return nil, "", err
	}
	return vector, textHash, nil
}

// DeleteEmbedding removes a cached embedding. Missing rows are ignored:
// removal must be idempotent for reconciliation.
func (s *SQLiteStore) DeleteEmbedding(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM embeddings WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("failed to delete embedding for %s: %w", entityID, err)
	}
	return nil
}

// EmbeddingHashes returns the source text hash for every cached embedding.
func (s *SQLiteStore) EmbeddingHashes() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT entity_id, text_hash FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}
