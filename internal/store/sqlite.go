package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	log      *zap.Logger
	mu       sync.RWMutex
	initOnce sync.Once

	subMu  sync.Mutex
	subs   map[int]func(ChangeEvent)
	nextID int
}

// NewSQLiteStore creates a store backed by the database at dbPath.
// The parent directory is created on Init if it does not exist.
func NewSQLiteStore(dbPath string, log *zap.Logger) *SQLiteStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteStore{
		dbPath: dbPath,
		log:    log,
		subs:   make(map[int]func(ChangeEvent)),
	}
}

// Init opens the database and runs migrations.
func (s *SQLiteStore) Init() error {
	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			return
		}

		s.log.Info("entity store initialized", zap.String("path", s.dbPath))
	})
	return initErr
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Subscribe registers a change listener.
func (s *SQLiteStore) Subscribe(fn func(ChangeEvent)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// emit delivers a change event to all subscribers. Called after the
// store lock is released so listeners may call back into the store.
func (s *SQLiteStore) emit(ev ChangeEvent) {
	s.subMu.Lock()
	fns := make([]func(ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// runMigrations executes database schema migrations.
func (s *SQLiteStore) runMigrations() error {
	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.currentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: s.migration001InitialSchema},
	}

	for _, m := range migrations {
		if version < m.version {
			s.log.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version, m.name); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

func (s *SQLiteStore) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) currentMigrationVersion() (int, error) {
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStore) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001InitialSchema creates the core tables.
func (s *SQLiteStore) migration001InitialSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			display_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			owner_group TEXT NOT NULL DEFAULT '',
			safety TEXT NOT NULL DEFAULT 'unknown',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind)`,
		`CREATE TABLE IF NOT EXISTS tools (
			server_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (server_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_path TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			PRIMARY KEY (group_path, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_entity ON group_members(entity_id)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			entity_id TEXT PRIMARY KEY,
			vector TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			model_version TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// vectorToJSON serializes an embedding vector for storage.
func vectorToJSON(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vector: %w", err)
	}
	return string(data), nil
}

// jsonToVector deserializes a stored embedding vector.
func jsonToVector(s string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(s), &vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	return vector, nil
}
