package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresStore persists capability manifests so a fleet of gateways can
// share one authored set. The in-memory Registry remains the runtime source
// of truth; this store only feeds it at startup.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a Postgres-backed manifest store.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("manifest: open postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const manifestSchema = `
CREATE TABLE IF NOT EXISTS capability_manifests (
	id TEXT PRIMARY KEY,
	manifest_json JSONB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Init creates the backing table.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, manifestSchema)
	return err
}

// Save upserts a manifest.
func (s *PostgresStore) Save(ctx context.Context, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal %s: %w", m.ID, err)
	}
	query := `
		INSERT INTO capability_manifests (id, manifest_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET manifest_json = $2, updated_at = $3
	`
	_, err = s.db.ExecContext(ctx, query, m.ID, data, time.Now().UTC())
	return err
}

// LoadAll reads every stored manifest, ordered by id.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]Manifest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT manifest_json FROM capability_manifests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Manifest
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest: decode stored manifest: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadRegistry builds a validated registry from the stored manifests.
func (s *PostgresStore) LoadRegistry(ctx context.Context) (*Registry, error) {
	manifests, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(manifests), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
