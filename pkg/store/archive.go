// Package store persists rotated audit segments. The SQL archive keeps
// segment bytes and their attestation manifests queryable; the publishers
// push the same segments to object storage for offsite retention.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/attest"
)

// ErrSegmentNotFound is returned when the named segment is not archived.
var ErrSegmentNotFound = errors.New("store: segment not found")

// Segment is one archived audit export.
type Segment struct {
	Name        string          `json:"name"`
	ChainID     string          `json:"chainId"`
	FirstSeq    uint64          `json:"firstSeq"`
	LastSeq     uint64          `json:"lastSeq"`
	Body        []byte          `json:"body"`
	Attestation attest.Manifest `json:"attestation"`
	ArchivedAt  time.Time       `json:"archivedAt"`
}

// ArchiveStore persists rotated segments.
type ArchiveStore interface {
	Save(ctx context.Context, seg Segment) error
	Load(ctx context.Context, name string) (Segment, error)
	List(ctx context.Context, chainID string) ([]string, error)
}

// SQLArchive implements ArchiveStore over database/sql. The placeholders are
// Postgres style; modernc sqlite accepts them too.
type SQLArchive struct {
	db *sql.DB
}

// NewSQLArchive wraps an open database handle.
func NewSQLArchive(db *sql.DB) *SQLArchive {
	return &SQLArchive{db: db}
}

// OpenPostgres opens a Postgres-backed archive.
func OpenPostgres(dsn string) (*SQLArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return NewSQLArchive(db), nil
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS audit_segments (
	name TEXT PRIMARY KEY,
	chain_id TEXT NOT NULL,
	first_seq BIGINT NOT NULL,
	last_seq BIGINT NOT NULL,
	body BYTEA NOT NULL,
	attestation TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL
);
`

// Init creates the archive table.
func (a *SQLArchive) Init(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, archiveSchema)
	if err != nil {
		return fmt.Errorf("store: init archive schema: %w", err)
	}
	return nil
}

// Save inserts a segment. Archived segments are immutable, so a duplicate
// name is an error rather than an upsert.
func (a *SQLArchive) Save(ctx context.Context, seg Segment) error {
	att, err := json.Marshal(seg.Attestation)
	if err != nil {
		return fmt.Errorf("store: marshal attestation: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_segments (name, chain_id, first_seq, last_seq, body, attestation, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		seg.Name, seg.ChainID, seg.FirstSeq, seg.LastSeq, seg.Body, string(att), seg.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save segment %s: %w", seg.Name, err)
	}
	return nil
}

// Load fetches one segment by name.
func (a *SQLArchive) Load(ctx context.Context, name string) (Segment, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT name, chain_id, first_seq, last_seq, body, attestation, archived_at
		FROM audit_segments WHERE name = $1`, name)

	var seg Segment
	var att string
	err := row.Scan(&seg.Name, &seg.ChainID, &seg.FirstSeq, &seg.LastSeq, &seg.Body, &att, &seg.ArchivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Segment{}, ErrSegmentNotFound
	}
	if err != nil {
		return Segment{}, fmt.Errorf("store: load segment %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(att), &seg.Attestation); err != nil {
		return Segment{}, fmt.Errorf("store: decode attestation for %s: %w", name, err)
	}
	return seg, nil
}

// List returns the archived segment names for a chain, oldest first.
func (a *SQLArchive) List(ctx context.Context, chainID string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT name FROM audit_segments WHERE chain_id = $1 ORDER BY first_seq`, chainID)
	if err != nil {
		return nil, fmt.Errorf("store: list segments: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan segment name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the underlying handle.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}
