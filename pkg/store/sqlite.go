package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a file-backed archive for single-node deployments. The
// pure-Go driver keeps the binary cgo-free.
func OpenSQLite(path string) (*SQLArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	return NewSQLArchive(db), nil
}
