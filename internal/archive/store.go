package archive

// #region imports
import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #endregion

// #region schema

const analysesSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	request_id     TEXT NOT NULL,
	produced_by    TEXT NOT NULL,
	model_version  TEXT NOT NULL DEFAULT '',
	top_label      TEXT NOT NULL,
	top_category   TEXT NOT NULL,
	top_confidence REAL NOT NULL,
	risk_score     REAL NOT NULL,
	attempts       INTEGER NOT NULL,
	total_ms       INTEGER NOT NULL,
	warnings       INTEGER NOT NULL DEFAULT 0,
	result_json    TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`

const analysesIndex = `
CREATE INDEX IF NOT EXISTS idx_analyses_request
ON analyses(request_id, created_at);
`

const outcomesSchema = `
CREATE TABLE IF NOT EXISTS provider_outcomes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	provider       TEXT NOT NULL,
	failure_kind   TEXT NOT NULL DEFAULT 'none',
	success        INTEGER NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL,
	top_confidence REAL NOT NULL,
	created_at     TEXT NOT NULL
);
`

const outcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_provider_outcomes_lookup
ON provider_outcomes(provider, created_at);
`

// #endregion schema

// #region store-struct

// Store persists finished analyses and provider outcomes in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	for _, stmt := range []string{analysesSchema, analysesIndex, outcomesSchema, outcomesIndex} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor
