package buildd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    tag TEXT,
    status TEXT NOT NULL,
    image_ref TEXT,
    error TEXT,
    log TEXT,
    log_lines INTEGER DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at DESC);
`

// Store persists build history in a local SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the build history database under dataDir.
func OpenStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "builds.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateBuild records the start of a build.
func (s *Store) CreateBuild(build *types.TemplateBuild) error {
	_, err := s.db.Exec(
		`INSERT INTO builds (id, name, tag, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		build.ID, build.Name, build.Tag, build.Status, build.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record build %s: %w", build.ID, err)
	}
	return nil
}

// FinishBuild records the outcome of a build along with its full log.
func (s *Store) FinishBuild(build *types.TemplateBuild, logText string) error {
	_, err := s.db.Exec(
		`UPDATE builds SET status = ?, image_ref = ?, error = ?, log = ?, log_lines = ?, finished_at = ? WHERE id = ?`,
		build.Status, build.ImageRef, build.Error, logText, build.LogLines,
		build.FinishedAt.UTC().Format(time.RFC3339Nano), build.ID)
	if err != nil {
		return fmt.Errorf("failed to finish build %s: %w", build.ID, err)
	}
	return nil
}

// GetBuild returns a build record by ID.
func (s *Store) GetBuild(id string) (*types.TemplateBuild, error) {
	row := s.db.QueryRow(
		`SELECT id, name, tag, status, image_ref, error, log_lines, started_at, finished_at FROM builds WHERE id = ?`, id)
	build, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("build %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load build %s: %w", id, err)
	}
	return build, nil
}

// GetBuildLog returns the stored log of a build.
func (s *Store) GetBuildLog(id string) (string, error) {
	var logText sql.NullString
	err := s.db.QueryRow(`SELECT log FROM builds WHERE id = ?`, id).Scan(&logText)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("build %q not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load build log %s: %w", id, err)
	}
	return logText.String, nil
}

// ListBuilds returns the most recent builds, newest first.
func (s *Store) ListBuilds(limit int) ([]types.TemplateBuild, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, name, tag, status, image_ref, error, log_lines, started_at, finished_at
		 FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var builds []types.TemplateBuild
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build row: %w", err)
		}
		builds = append(builds, *build)
	}
	return builds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuild(row rowScanner) (*types.TemplateBuild, error) {
	var b types.TemplateBuild
	var tag, imageRef, errText, finishedAt sql.NullString
	var startedAt string

	if err := row.Scan(&b.ID, &b.Name, &tag, &b.Status, &imageRef, &errText, &b.LogLines, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	b.Tag = tag.String
	b.ImageRef = imageRef.String
	b.Error = errText.String
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		b.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			b.FinishedAt = t
		}
	}
	return &b, nil
}
