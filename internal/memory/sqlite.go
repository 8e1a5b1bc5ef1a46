// Package memory keeps named world positions the agent has remembered, such
// as where it last saw a block or left a chest.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/protocol"
)

var ErrBadPosition = errors.New("bad position")

type Store struct {
	db   *sql.DB
	once sync.Once
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS locations (
			name TEXT PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

// Put remembers pos under name, replacing any earlier position.
func (s *Store) Put(name string, pos agent.Vec3) error {
	if name == "" {
		return fmt.Errorf("empty location name")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO locations(name,x,y,z,updated_at) VALUES(?,?,?,?,?)`,
		name, pos.X, pos.Y, pos.Z, now)
	return err
}

func (s *Store) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM locations WHERE name=?`, name)
	return err
}

// Find returns every remembered location whose name contains substr,
// ignoring case.
func (s *Store) Find(substr string) (map[string]agent.Vec3, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT name,x,y,z FROM locations WHERE instr(lower(name), lower(?)) > 0 ORDER BY name`, substr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]agent.Vec3{}
	for rows.Next() {
		var (
			name string
			pos  agent.Vec3
		)
		if err := rows.Scan(&name, &pos.X, &pos.Y, &pos.Z); err != nil {
			return nil, err
		}
		out[name] = pos
	}
	return out, rows.Err()
}

// ImportKV stores the memory entries carried by an observation. Values are
// "x,y,z"; entries that do not parse as a position are skipped and
// reported in the returned error.
func (s *Store) ImportKV(kvs []protocol.MemoryKV) (int, error) {
	if len(kvs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO locations(name,x,y,z,updated_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		n    int
		errs []error
	)
	for _, kv := range kvs {
		pos, err := ParsePosition(kv.Value)
		if err != nil || kv.Key == "" {
			errs = append(errs, fmt.Errorf("%s: %w", kv.Key, ErrBadPosition))
			continue
		}
		if _, err := stmt.Exec(kv.Key, pos.X, pos.Y, pos.Z, now); err != nil {
			return n, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, errors.Join(errs...)
}

// ParsePosition reads "x,y,z", optionally wrapped in parentheses.
func ParsePosition(s string) (agent.Vec3, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return agent.Vec3{}, fmt.Errorf("%w: %q", ErrBadPosition, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return agent.Vec3{}, fmt.Errorf("%w: %q", ErrBadPosition, s)
		}
		v[i] = n
	}
	return agent.V(v[0], v[1], v[2]), nil
}
