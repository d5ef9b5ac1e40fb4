package store

import (
	"database/sql"
	"fmt"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if _, err := s.db.Exec(ftsSchema); err != nil {
		return err
	}

	if _, err := s.db.Exec(triggerSchema); err != nil {
		return err
	}

	// the master memory is a singleton row, present from day one
	if _, err := s.db.Exec(querySeedMasterMemory); err != nil {
		return err
	}

	return nil
}

// RebuildSearchIndex repopulates every FTS shadow index from its content
// table. Escape hatch for recovering from trigger desync.
func (s *Store) RebuildSearchIndex() error {
	for _, fts := range []string{"memories_fts", "messages_fts", "summaries_fts", "entities_fts", "facts_fts"} {
		stmt := fmt.Sprintf("INSERT INTO %s(%s) VALUES('rebuild')", fts, fts)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("rebuild %s: %w", fts, err)
		}
	}
	return nil
}

func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"conversations", &stats.Conversations},
		{"messages", &stats.Messages},
		{"memories", &stats.Memories},
		{"entities", &stats.Entities},
		{"entity_facts", &stats.Facts},
		{"entity_edges", &stats.Edges},
		{"chat_summaries", &stats.Summaries},
	}

	for _, c := range counts {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}
