package store

import "fmt"

// Hit types embed the row plus the BM25 rank reported by FTS5 (lower is
// better, SQLite negates the score).

type MemoryHit struct {
	Memory
	Rank float64
}

type MessageHit struct {
	Message
	AppName string
	Title   string
	Rank    float64
}

type SummaryHit struct {
	ChatSummary
	Rank float64
}

type EntityHit struct {
	Entity
	Rank float64
}

type FactHit struct {
	EntityFact
	EntityName string
	Rank       float64
}

// SearchMemories runs a BM25 full-text search over memory content and names.
func (s *Store) SearchMemories(match, appName string, limit int) ([]*MemoryHit, error) {
	query := `
		SELECT m.id, m.content, m.name, m.raw_text, m.source_app, m.session_id, m.message_id, m.embedding, m.created_at, fts.rank
		FROM memories_fts fts
		JOIN memories m ON m.id = fts.rowid
		WHERE memories_fts MATCH ?`
	args := []any{match}

	if appName != "" {
		query += " AND m.source_app = ?"
		args = append(args, appName)
	}

	query += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	defer rows.Close()
	var hits []*MemoryHit

	for rows.Next() {
		var h MemoryHit
		if err := rows.Scan(&h.ID, &h.Content, &h.Name, &h.RawText, &h.SourceApp, &h.SessionID, &h.MessageID, &h.Embedding, &h.CreatedAt, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}

	return hits, rows.Err()
}

func (s *Store) SearchMessages(match, appName string, limit int) ([]*MessageHit, error) {
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.timestamp, m.created_at, c.app_name, c.title, fts.rank
		FROM messages_fts fts
		JOIN messages m ON m.id = fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?`
	args := []any{match}

	if appName != "" {
		query += " AND c.app_name = ?"
		args = append(args, appName)
	}

	query += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	defer rows.Close()
	var hits []*MessageHit

	for rows.Next() {
		var h MessageHit
		if err := rows.Scan(&h.Message.ID, &h.ConversationID, &h.Role, &h.Message.Content, &h.Message.Timestamp, &h.Message.CreatedAt, &h.AppName, &h.Title, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}

	return hits, rows.Err()
}

func (s *Store) SearchSummaries(match, appName string, limit int) ([]*SummaryHit, error) {
	query := `
		SELECT cs.session_id, cs.summary, cs.updated_at, fts.rank
		FROM summaries_fts fts
		JOIN chat_summaries cs ON cs.id = fts.rowid`
	args := []any{}

	if appName != "" {
		query += ` JOIN conversations c ON c.id = cs.session_id
		WHERE summaries_fts MATCH ? AND c.app_name = ?`
		args = append(args, match, appName)
	} else {
		query += ` WHERE summaries_fts MATCH ?`
		args = append(args, match)
	}

	query += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search summaries: %w", err)
	}

	defer rows.Close()
	var hits []*SummaryHit

	for rows.Next() {
		var h SummaryHit
		if err := rows.Scan(&h.SessionID, &h.Summary, &h.UpdatedAt, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}

	return hits, rows.Err()
}

func (s *Store) SearchEntities(match, appName string, limit int) ([]*EntityHit, error) {
	query := `
		SELECT e.id, e.name, e.type, e.summary, e.created_at, e.updated_at, fts.rank
		FROM entities_fts fts
		JOIN entities e ON e.id = fts.rowid
		WHERE entities_fts MATCH ?`
	args := []any{match}

	if appName != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM entity_sessions es
			JOIN conversations c ON c.id = es.session_id
			WHERE es.entity_id = e.id AND c.app_name = ?)`
		args = append(args, appName)
	}

	query += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}

	defer rows.Close()
	var hits []*EntityHit

	for rows.Next() {
		var h EntityHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.Summary, &h.CreatedAt, &h.UpdatedAt, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}

	return hits, rows.Err()
}

func (s *Store) SearchEntityFacts(match, appName string, limit int) ([]*FactHit, error) {
	query := `
		SELECT f.id, f.entity_id, f.fact, f.source_session_id, f.created_at, e.name, fts.rank
		FROM facts_fts fts
		JOIN entity_facts f ON f.id = fts.rowid
		JOIN entities e ON e.id = f.entity_id
		WHERE facts_fts MATCH ?`
	args := []any{match}

	if appName != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM conversations c
			WHERE c.id = f.source_session_id AND c.app_name = ?)`
		args = append(args, appName)
	}

	query += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}

	defer rows.Close()
	var hits []*FactHit

	for rows.Next() {
		var h FactHit
		if err := rows.Scan(&h.ID, &h.EntityID, &h.Fact, &h.SourceSessionID, &h.CreatedAt, &h.EntityName, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}

	return hits, rows.Err()
}
