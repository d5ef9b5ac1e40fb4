package store

import "database/sql"

type InsertMemoryParams struct {
	Content   string
	Name      string
	RawText   string
	SourceApp string
	SessionID string
	MessageID *int64
	Embedding string
}

// InsertMemory is idempotent: an existing memory for the same message id or
// the same (session, content) pair is returned instead of inserting a
// duplicate. Uniqueness lives here, not in a table constraint, so concurrent
// classifier completions for distinct messages never trip each other.
func (s *Store) InsertMemory(p InsertMemoryParams) (*Memory, bool, error) {
	if p.MessageID != nil {
		existing, err := s.GetMemoryByMessageID(*p.MessageID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	existing, err := s.FindMemory(p.SessionID, p.Content)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	result, err := s.db.Exec(queryInsertMemory, p.Content, p.Name, p.RawText, p.SourceApp, p.SessionID, p.MessageID, p.Embedding)
	if err != nil {
		return nil, false, err
	}

	id, _ := result.LastInsertId()

	return &Memory{
		ID:        id,
		Content:   p.Content,
		Name:      p.Name,
		RawText:   p.RawText,
		SourceApp: p.SourceApp,
		SessionID: p.SessionID,
		MessageID: p.MessageID,
		Embedding: p.Embedding,
	}, true, nil
}

func (s *Store) GetMemoryByMessageID(messageID int64) (*Memory, error) {
	return s.scanMemoryRow(s.db.QueryRow(queryGetMemoryByMessage, messageID))
}

func (s *Store) FindMemory(sessionID, content string) (*Memory, error) {
	return s.scanMemoryRow(s.db.QueryRow(queryGetMemoryBySessionText, sessionID, content))
}

func (s *Store) scanMemoryRow(row *sql.Row) (*Memory, error) {
	var m Memory
	err := row.Scan(&m.ID, &m.Content, &m.Name, &m.RawText, &m.SourceApp, &m.SessionID, &m.MessageID, &m.Embedding, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMemoriesBySession(sessionID string) ([]*Memory, error) {
	rows, err := s.db.Query(queryListMemoriesBySession, sessionID)
	if err != nil {
		return nil, err
	}
	return scanMemories(rows)
}

// ListMemoriesWithVectors returns every memory carrying an embedding,
// optionally restricted to one source app. Feeds the cosine scan in the
// retrieval engine.
func (s *Store) ListMemoriesWithVectors(appName string) ([]*Memory, error) {
	if appName != "" {
		rows, err := s.db.Query(queryListMemoriesWithVectorsA, appName)
		if err != nil {
			return nil, err
		}
		return scanMemories(rows)
	}

	rows, err := s.db.Query(queryListMemoriesWithVectors)
	if err != nil {
		return nil, err
	}
	return scanMemories(rows)
}

func (s *Store) DeleteMemory(id int64) error {
	_, err := s.db.Exec(queryDeleteMemory, id)
	return err
}

// DeleteDerived wipes every derived table (memories, entities, facts,
// sessions, edges) ahead of a clean reprocess. Not transactional against a
// crash; the recovery path is rerunning reprocessing.
func (s *Store) DeleteDerived() error {
	stmts := []string{
		"DELETE FROM memories",
		"DELETE FROM entity_edges",
		"DELETE FROM entity_facts",
		"DELETE FROM entity_sessions",
		"DELETE FROM entities",
		"DELETE FROM chat_summaries",
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	defer rows.Close()
	var memories []*Memory

	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Content, &m.Name, &m.RawText, &m.SourceApp, &m.SessionID, &m.MessageID, &m.Embedding, &m.CreatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}

	return memories, rows.Err()
}
