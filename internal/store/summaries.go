package store

import "database/sql"

// UpsertChatSummary replaces the session's summary wholesale.
func (s *Store) UpsertChatSummary(sessionID, summary string) error {
	_, err := s.db.Exec(queryUpsertChatSummary, sessionID, summary)
	return err
}

func (s *Store) GetChatSummary(sessionID string) (*ChatSummary, error) {
	var cs ChatSummary
	row := s.db.QueryRow(queryGetChatSummary, sessionID)

	err := row.Scan(&cs.SessionID, &cs.Summary, &cs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &cs, nil
}

func (s *Store) ListChatSummaries() ([]*ChatSummary, error) {
	rows, err := s.db.Query(queryListChatSummaries)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var summaries []*ChatSummary

	for rows.Next() {
		var cs ChatSummary
		if err := rows.Scan(&cs.SessionID, &cs.Summary, &cs.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, &cs)
	}

	return summaries, rows.Err()
}

func (s *Store) GetMasterMemory() (string, error) {
	var content string
	err := s.db.QueryRow(queryGetMasterMemory).Scan(&content)
	if err != nil {
		return "", err
	}
	return content, nil
}

// SetMasterMemory replaces the singleton document wholesale. An empty string
// clears it.
func (s *Store) SetMasterMemory(content string) error {
	_, err := s.db.Exec(querySetMasterMemory, content)
	return err
}
