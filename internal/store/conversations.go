package store

// UpsertConversation creates the conversation row on first sight of a
// session id and refreshes title/updated_at on every later capture.
func (s *Store) UpsertConversation(id, title, appName string) error {
	_, err := s.db.Exec(queryUpsertConversation, id, title, appName)
	return err
}

func (s *Store) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	row := s.db.QueryRow(queryGetConversation, id)

	err := row.Scan(&c.ID, &c.Title, &c.AppName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Store) ListConversations() ([]*Conversation, error) {
	rows, err := s.db.Query(queryListConversations)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var conversations []*Conversation

	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.AppName, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, &c)
	}

	return conversations, rows.Err()
}

// DeleteConversation removes the conversation; messages cascade.
func (s *Store) DeleteConversation(id string) error {
	_, err := s.db.Exec(queryDeleteConversation, id)
	return err
}

func (s *Store) GetMessages(conversationID string) ([]*Message, error) {
	rows, err := s.db.Query(queryGetMessages, conversationID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var messages []*Message

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Timestamp, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

// InsertMessages appends the given messages in order and returns their ids.
// Stored messages are immutable; dedup only ever appends.
func (s *Store) InsertMessages(conversationID string, msgs []NewMessage) ([]int64, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		result, err := tx.Exec(queryInsertMessage, conversationID, m.Role, m.Content, m.Timestamp)
		if err != nil {
			return nil, err
		}
		id, _ := result.LastInsertId()
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return ids, nil
}
