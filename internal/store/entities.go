package store

import "database/sql"

// FindEntity looks up an entity by name and type. Name comparison is
// case-insensitive (NOCASE collation on the column).
func (s *Store) FindEntity(name, entityType string) (*Entity, error) {
	var e Entity
	row := s.db.QueryRow(queryGetEntityByNameType, name, entityType)

	err := row.Scan(&e.ID, &e.Name, &e.Type, &e.Summary, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (s *Store) GetEntity(id int64) (*Entity, error) {
	var e Entity
	row := s.db.QueryRow(queryGetEntity, id)

	err := row.Scan(&e.ID, &e.Name, &e.Type, &e.Summary, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// UpsertEntity returns the existing entity for (name, type) or creates it.
func (s *Store) UpsertEntity(name, entityType string) (*Entity, error) {
	existing, err := s.FindEntity(name, entityType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	result, err := s.db.Exec(queryInsertEntity, name, entityType)
	if err != nil {
		return nil, err
	}

	id, _ := result.LastInsertId()
	return &Entity{ID: id, Name: name, Type: entityType}, nil
}

func (s *Store) UpdateEntitySummary(id int64, summary string) error {
	_, err := s.db.Exec(queryUpdateEntitySummary, summary, id)
	return err
}

func (s *Store) AddEntitySession(entityID int64, sessionID string) error {
	_, err := s.db.Exec(queryInsertEntitySession, entityID, sessionID)
	return err
}

func (s *Store) GetSessionEntities(sessionID string) ([]*Entity, error) {
	rows, err := s.db.Query(queryGetSessionEntities, sessionID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var entities []*Entity

	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Summary, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, &e)
	}

	return entities, rows.Err()
}

// ListEntitySessions returns every (entity, session) association, ordered by
// session. Input for full-graph rebuilds.
func (s *Store) ListEntitySessions() (map[string][]int64, error) {
	rows, err := s.db.Query(queryListEntitySessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make(map[string][]int64)
	for rows.Next() {
		var entityID int64
		var sessionID string
		if err := rows.Scan(&entityID, &sessionID); err != nil {
			return nil, err
		}
		sessions[sessionID] = append(sessions[sessionID], entityID)
	}

	return sessions, rows.Err()
}

// AddEntityFact inserts the fact unless an exact duplicate already exists
// for the entity. Reports whether a row was inserted.
func (s *Store) AddEntityFact(entityID int64, fact, sourceSessionID string) (bool, error) {
	var count int
	if err := s.db.QueryRow(queryCountEntityFact, entityID, fact).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	_, err := s.db.Exec(queryInsertEntityFact, entityID, fact, sourceSessionID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetEntityFacts(entityID int64) ([]*EntityFact, error) {
	rows, err := s.db.Query(queryGetEntityFacts, entityID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var facts []*EntityFact

	for rows.Next() {
		var f EntityFact
		if err := rows.Scan(&f.ID, &f.EntityID, &f.Fact, &f.SourceSessionID, &f.CreatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, &f)
	}

	return facts, rows.Err()
}

// BumpEdge records one more piece of co-occurrence evidence for the pair and
// sets the recomputed weight.
func (s *Store) BumpEdge(sourceID, targetID int64, edgeType string, weight float64, sessionID string) error {
	_, err := s.db.Exec(queryUpsertEdge, sourceID, targetID, edgeType, weight, sessionID)
	return err
}

func (s *Store) GetEdge(sourceID, targetID int64, edgeType string) (*EntityEdge, error) {
	var e EntityEdge
	row := s.db.QueryRow(queryGetEdge, sourceID, targetID, edgeType)

	err := row.Scan(&e.ID, &e.SourceEntityID, &e.TargetEntityID, &e.Type, &e.Weight, &e.EvidenceCount, &e.LastSessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (s *Store) ListEdges() ([]*EntityEdge, error) {
	rows, err := s.db.Query(queryListEdges)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	var edges []*EntityEdge

	for rows.Next() {
		var e EntityEdge
		if err := rows.Scan(&e.ID, &e.SourceEntityID, &e.TargetEntityID, &e.Type, &e.Weight, &e.EvidenceCount, &e.LastSessionID); err != nil {
			return nil, err
		}
		edges = append(edges, &e)
	}

	return edges, rows.Err()
}

func (s *Store) ClearEdges() error {
	_, err := s.db.Exec(queryClearEdges)
	return err
}
