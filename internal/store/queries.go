package store

const (
	queryUpsertConversation = `INSERT INTO conversations (id, title, app_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = datetime('now')`
	queryGetConversation    = `SELECT id, title, app_name, created_at, updated_at FROM conversations WHERE id = ?`
	queryListConversations  = `SELECT id, title, app_name, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	queryDeleteConversation = `DELETE FROM conversations WHERE id = ?`

	queryInsertMessage = `INSERT INTO messages (conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?)`
	queryGetMessages   = `SELECT id, conversation_id, role, content, timestamp, created_at FROM messages WHERE conversation_id = ? ORDER BY id ASC`

	queryInsertMemory             = `INSERT INTO memories (content, name, raw_text, source_app, session_id, message_id, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryGetMemoryByMessage       = `SELECT id, content, name, raw_text, source_app, session_id, message_id, embedding, created_at FROM memories WHERE message_id = ?`
	queryGetMemoryBySessionText   = `SELECT id, content, name, raw_text, source_app, session_id, message_id, embedding, created_at FROM memories WHERE session_id = ? AND content = ?`
	queryListMemoriesBySession    = `SELECT id, content, name, raw_text, source_app, session_id, message_id, embedding, created_at FROM memories WHERE session_id = ? ORDER BY id ASC`
	queryListMemoriesWithVectors  = `SELECT id, content, name, raw_text, source_app, session_id, message_id, embedding, created_at FROM memories WHERE embedding != ''`
	queryListMemoriesWithVectorsA = `SELECT id, content, name, raw_text, source_app, session_id, message_id, embedding, created_at FROM memories WHERE embedding != '' AND source_app = ?`
	queryDeleteMemory             = `DELETE FROM memories WHERE id = ?`

	queryInsertEntity        = `INSERT INTO entities (name, type) VALUES (?, ?)`
	queryGetEntityByNameType = `SELECT id, name, type, summary, created_at, updated_at FROM entities WHERE name = ? AND type = ?`
	queryGetEntity           = `SELECT id, name, type, summary, created_at, updated_at FROM entities WHERE id = ?`
	queryUpdateEntitySummary = `UPDATE entities SET summary = ?, updated_at = datetime('now') WHERE id = ?`

	queryInsertEntitySession = `INSERT OR IGNORE INTO entity_sessions (entity_id, session_id) VALUES (?, ?)`
	queryGetSessionEntities  = `SELECT e.id, e.name, e.type, e.summary, e.created_at, e.updated_at
		FROM entities e JOIN entity_sessions es ON es.entity_id = e.id
		WHERE es.session_id = ? ORDER BY e.id ASC`
	queryListEntitySessions = `SELECT entity_id, session_id FROM entity_sessions ORDER BY session_id, entity_id`

	queryCountEntityFact  = `SELECT COUNT(*) FROM entity_facts WHERE entity_id = ? AND fact = ?`
	queryInsertEntityFact = `INSERT OR IGNORE INTO entity_facts (entity_id, fact, source_session_id) VALUES (?, ?, ?)`
	queryGetEntityFacts   = `SELECT id, entity_id, fact, source_session_id, created_at FROM entity_facts WHERE entity_id = ? ORDER BY id ASC`

	queryUpsertEdge = `INSERT INTO entity_edges (source_entity_id, target_entity_id, type, weight, evidence_count, last_session_id)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(source_entity_id, target_entity_id, type) DO UPDATE SET
			evidence_count = evidence_count + 1,
			weight = excluded.weight,
			last_session_id = excluded.last_session_id`
	queryGetEdge = `SELECT id, source_entity_id, target_entity_id, type, weight, evidence_count, last_session_id
		FROM entity_edges WHERE source_entity_id = ? AND target_entity_id = ? AND type = ?`
	queryListEdges = `SELECT id, source_entity_id, target_entity_id, type, weight, evidence_count, last_session_id
		FROM entity_edges ORDER BY weight DESC, id ASC`
	queryClearEdges = `DELETE FROM entity_edges`

	queryUpsertChatSummary = `INSERT INTO chat_summaries (session_id, summary) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET summary = excluded.summary, updated_at = datetime('now')`
	queryGetChatSummary   = `SELECT session_id, summary, updated_at FROM chat_summaries WHERE session_id = ?`
	queryListChatSummaries = `SELECT session_id, summary, updated_at FROM chat_summaries ORDER BY session_id ASC`

	querySeedMasterMemory = `INSERT OR IGNORE INTO master_memory (id, content) VALUES (1, '')`
	queryGetMasterMemory  = `SELECT content FROM master_memory WHERE id = 1`
	querySetMasterMemory  = `UPDATE master_memory SET content = ?, updated_at = datetime('now') WHERE id = 1`
)
