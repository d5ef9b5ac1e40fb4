package store

import (
	"database/sql"
	"time"
)

type Store struct {
	db *sql.DB
}

type Conversation struct {
	ID        string
	Title     string
	AppName   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	Timestamp      string
	CreatedAt      time.Time
}

// NewMessage is a parsed message from a capture, not yet persisted.
type NewMessage struct {
	Role      string
	Content   string
	Timestamp string
}

type Memory struct {
	ID        int64
	Content   string
	Name      string
	RawText   string
	SourceApp string
	SessionID string
	MessageID *int64
	Embedding string // JSON-encoded float array, "" = no vector
	CreatedAt time.Time
}

type Entity struct {
	ID        int64
	Name      string
	Type      string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EntityFact struct {
	ID              int64
	EntityID        int64
	Fact            string
	SourceSessionID string
	CreatedAt       time.Time
}

type EntityEdge struct {
	ID             int64
	SourceEntityID int64
	TargetEntityID int64
	Type           string
	Weight         float64
	EvidenceCount  int
	LastSessionID  string
}

type ChatSummary struct {
	SessionID string
	Summary   string
	UpdatedAt time.Time
}

type Stats struct {
	Conversations int
	Messages      int
	Memories      int
	Entities      int
	Facts         int
	Edges         int
	Summaries     int
}
