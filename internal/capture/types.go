// Package capture defines the contract between the external screen scraper
// and the ingestion pipeline, and implements the divergence deduplicator
// that turns repeated full-window snapshots into append-only message
// history.
package capture

import "github.com/bowerhall/recall/internal/store"

// Capture is one full-text snapshot of a chat window's visible content.
// Each capture is the complete current state, never a delta.
type Capture struct {
	ID      string // assigned by the producer, uuid
	AppName string
	Title   string
	RawText string
}

// Parser turns raw scraped text into ordered messages. Implementations are
// per-platform and live outside this module; only the output contract
// matters here.
type Parser interface {
	Parse(rawText string) []store.NewMessage
}

// Producer emits captures at its own cadence (periodic + change-triggered).
type Producer interface {
	Captures() <-chan Capture
}
