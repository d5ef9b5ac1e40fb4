package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/store"
)

// RememberNote stores an ad-hoc memory that did not come from a captured
// message: no classifier gate, no message back-reference. Notes share the
// per-app "notes" session so they stay traceable and re-derivable.
func (p *Pipeline) RememberNote(ctx context.Context, text, appName string) (*store.Memory, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty note")
	}

	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "manual"
	}
	sessionID := "notes:" + appName

	embedding := ""
	if p.embedder != nil {
		if vec, err := p.embedder.Embed(ctx, text); err != nil {
			logger.Warn("embedding failed, storing note without vector", "error", err)
		} else if encoded, err := json.Marshal(vec); err == nil {
			embedding = string(encoded)
		}
	}

	m, inserted, err := p.store.InsertMemory(store.InsertMemoryParams{
		Content:   text,
		RawText:   text,
		SourceApp: appName,
		SessionID: sessionID,
		Embedding: embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}

	if inserted {
		logger.Info("note stored", "app", appName)
		p.notifier.NewMemory(m)
	}

	return m, nil
}

// Forget removes a single memory by id.
func (p *Pipeline) Forget(id int64) error {
	return p.store.DeleteMemory(id)
}

// ForgetConversation removes a conversation and its messages. Derived
// memories and entities survive until the next clean reprocess.
func (p *Pipeline) ForgetConversation(sessionID string) error {
	return p.store.DeleteConversation(sessionID)
}
