package pipeline

import (
	"context"
	"fmt"

	"github.com/bowerhall/recall/internal/logger"
)

// Reprocess re-derives memories, summaries, entities, the graph, and the
// master memory from the raw message history. Strictly sequential, one
// session at a time, so model load stays bounded and progress is monotonic.
//
// With clean set, every derived table is wiped first. The delete/rebuild is
// not transactional against a crash; recovery is rerunning reprocessing.
func (p *Pipeline) Reprocess(ctx context.Context, clean bool) error {
	if clean {
		logger.Info("clean reprocess: deleting derived data")
		if err := p.store.DeleteDerived(); err != nil {
			return fmt.Errorf("delete derived: %w", err)
		}
	}

	conversations, err := p.store.ListConversations()
	if err != nil {
		return err
	}

	total := len(conversations)
	for i, c := range conversations {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.notifier.ReprocessProgress("sessions", i, total)
		if err := p.reprocessSession(ctx, c.ID, c.AppName); err != nil {
			logger.Error("session reprocess failed", "session", c.ID, "error", err)
		}
	}
	p.notifier.ReprocessProgress("sessions", total, total)

	if err := p.RebuildGraph(); err != nil {
		return fmt.Errorf("rebuild graph: %w", err)
	}

	if err := p.RegenerateMasterMemory(ctx); err != nil {
		return fmt.Errorf("regenerate master memory: %w", err)
	}

	return nil
}

// reprocessSession re-runs classification over every stored message, then
// summarization and extraction. The incremental master update is skipped;
// Reprocess finishes with one full regeneration instead.
func (p *Pipeline) reprocessSession(ctx context.Context, sessionID, appName string) error {
	messages, err := p.store.GetMessages(sessionID)
	if err != nil {
		return err
	}

	for _, m := range messages {
		if _, err := p.EvaluateMessage(ctx, sessionID, appName, m.ID, m.Role, m.Content); err != nil {
			logger.Error("memory evaluation failed", "session", sessionID, "message", m.ID, "error", err)
		}
	}

	if _, err := p.summarizeOnly(ctx, sessionID); err != nil {
		return err
	}

	if err := p.ExtractSession(ctx, sessionID); err != nil {
		logger.Error("entity extraction failed", "session", sessionID, "error", err)
	}

	return nil
}
