package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
)

const (
	// below this concatenated size, full regeneration is a single call
	singleShotThreshold = 60000
	// map-reduce chunk cap; a chunk never splits a single summary
	chunkSizeLimit = 50000
)

const sessionSummaryPrompt = `Write a third-person profile-style summary of what this conversation reveals about the user: decisions made, preferences stated, projects and people mentioned, plans. Plain prose, no preamble, no bullet list.

Conversation memories:
%s`

const masterCreatePrompt = `Build a structured "about the user" document from this conversation summary. Use markdown sections such as "## Identity", "## Technical Environment", "## Projects", "## People", "## Preferences" — include only sections with content.

Summary:
%s`

const masterMergePrompt = `Merge the new conversation summary into the user's master document. Preserve every existing fact; only overwrite a fact when the new summary directly contradicts it. Keep the section structure. Return the full updated document, no preamble.

Current master document:
%s

New conversation summary:
%s`

const masterChunkPrompt = `Condense these conversation summaries into one structured "about the user" partial document. Use markdown sections such as "## Identity", "## Technical Environment", "## Projects", "## People", "## Preferences" — include only sections with content.

Summaries:
%s`

const masterReducePrompt = `Merge these partial "about the user" documents into one. Preserve all facts; deduplicate; on direct contradiction prefer the later document. Keep the markdown section structure. Return the full document, no preamble.

%s`

// SummarizeSession produces the session's summary, replacing any prior one
// wholesale. Summarization failure is a hard failure; the downstream steps
// it triggers on success (entity extraction, master-memory update) are
// independently non-fatal.
func (p *Pipeline) SummarizeSession(ctx context.Context, sessionID string) error {
	summary, err := p.summarizeOnly(ctx, sessionID)
	if err != nil || summary == "" {
		return err
	}

	if err := p.ExtractSession(ctx, sessionID); err != nil {
		logger.Error("entity extraction failed", "session", sessionID, "error", err)
	}

	if err := p.UpdateMasterIncremental(ctx, summary); err != nil {
		logger.Error("master memory update failed", "session", sessionID, "error", err)
	}

	return nil
}

// summarizeOnly generates and stores the summary without triggering the
// downstream steps. Returns "" when the session has no memories.
func (p *Pipeline) summarizeOnly(ctx context.Context, sessionID string) (string, error) {
	memories, err := p.store.ListMemoriesBySession(sessionID)
	if err != nil {
		return "", err
	}
	if len(memories) == 0 {
		return "", nil
	}

	// memories keep a back-reference to their source message; recover the
	// speaker role from there
	roles := make(map[int64]string)
	if msgs, err := p.store.GetMessages(sessionID); err == nil {
		for _, m := range msgs {
			roles[m.ID] = m.Role
		}
	}

	var lines []string
	for _, m := range memories {
		role := "user"
		if m.MessageID != nil {
			if r, ok := roles[*m.MessageID]; ok {
				role = r
			}
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", role, m.Content))
	}

	prompt := fmt.Sprintf(sessionSummaryPrompt, strings.Join(lines, "\n"))
	summary, err := p.summarizer.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, llm.CallOptions{
		Timeout: p.cfg.SummarizeTimeout,
		Label:   "session summary",
	})
	if err != nil {
		return "", fmt.Errorf("summarize session: %w", err)
	}

	summary = strings.TrimSpace(summary)
	if err := p.store.UpsertChatSummary(sessionID, summary); err != nil {
		return "", err
	}

	logger.Info("session summarized", "session", sessionID)
	p.notifier.SummaryGenerated(sessionID)

	return summary, nil
}

// UpdateMasterIncremental folds one new session summary into the master
// document: created outright when none exists, otherwise merged with a
// preserve-unless-contradicted instruction.
func (p *Pipeline) UpdateMasterIncremental(ctx context.Context, newSummary string) error {
	current, err := p.store.GetMasterMemory()
	if err != nil {
		return err
	}

	var prompt string
	if strings.TrimSpace(current) == "" {
		prompt = fmt.Sprintf(masterCreatePrompt, newSummary)
	} else {
		prompt = fmt.Sprintf(masterMergePrompt, current, newSummary)
	}

	updated, err := p.summarizer.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, llm.CallOptions{
		Timeout: p.cfg.SummarizeTimeout,
		Label:   "master memory update",
	})
	if err != nil {
		return fmt.Errorf("master memory update: %w", err)
	}

	return p.store.SetMasterMemory(strings.TrimSpace(updated))
}

// RegenerateMasterMemory rebuilds the master document from every session
// summary. Small corpora go through a single call; larger ones are
// map-reduced so no single prompt exceeds the chunk cap. Progress is
// reported as (completed, chunks+1).
func (p *Pipeline) RegenerateMasterMemory(ctx context.Context) error {
	summaries, err := p.store.ListChatSummaries()
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		logger.Info("no session summaries, clearing master memory")
		return p.store.SetMasterMemory("")
	}

	texts := make([]string, len(summaries))
	total := 0
	for i, s := range summaries {
		texts[i] = s.Summary
		total += len(s.Summary)
	}

	if total < singleShotThreshold {
		p.notifier.MasterMemoryProgress(0, 1)
		doc, err := p.consolidate(ctx, masterChunkPrompt, strings.Join(texts, "\n\n---\n\n"))
		if err != nil {
			return err
		}
		p.notifier.MasterMemoryProgress(1, 1)
		return p.store.SetMasterMemory(doc)
	}

	chunks := chunkSummaries(texts, chunkSizeLimit)
	totalSteps := len(chunks) + 1

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		p.notifier.MasterMemoryProgress(i, totalSteps)
		partial, err := p.consolidate(ctx, masterChunkPrompt, strings.Join(chunk, "\n\n---\n\n"))
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, partial)
	}

	p.notifier.MasterMemoryProgress(len(chunks), totalSteps)
	doc, err := p.consolidate(ctx, masterReducePrompt, strings.Join(partials, "\n\n===\n\n"))
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}
	p.notifier.MasterMemoryProgress(totalSteps, totalSteps)

	return p.store.SetMasterMemory(doc)
}

func (p *Pipeline) consolidate(ctx context.Context, promptTemplate, input string) (string, error) {
	out, err := p.summarizer.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: fmt.Sprintf(promptTemplate, input)}}, llm.CallOptions{
		Timeout: p.cfg.ConsolidateTimeout,
		Label:   "master memory regeneration",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// chunkSummaries greedily packs whole summaries into chunks of at most
// limit characters. A summary is never split; one larger than the limit
// becomes its own chunk.
func chunkSummaries(texts []string, limit int) [][]string {
	var chunks [][]string
	var current []string
	size := 0

	for _, t := range texts {
		if len(current) > 0 && size+len(t) > limit {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, t)
		size += len(t)
	}

	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return chunks
}
