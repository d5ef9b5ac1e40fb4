package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
)

const minEntityNameLength = 3

// entityBlocklist drops generic terms the extractor keeps proposing as
// entities.
var entityBlocklist = map[string]bool{
	"api": true, "server": true, "user": true, "client": true, "app": true,
	"application": true, "system": true, "data": true, "code": true,
	"file": true, "website": true, "internet": true, "computer": true,
	"software": true, "program": true, "tool": true, "message": true,
	"chat": true, "assistant": true, "model": true, "email": true,
	"thing": true, "stuff": true,
}

const extractEntitiesPrompt = `You extract named entities from a set of personal memories. Entities are specific people, projects, organizations, technologies, places, or products — not generic concepts.

%s

Memories from one conversation:
%s

Return a JSON array, no explanation. Each entry:
{"name": "entity name", "type": "Person|Project|Organization|Technology|Place|Product|Concept", "facts": ["short factual statement about this entity from the memories"]}

Only include facts actually supported by the memories. If none, return [].`

const entitySummaryPrompt = `You maintain a one-paragraph running summary of what is known about "%s" (%s).

Current summary:
%s

New facts:
%s

Rewrite the summary to incorporate the new facts. Keep everything from the current summary that is not contradicted. Third person, plain prose, no preamble.`

type extractedEntity struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Facts []string `json:"facts"`
}

// ExtractSession runs entity extraction over all memories of one session:
// upserts entities, records provenance, appends novel facts, rewrites the
// running summary of each entity that gained facts, and rebuilds the
// session's co-occurrence edges.
func (p *Pipeline) ExtractSession(ctx context.Context, sessionID string) error {
	memories, err := p.store.ListMemoriesBySession(sessionID)
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		return nil
	}

	var lines []string
	for _, m := range memories {
		lines = append(lines, "- "+m.Content)
	}

	criteria := strictnessCriteria[p.cfg.Strictness]
	prompt := fmt.Sprintf(extractEntitiesPrompt, criteria, strings.Join(lines, "\n"))

	response, err := p.classifier.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, llm.CallOptions{
		Timeout: p.cfg.ExtractTimeout,
		Label:   "entity extraction",
	})
	if err != nil {
		return fmt.Errorf("extract entities: %w", err)
	}

	extracted := parseExtractedEntities(response)
	touched := 0

	for _, ent := range extracted {
		name := strings.TrimSpace(ent.Name)
		if len(name) < minEntityNameLength || entityBlocklist[strings.ToLower(name)] {
			continue
		}
		if len(ent.Facts) == 0 {
			continue
		}

		existing, err := p.store.FindEntity(name, ent.Type)
		if err != nil {
			logger.Error("entity lookup failed", "entity", name, "error", err)
			continue
		}

		entity, err := p.store.UpsertEntity(name, ent.Type)
		if err != nil {
			logger.Error("entity upsert failed", "entity", name, "error", err)
			continue
		}
		if existing == nil {
			p.notifier.NewEntity(entity)
		}

		if err := p.store.AddEntitySession(entity.ID, sessionID); err != nil {
			logger.Error("entity session link failed", "entity", name, "error", err)
		}

		var newFacts []string
		for _, fact := range ent.Facts {
			fact = strings.TrimSpace(fact)
			if fact == "" {
				continue
			}
			inserted, err := p.store.AddEntityFact(entity.ID, fact, sessionID)
			if err != nil {
				logger.Error("fact insert failed", "entity", name, "error", err)
				continue
			}
			if inserted {
				newFacts = append(newFacts, fact)
			}
		}

		if len(newFacts) > 0 {
			if err := p.rewriteEntitySummary(ctx, entity.ID, name, ent.Type, newFacts); err != nil {
				logger.Error("entity summary rewrite failed", "entity", name, "error", err)
			}
		}

		touched++
	}

	if touched > 1 {
		if err := p.rebuildSessionEdges(sessionID); err != nil {
			return fmt.Errorf("rebuild session edges: %w", err)
		}
	}

	return nil
}

// rewriteEntitySummary feeds the model the prior summary plus only the new
// facts. The summary, not the full fact history, carries forward, so the
// prompt stays bounded no matter how many facts accumulate.
func (p *Pipeline) rewriteEntitySummary(ctx context.Context, entityID int64, name, entityType string, newFacts []string) error {
	entity, err := p.store.GetEntity(entityID)
	if err != nil {
		return err
	}

	current := entity.Summary
	if current == "" {
		current = "(nothing yet)"
	}

	var facts []string
	for _, f := range newFacts {
		facts = append(facts, "- "+f)
	}

	prompt := fmt.Sprintf(entitySummaryPrompt, name, entityType, current, strings.Join(facts, "\n"))
	summary, err := p.classifier.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, llm.CallOptions{
		Timeout: p.cfg.ExtractTimeout,
		Label:   "entity summary",
	})
	if err != nil {
		return err
	}

	return p.store.UpdateEntitySummary(entityID, strings.TrimSpace(summary))
}

// edgeWeight maps evidence count to a weight in (0, 1), monotonically
// non-decreasing: 1 piece of evidence → 0.5, 2 → 0.667, 3 → 0.75, ...
func edgeWeight(evidenceCount int) float64 {
	return 1 - 1/(1+float64(evidenceCount))
}

// rebuildSessionEdges upserts a cooccurrence edge for every pair of entities
// mentioned in the session, bumping evidence and recomputing weight.
func (p *Pipeline) rebuildSessionEdges(sessionID string) error {
	entities, err := p.store.GetSessionEntities(sessionID)
	if err != nil {
		return err
	}
	if len(entities) < 2 {
		return nil
	}

	ids := make([]int64, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := p.bumpCooccurrence(ids[i], ids[j], sessionID); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Pipeline) bumpCooccurrence(sourceID, targetID int64, sessionID string) error {
	evidence := 1
	edge, err := p.store.GetEdge(sourceID, targetID, "cooccurrence")
	if err != nil {
		return err
	}
	if edge != nil {
		evidence = edge.EvidenceCount + 1
	}

	return p.store.BumpEdge(sourceID, targetID, "cooccurrence", edgeWeight(evidence), sessionID)
}

// RebuildGraph drops every edge and re-derives the whole co-occurrence
// graph from entity_sessions. Deterministic: running it twice yields
// identical weights. Used after bulk reprocessing.
func (p *Pipeline) RebuildGraph() error {
	if err := p.store.ClearEdges(); err != nil {
		return err
	}

	sessions, err := p.store.ListEntitySessions()
	if err != nil {
		return err
	}

	sessionIDs := make([]string, 0, len(sessions))
	for id := range sessions {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	for _, sessionID := range sessionIDs {
		ids := append([]int64(nil), sessions[sessionID]...)
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if err := p.bumpCooccurrence(ids[i], ids[j], sessionID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func parseExtractedEntities(response string) []extractedEntity {
	response = stripCodeFences(response)

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil
	}

	var entities []extractedEntity
	if err := json.Unmarshal([]byte(response[start:end+1]), &entities); err != nil {
		logger.Debug("extractor returned malformed json", "response", response)
		return nil
	}

	return entities
}
