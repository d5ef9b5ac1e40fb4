// Package retrieval implements the hybrid lexical + semantic search that
// assembles knowledge-base context for answering questions.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bowerhall/recall/internal/embedder"
	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/store"
)

const (
	memoryLimit  = 12
	messageLimit = 12
	summaryLimit = 8
	entityLimit  = 8
	factLimit    = 8

	minSimilarity = 0.2

	maxLinesPerSource = 6
	memoryClip        = 500
	messageClip       = 400
	summaryClip       = 600
	entityClip        = 400
	factClip          = 400

	defaultAnswerTimeout = 2 * time.Minute
)

type Engine struct {
	store         *store.Store
	model         llm.LLM
	embedder      embedder.Embedder
	answerTimeout time.Duration
}

// New builds a retrieval engine. emb may be nil, in which case vector search
// is skipped and memories are searched lexically.
func New(s *store.Store, model llm.LLM, emb embedder.Embedder) *Engine {
	return &Engine{
		store:         s,
		model:         model,
		embedder:      emb,
		answerTimeout: defaultAnswerTimeout,
	}
}

// ScoredMemory is a memory matched by vector similarity. Similarity is 0
// for lexical fallback matches.
type ScoredMemory struct {
	*store.Memory
	Similarity float64
}

// Result carries the answer plus the full unclipped result sets from every
// source, for citation and inspection.
type Result struct {
	Answer       string
	Memories     []ScoredMemory
	Messages     []*store.MessageHit
	Summaries    []*store.SummaryHit
	Entities     []*store.EntityHit
	Facts        []*store.FactHit
	MasterMemory string
}

func (r *Result) empty() bool {
	return len(r.Memories) == 0 && len(r.Messages) == 0 &&
		len(r.Summaries) == 0 && len(r.Entities) == 0 && len(r.Facts) == 0
}

// Search fans the query out to vector similarity over memories plus four
// full-text searches, without calling the model.
func (e *Engine) Search(ctx context.Context, query, appName string) *Result {
	tokens := tokenize(query)
	match := matchExpr(query, tokens)
	result := &Result{}

	// each goroutine writes a distinct field, so no lock is needed
	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		memories, err := e.vectorSearch(ctx, query, appName)
		if err != nil {
			logger.Debug("vector search unavailable, falling back to fts", "error", err)
			memories = e.lexicalMemories(match, appName)
		}
		result.Memories = memories
	}()
	go func() {
		defer wg.Done()
		hits, err := e.store.SearchMessages(match, appName, messageLimit)
		if err != nil {
			logger.Warn("message search failed", "error", err)
			return
		}
		result.Messages = hits
	}()
	go func() {
		defer wg.Done()
		hits, err := e.store.SearchSummaries(match, appName, summaryLimit)
		if err != nil {
			logger.Warn("summary search failed", "error", err)
			return
		}
		result.Summaries = hits
	}()
	go func() {
		defer wg.Done()
		hits, err := e.store.SearchEntities(match, appName, entityLimit)
		if err != nil {
			logger.Warn("entity search failed", "error", err)
			return
		}
		result.Entities = hits
	}()
	go func() {
		defer wg.Done()
		hits, err := e.store.SearchEntityFacts(match, appName, factLimit)
		if err != nil {
			logger.Warn("fact search failed", "error", err)
			return
		}
		result.Facts = hits
	}()

	wg.Wait()

	master, err := e.store.GetMasterMemory()
	if err != nil {
		logger.Warn("master memory lookup failed", "error", err)
		master = ""
	}
	if masterRelevant(master, tokens) || (result.empty() && master != "") {
		result.MasterMemory = master
	}

	return result
}

// Answer runs Search and feeds the assembled context to the model along
// with any prior chat turns.
func (e *Engine) Answer(ctx context.Context, query, appName string, history []llm.Message) (*Result, error) {
	result := e.Search(ctx, query, appName)

	prompt := buildContext(result)
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("Context from the knowledge base:\n\n%s\n\nQuestion: %s", prompt, query),
	})

	answer, err := e.model.ChatWithOptions(ctx, answerSystemPrompt, messages, llm.CallOptions{
		Timeout: e.answerTimeout,
		Label:   "recall answer",
	})
	if err != nil {
		return result, fmt.Errorf("answer: %w", err)
	}

	result.Answer = strings.TrimSpace(answer)
	return result, nil
}

const answerSystemPrompt = `You are a recall assistant over a personal knowledge base built from the user's own conversations. Answer the question using only the provided context. If the context does not contain the answer, say so plainly instead of guessing. Be concise. When it helps, mention which conversation or entity the information came from.`

func (e *Engine) vectorSearch(ctx context.Context, query, appName string) ([]ScoredMemory, error) {
	if e.embedder == nil {
		return nil, errors.New("no embedder configured")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	memories, err := e.store.ListMemoriesWithVectors(appName)
	if err != nil {
		return nil, err
	}

	var scored []ScoredMemory
	for _, m := range memories {
		sim := cosineSimilarity(queryVec, parseVector(m.Embedding))
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, ScoredMemory{Memory: m, Similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > memoryLimit {
		scored = scored[:memoryLimit]
	}

	return scored, nil
}

func (e *Engine) lexicalMemories(match, appName string) []ScoredMemory {
	hits, err := e.store.SearchMemories(match, appName, memoryLimit)
	if err != nil {
		logger.Warn("memory search failed", "error", err)
		return nil
	}

	scored := make([]ScoredMemory, 0, len(hits))
	for _, h := range hits {
		m := h.Memory
		scored = append(scored, ScoredMemory{Memory: &m})
	}

	return scored
}

// masterRelevant reports whether any query token appears in the master
// memory document.
func masterRelevant(master string, tokens []string) bool {
	if master == "" {
		return false
	}

	lower := strings.ToLower(master)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}

	return false
}

func buildContext(r *Result) string {
	var b strings.Builder

	if r.MasterMemory != "" {
		b.WriteString("## About the user\n")
		b.WriteString(r.MasterMemory)
		b.WriteString("\n\n")
	}

	if len(r.Memories) > 0 {
		b.WriteString("## Memories\n")
		for i, m := range r.Memories {
			if i == maxLinesPerSource {
				break
			}
			line := m.Content
			if m.Name != "" {
				line = m.Name + ": " + line
			}
			fmt.Fprintf(&b, "- %s\n", clip(line, memoryClip))
		}
		b.WriteString("\n")
	}

	if len(r.Messages) > 0 {
		b.WriteString("## Conversation excerpts\n")
		for i, m := range r.Messages {
			if i == maxLinesPerSource {
				break
			}
			fmt.Fprintf(&b, "- [%s / %s] %s: %s\n", m.AppName, m.Title, m.Role, clip(m.Message.Content, messageClip))
		}
		b.WriteString("\n")
	}

	if len(r.Summaries) > 0 {
		b.WriteString("## Conversation summaries\n")
		for i, s := range r.Summaries {
			if i == maxLinesPerSource {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", s.SessionID, clip(s.Summary, summaryClip))
		}
		b.WriteString("\n")
	}

	if len(r.Entities) > 0 {
		b.WriteString("## Entities\n")
		for i, e := range r.Entities {
			if i == maxLinesPerSource {
				break
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Type, clip(e.Summary, entityClip))
		}
		b.WriteString("\n")
	}

	if len(r.Facts) > 0 {
		b.WriteString("## Facts\n")
		for i, f := range r.Facts {
			if i == maxLinesPerSource {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", f.EntityName, clip(f.Fact, factClip))
		}
		b.WriteString("\n")
	}

	ctx := strings.TrimSpace(b.String())
	if ctx == "" {
		return "(no matching context found)"
	}

	return ctx
}

func clip(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}

	return string(runes[:budget]) + "..."
}
