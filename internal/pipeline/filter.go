package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/store"
)

const (
	minUserLength      = 30
	minAssistantLength = 50
	minMemoryWords     = 4
	maxMemoryLength    = 280
)

// greetings and bare acknowledgements are rejected before any model call.
var greetings = []string{
	"hi", "hello", "hey", "yo", "thanks", "thank you", "thx", "ok", "okay",
	"yes", "no", "yep", "nope", "sure", "got it", "sounds good", "great",
	"cool", "nice", "perfect", "bye", "goodbye", "good morning",
	"good night", "see you", "lol", "haha",
}

// genericPatterns reject classifier output that describes the conversation
// instead of stating something about the user.
var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^the user (asked|asks|wants to know|is asking|requested)`),
	regexp.MustCompile(`(?i)^this is a common`),
	regexp.MustCompile(`(?i)^(a|the) (conversation|discussion|chat) (about|regarding|on)`),
	regexp.MustCompile(`(?i)^(no|nothing) (specific|notable|important)`),
	regexp.MustCompile(`(?i)^the assistant (explained|answered|responded|provided)`),
}

const classifyPrompt = `You decide whether one chat message contains something worth storing in a long-term personal knowledge base about the user: preferences, decisions, facts about their life and work, projects, people, tools, plans.

%s

Message (%s): %s

Return JSON only, no explanation:
{"store": true/false, "name": "2-4 word label", "memory": "one self-contained factual statement, third person"}

If there is nothing worth storing, return {"store": false}.`

var strictnessCriteria = map[string]string{
	"lenient":  "Err on the side of storing. Anything that could plausibly matter later qualifies, including mild preferences and passing mentions of tools or people.",
	"balanced": "Store clear preferences, decisions, and durable facts. Skip small talk, one-off questions, and anything that will be stale within a week.",
	"strict":   "Store only explicit, durable facts and decisions the user stated about themselves or their work. When in doubt, do not store.",
}

type classification struct {
	Store  bool   `json:"store"`
	Name   string `json:"name"`
	Memory string `json:"memory"`
}

// shouldEvaluate applies the cheap pre-filters so trivial content never
// reaches the classifier.
func shouldEvaluate(role, content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	normalized := strings.ToLower(strings.Trim(trimmed, ".,!?"))
	for _, g := range greetings {
		if normalized == g {
			return false
		}
	}

	min := minUserLength
	if role == "assistant" {
		min = minAssistantLength
	}

	return len(trimmed) >= min
}

// EvaluateMessage runs one message through the memory filter. Returns the
// stored memory, or nil when the message was rejected at any gate. Already-
// evaluated messages are a no-op thanks to idempotent insertion.
func (p *Pipeline) EvaluateMessage(ctx context.Context, sessionID, appName string, messageID int64, role, content string) (*store.Memory, error) {
	if !shouldEvaluate(role, content) {
		return nil, nil
	}

	criteria := strictnessCriteria[p.cfg.Strictness]
	if criteria == "" {
		criteria = strictnessCriteria["balanced"]
	}
	prompt := fmt.Sprintf(classifyPrompt, criteria, role, content)

	response, err := p.classifier.ChatWithOptions(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, llm.CallOptions{
		Timeout: p.cfg.ClassifyTimeout,
		Label:   "memory classification",
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	result := parseClassification(response)
	if !result.Store {
		return nil, nil
	}

	memory := strings.TrimSpace(result.Memory)
	if !acceptMemory(memory) {
		logger.Debug("memory rejected by post-filter", "session", sessionID, "memory", memory)
		return nil, nil
	}

	dup, err := p.nearDuplicate(sessionID, memory)
	if err != nil {
		return nil, err
	}
	if dup {
		logger.Debug("memory rejected as near-duplicate", "session", sessionID, "memory", memory)
		return nil, nil
	}

	// embedding failure degrades to the no-vector sentinel, never blocks
	// the write
	embedding := ""
	if p.embedder != nil {
		if vec, err := p.embedder.Embed(ctx, memory); err != nil {
			logger.Warn("embedding failed, storing without vector", "error", err)
		} else if encoded, err := json.Marshal(vec); err == nil {
			embedding = string(encoded)
		}
	}

	stored, inserted, err := p.store.InsertMemory(store.InsertMemoryParams{
		Content:   memory,
		Name:      strings.TrimSpace(result.Name),
		RawText:   content,
		SourceApp: appName,
		SessionID: sessionID,
		MessageID: &messageID,
		Embedding: embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	if inserted {
		logger.Info("memory stored", "session", sessionID, "name", stored.Name)
		p.notifier.NewMemory(stored)
	}

	return stored, nil
}

func acceptMemory(memory string) bool {
	if memory == "" {
		return false
	}
	if len(strings.Fields(memory)) < minMemoryWords {
		return false
	}
	if len(memory) > maxMemoryLength {
		return false
	}
	for _, p := range genericPatterns {
		if p.MatchString(memory) {
			return false
		}
	}
	return true
}

// nearDuplicate reports whether an existing memory in the session contains
// the candidate, or vice versa, case-insensitively.
func (p *Pipeline) nearDuplicate(sessionID, memory string) (bool, error) {
	existing, err := p.store.ListMemoriesBySession(sessionID)
	if err != nil {
		return false, err
	}

	lower := strings.ToLower(memory)
	for _, m := range existing {
		other := strings.ToLower(m.Content)
		if strings.Contains(other, lower) || strings.Contains(lower, other) {
			return true, nil
		}
	}

	return false, nil
}

// parseClassification reads the classifier's JSON output. Code fences are
// stripped, the outermost object extracted, and anything unparseable is
// treated as "do not store".
func parseClassification(response string) classification {
	response = stripCodeFences(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return classification{}
	}

	var c classification
	if err := json.Unmarshal([]byte(response[start:end+1]), &c); err != nil {
		logger.Debug("classifier returned malformed json", "response", response)
		return classification{}
	}

	return c
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
