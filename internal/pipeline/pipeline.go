// Package pipeline turns deduplicated conversation captures into durable
// memories, entities, a co-occurrence graph, and layered summaries.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bowerhall/recall/internal/capture"
	"github.com/bowerhall/recall/internal/embedder"
	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/store"
)

// Archiver persists raw captures outside the relational store. Failures are
// logged, never fatal.
type Archiver interface {
	StoreCapture(ctx context.Context, c capture.Capture) error
}

// Config carries strictness and the per-call-type model timeouts: short for
// classification and extraction, long for summarization, very long for
// master-memory batch merges.
type Config struct {
	Strictness string // lenient | balanced | strict

	ClassifyTimeout    time.Duration
	ExtractTimeout     time.Duration
	SummarizeTimeout   time.Duration
	ConsolidateTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Strictness == "" {
		c.Strictness = "balanced"
	}
	if c.ClassifyTimeout == 0 {
		c.ClassifyTimeout = 30 * time.Second
	}
	if c.ExtractTimeout == 0 {
		c.ExtractTimeout = 45 * time.Second
	}
	if c.SummarizeTimeout == 0 {
		c.SummarizeTimeout = 2 * time.Minute
	}
	if c.ConsolidateTimeout == 0 {
		c.ConsolidateTimeout = 5 * time.Minute
	}
}

type Pipeline struct {
	store      *store.Store
	classifier llm.LLM
	summarizer llm.LLM
	embedder   embedder.Embedder
	notifier   Notifier
	archiver   Archiver
	cfg        Config
}

// New builds a pipeline. classifier handles the cheap high-volume calls
// (memory gating, entity extraction); summarizer handles the long-form
// calls. They may be the same model. emb and archiver may be nil.
func New(s *store.Store, classifier, summarizer llm.LLM, emb embedder.Embedder, notifier Notifier, archiver Archiver, cfg Config) *Pipeline {
	cfg.applyDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Pipeline{
		store:      s,
		classifier: classifier,
		summarizer: summarizer,
		embedder:   emb,
		notifier:   notifier,
		archiver:   archiver,
		cfg:        cfg,
	}
}

// HandleCapture ingests one full-window snapshot: upserts the conversation,
// appends only the genuinely new turns, and kicks off memory evaluation and
// summarization in the background. Returns the number of inserted messages;
// the capture path itself never waits on a model call.
func (p *Pipeline) HandleCapture(ctx context.Context, c capture.Capture, parsed []store.NewMessage) (int, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	sessionID := capture.DeriveSessionID(c.AppName, c.Title)
	appName := strings.ToLower(strings.TrimSpace(c.AppName))

	if err := p.store.UpsertConversation(sessionID, strings.TrimSpace(c.Title), appName); err != nil {
		return 0, err
	}

	stored, err := p.store.GetMessages(sessionID)
	if err != nil {
		return 0, err
	}

	fresh := capture.NewSuffix(stored, parsed)
	if len(fresh) == 0 {
		return 0, nil
	}

	ids, err := p.store.InsertMessages(sessionID, fresh)
	if err != nil {
		return 0, err
	}

	logger.Info("capture ingested", "session", sessionID, "new_messages", len(ids))
	p.notifier.NewMessages(sessionID, len(ids))

	if p.archiver != nil {
		go func() {
			if err := p.archiver.StoreCapture(context.Background(), c); err != nil {
				logger.Warn("capture archive failed", "capture", c.ID, "error", err)
			}
		}()
	}

	go p.processBatch(context.Background(), sessionID, appName, ids, fresh)

	return len(ids), nil
}

// processBatch evaluates every newly inserted message for memory-worthiness
// concurrently, then summarizes the session once per batch. Classifier calls
// target distinct messages and memory writes are idempotent, so completion
// order does not matter.
func (p *Pipeline) processBatch(ctx context.Context, sessionID, appName string, ids []int64, msgs []store.NewMessage) {
	var wg sync.WaitGroup
	for i := range msgs {
		wg.Add(1)
		go func(messageID int64, m store.NewMessage) {
			defer wg.Done()
			if _, err := p.EvaluateMessage(ctx, sessionID, appName, messageID, m.Role, m.Content); err != nil {
				logger.Error("memory evaluation failed", "session", sessionID, "message", messageID, "error", err)
			}
		}(ids[i], msgs[i])
	}
	wg.Wait()

	if err := p.SummarizeSession(ctx, sessionID); err != nil {
		logger.Error("session summarization failed", "session", sessionID, "error", err)
	}
}
