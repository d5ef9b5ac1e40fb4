package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bowerhall/recall/internal/archive"
	"github.com/bowerhall/recall/internal/bot"
	"github.com/bowerhall/recall/internal/config"
	"github.com/bowerhall/recall/internal/embedder"
	"github.com/bowerhall/recall/internal/intake"
	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/pipeline"
	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/schedule"
	"github.com/bowerhall/recall/internal/status"
	"github.com/bowerhall/recall/internal/store"
)

func init() {
	godotenv.Load()
}

// healthCheck verifies the pieces everything else depends on. Failures here
// must block startup, not silently no-op later.
func healthCheck(st *store.Store, classifier llm.LLM) error {
	if _, err := st.Stats(); err != nil {
		return fmt.Errorf("store check failed: %w", err)
	}
	logger.Debug("health check", "component", "store", "status", "ok")

	if _, err := st.GetMasterMemory(); err != nil {
		return fmt.Errorf("master memory row missing: %w", err)
	}
	logger.Debug("health check", "component", "master_memory", "status", "ok")

	if classifier == nil {
		return fmt.Errorf("no classifier model configured")
	}

	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	classifier, err := llm.New(cfg.Classifier)
	if err != nil {
		logger.Fatal("failed to create classifier model", "error", err)
	}
	summarizer, err := llm.New(cfg.Summarizer)
	if err != nil {
		logger.Fatal("failed to create summarizer model", "error", err)
	}
	answerer, err := llm.New(cfg.Answerer)
	if err != nil {
		logger.Fatal("failed to create answerer model", "error", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", "error", err)
	}
	defer st.Close()

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		logger.Fatal("failed to create embedder", "error", err)
	}
	if emb != nil {
		logger.Debug("embedder configured", "provider", cfg.Embedder.Provider)
	}

	if err := healthCheck(st, classifier); err != nil {
		logger.Fatal("health check failed", "error", err)
	}

	// raw capture archive (optional)
	var archiver pipeline.Archiver
	if cfg.Archive.Enabled {
		client, err := archive.NewClient(cfg.Archive)
		if err != nil {
			logger.Error("failed to create archive client", "error", err)
		} else {
			initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := client.Init(initCtx); err != nil {
				logger.Error("failed to init archive bucket", "error", err)
			} else {
				archiver = client
				logger.Info("archive enabled", "endpoint", cfg.Archive.Endpoint)
			}
			cancel()
		}
	}

	engine := retrieval.New(st, answerer, emb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// bots first so the pipeline notifier can reach them
	var notifiers pipeline.MultiNotifier
	var bots []bot.Bot
	for _, bc := range cfg.Bots {
		b, err := bot.New(bc, engine, st)
		if err != nil {
			logger.Error("failed to create bot", "provider", bc.Provider, "error", err)
			continue
		}
		bots = append(bots, b)
		if bc.NotifyChat != "" {
			notifiers = append(notifiers, bot.NewEventNotifier(b, bc.NotifyChat))
		}
		logger.Info("bot enabled", "provider", bc.Provider)
	}

	pipe := pipeline.New(st, classifier, summarizer, emb, notifiers, archiver, pipeline.Config{
		Strictness:         cfg.Strictness,
		ClassifyTimeout:    cfg.Timeouts.Classify,
		ExtractTimeout:     cfg.Timeouts.Extract,
		SummarizeTimeout:   cfg.Timeouts.Summarize,
		ConsolidateTimeout: cfg.Timeouts.Consolidate,
	})

	sched, err := schedule.New(cfg.Timezone)
	if err != nil {
		logger.Fatal("failed to create scheduler", "error", err)
	}
	if err := sched.Add(cfg.Schedule.MasterCron, "master-memory-regeneration", func() error {
		return pipe.RegenerateMasterMemory(ctx)
	}); err != nil {
		logger.Fatal("failed to schedule master regeneration", "error", err)
	}
	if err := sched.Add(cfg.Schedule.ReindexCron, "search-index-rebuild", func() error {
		return st.RebuildSearchIndex()
	}); err != nil {
		logger.Fatal("failed to schedule index rebuild", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	server := intake.NewServer(cfg.ListenAddr, pipe, engine, st)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("intake server failed", "error", err)
		}
	}()

	for _, b := range bots {
		go func(b bot.Bot) {
			if err := b.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("bot stopped", "error", err)
			}
		}(b)
	}

	report := status.Collect(st)
	logger.Info("recalld started",
		"db", cfg.DBPath,
		"listen", cfg.ListenAddr,
		"strictness", cfg.Strictness,
		"conversations", report.Stats.Conversations,
		"memories", report.Stats.Memories,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()
	if err := server.Shutdown(5 * time.Second); err != nil {
		logger.Error("intake shutdown failed", "error", err)
	}
}
