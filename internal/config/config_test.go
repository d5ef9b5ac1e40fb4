package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DBPath != "recall.db" {
		t.Errorf("unexpected db path: %s", cfg.DBPath)
	}
	if cfg.Strictness != "balanced" {
		t.Errorf("unexpected strictness: %s", cfg.Strictness)
	}
	if cfg.Classifier.Provider != "ollama" {
		t.Errorf("unexpected classifier provider: %s", cfg.Classifier.Provider)
	}
	if len(cfg.Bots) != 0 {
		t.Errorf("expected no bots without tokens, got %d", len(cfg.Bots))
	}
	if cfg.Archive.Enabled {
		t.Error("archive must be disabled without credentials")
	}
}

func TestLoadRolePrefixOverridesShared(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("SUMMARIZER_PROVIDER", "claude")
	t.Setenv("SUMMARIZER_API_KEY", "sk-test")
	t.Setenv("SUMMARIZER_MODEL", "claude-sonnet-4-20250514")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Classifier.Provider != "ollama" {
		t.Errorf("classifier should fall back to shared provider, got %s", cfg.Classifier.Provider)
	}
	if cfg.Summarizer.Provider != "claude" || cfg.Summarizer.APIKey != "sk-test" {
		t.Errorf("summarizer override not applied: %+v", cfg.Summarizer)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing ANTHROPIC_API_KEY")
	}
}

func TestLoadInvalidStrictness(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("RECALL_STRICTNESS", "paranoid")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid strictness")
	}
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yml")
	data := "strictness: strict\ndb_path: /data/kb.db\nschedule:\n  master: \"30 3 * * *\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("RECALL_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Strictness != "strict" {
		t.Errorf("file strictness not applied: %s", cfg.Strictness)
	}
	if cfg.DBPath != "/data/kb.db" {
		t.Errorf("file db path not applied: %s", cfg.DBPath)
	}
	if cfg.Schedule.MasterCron != "30 3 * * *" {
		t.Errorf("file schedule not applied: %s", cfg.Schedule.MasterCron)
	}
	// unset file fields keep their defaults
	if cfg.Schedule.ReindexCron != "0 5 * * 0" {
		t.Errorf("default reindex cron lost: %s", cfg.Schedule.ReindexCron)
	}
}

func TestEnvTimeouts(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("RECALL_SUMMARIZE_TIMEOUT", "3m")
	t.Setenv("RECALL_CLASSIFY_TIMEOUT", "garbage")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Timeouts.Summarize != 3*time.Minute {
		t.Errorf("unexpected summarize timeout: %v", cfg.Timeouts.Summarize)
	}
	if cfg.Timeouts.Classify != 0 {
		t.Errorf("malformed timeout should read as zero, got %v", cfg.Timeouts.Classify)
	}
}
