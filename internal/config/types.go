package config

import (
	"time"

	"github.com/bowerhall/recall/internal/archive"
	"github.com/bowerhall/recall/internal/bot"
	"github.com/bowerhall/recall/internal/embedder"
	"github.com/bowerhall/recall/internal/llm"
)

type Config struct {
	DBPath     string
	ListenAddr string
	Timezone   string
	Strictness string

	// three model roles: cheap high-volume classification/extraction,
	// long-form summarization, and retrieval answering
	Classifier llm.Config
	Summarizer llm.Config
	Answerer   llm.Config

	Embedder embedder.Config
	Bots     []bot.Config
	Archive  archive.Config
	Schedule ScheduleConfig
	Timeouts TimeoutConfig
}

type ScheduleConfig struct {
	MasterCron  string `yaml:"master"`
	ReindexCron string `yaml:"reindex"`
}

type TimeoutConfig struct {
	Classify    time.Duration
	Extract     time.Duration
	Summarize   time.Duration
	Consolidate time.Duration
}

// fileConfig is the optional yaml overlay (RECALL_CONFIG). Secrets stay in
// the environment; the file only carries tuning knobs.
type fileConfig struct {
	Strictness string         `yaml:"strictness"`
	Timezone   string         `yaml:"timezone"`
	DBPath     string         `yaml:"db_path"`
	Listen     string         `yaml:"listen"`
	Schedule   ScheduleConfig `yaml:"schedule"`
}
