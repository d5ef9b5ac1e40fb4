package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bowerhall/recall/internal/archive"
	"github.com/bowerhall/recall/internal/bot"
	"github.com/bowerhall/recall/internal/embedder"
	"github.com/bowerhall/recall/internal/llm"
)

func Load() (*Config, error) {
	cfg := &Config{
		DBPath:     "recall.db",
		ListenAddr: "127.0.0.1:7411",
		Timezone:   "UTC",
		Strictness: "balanced",
		Schedule: ScheduleConfig{
			MasterCron:  "0 4 * * *", // nightly full regeneration
			ReindexCron: "0 5 * * 0", // weekly fts rebuild
		},
	}

	if err := applyFileConfig(cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("RECALL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RECALL_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TZ"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("RECALL_STRICTNESS"); v != "" {
		cfg.Strictness = v
	}
	switch cfg.Strictness {
	case "lenient", "balanced", "strict":
	default:
		return nil, fmt.Errorf("invalid RECALL_STRICTNESS: %s", cfg.Strictness)
	}

	var err error
	if cfg.Classifier, err = loadModelConfig("CLASSIFIER"); err != nil {
		return nil, err
	}
	if cfg.Summarizer, err = loadModelConfig("SUMMARIZER"); err != nil {
		return nil, err
	}
	if cfg.Answerer, err = loadModelConfig("ANSWERER"); err != nil {
		return nil, err
	}

	cfg.Embedder = embedder.Config{
		Provider: os.Getenv("EMBEDDER_PROVIDER"),
		BaseURL:  os.Getenv("EMBEDDER_URL"),
		Model:    os.Getenv("EMBEDDER_MODEL"),
	}

	cfg.Bots = loadBotConfigs()
	cfg.Archive = loadArchiveConfig()
	cfg.Timeouts = loadTimeoutConfig()

	return cfg, nil
}

func applyFileConfig(cfg *Config) error {
	path := os.Getenv("RECALL_CONFIG")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Strictness != "" {
		cfg.Strictness = fc.Strictness
	}
	if fc.Timezone != "" {
		cfg.Timezone = fc.Timezone
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.Listen != "" {
		cfg.ListenAddr = fc.Listen
	}
	if fc.Schedule.MasterCron != "" {
		cfg.Schedule.MasterCron = fc.Schedule.MasterCron
	}
	if fc.Schedule.ReindexCron != "" {
		cfg.Schedule.ReindexCron = fc.Schedule.ReindexCron
	}

	return nil
}

// loadModelConfig reads one model role's settings, falling back to the
// shared LLM_* variables so a single-model setup needs only LLM_PROVIDER.
func loadModelConfig(prefix string) (llm.Config, error) {
	provider := os.Getenv(prefix + "_PROVIDER")
	if provider == "" {
		provider = os.Getenv("LLM_PROVIDER")
	}
	if provider == "" {
		provider = "claude"
	}
	if !llm.IsKnownProvider(provider) {
		return llm.Config{}, fmt.Errorf("unknown provider for %s: %s", prefix, provider)
	}

	apiKey, err := getAPIKey(provider, prefix)
	if err != nil {
		return llm.Config{}, err
	}

	model := os.Getenv(prefix + "_MODEL")
	if model == "" {
		model = os.Getenv("LLM_MODEL")
	}

	return llm.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    model,
		BaseURL:  os.Getenv(prefix + "_BASE_URL"),
	}, nil
}

func getAPIKey(provider, prefix string) (string, error) {
	if key := os.Getenv(prefix + "_API_KEY"); key != "" {
		return key, nil
	}

	var envKey string
	switch provider {
	case "ollama":
		return "", nil
	case "claude":
		envKey = "ANTHROPIC_API_KEY"
	case "openai":
		envKey = "OPENAI_API_KEY"
	case "kimi":
		envKey = "KIMI_API_KEY"
	default:
		envKey = strings.ToUpper(provider) + "_API_KEY"
	}

	key := os.Getenv(envKey)
	if key == "" {
		return "", fmt.Errorf("%s not set", envKey)
	}

	return key, nil
}

// loadBotConfigs enables each bot whose token is present. No bots is fine;
// the pipeline runs headless.
func loadBotConfigs() []bot.Config {
	var bots []bot.Config

	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		ownerChatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_OWNER_CHAT_ID"), 10, 64)
		bots = append(bots, bot.Config{
			Provider:    "telegram",
			Token:       token,
			OwnerChatID: ownerChatID,
			NotifyChat:  os.Getenv("TELEGRAM_NOTIFY_CHAT"),
		})
	}

	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		bots = append(bots, bot.Config{
			Provider:   "discord",
			Token:      token,
			NotifyChat: os.Getenv("DISCORD_NOTIFY_CHANNEL"),
		})
	}

	return bots
}

func loadArchiveConfig() archive.Config {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return archive.Config{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
}

func loadTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Classify:    envDuration("RECALL_CLASSIFY_TIMEOUT"),
		Extract:     envDuration("RECALL_EXTRACT_TIMEOUT"),
		Summarize:   envDuration("RECALL_SUMMARIZE_TIMEOUT"),
		Consolidate: envDuration("RECALL_CONSOLIDATE_TIMEOUT"),
	}
}

// envDuration returns 0 for unset or malformed values; the pipeline applies
// its own defaults to zeros.
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}

	return d
}
