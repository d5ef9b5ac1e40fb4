package bot

import (
	"fmt"

	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/store"
)

func New(cfg Config, engine *retrieval.Engine, st *store.Store) (Bot, error) {
	switch cfg.Provider {
	case "telegram":
		return newTelegram(cfg, engine, st)
	case "discord":
		return newDiscord(cfg, engine, st)
	default:
		return nil, fmt.Errorf("unknown bot provider: %s", cfg.Provider)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
