package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type Message struct {
	Role    string
	Content string
}

// CallOptions bound a single model call. Zero value means no explicit
// deadline and the provider default token budget.
type CallOptions struct {
	Timeout   time.Duration
	MaxTokens int
	Label     string
}

// ErrTimeout marks a call that was aborted by its own deadline, as opposed
// to a server-side failure.
var ErrTimeout = errors.New("model call timed out")

type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	ChatWithOptions(ctx context.Context, systemPrompt string, messages []Message, opts CallOptions) (string, error)
}

// callContext applies the per-call timeout. Callers must use the returned
// cancel even when no timeout is set.
func callContext(ctx context.Context, opts CallOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// wrapTimeout converts a deadline abort into ErrTimeout so callers can tell
// it apart from provider errors.
func wrapTimeout(err error, opts CallOptions) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		label := opts.Label
		if label == "" {
			label = "chat"
		}
		return fmt.Errorf("%s: %w", label, ErrTimeout)
	}
	return err
}
