package bot

import "context"

// Bot is a chat surface for querying the knowledge base and receiving
// pipeline notifications.
type Bot interface {
	Start(ctx context.Context) error
	Send(chatID, message string) error
}

type Config struct {
	Provider    string
	Token       string
	OwnerChatID int64  // Telegram: restrict to this chat ID, 0 = open
	NotifyChat  string // chat/channel that receives pipeline events
}
