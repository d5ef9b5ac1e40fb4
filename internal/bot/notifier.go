package bot

import (
	"fmt"

	"github.com/bowerhall/recall/internal/store"
)

// EventNotifier forwards selected pipeline events to one chat. High-volume
// events (new messages, per-step progress) stay out of the chat; only
// milestones are worth a ping.
type EventNotifier struct {
	bot    Bot
	chatID string
}

func NewEventNotifier(b Bot, chatID string) *EventNotifier {
	return &EventNotifier{bot: b, chatID: chatID}
}

func (n *EventNotifier) NewMessages(sessionID string, count int) {}

func (n *EventNotifier) NewMemory(m *store.Memory) {
	label := m.Name
	if label == "" {
		label = truncate(m.Content, 60)
	}
	n.bot.Send(n.chatID, "remembered: "+label)
}

func (n *EventNotifier) NewEntity(e *store.Entity) {
	n.bot.Send(n.chatID, fmt.Sprintf("new entity: %s (%s)", e.Name, e.Type))
}

func (n *EventNotifier) SummaryGenerated(sessionID string) {}

func (n *EventNotifier) ReprocessProgress(phase string, processed, total int) {
	if total > 0 && processed == total {
		n.bot.Send(n.chatID, fmt.Sprintf("reprocess finished: %d %s", total, phase))
	}
}

func (n *EventNotifier) MasterMemoryProgress(current, total int) {
	if total > 0 && current == total {
		n.bot.Send(n.chatID, "master memory regenerated")
	}
}
