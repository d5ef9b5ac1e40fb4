package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/status"
	"github.com/bowerhall/recall/internal/store"
)

type telegram struct {
	api         *tgbotapi.BotAPI
	engine      *retrieval.Engine
	store       *store.Store
	ownerChatID int64
}

func newTelegram(cfg Config, engine *retrieval.Engine, st *store.Store) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &telegram{api: api, engine: engine, store: st, ownerChatID: cfg.OwnerChatID}, nil
}

func (t *telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	logger.Info("telegram bot started", "user", t.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			if t.ownerChatID != 0 && update.Message.Chat.ID != t.ownerChatID {
				logger.Warn("message from unknown chat ignored", "chatID", update.Message.Chat.ID)
				continue
			}

			go t.handleMessage(ctx, update.Message)
		}
	}
}

func (t *telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	logger.Info("question received", "from", msg.From.UserName, "text", truncate(text, 50))

	var response string
	switch {
	case text == "/status":
		response = status.Collect(t.store).String()
	case text == "/start", text == "/help":
		response = "Ask me anything about your knowledge base. /status shows system health."
	default:
		typing := tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)
		t.api.Send(typing)

		result, err := t.engine.Answer(ctx, text, "", nil)
		if err != nil {
			logger.Error("answer failed", "error", err)
			response = "Something went wrong."
		} else {
			response = result.Answer
		}
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := t.api.Send(reply); err != nil {
		logger.Error("send failed", "error", err)
	}
}

func (t *telegram) Send(chatID, message string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}

	_, err = t.api.Send(tgbotapi.NewMessage(id, message))
	if err != nil {
		logger.Error("proactive send failed", "error", err, "chatID", chatID)
	}
	return err
}
