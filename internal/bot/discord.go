package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/status"
	"github.com/bowerhall/recall/internal/store"
)

type discord struct {
	session *discordgo.Session
	engine  *retrieval.Engine
	store   *store.Store
	ctx     context.Context
}

func newDiscord(cfg Config, engine *retrieval.Engine, st *store.Store) (Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	d := &discord{session: session, engine: engine, store: st}
	session.AddHandler(d.handleMessage)

	return d, nil
}

func (d *discord) Start(ctx context.Context) error {
	d.ctx = ctx

	if err := d.session.Open(); err != nil {
		return err
	}

	logger.Info("discord bot started")
	<-ctx.Done()
	return d.session.Close()
}

func (d *discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	text := strings.TrimSpace(m.Content)
	logger.Info("question received", "from", m.Author.Username, "text", truncate(text, 50))

	var response string
	if text == "/status" {
		response = status.Collect(d.store).String()
	} else {
		result, err := d.engine.Answer(d.ctx, text, "", nil)
		if err != nil {
			logger.Error("answer failed", "error", err)
			response = "Something went wrong."
		} else {
			response = result.Answer
		}
	}

	if _, err := s.ChannelMessageSendReply(m.ChannelID, response, m.Reference()); err != nil {
		logger.Error("discord reply failed", "error", err)
	}
}

func (d *discord) Send(chatID, message string) error {
	_, err := d.session.ChannelMessageSend(chatID, message)
	if err != nil {
		logger.Error("discord send failed", "error", err, "channelID", chatID)
	}
	return err
}
