// Package discord connects the message router to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"stash-bot/internal/router"
	st "stash-bot/internal/storagetypes"
	"stash-bot/pkg/retrylimit"
)

// Handler turns an inbound message into an optional reply.
type Handler interface {
	Handle(ctx context.Context, msg router.InboundMessage) *router.OutboundReply
}

// Bot is a Discord bot
type Bot struct {
	token   string
	handler Handler
	limiter *retrylimit.AdaptiveLimiter

	dg     *discordgo.Session
	selfID atomic.Int64
	ctx    context.Context
}

func NewBot(token string, handler Handler) *Bot {
	return &Bot{
		token:   token,
		handler: handler,
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
	}
}

// Run opens the gateway session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg
	b.ctx = ctx

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, closing Discord session")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if id, err := strconv.ParseInt(r.User.ID, 10, 64); err == nil {
		b.selfID.Store(id)
	}
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")
}

// onMessageCreate runs on its own goroutine per event, so slow handlers do not hold up
// the gateway reader.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	msg, ok := toInbound(m.Message, st.UserID(b.selfID.Load()))
	if !ok {
		return
	}

	reply := b.handler.Handle(b.ctx, msg)
	if reply == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 30*time.Second)
	defer cancel()
	if err := sendReply(ctx, s, b.limiter, reply); err != nil {
		log.Error().Err(err).Str("channel", reply.Target.ChannelID).Str("message", reply.Target.ID).Msg("Failed to send reply")
	}
}
