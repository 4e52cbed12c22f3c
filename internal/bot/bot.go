// Package bot provides the Telegram front end for privratnik.
package bot

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/akorchagin/privratnik/internal/config"
	"github.com/akorchagin/privratnik/internal/gate"
	"github.com/akorchagin/privratnik/internal/history"
	"github.com/akorchagin/privratnik/internal/llm"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/modes"
	"github.com/akorchagin/privratnik/internal/visitor"
)

// Bot wires the Telegram transport to the gate, router and backend.
type Bot struct {
	bot      *tele.Bot
	store    visitor.Store
	gate     *gate.Gate
	sessions *modes.Sessions
	resp     *responder
}

// New creates the Telegram bot and registers all handlers.
func New(cfg *config.Config, store visitor.Store, backend llm.Backend) (*Bot, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	pref := tele.Settings{
		Token:  cfg.Telegram.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	L_debug("bot: created",
		"username", tb.Me.Username,
		"id", tb.Me.ID,
	)

	b := &Bot{
		bot:      tb,
		store:    store,
		sessions: modes.NewSessions(),
		resp: &responder{
			backend: backend,
			history: history.NewMemoryStore(cfg.Chat.HistoryLimit),
			dryRun:  cfg.Chat.DryRun,
		},
	}

	// The bot itself is the gate's out-of-band notification channel.
	b.gate = gate.New(store, b, cfg.Access)

	b.setupHandlers()
	L_debug("bot: handlers registered", "dryRun", cfg.Chat.DryRun, "historyLimit", cfg.Chat.HistoryLimit)

	return b, nil
}

// SendTo delivers a plain message to a chat (implements gate.Notifier).
func (b *Bot) SendTo(chatID int64, text string) error {
	_, err := b.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

// Start begins long polling. Blocks until Stop is called.
func (b *Bot) Start() {
	L_info("bot: starting", "username", b.bot.Me.Username)
	b.bot.Start()
}

// Stop stops the poller.
func (b *Bot) Stop() {
	L_info("bot: stopping")
	b.bot.Stop()
}
