package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"embedbot/internal/bus"
	"embedbot/internal/domain"
	"embedbot/internal/sender"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram polls a Telegram bot for messages and answers them with
// responses from the configured source.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	source    domain.ResponseSource
	sender    *sender.Sender
	events    *bus.EventBus
	limiter   *RateLimiter
	bot       *tgbotapi.BotAPI
	logger    *slog.Logger
}

// TelegramConfig configures the Telegram gateway.
type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	Source    domain.ResponseSource
	Sender    *sender.Sender
	Events    *bus.EventBus
	Limiter   *RateLimiter // optional per-user throttle
	Logger    *slog.Logger
}

// NewTelegram creates a new Telegram gateway.
func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{
		token:     cfg.Token,
		allowFrom: parseUserIDs(cfg.AllowFrom),
		source:    cfg.Source,
		sender:    cfg.Sender,
		events:    cfg.Events,
		limiter:   cfg.Limiter,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	t.events.Emit(bus.Event{
		Type:   bus.EventGatewayConnected,
		Source: t.Name(),
		Attrs:  map[string]string{"username": bot.Self.UserName},
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram gateway stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !t.isAllowed(msg.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if msg.IsCommand() {
		text = strings.TrimSpace(msg.CommandArguments())
	}
	if text == "" {
		return
	}

	resp, err := t.source.Respond(ctx, text)
	if err != nil {
		t.logger.Warn("building response failed", "chat_id", msg.Chat.ID, "err", err)
		return
	}
	if resp == nil {
		return
	}
	if !t.limiter.Allow(strconv.FormatInt(msg.From.ID, 10)) {
		t.logger.Debug("telegram user rate limited", "user_id", msg.From.ID)
		return
	}

	t.logger.Info("telegram message matched", "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
	t.events.Emit(bus.Event{
		Type:   bus.EventResponseMatched,
		Source: t.Name(),
		Attrs:  map[string]string{"input": text},
	})
	t.sender.Send(ctx, NewTelegramReply(t.bot, msg.Chat.ID, msg.MessageID), resp)
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func parseUserIDs(ids []string) []int64 {
	var out []int64
	for _, s := range ids {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
