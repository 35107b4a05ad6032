package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"embedbot/internal/bus"
	"embedbot/internal/domain"
	"embedbot/internal/sender"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Slack answers channel messages, mentions and slash commands over Socket
// Mode with responses from the configured source.
type Slack struct {
	botToken string
	appToken string
	source   domain.ResponseSource
	sender   *sender.Sender
	events   *bus.EventBus
	limiter  *RateLimiter
	api      slackAPI
	botUID   string
	logger   *slog.Logger
}

// SlackConfig configures the Slack gateway.
type SlackConfig struct {
	BotToken string
	AppToken string
	Source   domain.ResponseSource
	Sender   *sender.Sender
	Events   *bus.EventBus
	Limiter  *RateLimiter // optional per-user throttle
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		source:   cfg.Source,
		sender:   cfg.Sender,
		events:   cfg.Events,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// slackInbound is a message addressed to the bot. threadTS is empty for
// slash commands, which are answered in the channel.
type slackInbound struct {
	channel  string
	user     string
	text     string
	threadTS string
}

// Start connects over Socket Mode and blocks until ctx is cancelled.
func (s *Slack) Start(ctx context.Context) error {
	client := slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	auth, err := client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.api = client
	s.botUID = auth.UserID
	s.logger.Info("slack bot connected", "user", auth.User, "user_id", auth.UserID, "team", auth.Team)
	s.events.Emit(bus.Event{
		Type:   bus.EventGatewayConnected,
		Source: s.Name(),
		Attrs:  map[string]string{"username": auth.User},
	})

	socket := socketmode.New(client)
	go func() {
		for evt := range socket.Events {
			if evt.Request != nil {
				socket.Ack(*evt.Request)
			}
			if in, ok := s.inbound(evt); ok {
				s.handle(ctx, in)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- socket.RunContext(ctx) }()

	select {
	case <-ctx.Done():
		s.logger.Info("slack gateway stopping")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// inbound extracts the message a socket mode event carries, if any.
func (s *Slack) inbound(evt socketmode.Event) (slackInbound, bool) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		api, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || api.Type != slackevents.CallbackEvent {
			return slackInbound{}, false
		}
		return s.callbackMessage(api.InnerEvent.Data)
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return slackInbound{}, false
		}
		return slackInbound{channel: cmd.ChannelID, user: cmd.UserID, text: strings.TrimSpace(cmd.Text)}, true
	}
	return slackInbound{}, false
}

func (s *Slack) callbackMessage(data any) (slackInbound, bool) {
	switch ev := data.(type) {
	case *slackevents.MessageEvent:
		// Edits, joins and bot posts carry a subtype or bot id.
		if ev.SubType != "" || ev.BotID != "" || ev.User == "" || ev.User == s.botUID {
			return slackInbound{}, false
		}
		// Mentions arrive again as app_mention events.
		if s.botUID != "" && strings.Contains(ev.Text, "<@"+s.botUID+">") {
			return slackInbound{}, false
		}
		return slackInbound{channel: ev.Channel, user: ev.User, text: ev.Text, threadTS: threadOf(ev.ThreadTimeStamp, ev.TimeStamp)}, true
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" {
			return slackInbound{}, false
		}
		text := ev.Text
		if idx := strings.Index(text, ">"); idx >= 0 {
			text = text[idx+1:]
		}
		return slackInbound{channel: ev.Channel, user: ev.User, text: text, threadTS: threadOf(ev.ThreadTimeStamp, ev.TimeStamp)}, true
	}
	return slackInbound{}, false
}

// threadOf keeps replies in an existing thread or starts one on the message.
func threadOf(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}

func (s *Slack) handle(ctx context.Context, in slackInbound) {
	text := strings.TrimSpace(in.text)
	if text == "" {
		return
	}

	resp, err := s.source.Respond(ctx, text)
	if err != nil {
		s.logger.Warn("building response failed", "channel", in.channel, "err", err)
		return
	}
	if resp == nil {
		return
	}
	if !s.limiter.Allow(in.user) {
		s.logger.Debug("slack user rate limited", "user", in.user)
		return
	}

	s.logger.Info("slack message matched", "user", in.user, "channel", in.channel)
	s.events.Emit(bus.Event{
		Type:   bus.EventResponseMatched,
		Source: s.Name(),
		Attrs:  map[string]string{"input": text},
	})
	s.sender.Send(ctx, NewSlackReply(s.api, in.channel, in.threadTS), resp)
}
