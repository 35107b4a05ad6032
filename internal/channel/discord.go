package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"embedbot/internal/bus"
	"embedbot/internal/domain"
	"embedbot/internal/sender"

	"github.com/bwmarrin/discordgo"
)

const respondCommand = "respond"

// Discord listens for messages and slash commands and answers them with
// responses from the configured source.
type Discord struct {
	token      string
	guildID    string
	shardID    int
	shardCount int
	source     domain.ResponseSource
	sender     *sender.Sender
	events     *bus.EventBus
	limiter    *RateLimiter
	session    *discordgo.Session
	logger     *slog.Logger
}

// DiscordConfig configures the Discord gateway.
type DiscordConfig struct {
	Token      string
	GuildID    string // optional: only answer in this guild
	ShardID    int
	ShardCount int
	Source     domain.ResponseSource
	Sender     *sender.Sender
	Events     *bus.EventBus
	Limiter    *RateLimiter // optional per-user throttle
	Logger     *slog.Logger
}

// NewDiscord creates a new Discord gateway.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	return &Discord{
		token:      cfg.Token,
		guildID:    cfg.GuildID,
		shardID:    cfg.ShardID,
		shardCount: cfg.ShardCount,
		source:     cfg.Source,
		sender:     cfg.Sender,
		events:     cfg.Events,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	session.ShardID = d.shardID
	session.ShardCount = d.shardCount
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, s, m)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		d.handleInteraction(ctx, s, i)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord bot connected",
		"user", session.State.User.Username,
		"shard", d.shardID,
		"shards", d.shardCount,
	)
	d.events.Emit(bus.Event{
		Type:   bus.EventGatewayConnected,
		Source: d.Name(),
		Attrs:  map[string]string{"shard": shardLabel(d.shardID)},
	})

	d.registerSlashCommands()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if d.guildID != "" && m.GuildID != d.guildID {
		return
	}

	resp := d.lookup(ctx, m.Content)
	if resp == nil {
		return
	}
	if !d.limiter.Allow(m.Author.ID) {
		d.logger.Debug("discord user rate limited", "author", m.Author.Username)
		return
	}

	d.logger.Info("discord message matched",
		"author", m.Author.Username,
		"channel_id", m.ChannelID,
	)
	d.sender.Send(ctx, NewMessageReply(s, m.Message, d.shardID), resp)
}

func (d *Discord) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != respondCommand {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			query = strings.TrimSpace(query + " " + opt.StringValue())
		}
	}

	if user := interactionUser(i.Interaction); user != nil && !d.limiter.Allow(user.ID) {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "Slow down a little and try again shortly.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			d.logger.Warn("discord rate limit notice failed", "shard", shardLabel(d.shardID), "err", err)
		}
		return
	}

	// Acknowledge first; follow-ups need a deferred response to attach to.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		d.logger.Error("discord interaction ack failed", "shard", shardLabel(d.shardID), "err", err)
		return
	}

	resp := d.lookup(ctx, query)
	if resp == nil {
		resp = &domain.Response{Text: fmt.Sprintf("Nothing found for %q.", query)}
	}
	d.sender.Send(ctx, NewInteractionReply(s, i.Interaction, d.shardID), resp)
}

// interactionUser returns the invoking user in guilds and in DMs.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (d *Discord) lookup(ctx context.Context, input string) *domain.Response {
	resp, err := d.source.Respond(ctx, input)
	if err != nil {
		d.logger.Warn("building response failed", "shard", shardLabel(d.shardID), "err", err)
		return nil
	}
	if resp != nil {
		d.events.Emit(bus.Event{
			Type:   bus.EventResponseMatched,
			Source: d.Name(),
			Attrs:  map[string]string{"input": input},
		})
	}
	return resp
}

func (d *Discord) registerSlashCommands() {
	cmd := &discordgo.ApplicationCommand{
		Name:        respondCommand,
		Description: "Reply with a catalog response",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "What to look up",
				Required:    true,
			},
		},
	}

	// Commands are global when guildID is empty.
	if _, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, d.guildID, cmd); err != nil {
		d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
	}
}
