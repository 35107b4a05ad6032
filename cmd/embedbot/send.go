package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"embedbot/internal/bus"
	"embedbot/internal/catalog"
	"embedbot/internal/channel"
	"embedbot/internal/config"
	"embedbot/internal/domain"
	"embedbot/internal/sender"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// responseFlags describe a response given on the command line: either a
// catalog entry or ad-hoc text, files, and embed images.
type responseFlags struct {
	entry       string
	text        string
	files       []string
	embedImages []string
	embedTitle  string
}

func (f *responseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.entry, "entry", "", "catalog entry to send")
	cmd.Flags().StringVar(&f.text, "text", "", "message text")
	cmd.Flags().StringArrayVar(&f.files, "file", nil, "file to attach (repeatable)")
	cmd.Flags().StringArrayVar(&f.embedImages, "embed-image", nil, "add an embed showing this image: a URL or the name of an attached file (repeatable)")
	cmd.Flags().StringVar(&f.embedTitle, "embed-title", "", "title for every embed added with --embed-image")
}

// build turns the flags into a response. Entries are looked up in the
// configured catalog.
func (f *responseFlags) build(cfg *config.Config) (*domain.Response, error) {
	if f.entry != "" {
		cat, err := openCatalog(cfg)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		e := cat.Get(f.entry)
		if e == nil {
			return nil, fmt.Errorf("no catalog entry named %q", f.entry)
		}
		return catalog.Build(*e)
	}

	if f.text == "" && len(f.files) == 0 && len(f.embedImages) == 0 {
		return nil, fmt.Errorf("nothing to send: use --entry, --text, --file, or --embed-image")
	}

	resp := &domain.Response{Text: f.text}
	for _, path := range f.files {
		att, err := catalog.LoadAttachment(config.ExpandPath(path))
		if err != nil {
			return nil, err
		}
		resp.Files = append(resp.Files, att)
	}
	for _, img := range f.embedImages {
		resp.Embeds = append(resp.Embeds, &discordgo.MessageEmbed{
			Title: f.embedTitle,
			Image: &discordgo.MessageEmbedImage{URL: imageRef(img)},
		})
	}
	return resp, nil
}

// imageRef keeps URLs as they are and turns anything else into a reference
// to an attachment with that base name.
func imageRef(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	return sender.AttachmentScheme + filepath.Base(s)
}

func platformLimits(cfg *config.Config, platform string) (sender.Limits, error) {
	switch platform {
	case "discord":
		return limitsFor(cfg.Channels.Discord.Limits), nil
	case "telegram":
		return limitsFor(cfg.Channels.Telegram.Limits), nil
	case "slack":
		return limitsFor(cfg.Channels.Slack.Limits), nil
	default:
		return sender.Limits{}, fmt.Errorf("unknown platform %q (supported: discord, telegram, slack)", platform)
	}
}

func sendCmd() *cobra.Command {
	var (
		flags    responseFlags
		platform string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a response to a Discord channel, Telegram chat or Slack channel",
		Long: `Builds a response from a catalog entry or from --text/--file/--embed-image
and delivers it to one channel, split into as many messages as needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			limits, err := platformLimits(cfg, platform)
			if err != nil {
				return err
			}
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			resp, err := flags.build(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			target, err := newTarget(cfg, platform, to)
			if err != nil {
				return err
			}

			events := bus.NewEventBus(logger)
			store, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				store.Subscribe(events)
			}

			s := sender.New(sender.Config{Limits: limits, Events: events, Logger: logger})
			report := s.Send(ctx, target, resp)
			logger.Info("response sent",
				"batch", report.BatchID,
				"strategy", report.Strategy,
				"messages", report.Messages,
				"sent", report.Sent,
				"failed", report.Failed,
			)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d messages failed", report.Failed, report.Messages)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&platform, "platform", "p", "discord", "discord, telegram or slack")
	cmd.Flags().StringVar(&to, "to", "", "Discord channel ID, Telegram chat ID or Slack channel ID")
	return cmd
}

func newTarget(cfg *config.Config, platform, to string) (domain.ReplyTarget, error) {
	switch platform {
	case "discord":
		if cfg.Channels.Discord.Token == "" {
			return nil, fmt.Errorf("channels.discord.token is not set")
		}
		session, err := discordgo.New("Bot " + cfg.Channels.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("discord session: %w", err)
		}
		return channel.NewChannelPost(session, to), nil
	case "telegram":
		if cfg.Channels.Telegram.Token == "" {
			return nil, fmt.Errorf("channels.telegram.token is not set")
		}
		chatID, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", to, err)
		}
		bot, err := tgbotapi.NewBotAPI(cfg.Channels.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("telegram bot init: %w", err)
		}
		return channel.NewTelegramReply(bot, chatID, 0), nil
	case "slack":
		if cfg.Channels.Slack.BotToken == "" {
			return nil, fmt.Errorf("channels.slack.botToken is not set")
		}
		return channel.NewSlackReply(slack.New(cfg.Channels.Slack.BotToken), to, ""), nil
	default:
		return nil, fmt.Errorf("unknown platform %q (supported: discord, telegram, slack)", platform)
	}
}

// planView is the YAML form of a partition printed by plan.
type planView struct {
	Strategy sender.Strategy `yaml:"strategy"`
	Messages []planMessage   `yaml:"messages"`
}

type planMessage struct {
	Content string   `yaml:"content,omitempty"`
	Embeds  []string `yaml:"embeds,omitempty"`
	Files   []string `yaml:"files,omitempty"`
	Bytes   int64    `yaml:"bytes,omitempty"`
}

func newPlanView(strategy sender.Strategy, messages []domain.OutgoingMessage) planView {
	view := planView{Strategy: strategy, Messages: make([]planMessage, 0, len(messages))}
	for _, m := range messages {
		pm := planMessage{
			Content: m.Content,
			Files:   m.FileNames(),
			Bytes:   m.FileBytes(),
		}
		for _, e := range m.Embeds {
			pm.Embeds = append(pm.Embeds, describeEmbed(e))
		}
		view.Messages = append(view.Messages, pm)
	}
	return view
}

func describeEmbed(e *discordgo.MessageEmbed) string {
	if e == nil {
		return "<nil>"
	}
	desc := e.Title
	if desc == "" {
		desc = "(untitled)"
	}
	if refs := sender.AttachmentRefs(e); len(refs) > 0 {
		desc += " [" + strings.Join(refs, ", ") + "]"
	}
	return desc
}

func planCmd() *cobra.Command {
	var (
		flags    responseFlags
		platform string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how a response would be split into messages",
		Long:  "Builds a response like send does and prints the resulting messages as YAML without contacting any platform.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			limits, err := platformLimits(cfg, platform)
			if err != nil {
				return err
			}
			resp, err := flags.build(cfg)
			if err != nil {
				return err
			}

			strategy, messages := sender.Partition(resp, limits)
			out, err := yaml.Marshal(newPlanView(strategy, messages))
			if err != nil {
				return fmt.Errorf("marshal plan: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&platform, "platform", "p", "discord", "limits to plan with: discord, telegram or slack")
	return cmd
}
