package channel

import (
	"bytes"
	"context"
	"fmt"

	"embedbot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// discordAPI is the part of *discordgo.Session the reply targets use.
type discordAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MessageReply answers a Discord message with inline replies.
type MessageReply struct {
	api     discordAPI
	message *discordgo.Message
	shard   int
}

// NewMessageReply creates a reply target for the given message.
func NewMessageReply(api discordAPI, message *discordgo.Message, shard int) *MessageReply {
	return &MessageReply{api: api, message: message, shard: shard}
}

func (r *MessageReply) Platform() string { return "discord" }
func (r *MessageReply) Label() string    { return shardLabel(r.shard) }

// Deliver sends msg as a reply referencing the original message.
func (r *MessageReply) Deliver(ctx context.Context, msg domain.OutgoingMessage) error {
	send := &discordgo.MessageSend{
		Content:   msg.Content,
		Embeds:    msg.Embeds,
		Files:     discordFiles(msg.Files),
		Reference: r.message.Reference(),
	}
	if _, err := r.api.ChannelMessageSendComplex(r.message.ChannelID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord reply: %w", err)
	}
	return nil
}

// ChannelPost posts to a Discord channel without replying to anything.
// It backs one-off sends from the command line.
type ChannelPost struct {
	api       discordAPI
	channelID string
}

func NewChannelPost(api discordAPI, channelID string) *ChannelPost {
	return &ChannelPost{api: api, channelID: channelID}
}

func (p *ChannelPost) Platform() string { return "discord" }
func (p *ChannelPost) Label() string    { return "Channel " + p.channelID }

func (p *ChannelPost) Deliver(ctx context.Context, msg domain.OutgoingMessage) error {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  msg.Embeds,
		Files:   discordFiles(msg.Files),
	}
	if _, err := p.api.ChannelMessageSendComplex(p.channelID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord post: %w", err)
	}
	return nil
}

// InteractionReply answers a slash command. Follow-ups are the only way to
// attach several messages to one interaction, so every message is sent as
// one; the interaction must already be acknowledged.
type InteractionReply struct {
	api         discordAPI
	interaction *discordgo.Interaction
	shard       int
}

// NewInteractionReply creates a reply target for an acknowledged interaction.
func NewInteractionReply(api discordAPI, interaction *discordgo.Interaction, shard int) *InteractionReply {
	return &InteractionReply{api: api, interaction: interaction, shard: shard}
}

func (r *InteractionReply) Platform() string { return "discord" }
func (r *InteractionReply) Label() string    { return shardLabel(r.shard) }

// Deliver sends msg as an interaction follow-up.
func (r *InteractionReply) Deliver(ctx context.Context, msg domain.OutgoingMessage) error {
	params := &discordgo.WebhookParams{
		Content: msg.Content,
		Embeds:  msg.Embeds,
		Files:   discordFiles(msg.Files),
	}
	if _, err := r.api.FollowupMessageCreate(r.interaction, true, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord follow-up: %w", err)
	}
	return nil
}

func discordFiles(files []domain.Attachment) []*discordgo.File {
	if len(files) == 0 {
		return nil
	}
	out := make([]*discordgo.File, len(files))
	for i, f := range files {
		out[i] = &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		}
	}
	return out
}

func shardLabel(shard int) string {
	return fmt.Sprintf("Shard %d", shard)
}
