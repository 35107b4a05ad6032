package channel

import (
	"bytes"
	"context"
	"fmt"

	"embedbot/internal/domain"

	"github.com/slack-go/slack"
)

const slackMaxTextLen = 4000

// slackAPI is the part of *slack.Client the reply target uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// SlackReply answers in a Slack channel, inside threadTS when it is set.
// Embeds are flattened into the message text; files are uploaded one by
// one after the text.
type SlackReply struct {
	api       slackAPI
	channelID string
	threadTS  string
}

func NewSlackReply(api slackAPI, channelID, threadTS string) *SlackReply {
	return &SlackReply{api: api, channelID: channelID, threadTS: threadTS}
}

func (r *SlackReply) Platform() string { return "slack" }
func (r *SlackReply) Label() string    { return "Channel " + r.channelID }

func (r *SlackReply) Deliver(ctx context.Context, msg domain.OutgoingMessage) error {
	if text := composeText(msg.Content, msg.Embeds); text != "" {
		for _, chunk := range splitText(text, slackMaxTextLen) {
			opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
			if r.threadTS != "" {
				opts = append(opts, slack.MsgOptionTS(r.threadTS))
			}
			if _, _, err := r.api.PostMessageContext(ctx, r.channelID, opts...); err != nil {
				return fmt.Errorf("slack post: %w", err)
			}
		}
	}

	for _, f := range msg.Files {
		_, err := r.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Reader:          bytes.NewReader(f.Data),
			FileSize:        len(f.Data),
			Filename:        f.Name,
			Title:           f.Name,
			Channel:         r.channelID,
			ThreadTimestamp: r.threadTS,
		})
		if err != nil {
			return fmt.Errorf("slack upload %s: %w", f.Name, err)
		}
	}
	return nil
}
