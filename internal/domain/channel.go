package domain

import "context"

// ReplyTarget is where the messages of a response are delivered: a reply to
// a chat message, a follow-up to a slash command, a Slack thread.
type ReplyTarget interface {
	// Deliver sends a single message. Implementations must not retry.
	Deliver(ctx context.Context, msg OutgoingMessage) error
	// Platform names the chat platform ("discord", "telegram", "slack").
	Platform() string
	// Label identifies the delivery context in logs, e.g. "Shard 0".
	Label() string
}

// ResponseSource builds responses for inbound text. It returns nil when
// nothing matches.
type ResponseSource interface {
	Respond(ctx context.Context, input string) (*Response, error)
}
