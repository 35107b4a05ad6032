package domain

import "github.com/bwmarrin/discordgo"

// Attachment is a named binary payload uploaded alongside a message.
// Embeds reference it as "attachment://<Name>".
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the attachment length in bytes.
func (a Attachment) Size() int64 { return int64(len(a.Data)) }

// Response is a logical bot reply produced upstream. It may span several
// physical messages once partitioned.
type Response struct {
	Text   string
	Embeds []*discordgo.MessageEmbed
	Files  []Attachment
}

// OutgoingMessage is one physical message handed to a ReplyTarget.
//
// Plain messages carry only Content. Otherwise Content is optional and the
// message holds embeds and/or files.
type OutgoingMessage struct {
	Plain   bool
	Content string
	Embeds  []*discordgo.MessageEmbed
	Files   []Attachment
}

// TextMessage returns a plain text message.
func TextMessage(text string) OutgoingMessage {
	return OutgoingMessage{Plain: true, Content: text}
}

// FileBytes returns the summed size of the message's files.
func (m OutgoingMessage) FileBytes() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size()
	}
	return total
}

// FileNames returns the names of the message's files in order.
func (m OutgoingMessage) FileNames() []string {
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = f.Name
	}
	return names
}
