package channel

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"embedbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxCaptionLen = 1024
	telegramMaxTextLen    = 4096
	telegramMaxGroupItems = 10
)

// telegramAPI is the part of *tgbotapi.BotAPI the reply target uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// TelegramReply answers a Telegram message. Embeds are flattened into the
// message text or the caption of the first attachment.
type TelegramReply struct {
	api     telegramAPI
	chatID  int64
	replyTo int
}

// NewTelegramReply creates a reply target for a chat, replying to message
// replyTo (0 sends without a reply reference).
func NewTelegramReply(api telegramAPI, chatID int64, replyTo int) *TelegramReply {
	return &TelegramReply{api: api, chatID: chatID, replyTo: replyTo}
}

func (r *TelegramReply) Platform() string { return "telegram" }
func (r *TelegramReply) Label() string    { return fmt.Sprintf("Chat %d", r.chatID) }

// Deliver sends msg as a text message, a single photo or document, or
// media groups of at most ten attachments.
func (r *TelegramReply) Deliver(_ context.Context, msg domain.OutgoingMessage) error {
	text := composeText(msg.Content, msg.Embeds)

	if len(msg.Files) == 0 {
		return r.sendText(text)
	}

	caption := text
	if utf8.RuneCountInString(caption) > telegramMaxCaptionLen {
		if err := r.sendText(text); err != nil {
			return err
		}
		caption = ""
	}

	if len(msg.Files) == 1 {
		return r.sendSingle(msg.Files[0], caption)
	}

	asPhotos := allImages(msg.Files)
	for _, size := range mediaGroupSizes(len(msg.Files)) {
		media := make([]interface{}, 0, size)
		for _, f := range msg.Files[:size] {
			media = append(media, inputMedia(f, caption, asPhotos))
			caption = ""
		}
		msg.Files = msg.Files[size:]

		group := tgbotapi.NewMediaGroup(r.chatID, media)
		group.ReplyToMessageID = r.replyTo
		if _, err := r.api.SendMediaGroup(group); err != nil {
			return fmt.Errorf("telegram media group: %w", err)
		}
	}
	return nil
}

// mediaGroupSizes splits n > 1 attachments into media groups of 2 to 10
// items. A lone leftover borrows one item from the group before it.
func mediaGroupSizes(n int) []int {
	var sizes []int
	for ; n > 0; n -= telegramMaxGroupItems {
		sizes = append(sizes, min(n, telegramMaxGroupItems))
	}
	if last := len(sizes) - 1; last > 0 && sizes[last] == 1 {
		sizes[last-1]--
		sizes[last]++
	}
	return sizes
}

// sendText sends text, split at Telegram's message length. Only the first
// chunk is threaded as a reply.
func (r *TelegramReply) sendText(text string) error {
	for i, chunk := range splitText(text, telegramMaxTextLen) {
		m := tgbotapi.NewMessage(r.chatID, chunk)
		if i == 0 {
			m.ReplyToMessageID = r.replyTo
		}
		if _, err := r.api.Send(m); err != nil {
			return fmt.Errorf("telegram message: %w", err)
		}
	}
	return nil
}

func (r *TelegramReply) sendSingle(f domain.Attachment, caption string) error {
	data := tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data}

	var c tgbotapi.Chattable
	if isImage(f) {
		photo := tgbotapi.NewPhoto(r.chatID, data)
		photo.Caption = caption
		photo.ReplyToMessageID = r.replyTo
		c = photo
	} else {
		doc := tgbotapi.NewDocument(r.chatID, data)
		doc.Caption = caption
		doc.ReplyToMessageID = r.replyTo
		c = doc
	}
	if _, err := r.api.Send(c); err != nil {
		return fmt.Errorf("telegram upload %s: %w", f.Name, err)
	}
	return nil
}

// inputMedia builds a media group item. Telegram does not mix documents with
// photos in one group, so the caller picks one kind for the whole group.
func inputMedia(f domain.Attachment, caption string, asPhoto bool) interface{} {
	data := tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data}
	if asPhoto {
		p := tgbotapi.NewInputMediaPhoto(data)
		p.Caption = caption
		return p
	}
	d := tgbotapi.NewInputMediaDocument(data)
	d.Caption = caption
	return d
}

func allImages(files []domain.Attachment) bool {
	for _, f := range files {
		if !isImage(f) {
			return false
		}
	}
	return true
}

func isImage(f domain.Attachment) bool {
	if f.ContentType != "" {
		return strings.HasPrefix(f.ContentType, "image/")
	}
	switch strings.ToLower(f.Name[strings.LastIndex(f.Name, ".")+1:]) {
	case "png", "jpg", "jpeg", "gif", "webp":
		return true
	}
	return false
}
