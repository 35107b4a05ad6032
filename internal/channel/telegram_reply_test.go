package channel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"embedbot/internal/domain"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegram struct {
	sent   []tgbotapi.Chattable
	groups []tgbotapi.MediaGroupConfig
	err    error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.groups = append(f.groups, config)
	return nil, nil
}

func TestTelegramReply_Text(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 42, 7)

	if err := target.Deliver(context.Background(), domain.TextMessage("hello")); err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(api.sent))
	}
	m, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected MessageConfig, got %T", api.sent[0])
	}
	if m.Text != "hello" || m.ChatID != 42 || m.ReplyToMessageID != 7 {
		t.Errorf("unexpected message: %+v", m)
	}
}

func TestTelegramReply_EmbedFlattenedIntoCaption(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 0)

	err := target.Deliver(context.Background(), domain.OutgoingMessage{
		Embeds: []*discordgo.MessageEmbed{{Title: "Sunset", Description: "over the bay"}},
		Files:  []domain.Attachment{{Name: "sunset.jpg", Data: []byte{1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("expected PhotoConfig, got %T", api.sent[0])
	}
	if photo.Caption != "Sunset\nover the bay" {
		t.Errorf("caption = %q", photo.Caption)
	}
}

func TestTelegramReply_NonImageAsDocument(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 0)

	err := target.Deliver(context.Background(), domain.OutgoingMessage{
		Files: []domain.Attachment{{Name: "report.pdf", ContentType: "application/pdf"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := api.sent[0].(tgbotapi.DocumentConfig); !ok {
		t.Fatalf("expected DocumentConfig, got %T", api.sent[0])
	}
}

func TestTelegramReply_MediaGroupsOfTen(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 3)

	var files []domain.Attachment
	for i := 0; i < 12; i++ {
		files = append(files, domain.Attachment{Name: "p.png"})
	}
	if err := target.Deliver(context.Background(), domain.OutgoingMessage{Content: "album", Files: files}); err != nil {
		t.Fatal(err)
	}

	if len(api.groups) != 2 {
		t.Fatalf("expected 2 media groups, got %d", len(api.groups))
	}
	if len(api.groups[0].Media) != 10 || len(api.groups[1].Media) != 2 {
		t.Errorf("group sizes = %d, %d", len(api.groups[0].Media), len(api.groups[1].Media))
	}
	first, ok := api.groups[0].Media[0].(tgbotapi.InputMediaPhoto)
	if !ok {
		t.Fatalf("expected photos, got %T", api.groups[0].Media[0])
	}
	if first.Caption != "album" {
		t.Errorf("caption = %q, want album", first.Caption)
	}
	if second := api.groups[1].Media[0].(tgbotapi.InputMediaPhoto); second.Caption != "" {
		t.Errorf("only the first item carries the caption, got %q", second.Caption)
	}
	if api.groups[0].ReplyToMessageID != 3 {
		t.Errorf("reply id = %d, want 3", api.groups[0].ReplyToMessageID)
	}
}

func TestTelegramReply_NoSingleItemMediaGroup(t *testing.T) {
	for _, n := range []int{2, 11, 20, 21, 31} {
		api := &fakeTelegram{}
		target := NewTelegramReply(api, 1, 0)

		files := make([]domain.Attachment, n)
		for i := range files {
			files[i] = domain.Attachment{Name: fmt.Sprintf("p%d.png", i)}
		}
		if err := target.Deliver(context.Background(), domain.OutgoingMessage{Content: "album", Files: files}); err != nil {
			t.Fatal(err)
		}

		var names []string
		for i, g := range api.groups {
			if len(g.Media) < 2 || len(g.Media) > telegramMaxGroupItems {
				t.Errorf("%d files: group %d has %d items", n, i, len(g.Media))
			}
			for _, m := range g.Media {
				names = append(names, m.(tgbotapi.InputMediaPhoto).Media.(tgbotapi.FileBytes).Name)
			}
		}
		if len(names) != n || names[0] != "p0.png" || names[n-1] != fmt.Sprintf("p%d.png", n-1) {
			t.Errorf("%d files: delivered %v", n, names)
		}
	}
}

func TestMediaGroupSizes(t *testing.T) {
	cases := map[int][]int{
		2:  {2},
		10: {10},
		11: {9, 2},
		12: {10, 2},
		21: {10, 9, 2},
	}
	for n, want := range cases {
		if got := mediaGroupSizes(n); !slices.Equal(got, want) {
			t.Errorf("mediaGroupSizes(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestTelegramReply_CaptionLimitCountsCharacters(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 0)

	// 1024 characters, 2048 bytes: still fits as a caption.
	caption := strings.Repeat("é", telegramMaxCaptionLen)
	err := target.Deliver(context.Background(), domain.OutgoingMessage{
		Content: caption,
		Files:   []domain.Attachment{{Name: "a.png"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected a single captioned photo, got %d sends", len(api.sent))
	}
	if photo := api.sent[0].(tgbotapi.PhotoConfig); photo.Caption != caption {
		t.Errorf("caption was not kept")
	}
}

func TestTelegramReply_MixedGroupUsesDocuments(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 0)

	files := []domain.Attachment{{Name: "a.png"}, {Name: "b.zip"}}
	if err := target.Deliver(context.Background(), domain.OutgoingMessage{Files: files}); err != nil {
		t.Fatal(err)
	}
	for i, m := range api.groups[0].Media {
		if _, ok := m.(tgbotapi.InputMediaDocument); !ok {
			t.Errorf("item %d: expected document, got %T", i, m)
		}
	}
}

func TestTelegramReply_LongCaptionSentAsText(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 0)

	long := strings.Repeat("x", telegramMaxCaptionLen+1)
	err := target.Deliver(context.Background(), domain.OutgoingMessage{
		Content: long,
		Files:   []domain.Attachment{{Name: "a.png"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 2 {
		t.Fatalf("expected text then photo, got %d sends", len(api.sent))
	}
	if photo := api.sent[1].(tgbotapi.PhotoConfig); photo.Caption != "" {
		t.Errorf("photo caption should be empty, got %d chars", len(photo.Caption))
	}
}

func TestTelegramReply_Error(t *testing.T) {
	api := &fakeTelegram{err: errors.New("Bad Request: chat not found")}
	target := NewTelegramReply(api, 1, 0)

	if err := target.Deliver(context.Background(), domain.TextMessage("hi")); !errors.Is(err, api.err) {
		t.Errorf("expected wrapped SDK error, got %v", err)
	}
	if target.Label() != "Chat 1" {
		t.Errorf("label = %q", target.Label())
	}
}

func TestTelegramReply_LongTextSplit(t *testing.T) {
	api := &fakeTelegram{}
	target := NewTelegramReply(api, 1, 9)

	if err := target.Deliver(context.Background(), domain.TextMessage(strings.Repeat("x", 5000))); err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(api.sent))
	}
	first := api.sent[0].(tgbotapi.MessageConfig)
	second := api.sent[1].(tgbotapi.MessageConfig)
	if len(first.Text) != 4096 || len(second.Text) != 904 {
		t.Errorf("chunk sizes = %d, %d", len(first.Text), len(second.Text))
	}
	if first.ReplyToMessageID != 9 || second.ReplyToMessageID != 0 {
		t.Errorf("only the first chunk should reply, got %d, %d", first.ReplyToMessageID, second.ReplyToMessageID)
	}
}
