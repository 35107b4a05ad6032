package channel

import (
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// embedText flattens an embed into plain text for platforms without embeds.
func embedText(e *discordgo.MessageEmbed) string {
	if e == nil {
		return ""
	}
	var lines []string
	if e.Author != nil && e.Author.Name != "" {
		lines = append(lines, e.Author.Name)
	}
	if e.Title != "" {
		lines = append(lines, e.Title)
	}
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		lines = append(lines, f.Name+": "+f.Value)
	}
	if e.URL != "" {
		lines = append(lines, e.URL)
	}
	if e.Footer != nil && e.Footer.Text != "" {
		lines = append(lines, e.Footer.Text)
	}
	return strings.Join(lines, "\n")
}

// composeText joins message content and flattened embeds, skipping blanks.
func composeText(content string, embeds []*discordgo.MessageEmbed) string {
	parts := make([]string, 0, len(embeds)+1)
	if content != "" {
		parts = append(parts, content)
	}
	for _, e := range embeds {
		if s := embedText(e); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// splitText cuts text into chunks of at most maxLen bytes, preferring to
// cut after a newline in the second half of a chunk. Cuts never fall inside
// a UTF-8 sequence.
func splitText(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		for cut > 1 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return chunks
}
