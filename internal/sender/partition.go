// Package sender batches a bot response into platform-compliant messages
// and delivers them to a reply target.
package sender

import (
	"strings"

	"embedbot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// AttachmentScheme is how an embed points at an uploaded attachment. The
// rendering host resolves "attachment://<name>" against the message files,
// so the literal prefix is part of the wire contract.
const AttachmentScheme = "attachment://"

const (
	// DefaultMaxEmbedsPerMessage is Discord's embed ceiling used by embedbot.
	DefaultMaxEmbedsPerMessage = 4
	// DefaultMaxFileSize is the aggregate upload size per message.
	DefaultMaxFileSize int64 = 8 * 1024 * 1024
)

// Limits are the per-message ceilings a partition must honor.
type Limits struct {
	MaxEmbedsPerMessage int
	MaxFileSize         int64
}

// DefaultLimits returns the Discord limits.
func DefaultLimits() Limits {
	return Limits{
		MaxEmbedsPerMessage: DefaultMaxEmbedsPerMessage,
		MaxFileSize:         DefaultMaxFileSize,
	}
}

// withDefaults replaces non-positive ceilings with the defaults.
func (l Limits) withDefaults() Limits {
	if l.MaxEmbedsPerMessage <= 0 {
		l.MaxEmbedsPerMessage = DefaultMaxEmbedsPerMessage
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	return l
}

// Strategy names the partitioning rule applied to a response.
type Strategy string

const (
	StrategyMultiEmbed  Strategy = "multi_embed"
	StrategySingleEmbed Strategy = "single_embed"
	StrategyFiles       Strategy = "files"
	StrategyText        Strategy = "text"
)

// SelectStrategy picks the partitioning rule for a response. Rules are
// evaluated top to bottom and the first match wins:
//
//  1. more than one embed: StrategyMultiEmbed
//  2. exactly one embed:   StrategySingleEmbed
//  3. at least one file:   StrategyFiles
//  4. anything else:       StrategyText
func SelectStrategy(resp *domain.Response) Strategy {
	switch {
	case resp == nil:
		return StrategyText
	case len(resp.Embeds) > 1:
		return StrategyMultiEmbed
	case len(resp.Embeds) == 1:
		return StrategySingleEmbed
	case len(resp.Files) >= 1:
		return StrategyFiles
	default:
		return StrategyText
	}
}

// Partition splits a response into the ordered messages to deliver.
// A nil response is treated as an empty one.
func Partition(resp *domain.Response, limits Limits) (Strategy, []domain.OutgoingMessage) {
	limits = limits.withDefaults()
	strategy := SelectStrategy(resp)

	switch strategy {
	case StrategyMultiEmbed:
		return strategy, PartitionMultipleEmbeds(resp.Text, resp.Embeds, resp.Files, limits.MaxEmbedsPerMessage)
	case StrategySingleEmbed:
		return strategy, PartitionSingleEmbed(resp.Text, resp.Embeds[0], resp.Files)
	case StrategyFiles:
		return strategy, PartitionFiles(resp.Text, resp.Files, limits.MaxFileSize)
	default:
		text := ""
		if resp != nil {
			text = resp.Text
		}
		return strategy, []domain.OutgoingMessage{domain.TextMessage(text)}
	}
}

// PartitionFiles packs files into groups whose summed size stays below
// maxSize. A non-empty text is sent first as its own message. Files keep
// their order and are never split, so a file at or above maxSize travels
// alone.
func PartitionFiles(text string, files []domain.Attachment, maxSize int64) []domain.OutgoingMessage {
	var messages []domain.OutgoingMessage
	if text != "" {
		messages = append(messages, domain.TextMessage(text))
	}

	if len(files) == 1 {
		return append(messages, domain.OutgoingMessage{Files: files[:1:1]})
	}

	for _, group := range GroupFiles(files, maxSize) {
		messages = append(messages, domain.OutgoingMessage{Files: group})
	}
	return messages
}

// GroupFiles greedily groups files in order. A file opens a new group when
// adding it would bring the current group's total to maxSize or above.
func GroupFiles(files []domain.Attachment, maxSize int64) [][]domain.Attachment {
	var (
		groups [][]domain.Attachment
		total  int64
	)
	for _, file := range files {
		last := len(groups) - 1
		if last < 0 || total+file.Size() >= maxSize {
			groups = append(groups, []domain.Attachment{file})
			total = file.Size()
			continue
		}
		groups[last] = append(groups[last], file)
		total += file.Size()
	}
	return groups
}

// PartitionSingleEmbed emits one message carrying the embed, the text, and
// only the attachments the embed references. Other attachments are dropped.
func PartitionSingleEmbed(text string, embed *discordgo.MessageEmbed, files []domain.Attachment) []domain.OutgoingMessage {
	if embed == nil {
		return []domain.OutgoingMessage{{Content: text}}
	}
	return []domain.OutgoingMessage{{
		Content: text,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files:   ReferencedFiles(embed, files),
	}}
}

// PartitionMultipleEmbeds chunks embeds into messages of at most maxEmbeds,
// each carrying the attachments its embeds reference. An attachment used by
// embeds in two chunks is uploaded with both.
func PartitionMultipleEmbeds(text string, embeds []*discordgo.MessageEmbed, files []domain.Attachment, maxEmbeds int) []domain.OutgoingMessage {
	if maxEmbeds <= 0 {
		maxEmbeds = DefaultMaxEmbedsPerMessage
	}

	var messages []domain.OutgoingMessage
	if text != "" {
		messages = append(messages, domain.TextMessage(text))
	}

	for i := 0; i < len(embeds); i += maxEmbeds {
		end := min(i+maxEmbeds, len(embeds))
		chunk := embeds[i:end:end]

		var chunkFiles []domain.Attachment
		for _, embed := range chunk {
			chunkFiles = append(chunkFiles, ReferencedFiles(embed, files)...)
		}

		messages = append(messages, domain.OutgoingMessage{
			Embeds: chunk,
			Files:  chunkFiles,
		})
	}
	return messages
}

// ReferencedFiles returns, in input order, the attachments whose name is one
// of the embed's attachment references.
func ReferencedFiles(embed *discordgo.MessageEmbed, files []domain.Attachment) []domain.Attachment {
	refs := AttachmentRefs(embed)
	if len(refs) == 0 {
		return nil
	}

	var matched []domain.Attachment
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		for _, ref := range refs {
			if f.Name == ref {
				matched = append(matched, f)
				break
			}
		}
	}
	return matched
}

// AttachmentRefs extracts the names referenced by the embed's image and
// video URLs, image first. Missing fields reference nothing.
func AttachmentRefs(embed *discordgo.MessageEmbed) []string {
	if embed == nil {
		return nil
	}
	var refs []string
	if embed.Image != nil && embed.Image.URL != "" {
		refs = append(refs, strings.Replace(embed.Image.URL, AttachmentScheme, "", 1))
	}
	if embed.Video != nil && embed.Video.URL != "" {
		refs = append(refs, strings.Replace(embed.Video.URL, AttachmentScheme, "", 1))
	}
	return refs
}
