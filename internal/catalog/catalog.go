// Package catalog serves canned bot responses defined in YAML files.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"embedbot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Trigger defines how an entry is matched against inbound text.
type Trigger struct {
	Keywords []string `yaml:"keywords,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

// EmbedSpec describes an embed. Image and Video accept either a URL or
// "attachment://<file name>" to point at one of the entry's files.
type EmbedSpec struct {
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url,omitempty"`
	Color       int    `yaml:"color,omitempty"`
	Image       string `yaml:"image,omitempty"`
	Video       string `yaml:"video,omitempty"`
	Thumbnail   string `yaml:"thumbnail,omitempty"`
	Footer      string `yaml:"footer,omitempty"`
}

// Entry is one catalog response.
type Entry struct {
	Name    string      `yaml:"name"`
	Trigger Trigger     `yaml:"trigger"`
	Text    string      `yaml:"text,omitempty"`
	Embeds  []EmbedSpec `yaml:"embeds,omitempty"`
	Files   []string    `yaml:"files,omitempty"` // relative to Dir
	Dir     string      `yaml:"-"`
}

// Catalog matches inbound text to entries and builds their responses.
type Catalog struct {
	entries       []Entry
	compiledRegex map[string]*regexp.Regexp
	lowerKeywords map[string][]string
	mu            sync.RWMutex
	logger        *slog.Logger
}

// New creates an empty catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		compiledRegex: make(map[string]*regexp.Regexp),
		lowerKeywords: make(map[string][]string),
		logger:        logger,
	}
}

// Register adds an entry, replacing any entry with the same name. An invalid
// trigger pattern is an error; keywords are matched case-insensitively.
func (c *Catalog) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("catalog entry has no name")
	}

	var re *regexp.Regexp
	if e.Trigger.Pattern != "" {
		var err error
		if re, err = regexp.Compile(e.Trigger.Pattern); err != nil {
			return fmt.Errorf("entry %s: invalid pattern: %w", e.Name, err)
		}
	}

	kws := make([]string, 0, len(e.Trigger.Keywords))
	for _, kw := range e.Trigger.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			kws = append(kws, kw)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lowerKeywords[e.Name] = kws
	if re != nil {
		c.compiledRegex[e.Name] = re
	} else {
		delete(c.compiledRegex, e.Name)
	}

	for i := range c.entries {
		if c.entries[i].Name == e.Name {
			c.entries[i] = e
			c.logger.Debug("catalog entry updated", "name", e.Name)
			return nil
		}
	}
	c.entries = append(c.entries, e)
	return nil
}

// Match returns a copy of the first registered entry whose keywords or
// pattern match input, or nil.
func (c *Catalog) Match(input string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(input)
	for _, e := range c.entries {
		for _, kw := range c.lowerKeywords[e.Name] {
			if strings.Contains(lower, kw) {
				return &e
			}
		}
		if re, ok := c.compiledRegex[e.Name]; ok && re.MatchString(input) {
			return &e
		}
	}
	return nil
}

// Get returns the entry with the given name, or nil.
func (c *Catalog) Get(name string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.entries {
		if c.entries[i].Name == name {
			e := c.entries[i]
			return &e
		}
	}
	return nil
}

// List returns all entries in registration order.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Respond builds the response of the entry matching input. It returns nil
// without error when nothing matches.
func (c *Catalog) Respond(_ context.Context, input string) (*domain.Response, error) {
	e := c.Match(input)
	if e == nil {
		return nil, nil
	}
	c.logger.Debug("catalog entry matched", "name", e.Name)
	return Build(*e)
}

// Build reads the entry's files and assembles its response.
func Build(e Entry) (*domain.Response, error) {
	resp := &domain.Response{Text: e.Text}

	for _, spec := range e.Embeds {
		resp.Embeds = append(resp.Embeds, spec.toEmbed())
	}

	for _, rel := range e.Files {
		att, err := LoadAttachment(filepath.Join(e.Dir, rel))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		resp.Files = append(resp.Files, att)
	}
	return resp, nil
}

// LoadAttachment reads a file from disk. The attachment is named after the
// file's base name, which is what embeds reference.
func LoadAttachment(path string) (domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)
	return domain.Attachment{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
	}, nil
}

func (s EmbedSpec) toEmbed() *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       s.Title,
		Description: s.Description,
		URL:         s.URL,
		Color:       s.Color,
	}
	if s.Image != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: s.Image}
	}
	if s.Video != "" {
		e.Video = &discordgo.MessageEmbedVideo{URL: s.Video}
	}
	if s.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: s.Thumbnail}
	}
	if s.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer}
	}
	return e
}
