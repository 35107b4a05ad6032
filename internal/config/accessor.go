package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// tree returns cfg as the generic JSON tree that paths address.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath returns the value at a dot-separated JSON path such as
// "channels.discord.limits.maxEmbedsPerMessage".
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("unknown config path: %s", path)
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("invalid index %q in %s", key, path)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("%s: %T has no field %q", path, current, key)
		}
	}
	return current, nil
}

// SetByPath sets the value at an existing leaf path. String values are
// parsed into the type of the field they replace; lists take "a,b,c".
func SetByPath(cfg *Config, path string, value any) error {
	m, err := tree(cfg)
	if err != nil {
		return err
	}

	keys := strings.Split(path, ".")
	parent := m
	for _, key := range keys[:len(keys)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config path: %s", path)
		}
		parent = child
	}

	last := keys[len(keys)-1]
	current, ok := parent[last]
	if !ok {
		return fmt.Errorf("unknown config path: %s", path)
	}
	if _, isMap := current.(map[string]any); isMap {
		return fmt.Errorf("%s is a section, set one of its fields instead", path)
	}
	v, err := coerce(value, current)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	parent[last] = v

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// coerce converts a string from the command line into the JSON type of
// the value it replaces.
func coerce(v, current any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch current.(type) {
	case bool:
		return strconv.ParseBool(s)
	case float64:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		return strconv.ParseFloat(s, 64)
	case []any, nil:
		out := []any{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return s, nil
	}
}

// Sanitize returns a copy of cfg with bot tokens masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Channels.Discord.Token = maskString(c.Channels.Discord.Token)
	c.Channels.Telegram.Token = maskString(c.Channels.Telegram.Token)
	c.Channels.Slack.BotToken = maskString(c.Channels.Slack.BotToken)
	c.Channels.Slack.AppToken = maskString(c.Channels.Slack.AppToken)
	c.Channels.Telegram.AllowFrom = append(FlexStringList(nil), cfg.Channels.Telegram.AllowFrom...)
	return &c
}

// maskString keeps the first and last four characters of long secrets.
func maskString(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths flattens cfg into leaf paths and their values.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	flatten("", m, out)
	return out
}

// SortedPaths returns the keys of a ListPaths result in order.
func SortedPaths(paths map[string]any) []string {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(path, child, out)
			continue
		}
		out[path] = v
	}
}
