package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of a catalog file.
type file struct {
	Responses []Entry `yaml:"responses"`
}

// LoadFromDirectory reads every .yaml/.yml file in dir. Unreadable or
// malformed files are logged and skipped; a missing directory yields no
// entries.
func LoadFromDirectory(dir string, logger *slog.Logger) ([]Entry, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("catalog directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		loaded, err := LoadFile(path)
		if err != nil {
			logger.Warn("cannot load catalog file", "path", path, "err", err)
			continue
		}
		logger.Info("loaded catalog file", "path", path, "responses", len(loaded))
		entries = append(entries, loaded...)
	}
	return entries, nil
}

// LoadFile parses one catalog file. Entries resolve their files relative to
// the catalog file's directory; unnamed entries are named after the file
// and their index.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range f.Responses {
		f.Responses[i].Dir = filepath.Dir(path)
		if f.Responses[i].Name == "" {
			f.Responses[i].Name = fmt.Sprintf("%s-%d", base, i)
		}
	}
	return f.Responses, nil
}

// Open loads a directory into a new catalog.
func Open(dir string, logger *slog.Logger) (*Catalog, error) {
	entries, err := LoadFromDirectory(dir, logger)
	if err != nil {
		return nil, err
	}
	c := New(logger)
	for _, e := range entries {
		if err := c.Register(e); err != nil {
			logger.Warn("skipping catalog entry", "name", e.Name, "err", err)
		}
	}
	return c, nil
}
