package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"embedbot/internal/config"
)

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := configCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCmd_SetGetList(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.json")
	t.Cleanup(func() { configPath = "" })
	if err := config.Save(configPath, config.Defaults()); err != nil {
		t.Fatal(err)
	}

	if _, err := runConfig(t, "set", "channels.discord.limits.maxEmbedsPerMessage", "10"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := runConfig(t, "get", "channels.discord.limits.maxEmbedsPerMessage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Errorf("get = %q, want 10", out)
	}

	out, err = runConfig(t, "list", "--flat")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "channels.discord.limits.maxEmbedsPerMessage = 10\n") {
		t.Errorf("flat list missing updated value:\n%s", out)
	}
}

func TestConfigCmd_SetRejectsInvalid(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.json")
	t.Cleanup(func() { configPath = "" })
	if err := config.Save(configPath, config.Defaults()); err != nil {
		t.Fatal(err)
	}

	if _, err := runConfig(t, "set", "channels.discord.limits.maxEmbedsPerMessage", "11"); err == nil {
		t.Fatal("expected validation error")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Discord.Limits.MaxEmbedsPerMessage != 4 {
		t.Errorf("file should be unchanged, got %d", cfg.Channels.Discord.Limits.MaxEmbedsPerMessage)
	}
}
