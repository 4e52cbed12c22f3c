package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "privratnik.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"

[openai]
api_key = "sk-test"

[access]
admins = ["bob"]
usernames = ["alice"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.HistoryLimit != 20 {
		t.Errorf("expected default history_limit 20, got %d", cfg.Chat.HistoryLimit)
	}
	if cfg.OpenAI.TimeoutSeconds != 120 {
		t.Errorf("expected default timeout 120, got %d", cfg.OpenAI.TimeoutSeconds)
	}
	if cfg.Database.Path != "privratnik.db" {
		t.Errorf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"

[openai]
api_key = "sk-test"
timeout_seconds = 30

[access]
admins = ["bob"]
usernames = ["alice", "carol"]

[chat]
history_limit = 6
dry_run = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.HistoryLimit != 6 {
		t.Errorf("expected history_limit 6, got %d", cfg.Chat.HistoryLimit)
	}
	if cfg.OpenAI.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.OpenAI.TimeoutSeconds)
	}
	if !cfg.Chat.DryRun {
		t.Error("expected dry_run true")
	}
}

func TestValidateRejectsEmptyAllowList(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"

[openai]
api_key = "sk-test"

[access]
admins = ["bob"]
usernames = []
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty usernames allow-list")
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	path := writeConfig(t, `
[openai]
api_key = "sk-test"

[access]
admins = ["bob"]
usernames = ["alice"]
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestDryRunAllowsMissingAPIKey(t *testing.T) {
	path := writeConfig(t, `
[telegram]
bot_token = "123:abc"

[access]
admins = ["bob"]
usernames = ["alice"]

[chat]
dry_run = true
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("dry_run config should not require api_key: %v", err)
	}
}

func TestAllowListLookups(t *testing.T) {
	access := AccessConfig{
		Admins:    []string{"bob"},
		Usernames: []string{"alice", " carol "},
	}

	if !access.IsAdmin("bob") {
		t.Error("bob should be admin")
	}
	if access.IsAdmin("alice") {
		t.Error("alice should not be admin")
	}
	if !access.IsVerified("carol") {
		t.Error("carol should be verified despite list whitespace")
	}
	if access.IsVerified("") {
		t.Error("empty username must never match an allow-list")
	}
}
