// Package config provides configuration loading for privratnik.
package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"

	// Qualified import: this package declares its own Config type.
	"github.com/akorchagin/privratnik/internal/logging"
)

// Config represents the merged privratnik configuration
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Access   AccessConfig   `toml:"access"`
	Chat     ChatConfig     `toml:"chat"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AccessConfig holds the static allow-lists the admission gate consults on
// first contact. Reapproval controls whether a Declined visitor may be
// flipped back to Verified by an admin.
type AccessConfig struct {
	Admins     []string `toml:"admins"`
	Usernames  []string `toml:"usernames"`
	Reapproval bool     `toml:"reapproval"`
}

type ChatConfig struct {
	HistoryLimit int  `toml:"history_limit"`
	DryRun       bool `toml:"dry_run"`
}

// DatabaseConfig selects the visitor store backend.
// DSN, when set, points at Postgres; otherwise Path names a SQLite file.
type DatabaseConfig struct {
	Path string `toml:"path"`
	DSN  string `toml:"dsn"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			TimeoutSeconds: 120,
		},
		Chat: ChatConfig{
			HistoryLimit: 20,
		},
		Database: DatabaseConfig{
			Path: "privratnik.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a TOML file and merges it over Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := mergo.Merge(&cfg, *Defaults()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	logging.L_debug("config: loaded", "path", path, "admins", len(cfg.Access.Admins), "usernames", len(cfg.Access.Usernames))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the startup invariants. Failing any of these is fatal:
// a bot without a token or an empty allow-list cannot admit anyone.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if !c.Chat.DryRun && strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("openai.api_key is required unless chat.dry_run is set")
	}
	if len(trimAll(c.Access.Usernames)) == 0 {
		return fmt.Errorf("access.usernames must list at least one allowed username")
	}
	if len(trimAll(c.Access.Admins)) == 0 {
		return fmt.Errorf("access.admins must list at least one admin username")
	}
	if c.Chat.HistoryLimit < 1 {
		return fmt.Errorf("chat.history_limit must be positive, got %d", c.Chat.HistoryLimit)
	}
	return nil
}

// IsAdmin reports whether username is on the static admin list.
func (a *AccessConfig) IsAdmin(username string) bool {
	return contains(a.Admins, username)
}

// IsVerified reports whether username is on the static verified allow-list.
func (a *AccessConfig) IsVerified(username string) bool {
	return contains(a.Usernames, username)
}

func contains(list []string, name string) bool {
	if name == "" {
		return false
	}
	for _, item := range list {
		if strings.TrimSpace(item) == name {
			return true
		}
	}
	return false
}

func trimAll(list []string) []string {
	var out []string
	for _, item := range list {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
