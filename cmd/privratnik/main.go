package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/akorchagin/privratnik/internal/bot"
	"github.com/akorchagin/privratnik/internal/config"
	"github.com/akorchagin/privratnik/internal/llm"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/visitor"
)

const version = "0.3.0"

type CLI struct {
	Config  string           `help:"Path to the TOML config file." short:"c" default:"privratnik.toml"`
	Debug   bool             `help:"Enable debug logging." short:"d"`
	DryRun  bool             `help:"Suppress all OpenAI calls, reply with a placeholder." name:"dry-run"`
	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("privratnik"),
		kong.Description("Admission-gated Telegram front end to OpenAI."),
		kong.Vars{"version": "privratnik " + version},
	)

	level := LevelInfo
	if cli.Debug {
		level = LevelDebug
	}
	Init(&Config{
		Level:      level,
		TimeFormat: "15:04:05",
		ShowCaller: true,
	})

	L_info("privratnik starting", "version", version)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		L_fatal("failed to load config", "path", cli.Config, "error", err)
	}
	if !cli.Debug {
		SetLevel(ParseLevel(cfg.Log.Level))
	}
	if cli.DryRun {
		cfg.Chat.DryRun = true
	}
	if cfg.Chat.DryRun {
		L_warn("dry run enabled, all OpenAI calls are suppressed")
	}

	store, err := visitor.Open(cfg.Database.DSN, cfg.Database.Path)
	if err != nil {
		L_fatal("failed to open visitor store", "error", err)
	}
	defer store.Close()

	backend := llm.NewClient(cfg.OpenAI.APIKey, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)

	b, err := bot.New(cfg, store, backend)
	if err != nil {
		L_fatal("failed to create bot", "error", err)
	}

	go b.Start()
	L_info("privratnik ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	b.Stop()
	L_info("privratnik stopped")
}
