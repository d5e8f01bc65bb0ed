package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/channels"
	"github.com/nextlevelbuilder/waclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/waclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/config"
	"github.com/nextlevelbuilder/waclaw/internal/diffusion"
	"github.com/nextlevelbuilder/waclaw/internal/dispatch"
	"github.com/nextlevelbuilder/waclaw/internal/providers"
	"github.com/nextlevelbuilder/waclaw/internal/telemetry"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.OpenAI.APIKey == "" {
		slog.Error("no OpenAI API key configured, set WACLAW_OPENAI_API_KEY")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store := agents.NewStore(cfg.Agents.SnapshotPath, cfg.Agents.HistoryDir, cfg.Agents.DefaultPrompt)
	completer := providers.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, cfg.OpenAI.Model)
	images := diffusion.NewClient(cfg.Diffusion.APIHost)
	profiles := diffusion.NewProfileStore(cfg.Diffusion.ProfilesPath)

	dispatcher := dispatch.New(dispatch.Deps{
		Store:     store,
		Completer: completer,
		Images:    images,
		Profiles:  profiles,
		Civitai:   diffusion.NewCivitaiClient(),
		Owner:     cfg.Owner,
		OutputDir: cfg.Diffusion.OutputDir,
		Tracer:    tel.Tracer,
	})

	manager := channels.NewManager(func(ctx context.Context, msg command.Message) {
		dispatcher.Dispatch(ctx, msg)
	})

	if cfg.Channels.WhatsApp.Enabled {
		ch, err := whatsapp.New(cfg.Channels.WhatsApp, cfg.Owner, manager)
		if err != nil {
			slog.Error("failed to create whatsapp channel", "error", err)
			os.Exit(1)
		}
		manager.Register(ch)
	}
	if cfg.Channels.Telegram.Enabled {
		ch, err := telegram.New(cfg.Channels.Telegram, manager)
		if err != nil {
			slog.Error("failed to create telegram channel", "error", err)
			os.Exit(1)
		}
		manager.Register(ch)
	}

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}
	slog.Info("waclaw started",
		"version", Version,
		"channels", manager.Names(),
		"model", completer.Model(),
		"sd_configured", images.Configured(),
	)

	<-ctx.Done()
	slog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.StopAll(stopCtx); err != nil {
		slog.Error("error stopping channels", "error", err)
	}
}
