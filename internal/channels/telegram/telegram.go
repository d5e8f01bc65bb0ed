// Package telegram connects to the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/waclaw/internal/channels"
	"github.com/nextlevelbuilder/waclaw/internal/config"
)

// Channel receives Telegram updates via long polling and sends replies
// through the Bot API.
type Channel struct {
	cfg     config.TelegramConfig
	manager *channels.Manager
	bot     *telego.Bot

	mu         sync.Mutex
	running    bool
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, manager *channels.Manager) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{cfg: cfg, manager: manager, bot: bot}, nil
}

func (c *Channel) Name() string { return "telegram" }

// IsRunning reports whether the polling loop is active.
func (c *Channel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start begins long polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	slog.Info("telegram bot connected")

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels the long polling context and waits for the polling goroutine
// to exit, so Telegram releases the getUpdates lock before a new instance
// starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// handleMessage converts one Telegram message and hands it to the manager.
func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" && len(msg.Photo) == 0 {
		return
	}

	slog.Debug("telegram message received",
		"chat_id", msg.Chat.ID,
		"chat_type", msg.Chat.Type,
		"user_id", msg.From.ID,
		"preview", channels.Truncate(text, 50),
	)

	c.manager.HandleInbound(ctx, c.Name(), &Message{channel: c, msg: msg, text: text})
}
