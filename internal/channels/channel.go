// Package channels connects chat transports to the command dispatcher.
//
// A Channel owns one transport connection (a WhatsApp bridge websocket,
// Telegram long polling) and converts transport messages into
// command.Message values. The Manager owns channel lifecycle, deduplicates
// redelivered messages, and rate limits per conversation before handing
// messages to the dispatcher.
package channels

import (
	"context"

	"github.com/nextlevelbuilder/waclaw/internal/command"
)

// Handler consumes one inbound message. The dispatcher's Dispatch method
// satisfies this.
type Handler func(ctx context.Context, msg command.Message)

// Channel is one chat transport.
type Channel interface {
	// Name returns the transport identifier (e.g. "whatsapp", "telegram").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the transport.
	Stop(ctx context.Context) error

	// IsRunning reports whether the channel is actively processing messages.
	IsRunning() bool
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
// Used for log previews of message content.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
