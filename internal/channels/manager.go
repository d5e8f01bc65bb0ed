package channels

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/waclaw/internal/command"
)

// Manager manages registered channels and funnels their inbound messages
// through dedup and rate limiting into the handler.
//
// Handling is serialized per conversation: messages for the same conversation
// run one at a time in arrival order, so handlers never mutate one
// conversation's agents or history concurrently. Different conversations
// proceed in parallel.
type Manager struct {
	handler Handler
	dedup   *recentSet
	limiter *conversationLimiter

	mu       sync.RWMutex
	channels map[string]Channel

	qmu      sync.Mutex
	pending  map[string][]inbound
	draining map[string]bool
}

// inbound is one accepted message queued for its conversation, carrying the
// context it arrived with.
type inbound struct {
	ctx context.Context
	msg command.Message
}

// NewManager creates a channel manager delivering messages to handler.
// Channels are registered externally via Register.
func NewManager(handler Handler) *Manager {
	return &Manager{
		handler:  handler,
		dedup:    newRecentSet(dedupCapacity),
		limiter:  newConversationLimiter(),
		channels: make(map[string]Channel),
		pending:  make(map[string][]inbound),
		draining: make(map[string]bool),
	}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Channel returns a registered channel by name.
func (m *Manager) Channel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns the names of all registered channels.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll starts every registered channel. A channel that fails to start is
// logged and skipped; the remaining channels still come up.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, ch := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}
	return nil
}

// StopAll gracefully stops every registered channel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := ch.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}

// HandleInbound is called by channels for every received message. Redelivered
// messages (reconnect replays) and conversations over their rate budget are
// dropped here, before any command work happens. Accepted messages are queued
// per conversation and handled off the caller's goroutine, so a slow
// completion never blocks the transport's read loop.
func (m *Manager) HandleInbound(ctx context.Context, channelName string, msg command.Message) {
	if msg.ID() != "" && !m.dedup.Add(channelName+":"+msg.ID()) {
		slog.Debug("duplicate message dropped", "channel", channelName, "message_id", msg.ID())
		return
	}
	if !m.limiter.Allow(msg.ConversationID()) {
		slog.Warn("conversation over rate limit, message dropped",
			"channel", channelName,
			"conversation", msg.ConversationID(),
		)
		return
	}

	slog.Debug("message accepted",
		"channel", channelName,
		"conversation", msg.ConversationID(),
		"preview", Truncate(msg.Text(), 50),
	)

	m.enqueue(ctx, msg)
}

// enqueue appends the message to its conversation's queue and spawns a drain
// goroutine if that conversation doesn't have one running.
func (m *Manager) enqueue(ctx context.Context, msg command.Message) {
	conv := msg.ConversationID()

	m.qmu.Lock()
	m.pending[conv] = append(m.pending[conv], inbound{ctx: ctx, msg: msg})
	if m.draining[conv] {
		m.qmu.Unlock()
		return
	}
	m.draining[conv] = true
	m.qmu.Unlock()

	go m.drainConversation(conv)
}

// drainConversation handles the conversation's queued messages one at a time,
// in arrival order, and exits once the queue is empty.
func (m *Manager) drainConversation(conv string) {
	for {
		m.qmu.Lock()
		queue := m.pending[conv]
		if len(queue) == 0 {
			delete(m.pending, conv)
			delete(m.draining, conv)
			m.qmu.Unlock()
			return
		}
		next := queue[0]
		m.pending[conv] = queue[1:]
		m.qmu.Unlock()

		m.handler(next.ctx, next.msg)
	}
}
