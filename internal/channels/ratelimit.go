package channels

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedConversations caps the limiter map so rotating conversation
	// ids cannot exhaust memory.
	maxTrackedConversations = 4096

	// conversationRate is the sustained budget per conversation, in
	// messages per second. Bursts up to conversationBurst pass immediately.
	conversationRate  = rate.Limit(0.5)
	conversationBurst = 5
)

// conversationLimiter holds one token bucket per conversation.
// Safe for concurrent use.
type conversationLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newConversationLimiter() *conversationLimiter {
	return &conversationLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether the conversation is within its rate budget.
func (l *conversationLimiter) Allow(conversationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[conversationID]
	if !ok {
		// Hard eviction at the cap; map iteration order picks the victims.
		for len(l.limiters) >= maxTrackedConversations {
			for k := range l.limiters {
				delete(l.limiters, k)
				break
			}
		}
		lim = rate.NewLimiter(conversationRate, conversationBurst)
		l.limiters[conversationID] = lim
	}
	return lim.Allow()
}
