package channels

import "sync"

// dedupCapacity bounds the number of remembered message ids. Transports
// replay recent messages after a reconnect; anything older than the window
// has long been processed.
const dedupCapacity = 2048

// recentSet is a bounded set with FIFO eviction.
// Safe for concurrent use.
type recentSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	cap   int
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		seen: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

// Add inserts the key and reports whether it was new. Known keys return
// false and leave the set unchanged.
func (s *recentSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}
