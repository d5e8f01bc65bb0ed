package agents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// savedAgent is the on-disk form of one agent inside the snapshot. History is
// persisted separately, keyed by "<conversationID>-<agentID>".
type savedAgent struct {
	ID            string           `json:"id"`
	InitialPrompt string           `json:"initialPrompt"`
	Config        GenerationConfig `json:"config"`
}

// Store holds every conversation's agents and keeps the on-disk snapshot in
// step with memory: every mutating operation rewrites the snapshot file in
// full before returning. Write amplification is accepted; the data volume is
// conversation-scale.
type Store struct {
	mu            sync.Mutex
	snapshotPath  string
	historyDir    string
	defaultPrompt string

	agents map[string]map[string]*Agent // conversationID → agentID → agent
	order  map[string][]string          // agent-id insertion order per conversation
}

// NewStore creates a store backed by snapshotPath and historyDir, loading the
// existing snapshot if one is present. defaultPrompt seeds lazily provisioned
// default agents; pass "" to use DefaultPrompt.
func NewStore(snapshotPath, historyDir, defaultPrompt string) *Store {
	if defaultPrompt == "" {
		defaultPrompt = DefaultPrompt
	}
	s := &Store{
		snapshotPath:  snapshotPath,
		historyDir:    historyDir,
		defaultPrompt: defaultPrompt,
		agents:        make(map[string]map[string]*Agent),
		order:         make(map[string][]string),
	}
	s.Load()
	return s
}

// normalizeID folds an agent id for case-insensitive lookup. Conversation ids
// are opaque transport identifiers and are never folded.
func normalizeID(agentID string) string { return strings.ToLower(agentID) }

// Exists reports whether the agent is present, by exact (folded) key lookup.
// No fuzzy matching and no side effects.
func (s *Store) Exists(conversationID, agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[conversationID][normalizeID(agentID)]
	return ok
}

// Get returns the agent, or nil when it does not exist.
//
// Looking up DefaultAgentID in a conversation that has no such agent yet
// creates it with the built-in default prompt and default generation config,
// persisting the snapshot. Every other missing lookup returns nil without
// side effects. The asymmetry is intentional: the default agent must always
// answer, while typos in explicit agent ids must not silently mint agents.
func (s *Store) Get(conversationID, agentID string) *Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := normalizeID(agentID)
	if s.agents[conversationID] == nil {
		s.agents[conversationID] = make(map[string]*Agent)
	}
	if s.agents[conversationID][id] == nil && id == DefaultAgentID {
		s.createLocked(conversationID, id, s.defaultPrompt, DefaultGenerationConfig())
	}
	return s.agents[conversationID][id]
}

// Create unconditionally creates (or overwrites) an agent and persists the
// snapshot before returning. Duplicate checking is the caller's concern.
// A nil config means DefaultGenerationConfig.
func (s *Store) Create(conversationID, agentID, initialPrompt string, config *GenerationConfig) *Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := DefaultGenerationConfig()
	if config != nil {
		cfg = *config
	}
	return s.createLocked(conversationID, normalizeID(agentID), initialPrompt, cfg)
}

func (s *Store) createLocked(conversationID, id, initialPrompt string, cfg GenerationConfig) *Agent {
	if s.agents[conversationID] == nil {
		s.agents[conversationID] = make(map[string]*Agent)
	}
	if _, exists := s.agents[conversationID][id]; !exists {
		s.order[conversationID] = append(s.order[conversationID], id)
	}

	agent := &Agent{
		ID:            id,
		InitialPrompt: initialPrompt,
		Config:        cfg,
		History:       NewHistory(s.historyDir, historyKey(conversationID, id)),
	}
	s.agents[conversationID][id] = agent
	s.persistLocked()
	return agent
}

// ListIDs returns the conversation's agent ids in insertion order.
func (s *Store) ListIDs(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.order[conversationID]))
	copy(ids, s.order[conversationID])
	return ids
}

// UpdatePrompt replaces an agent's initial prompt and persists the snapshot.
func (s *Store) UpdatePrompt(conversationID, agentID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[conversationID][normalizeID(agentID)]
	if !ok {
		return fmt.Errorf("agent %q not found in conversation %s", agentID, conversationID)
	}
	agent.InitialPrompt = prompt
	return s.persistLocked()
}

// AttributeChange pairs one knob with its new value.
type AttributeChange struct {
	Attr  Attribute
	Value float64
}

// ApplyAttributes mutates several generation knobs and persists the snapshot
// once. Callers validate the changes first; a multi-setting command must not
// rewrite the snapshot per setting.
func (s *Store) ApplyAttributes(conversationID, agentID string, changes []AttributeChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[conversationID][normalizeID(agentID)]
	if !ok {
		return fmt.Errorf("agent %q not found in conversation %s", agentID, conversationID)
	}
	for _, ch := range changes {
		agent.set(ch.Attr, ch.Value)
	}
	return s.persistLocked()
}

// SetAttribute mutates one generation knob and persists the snapshot.
func (s *Store) SetAttribute(conversationID, agentID string, attr Attribute, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[conversationID][normalizeID(agentID)]
	if !ok {
		return fmt.Errorf("agent %q not found in conversation %s", agentID, conversationID)
	}
	agent.set(attr, value)
	return s.persistLocked()
}

// Persist writes the full snapshot of every conversation's agents,
// overwriting the file entirely.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	snapshot := make(map[string][]savedAgent, len(s.agents))
	for conversationID, byID := range s.agents {
		saved := make([]savedAgent, 0, len(byID))
		for _, id := range s.order[conversationID] {
			agent, ok := byID[id]
			if !ok {
				continue
			}
			saved = append(saved, savedAgent{
				ID:            agent.ID,
				InitialPrompt: agent.InitialPrompt,
				Config:        agent.Config,
			})
		}
		snapshot[conversationID] = saved
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := atomicWrite(dir, s.snapshotPath, data); err != nil {
		return fmt.Errorf("write agent snapshot: %w", err)
	}
	return nil
}

// Load replaces in-memory state with the persisted snapshot. A missing file
// is first-run; a corrupt file is reported distinctly. Both recover the same
// way: reinitialize to an empty, valid, persisted snapshot rather than leave
// state undefined.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = make(map[string]map[string]*Agent)
	s.order = make(map[string][]string)

	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no agent snapshot found, starting empty", "path", s.snapshotPath)
		} else {
			slog.Warn("agent snapshot unreadable, starting empty", "path", s.snapshotPath, "error", err)
		}
		s.persistLocked()
		return
	}

	var snapshot map[string][]savedAgent
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Warn("agent snapshot corrupt, reinitializing", "path", s.snapshotPath, "error", err)
		s.persistLocked()
		return
	}

	for conversationID, saved := range snapshot {
		s.agents[conversationID] = make(map[string]*Agent, len(saved))
		for _, sa := range saved {
			id := normalizeID(sa.ID)
			s.agents[conversationID][id] = &Agent{
				ID:            id,
				InitialPrompt: sa.InitialPrompt,
				Config:        sa.Config,
				History:       NewHistory(s.historyDir, historyKey(conversationID, id)),
			}
			s.order[conversationID] = append(s.order[conversationID], id)
		}
	}
}

func historyKey(conversationID, agentID string) string {
	return conversationID + "-" + agentID
}
