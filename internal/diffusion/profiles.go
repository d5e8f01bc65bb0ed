package diffusion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Profile is a named set of generation parameters scoped to one chat.
type Profile struct {
	ID             string `json:"id"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	CfgScale       int    `json:"cfgScale"`
	NegativePrompt string `json:"negativePrompt"`
	StylePrompt    string `json:"stylePrompt"`
}

// ProfileUpdate is a partial profile change. Nil fields keep the stored value.
type ProfileUpdate struct {
	Steps          *int
	Width          *int
	Height         *int
	CfgScale       *int
	NegativePrompt *string
	StylePrompt    *string
}

// DefaultProfile is the profile lazily created per chat on first use.
func DefaultProfile() Profile {
	return Profile{
		ID:             "default",
		Steps:          40,
		Width:          1024,
		Height:         1024,
		CfgScale:       5,
		NegativePrompt: "",
		StylePrompt:    "SCORE_9,SCORE_8_UP,SCORE_8,SCORE_7_UP,SCORE_7",
	}
}

// ProfileStore persists generation profiles in one JSON file, keyed
// "<chatID>_<profileID>". Every mutation rewrites the file atomically.
type ProfileStore struct {
	mu       sync.Mutex
	path     string
	profiles map[string]Profile
}

// NewProfileStore loads the store from path, self-healing a missing or
// corrupt file to a valid empty one.
func NewProfileStore(path string) *ProfileStore {
	s := &ProfileStore{path: path, profiles: make(map[string]Profile)}
	s.load()
	return s
}

func profileKey(chatID, profileID string) string {
	return chatID + "_" + profileID
}

// Get returns the chat's profile by id.
func (s *ProfileStore) Get(chatID, profileID string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileKey(chatID, profileID)]
	return p, ok
}

// Default returns the chat's default profile, creating and persisting it on
// first use.
func (s *ProfileStore) Default(chatID string) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := profileKey(chatID, "default")
	if p, ok := s.profiles[key]; ok {
		return p
	}
	p := DefaultProfile()
	s.profiles[key] = p
	if err := s.persistLocked(); err != nil {
		slog.Warn("failed to persist default profile", "chat", chatID, "error", err)
	}
	return p
}

// Create adds a profile to the chat. Creating an id that already exists in
// the same chat is an error; Update is the overwrite path.
func (s *ProfileStore) Create(chatID string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := profileKey(chatID, profile.ID)
	if _, exists := s.profiles[key]; exists {
		return fmt.Errorf("profile %q already exists in this chat", profile.ID)
	}
	s.profiles[key] = profile
	return s.persistLocked()
}

// Update merges a partial change into an existing profile and returns the
// result. Updating "default" provisions it first, so the default profile can
// be tuned before it was ever used.
func (s *ProfileStore) Update(chatID, profileID string, update ProfileUpdate) (Profile, error) {
	if profileID == "default" {
		s.Default(chatID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := profileKey(chatID, profileID)
	p, ok := s.profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in this chat", profileID)
	}

	if update.Steps != nil {
		p.Steps = *update.Steps
	}
	if update.Width != nil {
		p.Width = *update.Width
	}
	if update.Height != nil {
		p.Height = *update.Height
	}
	if update.CfgScale != nil {
		p.CfgScale = *update.CfgScale
	}
	if update.NegativePrompt != nil {
		p.NegativePrompt = *update.NegativePrompt
	}
	if update.StylePrompt != nil {
		p.StylePrompt = *update.StylePrompt
	}

	s.profiles[key] = p
	return p, s.persistLocked()
}

// List returns the chat's profiles sorted by id.
func (s *ProfileStore) List(chatID string) []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := chatID + "_"
	var out []Profile
	for key, p := range s.profiles {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *ProfileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no profile file found, starting empty", "path", s.path)
		} else {
			slog.Warn("profile file unreadable, starting empty", "path", s.path, "error", err)
		}
		s.persistLocked()
		return
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		slog.Warn("profile file corrupt, reinitializing", "path", s.path, "error", err)
		s.profiles = make(map[string]Profile)
		s.persistLocked()
	}
}

func (s *ProfileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := atomicWrite(dir, s.path, data); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

// atomicWrite writes data to path via a temp file in dir plus a rename.
func atomicWrite(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".write-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
