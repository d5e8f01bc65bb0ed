package agents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Turn is one entry in an agent's chat history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the persisted message log of a single agent. It is owned
// exclusively by that agent; every append rewrites the backing file in full.
type History struct {
	key   string // "<conversationID>-<agentID>"
	dir   string
	turns []Turn
}

// NewHistory loads the history for key from dir, self-healing to an empty
// persisted file when the file is absent or unreadable.
func NewHistory(dir, key string) *History {
	h := &History{key: key, dir: dir}
	if err := h.load(); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no history file yet, starting empty", "key", key)
		} else {
			slog.Warn("history file unreadable, resetting to empty", "key", key, "error", err)
		}
		h.turns = []Turn{}
		if werr := h.persist(); werr != nil {
			slog.Warn("failed to initialize history file", "key", key, "error", werr)
		}
	}
	return h
}

// Turns returns a copy of the in-memory history.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Append adds one turn and persists the full history synchronously.
func (h *History) Append(role, content string) error {
	h.turns = append(h.turns, Turn{Role: role, Content: content})
	return h.persist()
}

// Forget clears the history and persists the empty log.
func (h *History) Forget() error {
	h.turns = []Turn{}
	return h.persist()
}

// Reload discards the in-memory history and replaces it with whatever is
// currently on disk. Unpersisted in-memory turns are lost.
func (h *History) Reload() error {
	if err := h.load(); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("history file missing on reload, starting empty", "key", h.key)
		} else {
			slog.Warn("history file unreadable on reload, resetting", "key", h.key, "error", err)
		}
		h.turns = []Turn{}
		return h.persist()
	}
	return nil
}

func (h *History) path() string {
	return filepath.Join(h.dir, sanitizeFilename(h.key)+".json")
}

// sanitizeFilename makes a history key safe to use as a file name.
// Conversation ids can carry transport separators (":", "/").
func sanitizeFilename(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return r.Replace(key)
}

func (h *History) load() error {
	data, err := os.ReadFile(h.path())
	if err != nil {
		return err
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return fmt.Errorf("parse history %s: %w", h.key, err)
	}
	h.turns = turns
	return nil
}

// persist writes the history atomically: temp file, then rename. A crash
// mid-write never corrupts the previous log.
func (h *History) persist() error {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	data, err := json.MarshalIndent(h.turns, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(h.dir, h.path(), data)
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
