package diffusion

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestProfileStore(t *testing.T) (*ProfileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sd_profiles.json")
	return NewProfileStore(path), path
}

func TestDefaultProfileLazilyCreated(t *testing.T) {
	s, _ := newTestProfileStore(t)

	if _, ok := s.Get("chat-1", "default"); ok {
		t.Fatal("default profile should not exist before first use")
	}

	p := s.Default("chat-1")
	if p.Steps != 40 || p.Width != 1024 || p.Height != 1024 || p.CfgScale != 5 {
		t.Errorf("default profile = %+v", p)
	}
	if _, ok := s.Get("chat-1", "default"); !ok {
		t.Error("Default did not persist the created profile")
	}
	if _, ok := s.Get("chat-2", "default"); ok {
		t.Error("default profile leaked into another chat")
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	s, _ := newTestProfileStore(t)

	if err := s.Create("chat-1", Profile{ID: "portrait", Steps: 30}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create("chat-1", Profile{ID: "portrait"}); err == nil {
		t.Error("duplicate create should fail")
	}
	// Same id in a different chat is fine.
	if err := s.Create("chat-2", Profile{ID: "portrait"}); err != nil {
		t.Errorf("create in another chat failed: %v", err)
	}
}

func TestUpdateMergesPartialFields(t *testing.T) {
	s, _ := newTestProfileStore(t)
	if err := s.Create("chat-1", Profile{ID: "portrait", Steps: 30, Width: 512, Height: 768, CfgScale: 7, NegativePrompt: "blurry"}); err != nil {
		t.Fatal(err)
	}

	cfg := 9
	got, err := s.Update("chat-1", "portrait", ProfileUpdate{CfgScale: &cfg})
	if err != nil {
		t.Fatal(err)
	}
	if got.CfgScale != 9 {
		t.Errorf("CfgScale = %d", got.CfgScale)
	}
	if got.Steps != 30 || got.Width != 512 || got.Height != 768 || got.NegativePrompt != "blurry" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestUpdateProvisionsDefault(t *testing.T) {
	s, _ := newTestProfileStore(t)

	steps := 25
	got, err := s.Update("chat-1", "default", ProfileUpdate{Steps: &steps})
	if err != nil {
		t.Fatal(err)
	}
	if got.Steps != 25 || got.Width != 1024 {
		t.Errorf("updated default = %+v", got)
	}
}

func TestUpdateUnknownProfile(t *testing.T) {
	s, _ := newTestProfileStore(t)
	if _, err := s.Update("chat-1", "ghost", ProfileUpdate{}); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestListFiltersByChat(t *testing.T) {
	s, _ := newTestProfileStore(t)
	s.Create("chat-1", Profile{ID: "b"})
	s.Create("chat-1", Profile{ID: "a"})
	s.Create("chat-2", Profile{ID: "c"})

	got := s.List("chat-1")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("List = %+v, want [a b]", got)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s, path := newTestProfileStore(t)
	s.Create("chat-1", Profile{ID: "portrait", Steps: 30, CfgScale: 7, StylePrompt: "oil painting"})
	s.Default("chat-1")

	reloaded := NewProfileStore(path)
	p, ok := reloaded.Get("chat-1", "portrait")
	if !ok || p.Steps != 30 || p.StylePrompt != "oil painting" {
		t.Errorf("round-tripped profile = %+v, ok = %v", p, ok)
	}
	if _, ok := reloaded.Get("chat-1", "default"); !ok {
		t.Error("default profile lost in round trip")
	}
}

func TestProfileStoreSelfHealsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sd_profiles.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewProfileStore(path)
	if got := s.List("chat-1"); len(got) != 0 {
		t.Errorf("corrupt file produced profiles: %v", got)
	}

	reloaded := NewProfileStore(path)
	if got := reloaded.List("chat-1"); len(got) != 0 {
		t.Errorf("self-healed file still corrupt: %v", got)
	}
}
