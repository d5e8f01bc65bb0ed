package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.APIBase != "https://api.openai.com/v1" {
		t.Errorf("APIBase = %q", cfg.OpenAI.APIBase)
	}
	if cfg.Agents.SnapshotPath == "" || cfg.Diffusion.ProfilesPath == "" {
		t.Errorf("missing path defaults: %+v", cfg)
	}
}

func TestLoadJSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	content := `{
		// owner settings
		owner: { name: "Ada", phone_number: "15550001111" },
		openai: { model: "gpt-4o" },
		diffusion: { api_host: "http://sd.local:7860" },
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Owner.Name != "Ada" || cfg.Owner.PhoneNumber != "15550001111" {
		t.Errorf("owner = %+v", cfg.Owner)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
	if cfg.Diffusion.APIHost != "http://sd.local:7860" {
		t.Errorf("sd host = %q", cfg.Diffusion.APIHost)
	}
	// File values merge over defaults, not replace them.
	if cfg.OpenAI.APIBase != "https://api.openai.com/v1" {
		t.Errorf("APIBase default lost: %q", cfg.OpenAI.APIBase)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverridesWinAndEnableChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{openai: {model: "from-file"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WACLAW_MODEL", "from-env")
	t.Setenv("WACLAW_OPENAI_API_KEY", "sk-test")
	t.Setenv("WACLAW_TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.Model != "from-env" {
		t.Errorf("model = %q, env should win over file", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("telegram token via env should enable the channel")
	}
	if cfg.Channels.WhatsApp.Enabled {
		t.Error("whatsapp should stay disabled without a bridge URL")
	}
}
