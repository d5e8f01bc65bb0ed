package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Owner: OwnerConfig{
			Name: "Owner",
		},
		Agents: AgentsConfig{
			SnapshotPath: "./data/agents.json",
			HistoryDir:   "./data/memory",
		},
		OpenAI: OpenAIConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Diffusion: DiffusionConfig{
			ProfilesPath: "./data/sd_profiles.json",
			OutputDir:    "./output",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "waclaw",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; env vars alone can configure the bot.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("WACLAW_OWNER", &c.Owner.Name)
	envStr("WACLAW_OWN_PHONE_NUMBER", &c.Owner.PhoneNumber)

	envStr("WACLAW_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("WACLAW_OPENAI_API_HOST", &c.OpenAI.APIBase)
	envStr("WACLAW_MODEL", &c.OpenAI.Model)

	envStr("WACLAW_SD_API_HOST", &c.Diffusion.APIHost)
	envStr("WACLAW_OUTPUT_DIR", &c.Diffusion.OutputDir)

	envStr("WACLAW_AGENTS_SNAPSHOT", &c.Agents.SnapshotPath)
	envStr("WACLAW_HISTORY_DIR", &c.Agents.HistoryDir)
	envStr("WACLAW_DEFAULT_PROMPT", &c.Agents.DefaultPrompt)

	envStr("WACLAW_WA_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	envStr("WACLAW_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	if v := os.Getenv("WACLAW_TELEGRAM_OWNER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Channels.Telegram.OwnerID = id
		}
	}

	// Auto-enable channels if credentials are provided via env
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.WhatsApp.BridgeURL != "" {
		c.Channels.WhatsApp.Enabled = true
	}

	envStr("WACLAW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("WACLAW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("WACLAW_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}
