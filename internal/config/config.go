// Package config defines the waclaw configuration: a JSON5 file overlaid
// with WACLAW_* environment variables. Secrets (API keys, bot tokens) are
// expected from the environment and never written back to disk.
package config

// Config is the root configuration.
type Config struct {
	Owner     OwnerConfig     `json:"owner"`
	Agents    AgentsConfig    `json:"agents"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Diffusion DiffusionConfig `json:"diffusion"`
	Channels  ChannelsConfig  `json:"channels"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// OwnerConfig identifies the bot owner. The phone number gates owner-only
// commands and is replaced by Name in prompts so the model never sees it.
type OwnerConfig struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// AgentsConfig locates agent state on disk.
type AgentsConfig struct {
	SnapshotPath  string `json:"snapshot_path"`
	HistoryDir    string `json:"history_dir"`
	DefaultPrompt string `json:"default_prompt"`
}

// OpenAIConfig configures the completion provider. APIBase and Model are
// starting values; both are runtime-mutable through the owner config command.
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
	Model   string `json:"model"`
}

// DiffusionConfig configures the Stable Diffusion WebUI client. An empty
// APIHost disables image commands.
type DiffusionConfig struct {
	APIHost      string `json:"api_host"`
	ProfilesPath string `json:"profiles_path"`
	OutputDir    string `json:"output_dir"`
}

// ChannelsConfig configures the chat transports.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
}

// WhatsAppConfig points at the websocket bridge process.
type WhatsAppConfig struct {
	Enabled   bool   `json:"enabled"`
	BridgeURL string `json:"bridge_url"`
}

// TelegramConfig holds the bot token for long polling. OwnerID is the
// numeric Telegram user id that passes the owner gate; zero means no sender
// is treated as the owner on this channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	OwnerID int64  `json:"owner_id"`
}

// TelemetryConfig configures OTLP trace export. Tracing stays off without an
// endpoint.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Insecure    bool   `json:"insecure"`
}
