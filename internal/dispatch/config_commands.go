package dispatch

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/command"
)

// Runtime config keys the owner can change without a restart. Changes are
// in-memory only and reset when the process restarts.
const (
	keyOpenAIAPIHost = "OPENAI_API_HOST"
	keyModel         = "MODEL"
	keySDAPIHost     = "SD_API_HOST"
)

func validConfigKeys() []string {
	return []string{keyOpenAIAPIHost, keyModel, keySDAPIHost}
}

func (d *Dispatcher) configSetCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "config-set",
		Templates:   []string{"/config set <key> <value>"},
		Description: "[Owner] Update runtime config values. Valid keys: " + strings.Join(validConfigKeys(), ", "),
		Extract:     command.ExtractConfigSet,
		Handle: func(ctx context.Context, params command.Params, _ *agents.Store, msg command.Message) bool {
			if !requireOwner(ctx, msg) {
				return false
			}

			switch params.ConfigKey {
			case keyOpenAIAPIHost:
				d.deps.Completer.SetAPIBase(params.ConfigValue)
			case keyModel:
				d.deps.Completer.SetModel(params.ConfigValue)
			case keySDAPIHost:
				d.deps.Images.SetHost(params.ConfigValue)
			default:
				reply(ctx, msg, botPrefix+"Invalid config key! Valid keys: "+strings.Join(validConfigKeys(), ", "))
				return false
			}

			reply(ctx, msg, botPrefix+"Updated "+params.ConfigKey+" to: "+params.ConfigValue+
				"\nNote: Changes are temporary and will reset on restart")
			return true
		},
	}
}

func (d *Dispatcher) configPrintCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "config-print",
		Templates:   []string{"/config print"},
		Description: "[Owner] Show current API configurations",
		Handle: func(ctx context.Context, _ command.Params, _ *agents.Store, msg command.Message) bool {
			if !requireOwner(ctx, msg) {
				return false
			}
			values := strings.Join([]string{
				keyOpenAIAPIHost + ": " + d.deps.Completer.APIBase(),
				keyModel + ": " + d.deps.Completer.Model(),
				keySDAPIHost + ": " + d.deps.Images.Host(),
			}, "\n")
			reply(ctx, msg, botPrefix+"Current Configuration:\n"+values)
			return true
		},
	}
}
