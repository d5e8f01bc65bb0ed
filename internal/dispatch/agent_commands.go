package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/providers"
)

func (d *Dispatcher) chatCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "chat",
		Templates:   []string{"assistant <agentId> <...text>", "assistant <...text>"},
		Description: "Query an agent.",
		Extract:     command.ChatExtractor(agents.DefaultAgentID),
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			reply(ctx, msg, botPrefix+"Processing...")

			conversationID := msg.ConversationID()
			agent := store.Get(conversationID, params.AgentID)
			if agent == nil {
				reply(ctx, msg, botPrefix+"No agent named "+params.AgentID+" exists!")
				return false
			}

			sender, err := msg.SenderName(ctx)
			if err != nil {
				slog.Debug("could not resolve sender name", "conversation", conversationID, "error", err)
			}
			query := userTurn(sender, params.Text, time.Now(), d.deps.Owner)
			participants := participantNames(ctx, msg, d.deps.Owner)

			messages := []providers.Message{systemMessage(agent.InitialPrompt, participants)}
			for _, turn := range agent.History.Turns() {
				messages = append(messages, providers.Message{Role: turn.Role, Content: turn.Content})
			}
			messages = append(messages, providers.Message{Role: "user", Content: query})

			response, err := d.deps.Completer.Complete(ctx, providers.CompletionRequest{
				Messages:         messages,
				Temperature:      agent.Config.Temperature,
				TopP:             agent.Config.TopP,
				FrequencyPenalty: agent.Config.FrequencyPenalty,
				PresencePenalty:  agent.Config.PresencePenalty,
			})
			if err != nil {
				slog.Error("completion failed", "conversation", conversationID, "agent", agent.ID, "error", err)
				reply(ctx, msg, "There was an error processing your request.")
				return false
			}
			response = strings.TrimSpace(response)

			nameString := "🤖:"
			if agent.ID != agents.DefaultAgentID {
				nameString = "🤖 " + agent.ID + ":\n"
			}
			reply(ctx, msg, nameString+"\n"+response)

			// The wrapped query is what the model saw, so that is what the
			// history remembers.
			if err := agent.History.Append("user", query); err != nil {
				slog.Warn("failed to persist user turn", "agent", agent.ID, "error", err)
			}
			if err := agent.History.Append("assistant", response); err != nil {
				slog.Warn("failed to persist assistant turn", "agent", agent.ID, "error", err)
			}
			return true
		},
	}
}

func (d *Dispatcher) forgetCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "forget",
		Templates:   []string{"/agent <agentId> forget history"},
		Description: "Delete the chat history of an agent.",
		Extract:     command.ExtractHistoryTarget,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			agent := store.Get(msg.ConversationID(), params.AgentID)
			if agent == nil {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentToken+" does not exist!")
				return false
			}
			if err := agent.History.Forget(); err != nil {
				slog.Warn("failed to clear history", "agent", agent.ID, "error", err)
			}
			reply(ctx, msg, botPrefix+"Deleted agent "+agent.ID+" memory!")
			return true
		},
	}
}

func (d *Dispatcher) reloadCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "reload",
		Templates:   []string{"/agent <agentId> reload history"},
		Description: "Reload the chat history of an agent.",
		Extract:     command.ExtractHistoryTarget,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			agent := store.Get(msg.ConversationID(), params.AgentID)
			if agent == nil {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentToken+" does not exist!")
				return false
			}
			if err := agent.History.Reload(); err != nil {
				slog.Warn("failed to reload history", "agent", agent.ID, "error", err)
			}
			reply(ctx, msg, botPrefix+"Reloaded agent "+agent.ID+" memory!")
			return true
		},
	}
}

func (d *Dispatcher) listCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "list",
		Templates:   []string{"/agent list"},
		Description: "List all available chat agents.",
		Handle: func(ctx context.Context, _ command.Params, store *agents.Store, msg command.Message) bool {
			ids := store.ListIDs(msg.ConversationID())
			reply(ctx, msg, botPrefix+"\t"+strings.Join(ids, "\n\t"))
			return true
		},
	}
}

func (d *Dispatcher) createCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "create",
		Templates:   []string{"/agent create <agentId> <...prompt>"},
		Description: "Create a new chat agent.",
		Extract:     command.ExtractCreate,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			conversationID := msg.ConversationID()
			if store.Exists(conversationID, params.AgentID) {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentID+" already exists!")
				return false
			}
			store.Create(conversationID, params.AgentID, params.Prompt, nil)
			reply(ctx, msg, botPrefix+"Created agent "+params.AgentID+"!\nInitial Prompt: "+params.Prompt)
			return true
		},
	}
}

func (d *Dispatcher) modifyCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "modify",
		Templates:   []string{"/agent modify <agentId> <...prompt>"},
		Description: "Modify an existing chat agent.",
		Extract:     command.ExtractModify,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			conversationID := msg.ConversationID()
			if !store.Exists(conversationID, params.AgentID) {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentToken+" does not exist!")
				return false
			}
			if err := store.UpdatePrompt(conversationID, params.AgentID, params.Prompt); err != nil {
				slog.Warn("failed to update prompt", "agent", params.AgentID, "error", err)
				return false
			}
			reply(ctx, msg, botPrefix+"Updated agent "+params.AgentID+"!\nNew Prompt: "+params.Prompt)
			return true
		},
	}
}

func (d *Dispatcher) getCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "get",
		Templates:   []string{"/agent get <agentId>"},
		Description: "Get the initial prompt and config for an existing chat agent.",
		Extract:     command.ExtractGet,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			agent := store.Get(msg.ConversationID(), params.AgentID)
			if agent == nil {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentToken+" does not exist!")
				return false
			}
			reply(ctx, msg, botPrefix+"Agent "+agent.ID+"!\nPrompt: "+agent.InitialPrompt+
				"\nConfig:\n\t"+agent.Config.String())
			return true
		},
	}
}

func (d *Dispatcher) setCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "set",
		Templates:   []string{"/agent set <agentId> <...settings>"},
		Description: "Modify agent parameters (temperature, topP, frequencyPenalty, presencePenalty)",
		Extract:     command.ExtractSet,
		Handle: func(ctx context.Context, params command.Params, store *agents.Store, msg command.Message) bool {
			conversationID := msg.ConversationID()
			if !store.Exists(conversationID, params.AgentID) {
				reply(ctx, msg, botPrefix+"Agent "+params.AgentToken+" does not exist!")
				return false
			}

			// Validate every setting, report per item, and persist once if
			// anything succeeded.
			var results []string
			var changes []agents.AttributeChange
			for _, setting := range params.Settings {
				attr, ok := agents.ParseAttribute(setting.Attribute)
				if !ok {
					results = append(results, "❌ Invalid attribute: "+setting.Attribute+
						"\nValid attributes: "+strings.Join(agents.AttributeNames(), ", "))
					continue
				}
				if !setting.IsNumber {
					results = append(results, "❌ Invalid value for "+setting.Attribute+": Not a number")
					continue
				}
				changes = append(changes, agents.AttributeChange{Attr: attr, Value: setting.Value})
				results = append(results, "✅ Set "+attr.String()+" to "+strconv.FormatFloat(setting.Value, 'g', -1, 64))
			}

			if len(changes) > 0 {
				if err := store.ApplyAttributes(conversationID, params.AgentID, changes); err != nil {
					slog.Warn("failed to apply attributes", "agent", params.AgentID, "error", err)
				}
			}

			reply(ctx, msg, botPrefix+strings.Join(results, "\n"))
			return true
		},
	}
}

func (d *Dispatcher) helpCommand() *command.Descriptor {
	return &command.Descriptor{
		Name:        "help",
		Templates:   []string{"/agent help"},
		Description: "List all available commands.",
		Handle: func(ctx context.Context, _ command.Params, _ *agents.Store, msg command.Message) bool {
			var lines []string
			for _, desc := range d.registry.Descriptors() {
				lines = append(lines, desc.Name+":\n\tDescription: "+desc.Description+"\n\tUsage: "+desc.Usage())
			}
			reply(ctx, msg, botPrefix+strings.Join(lines, "\n"))
			return true
		},
	}
}
