// Package dispatch binds the command registry to its collaborators: the
// agent store, the completion provider, the image backend, and the channel
// message context. It owns the full command catalogue and the reply
// formatting of every command.
package dispatch

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/config"
	"github.com/nextlevelbuilder/waclaw/internal/diffusion"
	"github.com/nextlevelbuilder/waclaw/internal/providers"
)

// botPrefix opens almost every reply so bot output is visually distinct in
// the chat.
const botPrefix = "🤖:\n"

// CompletionBackend is the completion provider surface the dispatcher needs:
// chat completions plus the runtime-mutable host and model.
type CompletionBackend interface {
	Complete(ctx context.Context, req providers.CompletionRequest) (string, error)
	Model() string
	SetModel(string)
	APIBase() string
	SetAPIBase(string)
}

// ImageBackend is the Stable Diffusion surface the dispatcher needs.
type ImageBackend interface {
	Configured() bool
	Host() string
	SetHost(string)
	Txt2Img(ctx context.Context, req diffusion.GenerateRequest) ([]byte, error)
	Img2Img(ctx context.Context, req diffusion.GenerateRequest, initImage []byte, denoisingStrength float64) ([]byte, error)
	Interrogate(ctx context.Context, image []byte, interrogator string) (string, error)
	Models(ctx context.Context) ([]diffusion.Model, error)
	RefreshModels(ctx context.Context) error
	SetModel(ctx context.Context, name string) error
	CurrentModel(ctx context.Context) (string, error)
}

// ModelLookup resolves checkpoint hashes to public model metadata.
type ModelLookup interface {
	VersionByHash(ctx context.Context, hash string) (*diffusion.ModelVersion, error)
}

// Deps are the dispatcher's collaborators.
type Deps struct {
	Store     *agents.Store
	Completer CompletionBackend
	Images    ImageBackend
	Profiles  *diffusion.ProfileStore
	Civitai   ModelLookup
	Owner     config.OwnerConfig
	OutputDir string
	Tracer    trace.Tracer
}

// Dispatcher routes inbound messages through the command registry.
type Dispatcher struct {
	deps     Deps
	registry *command.Registry
}

// New builds a dispatcher with the full command catalogue registered.
func New(deps Deps) *Dispatcher {
	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("waclaw")
	}
	d := &Dispatcher{deps: deps}
	d.registry = command.NewRegistry(d.descriptors()...)
	return d
}

// Registry exposes the catalogue for help output and tests.
func (d *Dispatcher) Registry() *command.Registry { return d.registry }

// Dispatch routes one message. It returns false when no command matched;
// unmatched text is ordinary conversation and is dropped without a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg command.Message) bool {
	text := msg.Text()
	desc := d.registry.Route(text)
	if desc == nil {
		return false
	}

	ctx, span := d.deps.Tracer.Start(ctx, "dispatch."+desc.Name,
		trace.WithAttributes(attribute.String("conversation.id", msg.ConversationID())))
	defer span.End()

	var params command.Params
	if desc.Extract != nil {
		params = desc.Extract(text, d.deps.Store.ListIDs(msg.ConversationID()))
	}

	ok := desc.Handle(ctx, params, d.deps.Store, msg)
	span.SetAttributes(attribute.Bool("command.ok", ok))
	if !ok {
		slog.Debug("command did not complete", "command", desc.Name, "conversation", msg.ConversationID())
	}
	return true
}

// descriptors returns the command catalogue in priority order. The chat
// command comes first; its loose second template shadows every later
// descriptor for texts starting with "assistant".
func (d *Dispatcher) descriptors() []*command.Descriptor {
	return []*command.Descriptor{
		d.chatCommand(),
		d.forgetCommand(),
		d.reloadCommand(),
		d.listCommand(),
		d.createCommand(),
		d.modifyCommand(),
		d.getCommand(),
		d.setCommand(),
		d.helpCommand(),
		d.configSetCommand(),
		d.configPrintCommand(),
		d.imagineCommand(),
		d.profileCreateCommand(),
		d.profileListCommand(),
		d.profileUpdateCommand(),
		d.profileShowCommand(),
		d.modelsListCommand(),
		d.modelsSetCommand(),
		d.modelsCurrentCommand(),
		d.img2imgCommand(),
		d.modelsQueryCommand(),
		d.interrogateCommand(),
	}
}

// reply sends a text reply, logging delivery failures instead of propagating
// them; a lost reply must not abort command processing.
func reply(ctx context.Context, msg command.Message, text string) {
	if err := msg.Reply(ctx, command.Reply{Text: text}); err != nil {
		slog.Warn("failed to send reply", "conversation", msg.ConversationID(), "error", err)
	}
}

func replyImage(ctx context.Context, msg command.Message, png []byte, caption string) {
	if err := msg.Reply(ctx, command.Reply{ImagePNG: png, Caption: caption}); err != nil {
		slog.Warn("failed to send image reply", "conversation", msg.ConversationID(), "error", err)
	}
}

// requireOwner gates owner-only commands.
func requireOwner(ctx context.Context, msg command.Message) bool {
	if msg.IsOwner() {
		return true
	}
	reply(ctx, msg, botPrefix+"This command is only available for the owner!")
	return false
}
