// Package command implements the chat command surface: descriptors pairing
// templates with parameter extraction and a handler, an ordered registry, and
// the router that picks the first structurally matching descriptor.
//
// Registration order is the priority contract. The router is first-match-wins,
// so looser templates registered early shadow anything after them; every
// descriptor documents its place in the order where it is registered.
package command

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/waclaw/internal/agents"
	"github.com/nextlevelbuilder/waclaw/internal/template"
)

// Reply is the outbound payload a handler sends back through the channel.
// Either Text or ImagePNG is set; Caption annotates an image.
type Reply struct {
	Text     string
	ImagePNG []byte
	Caption  string
}

// Message is the inbound message context handed to handlers. Channel
// implementations adapt their transport message to this interface; the core
// never constructs transport payloads itself.
type Message interface {
	// ID identifies the message for boundary-layer deduplication.
	ID() string

	// ConversationID scopes agent lookups. Two conversations never share
	// agents, prompts, or histories.
	ConversationID() string

	// Text is the raw message body.
	Text() string

	// SenderName resolves the sender's display name.
	SenderName(ctx context.Context) (string, error)

	// IsOwner reports whether the sender is the configured bot owner.
	IsOwner() bool

	// IsGroup reports whether the conversation is a group chat.
	IsGroup() bool

	// Participants enumerates display names of everyone in the conversation.
	Participants(ctx context.Context) ([]string, error)

	// HasMedia reports whether an image is attached.
	HasMedia() bool

	// Media downloads the attached image bytes.
	Media(ctx context.Context) ([]byte, error)

	// Reply sends a response into the originating conversation.
	Reply(ctx context.Context, r Reply) error
}

// Extractor derives typed parameters from raw text. It may consult the
// conversation's known agent ids to tell an agent reference apart from an
// ordinary word. Extractors are pure; they run only after the descriptor's
// template already matched.
type Extractor func(text string, knownAgentIDs []string) Params

// Handler performs the command's side effects against the agent store and
// the message context. The returned bool reports success for logging only;
// user-visible failures are delivered as replies, not errors.
type Handler func(ctx context.Context, params Params, store *agents.Store, msg Message) bool

// Descriptor is one registered command: template set, extractor, handler.
// Descriptors are immutable after registration.
type Descriptor struct {
	Name        string
	Templates   []string
	Description string
	Extract     Extractor // nil for commands without parameters
	Handle      Handler
}

// Usage renders the descriptor's templates for help output.
func (d *Descriptor) Usage() string {
	return strings.Join(d.Templates, " | ")
}

// Matches reports whether any of the descriptor's templates matches text.
func (d *Descriptor) Matches(text string) bool {
	return template.MatchesAny(d.Templates, text)
}

// Registry is the fixed, ordered command catalogue.
type Registry struct {
	descriptors []*Descriptor
}

// NewRegistry builds a registry preserving registration order.
func NewRegistry(descriptors ...*Descriptor) *Registry {
	return &Registry{descriptors: descriptors}
}

// Descriptors returns the registry in registration order, for help output.
func (r *Registry) Descriptors() []*Descriptor {
	return r.descriptors
}

// Route returns the first descriptor whose template set matches text, or nil
// when nothing matches. Nil is not an error: unmatched text is plain chat
// and the caller drops it silently.
func (r *Registry) Route(text string) *Descriptor {
	for _, d := range r.descriptors {
		if d.Matches(text) {
			return d
		}
	}
	return nil
}
