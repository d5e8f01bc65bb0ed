// Package agents implements the per-conversation agent state store.
//
// Agents are namespaced by conversation: the same agent id in two
// conversations refers to two independent agents with independent prompts,
// generation configs, and histories. The set of (conversation, agent, prompt,
// config) tuples is persisted as one JSON snapshot that is rewritten in full
// on every mutation; each agent's chat history lives in its own JSON file
// keyed "<conversationID>-<agentID>".
package agents

import (
	"fmt"
	"strings"
)

// DefaultAgentID is the well-known agent id that is lazily provisioned on
// first lookup within a conversation.
const DefaultAgentID = "default"

// DefaultPrompt seeds the lazily provisioned default agent.
var DefaultPrompt = strings.Join([]string{
	"You are a state of the art personal assistant.",
	"You will be asked to remember things, and to remind them to the user at a later time.",
	"You will be helping people with their daily tasks.",
	"You will be polite and courteous at all times.",
	"You will remember anything users ask.",
	"You will never answer that you cannot be asked to remind something.",
	"Everything you need to remember will be supplied to you as part of the conversation.",
	"When answering a question, you will be helpful and informative.",
	"You do not shy away from making jokes whenever asked for.",
	"You are currently interfacing through a group chat, and you have access to the current conversation history.",
}, "\n")

// GenerationConfig holds the four sampling knobs for an agent. Values are
// bounded by the upstream API, not validated here.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`
}

// DefaultGenerationConfig returns the config newly created agents start with.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:      1.25,
		TopP:             1,
		FrequencyPenalty: 1.18,
		PresencePenalty:  0,
	}
}

// String renders the config one "name: value" line per knob, for chat replies.
func (c GenerationConfig) String() string {
	return fmt.Sprintf("temperature: %g\n\ttopP: %g\n\tfrequencyPenalty: %g\n\tpresencePenalty: %g",
		c.Temperature, c.TopP, c.FrequencyPenalty, c.PresencePenalty)
}

// Attribute identifies one settable generation knob.
type Attribute int

const (
	AttrTemperature Attribute = iota
	AttrTopP
	AttrFrequencyPenalty
	AttrPresencePenalty
)

var attributeNames = map[Attribute]string{
	AttrTemperature:      "temperature",
	AttrTopP:             "topP",
	AttrFrequencyPenalty: "frequencyPenalty",
	AttrPresencePenalty:  "presencePenalty",
}

func (a Attribute) String() string { return attributeNames[a] }

// Attributes lists every settable attribute in display order.
func Attributes() []Attribute {
	return []Attribute{AttrTemperature, AttrTopP, AttrFrequencyPenalty, AttrPresencePenalty}
}

// AttributeNames lists the canonical attribute names in display order.
func AttributeNames() []string {
	names := make([]string, 0, len(attributeNames))
	for _, a := range Attributes() {
		names = append(names, a.String())
	}
	return names
}

// ParseAttribute resolves a user-supplied attribute name. Chat text reaches
// the extractor case-folded, so names are matched case-insensitively.
func ParseAttribute(name string) (Attribute, bool) {
	for attr, canonical := range attributeNames {
		if strings.EqualFold(name, canonical) {
			return attr, true
		}
	}
	return 0, false
}

// Agent is one named persona inside a conversation.
type Agent struct {
	ID            string
	InitialPrompt string
	Config        GenerationConfig
	History       *History
}

// set applies one attribute mutation. The mapping is exhaustive over the
// Attribute enum.
func (a *Agent) set(attr Attribute, value float64) {
	switch attr {
	case AttrTemperature:
		a.Config.Temperature = value
	case AttrTopP:
		a.Config.TopP = value
	case AttrFrequencyPenalty:
		a.Config.FrequencyPenalty = value
	case AttrPresencePenalty:
		a.Config.PresencePenalty = value
	}
}
