package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/config"
	"github.com/nextlevelbuilder/waclaw/internal/providers"
)

// conversationFormat tells the model how user turns are framed, so it can
// tell the metadata header apart from message content.
const conversationFormat = "This is the conversation Format\n\n" +
	"User:\nCurrent Date: [MESSAGE_DATE]\nCurrent Time: [MESSAGE_TIME]\n" +
	"From: [USER_FROM]\nBody: [USER_MESSAGE]\nAssistant: [ASSISTANT_RESPONSE]"

// systemMessage builds the system turn: embedding context, the conversation
// format contract, the agent's own description, and the participant roster.
func systemMessage(initialPrompt string, participants []string) providers.Message {
	return providers.Message{
		Role: "system",
		Content: "System: You are an AI system embedded in a whatsapp group.\n\n" +
			conversationFormat +
			"\n\nThis is a description of yourself: " + initialPrompt +
			"\n\nThis are all the people in the conversation: " + strings.Join(participants, ", ") +
			"\n\nThe actual conversation starts here.\n",
	}
}

// userTurn wraps a message body with its metadata header. The owner's phone
// number is replaced by their display name wherever it appears; the model
// never sees the raw number.
func userTurn(senderName, body string, now time.Time, owner config.OwnerConfig) string {
	from := "From: " + senderName
	if owner.PhoneNumber != "" {
		from = strings.ReplaceAll(from, owner.PhoneNumber, owner.Name)
	}
	return strings.Join([]string{
		"Current Date: " + now.Format("1/2/2006"),
		"Current Time: " + now.Format("3:04:05 PM"),
		from,
		"Body: " + body,
	}, "\n")
}

// participantNames resolves the conversation roster for the system message,
// substituting the owner's display name and falling back to the sender alone
// when the roster is unavailable.
func participantNames(ctx context.Context, msg command.Message, owner config.OwnerConfig) []string {
	names, err := msg.Participants(ctx)
	if err != nil || len(names) == 0 {
		name, serr := msg.SenderName(ctx)
		if serr != nil || name == "" {
			return nil
		}
		names = []string{name}
	}
	if owner.PhoneNumber == "" {
		return names
	}
	out := make([]string, len(names))
	for i, n := range names {
		if strings.Contains(n, owner.PhoneNumber) {
			out[i] = owner.Name
		} else {
			out[i] = n
		}
	}
	return out
}
