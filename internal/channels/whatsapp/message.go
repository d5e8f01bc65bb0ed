package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/nextlevelbuilder/waclaw/internal/command"
)

// bridgeInbound is one message frame received from the bridge.
type bridgeInbound struct {
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	Chat         string   `json:"chat"`
	From         string   `json:"from"`
	FromName     string   `json:"from_name"`
	Content      string   `json:"content"`
	Group        bool     `json:"group"`
	Participants []string `json:"participants"`
	// Media is the base64 payload of an attached image, empty otherwise.
	Media string `json:"media"`
}

type bridgeTextFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Content string `json:"content"`
}

type bridgeImageFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Caption string `json:"caption"`
}

// Message adapts one bridge frame to the dispatcher's message surface.
type Message struct {
	channel *Channel
	frame   bridgeInbound
}

func (c *Channel) newMessage(frame bridgeInbound) *Message {
	if frame.Chat == "" {
		frame.Chat = frame.From
	}
	return &Message{channel: c, frame: frame}
}

func (m *Message) ID() string             { return m.frame.ID }
func (m *Message) ConversationID() string { return m.frame.Chat }
func (m *Message) Text() string           { return m.frame.Content }
func (m *Message) IsGroup() bool          { return m.frame.Group }
func (m *Message) IsOwner() bool          { return m.channel.isOwner(m.frame.From) }
func (m *Message) HasMedia() bool         { return m.frame.Media != "" }

// SenderName prefers the contact display name the bridge resolved; the bare
// JID is the fallback.
func (m *Message) SenderName(context.Context) (string, error) {
	if m.frame.FromName != "" {
		return m.frame.FromName, nil
	}
	return m.frame.From, nil
}

// Participants returns the group roster the bridge sent with the message.
func (m *Message) Participants(context.Context) ([]string, error) {
	return m.frame.Participants, nil
}

// Media decodes the attached image payload.
func (m *Message) Media(context.Context) ([]byte, error) {
	if m.frame.Media == "" {
		return nil, fmt.Errorf("message has no media")
	}
	data, err := base64.StdEncoding.DecodeString(m.frame.Media)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return data, nil
}

// Reply sends a text or image frame back to the originating chat.
func (m *Message) Reply(_ context.Context, r command.Reply) error {
	if len(r.ImagePNG) > 0 {
		return m.channel.writeFrame(bridgeImageFrame{
			Type:    "image",
			To:      m.frame.Chat,
			Data:    base64.StdEncoding.EncodeToString(r.ImagePNG),
			Caption: r.Caption,
		})
	}
	return m.channel.writeFrame(bridgeTextFrame{
		Type:    "message",
		To:      m.frame.Chat,
		Content: r.Text,
	})
}
