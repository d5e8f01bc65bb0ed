package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/waclaw/internal/command"
)

// mediaMaxBytes is the Bot API file download limit (20MB).
const mediaMaxBytes int64 = 20 * 1024 * 1024

// Message adapts one Telegram message to the dispatcher's message surface.
type Message struct {
	channel *Channel
	msg     *telego.Message
	text    string
}

func (m *Message) ID() string {
	return fmt.Sprintf("%d:%d", m.msg.Chat.ID, m.msg.MessageID)
}

func (m *Message) ConversationID() string {
	return strconv.FormatInt(m.msg.Chat.ID, 10)
}

func (m *Message) Text() string { return m.text }

func (m *Message) IsGroup() bool {
	return m.msg.Chat.Type == "group" || m.msg.Chat.Type == "supergroup"
}

func (m *Message) IsOwner() bool {
	return m.channel.cfg.OwnerID != 0 && m.msg.From.ID == m.channel.cfg.OwnerID
}

func (m *Message) SenderName(context.Context) (string, error) {
	name := m.msg.From.FirstName
	if m.msg.From.LastName != "" {
		name += " " + m.msg.From.LastName
	}
	return strings.TrimSpace(name), nil
}

// Participants returns nothing: the Bot API cannot enumerate group members,
// so the roster degrades to the sender alone.
func (m *Message) Participants(context.Context) ([]string, error) {
	return nil, nil
}

func (m *Message) HasMedia() bool { return len(m.msg.Photo) > 0 }

// Media downloads the attached photo at its highest resolution.
func (m *Message) Media(ctx context.Context) ([]byte, error) {
	if len(m.msg.Photo) == 0 {
		return nil, fmt.Errorf("message has no photo")
	}
	photo := m.msg.Photo[len(m.msg.Photo)-1]

	file, err := m.channel.bot.GetFile(ctx, &telego.GetFileParams{FileID: photo.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("empty file path for file_id %s", photo.FileID)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", m.channel.cfg.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, mediaMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > mediaMaxBytes {
		return nil, fmt.Errorf("file exceeds max size of %d bytes", mediaMaxBytes)
	}
	return data, nil
}

// Reply sends a text message or a photo back to the originating chat.
func (m *Message) Reply(ctx context.Context, r command.Reply) error {
	chatID := tu.ID(m.msg.Chat.ID)

	if len(r.ImagePNG) > 0 {
		_, err := m.channel.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:  chatID,
			Photo:   tu.File(tu.NameReader(bytes.NewReader(r.ImagePNG), "waclaw.png")),
			Caption: r.Caption,
		})
		if err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		return nil
	}

	_, err := m.channel.bot.SendMessage(ctx, tu.Message(chatID, r.Text))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
