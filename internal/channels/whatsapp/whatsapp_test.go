package whatsapp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/waclaw/internal/channels"
	"github.com/nextlevelbuilder/waclaw/internal/command"
	"github.com/nextlevelbuilder/waclaw/internal/config"
)

// newBridgeServer runs a fake bridge. Frames written by the channel land on
// fromChannel; frames pushed into toChannel are delivered to it.
func newBridgeServer(t *testing.T) (url string, fromChannel chan []byte, toChannel chan []byte) {
	t.Helper()
	fromChannel = make(chan []byte, 16)
	toChannel = make(chan []byte, 16)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for frame := range toChannel {
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fromChannel <- data
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), fromChannel, toChannel
}

func startChannel(t *testing.T, url string) (*Channel, chan command.Message) {
	t.Helper()
	delivered := make(chan command.Message, 16)
	manager := channels.NewManager(func(_ context.Context, msg command.Message) {
		delivered <- msg
	})

	ch, err := New(
		config.WhatsAppConfig{Enabled: true, BridgeURL: url},
		config.OwnerConfig{Name: "Alice", PhoneNumber: "+4915551234"},
		manager,
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := ch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ch.Stop(context.Background()) })

	return ch, delivered
}

func waitMessage(t *testing.T, delivered chan command.Message) command.Message {
	t.Helper()
	select {
	case msg := <-delivered:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func waitFrame(t *testing.T, frames chan []byte) map[string]string {
	t.Helper()
	select {
	case data := <-frames:
		var frame map[string]string
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestInboundFrameBecomesMessage(t *testing.T) {
	url, _, toChannel := newBridgeServer(t)
	_, delivered := startChannel(t, url)

	media := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	toChannel <- []byte(`{
		"type": "message",
		"id": "wa-42",
		"chat": "12036304@g.us",
		"from": "4915551234@c.us",
		"from_name": "Alice",
		"content": "assistant hello",
		"group": true,
		"participants": ["Alice", "Bob"],
		"media": "` + media + `"
	}`)

	msg := waitMessage(t, delivered)
	if msg.ID() != "wa-42" || msg.ConversationID() != "12036304@g.us" {
		t.Fatalf("identity fields wrong: id=%q conv=%q", msg.ID(), msg.ConversationID())
	}
	if msg.Text() != "assistant hello" {
		t.Fatalf("unexpected text %q", msg.Text())
	}
	if !msg.IsGroup() {
		t.Fatal("group flag lost")
	}
	if !msg.IsOwner() {
		t.Fatal("owner phone number in sender JID must pass the owner gate")
	}
	if name, _ := msg.SenderName(context.Background()); name != "Alice" {
		t.Fatalf("unexpected sender name %q", name)
	}
	if parts, _ := msg.Participants(context.Background()); len(parts) != 2 {
		t.Fatalf("roster lost: %v", parts)
	}
	if !msg.HasMedia() {
		t.Fatal("media flag lost")
	}
	data, err := msg.Media(context.Background())
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("media decode failed: %q %v", data, err)
	}
}

func TestNonMessageFramesIgnored(t *testing.T) {
	url, _, toChannel := newBridgeServer(t)
	_, delivered := startChannel(t, url)

	toChannel <- []byte(`{"type":"status","content":"connected"}`)
	toChannel <- []byte(`not json at all`)
	toChannel <- []byte(`{"type":"message","id":"ok-1","from":"491700@c.us","content":"hi"}`)

	msg := waitMessage(t, delivered)
	if msg.ID() != "ok-1" {
		t.Fatalf("expected only the real message, got %q", msg.ID())
	}
	// Chat falls back to the sender JID for direct messages.
	if msg.ConversationID() != "491700@c.us" {
		t.Fatalf("missing chat must fall back to sender, got %q", msg.ConversationID())
	}
	if msg.IsOwner() {
		t.Fatal("non-owner sender passed the owner gate")
	}
}

func TestReplyWritesFrames(t *testing.T) {
	url, fromChannel, toChannel := newBridgeServer(t)
	_, delivered := startChannel(t, url)

	toChannel <- []byte(`{"type":"message","id":"r-1","chat":"chat1","from":"491700@c.us","content":"hi"}`)
	msg := waitMessage(t, delivered)

	if err := msg.Reply(context.Background(), command.Reply{Text: "🤖:\nhello"}); err != nil {
		t.Fatal(err)
	}
	frame := waitFrame(t, fromChannel)
	if frame["type"] != "message" || frame["to"] != "chat1" || frame["content"] != "🤖:\nhello" {
		t.Fatalf("unexpected text frame: %v", frame)
	}

	if err := msg.Reply(context.Background(), command.Reply{ImagePNG: []byte("png"), Caption: "a fox"}); err != nil {
		t.Fatal(err)
	}
	frame = waitFrame(t, fromChannel)
	if frame["type"] != "image" || frame["caption"] != "a fox" {
		t.Fatalf("unexpected image frame: %v", frame)
	}
	if data, _ := base64.StdEncoding.DecodeString(frame["data"]); string(data) != "png" {
		t.Fatalf("image payload corrupted: %q", frame["data"])
	}
}

func TestNewRequiresBridgeURL(t *testing.T) {
	_, err := New(config.WhatsAppConfig{}, config.OwnerConfig{}, nil)
	if err == nil {
		t.Fatal("expected error for missing bridge_url")
	}
}
