package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/waclaw/internal/config"
)

func TestSystemMessageLayout(t *testing.T) {
	msg := systemMessage("You are terse.", []string{"Alice", "Bob"})
	if msg.Role != "system" {
		t.Fatalf("expected system role, got %q", msg.Role)
	}
	for _, want := range []string{
		"embedded in a whatsapp group",
		"This is the conversation Format",
		"This is a description of yourself: You are terse.",
		"This are all the people in the conversation: Alice, Bob",
		"The actual conversation starts here.\n",
	} {
		if !strings.Contains(msg.Content, want) {
			t.Errorf("system message missing %q:\n%s", want, msg.Content)
		}
	}
}

func TestUserTurnFormatsMetadata(t *testing.T) {
	now := time.Date(2023, time.April, 5, 13, 7, 9, 0, time.UTC)
	got := userTurn("Bob", "hello there", now, config.OwnerConfig{})
	want := "Current Date: 4/5/2023\nCurrent Time: 1:07:09 PM\nFrom: Bob\nBody: hello there"
	if got != want {
		t.Fatalf("unexpected user turn:\n got %q\nwant %q", got, want)
	}
}

func TestUserTurnReplacesOwnerPhoneNumber(t *testing.T) {
	owner := config.OwnerConfig{Name: "Alice", PhoneNumber: "+4915551234"}
	got := userTurn("+4915551234", "hi", time.Now(), owner)
	if strings.Contains(got, "+4915551234") {
		t.Fatalf("owner phone number leaked into the prompt: %q", got)
	}
	if !strings.Contains(got, "From: Alice") {
		t.Fatalf("owner name not substituted: %q", got)
	}
}

func TestParticipantNamesFallsBackToSender(t *testing.T) {
	owner := config.OwnerConfig{Name: "Alice", PhoneNumber: "+4915551234"}

	msg := &fakeMessage{sender: "Bob"}
	if got := participantNames(context.Background(), msg, owner); len(got) != 1 || got[0] != "Bob" {
		t.Fatalf("expected sender fallback, got %v", got)
	}

	group := &fakeMessage{participants: []string{"Bob", "+4915551234", "Carol"}}
	got := participantNames(context.Background(), group, owner)
	want := []string{"Bob", "Alice", "Carol"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("owner substitution wrong: got %v want %v", got, want)
		}
	}
}
