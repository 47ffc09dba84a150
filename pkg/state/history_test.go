package state

import (
	"testing"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
)

func TestAppendHistory(t *testing.T) {
	log := []chat.ChatMessage{{Role: chat.ChatRoleNarrator, Content: "Welcome"}}

	next := AppendHistory(log,
		chat.ChatMessage{Role: chat.ChatRolePlayer, Content: "Hello"},
		chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: "Hello"},
	)

	if len(next) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(next))
	}
	// Identical content is not de-duplicated
	if next[1].Content != next[2].Content {
		t.Error("Expected both Hello messages to be kept")
	}
	if next[0] != log[0] {
		t.Error("Existing entries must be kept in place")
	}
	if len(log) != 1 {
		t.Error("The input log must not grow")
	}
}

func TestAppendHistory_DoesNotAliasInput(t *testing.T) {
	log := make([]chat.ChatMessage, 1, 10)
	log[0] = chat.ChatMessage{Role: chat.ChatRoleNarrator, Content: "first"}

	a := AppendHistory(log, chat.ChatMessage{Role: chat.ChatRolePlayer, Content: "a"})
	b := AppendHistory(log, chat.ChatMessage{Role: chat.ChatRolePlayer, Content: "b"})

	if a[1].Content != "a" || b[1].Content != "b" {
		t.Errorf("Appends from the same log interfered: %q, %q", a[1].Content, b[1].Content)
	}
}

func TestGameState_AppendHistory_GrowsMonotonically(t *testing.T) {
	gs := NewGameState(Seed{}, "evaluator.v2")
	for i := 0; i < 50; i++ {
		before := len(gs.ChatHistory)
		gs.AppendHistory(chat.ChatMessage{Role: chat.ChatRolePlayer, Content: "hi"})
		if len(gs.ChatHistory) != before+1 {
			t.Fatalf("Expected log length %d, got %d", before+1, len(gs.ChatHistory))
		}
	}
}
