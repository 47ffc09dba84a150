package state

import "github.com/jwebster45206/lingua-quest/pkg/chat"

// AppendHistory returns log with msgs appended in order. The returned slice
// never shares a backing array with log, so earlier snapshots stay intact.
// There is no windowing or de-duplication.
func AppendHistory(log []chat.ChatMessage, msgs ...chat.ChatMessage) []chat.ChatMessage {
	out := make([]chat.ChatMessage, 0, len(log)+len(msgs))
	out = append(out, log...)
	return append(out, msgs...)
}

// AppendHistory appends msgs to the session log.
func (gs *GameState) AppendHistory(msgs ...chat.ChatMessage) {
	gs.ChatHistory = AppendHistory(gs.ChatHistory, msgs...)
}
