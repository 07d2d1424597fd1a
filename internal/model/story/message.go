package story

import (
	"sort"
	"time"
)

// Role 消息角色的内部规范值。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// roleAIAlias is what the message store may return for assistant turns.
	roleAIAlias = "ai"
)

// NormalizeRole maps store-side role spellings onto the canonical set.
// The store labels assistant turns as "ai"; both spellings are synonyms
// across the boundary and must never leak into internal state.
func NormalizeRole(raw string) Role {
	switch raw {
	case roleAIAlias, string(RoleAssistant):
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Message is one turn in a chapter conversation. Positive IDs are assigned by
// the message store in creation order; negative IDs mark client-local
// placeholders that are never persisted.
type Message struct {
	ID         int64     `json:"id"`
	ChapterID  int64     `json:"chapter_id"`
	UserID     int64     `json:"user_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}

// IsPlaceholder reports whether the message is an unsaved input slot.
func (m Message) IsPlaceholder() bool {
	return m.ID < 0
}

// DisplayContent returns the content with any presentation prefix removed.
func (m Message) DisplayContent() string {
	return StripPrefix(m.Content)
}

// SortByIDAsc returns a copy ordered for display: persisted messages ascending
// by id, placeholders (negative id) after them, ascending within each group.
func SortByIDAsc(messages []Message) []Message {
	out := append([]Message(nil), messages...)
	sort.SliceStable(out, func(i, j int) bool {
		iTemp := out[i].ID < 0
		jTemp := out[j].ID < 0
		if iTemp != jTemp {
			return jTemp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Canonical filters to persisted messages only (positive id), preserving order.
func Canonical(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.ID > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Recent returns the trailing n entries of an already ordered slice.
func Recent(messages []Message, n int) []Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// Turn is the normalized (role, content) pair sent to the generation service.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToTurns normalizes an ordered message slice into generation-service turns.
func ToTurns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: NormalizeRole(string(m.Role)), Content: m.Content})
	}
	return turns
}
