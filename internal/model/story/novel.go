package story

import (
	"strings"
	"time"
)

// DefaultNovelTitle 生成结果没有可用首行时的兜底标题。
const DefaultNovelTitle = "AI故事"

const novelTitleLimit = 50

// Novel is a materialized story generated from a chapter's dialogue.
type Novel struct {
	ID         int64     `json:"id"`
	ChapterID  int64     `json:"chapter_id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}

// DeriveNovelTitle takes the first non-blank line of generated content,
// truncated to 50 runes, falling back to the default title.
func DeriveNovelTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > novelTitleLimit {
			return string(runes[:novelTitleLimit])
		}
		return line
	}
	return DefaultNovelTitle
}
