package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// StoreClient talks to the external message store (/api/db/...). The store
// owns identifier assignment (strictly increasing per chapter) and the
// cascade semantics of delete-from-point.
type StoreClient struct {
	baseURL string
	hc      *http.Client
}

// NewStoreClient creates a client for the given base URL, e.g. "http://db:3000".
func NewStoreClient(baseURL string, timeout time.Duration) *StoreClient {
	return &StoreClient{baseURL: baseURL, hc: newHTTPClient(timeout)}
}

// storedMessage is the wire form; roles arrive as "user" or "ai".
type storedMessage struct {
	ID         int64     `json:"id"`
	ChapterID  int64     `json:"chapter_id"`
	UserID     int64     `json:"user_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}

func (m storedMessage) toStory() story.Message {
	return story.Message{
		ID:         m.ID,
		ChapterID:  m.ChapterID,
		UserID:     m.UserID,
		Role:       story.NormalizeRole(m.Role),
		Content:    m.Content,
		CreateTime: m.CreateTime,
	}
}

// Chapter fetches chapter metadata and world context.
func (c *StoreClient) Chapter(ctx context.Context, chapterID int64) (story.Chapter, error) {
	// 旧数据使用 master_setting 字段名，新数据为 master_sitting，两者都接受。
	var payload struct {
		story.Chapter
		MasterSetting string `json:"master_setting"`
	}
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d", c.baseURL, chapterID)
	if err := doJSON(ctx, c.hc, http.MethodGet, endpoint, nil, &payload); err != nil {
		return story.Chapter{}, fmt.Errorf("failed to load chapter %d: %w", chapterID, err)
	}

	chapter := payload.Chapter
	if chapter.MasterSitting == "" {
		chapter.MasterSitting = payload.MasterSetting
	}
	return chapter, nil
}

// Messages returns all persisted messages for a chapter, sorted ascending by id.
func (c *StoreClient) Messages(ctx context.Context, chapterID int64) ([]story.Message, error) {
	var payload []storedMessage
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d/messages", c.baseURL, chapterID)
	if err := doJSON(ctx, c.hc, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to load messages for chapter %d: %w", chapterID, err)
	}

	messages := make([]story.Message, 0, len(payload))
	for _, m := range payload {
		messages = append(messages, m.toStory())
	}
	return story.SortByIDAsc(messages), nil
}

// AppendMessage persists one message and returns it with the store-assigned id.
func (c *StoreClient) AppendMessage(ctx context.Context, chapterID, userID int64, role story.Role, content string) (story.Message, error) {
	body := map[string]any{
		"user_id": userID,
		"role":    string(role),
		"content": content,
	}
	var created storedMessage
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d/messages", c.baseURL, chapterID)
	if err := doJSON(ctx, c.hc, http.MethodPost, endpoint, body, &created); err != nil {
		return story.Message{}, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return created.toStory(), nil
}

// DeleteFrom removes the given message and everything after it in the chapter.
// The cascade is the store's responsibility.
func (c *StoreClient) DeleteFrom(ctx context.Context, chapterID, messageID int64) error {
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d/messages?id=%s",
		c.baseURL, chapterID, url.QueryEscape(fmt.Sprintf("%d", messageID)))
	if err := doJSON(ctx, c.hc, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to delete messages from %d: %w", messageID, err)
	}
	return nil
}

// Novels lists the chapter's generated novels.
func (c *StoreClient) Novels(ctx context.Context, chapterID int64) ([]story.Novel, error) {
	var payload []story.Novel
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d/novels", c.baseURL, chapterID)
	if err := doJSON(ctx, c.hc, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to load novels for chapter %d: %w", chapterID, err)
	}
	return payload, nil
}

// AppendNovel persists a generated novel and returns the stored record.
func (c *StoreClient) AppendNovel(ctx context.Context, chapterID, userID int64, title, content string) (story.Novel, error) {
	body := map[string]any{
		"user_id": userID,
		"title":   title,
		"content": content,
	}
	var created story.Novel
	endpoint := fmt.Sprintf("%s/api/db/chapters/%d/novels", c.baseURL, chapterID)
	if err := doJSON(ctx, c.hc, http.MethodPost, endpoint, body, &created); err != nil {
		return story.Novel{}, fmt.Errorf("failed to save novel: %w", err)
	}
	return created, nil
}
