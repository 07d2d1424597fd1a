package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
	sessionService "github.com/zhouzirui/z-novel-studio/internal/service/session"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []story.Message
	novels   []story.Novel
}

func (f *fakeStore) Chapter(ctx context.Context, chapterID int64) (story.Chapter, error) {
	return story.Chapter{ID: chapterID, Name: "雪夜旅店", Background: "边境小镇的深夜"}, nil
}

func (f *fakeStore) Messages(ctx context.Context, chapterID int64) ([]story.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]story.Message(nil), f.messages...), nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, chapterID, userID int64, role story.Role, content string) (story.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := story.Message{ID: f.nextID, ChapterID: chapterID, UserID: userID, Role: role, Content: content}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeStore) DeleteFrom(ctx context.Context, chapterID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ID < messageID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeStore) Novels(ctx context.Context, chapterID int64) ([]story.Novel, error) {
	return nil, nil
}

func (f *fakeStore) AppendNovel(ctx context.Context, chapterID, userID int64, title, content string) (story.Novel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := story.Novel{ID: f.nextID, ChapterID: chapterID, UserID: userID, Title: title, Content: content}
	f.novels = append(f.novels, n)
	return n, nil
}

type fakeGenerator struct{}

func (fakeGenerator) Chat(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	return "风雪扑面而来", nil
}

func (fakeGenerator) Suggestions(ctx context.Context, history []story.Turn, scene story.SceneContext) ([]string, error) {
	return []string{"她犹豫了", "门外有人"}, nil
}

func (fakeGenerator) Analyze(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	return "剧情推进中", nil
}

func (fakeGenerator) Novel(ctx context.Context, prompt string, scene story.SceneContext) (string, error) {
	return "风雪夜归人\n完整的正文……", nil
}

func newTestRouter() http.Handler {
	svc := sessionService.NewService(&fakeStore{}, fakeGenerator{})
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		New(svc).RegisterRoutes(api)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/sessions", map[string]int64{"chapter_id": 7, "user_id": 9})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, rec, &out)
	if out.ID == "" {
		t.Fatal("create session: empty id")
	}
	return out.ID
}

func TestCreateSessionReturnsSnapshot(t *testing.T) {
	router := newTestRouter()
	rec := do(t, router, http.MethodPost, "/api/sessions", map[string]int64{"chapter_id": 7, "user_id": 9})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		ID       string `json:"id"`
		Snapshot struct {
			Messages  []story.Message `json:"messages"`
			EditingID int64           `json:"editing_id"`
		} `json:"snapshot"`
	}
	decode(t, rec, &out)
	if len(out.Snapshot.Messages) != 1 || out.Snapshot.Messages[0].ID != -1 {
		t.Fatalf("snapshot messages: %+v", out.Snapshot.Messages)
	}
	if out.Snapshot.EditingID != -1 {
		t.Fatalf("editing_id = %d", out.Snapshot.EditingID)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	router := newTestRouter()
	rec := do(t, router, http.MethodPost, "/api/sessions", map[string]int64{"chapter_id": 7})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	router := newTestRouter()
	rec := do(t, router, http.MethodGet, "/api/sessions/no-such-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestCommitProducesTurn(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/sessions/%s/commit", id), map[string]string{"text": "她推开门"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		UserMessage      story.Message `json:"user_message"`
		AssistantMessage story.Message `json:"assistant_message"`
		PlaceholderID    int64         `json:"placeholder_id"`
	}
	decode(t, rec, &out)
	if out.UserMessage.Content != "正文：她推开门" {
		t.Fatalf("user message: %+v", out.UserMessage)
	}
	if out.AssistantMessage.Content != "正文：风雪扑面而来" {
		t.Fatalf("assistant message: %+v", out.AssistantMessage)
	}
	if out.PlaceholderID != -2 {
		t.Fatalf("placeholder_id = %d", out.PlaceholderID)
	}
}

func TestRollbackRequiresMessageID(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/sessions/%s/rollback", id), map[string]int64{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestSuggestionsConflictWithoutBubble(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/sessions/%s/rollback", id), map[string]int64{"message_id": -1})
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, fmt.Sprintf("/api/sessions/%s/suggestions", id), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestSuggestionsReturned(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodGet, fmt.Sprintf("/api/sessions/%s/suggestions", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, rec, &out)
	if len(out.Suggestions) != 2 {
		t.Fatalf("suggestions: %v", out.Suggestions)
	}
}

func TestGenerateNovel(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/sessions/%s/novels", id), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var novel story.Novel
	decode(t, rec, &novel)
	if novel.Title != "风雪夜归人" {
		t.Fatalf("title = %q", novel.Title)
	}
}

func TestSetGuideAndSnapshot(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodPut, fmt.Sprintf("/api/sessions/%s/guide", id), map[string]string{"story_guide": "引入反派"})
	if rec.Code != http.StatusOK {
		t.Fatalf("guide status %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status %d", rec.Code)
	}
	var snap struct {
		StoryGuide string `json:"story_guide"`
	}
	decode(t, rec, &snap)
	if snap.StoryGuide != "引入反派" {
		t.Fatalf("story_guide = %q", snap.StoryGuide)
	}
}

func TestDeleteSession(t *testing.T) {
	router := newTestRouter()
	id := createSession(t, router)

	rec := do(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d after delete, want 404", rec.Code)
	}
}
