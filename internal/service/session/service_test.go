package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

type stubStore struct {
	mu       sync.Mutex
	messages []story.Message
}

func (s *stubStore) Chapter(ctx context.Context, chapterID int64) (story.Chapter, error) {
	return story.Chapter{ID: chapterID, Name: "测试章节"}, nil
}

func (s *stubStore) Messages(ctx context.Context, chapterID int64) ([]story.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]story.Message(nil), s.messages...), nil
}

func (s *stubStore) AppendMessage(ctx context.Context, chapterID, userID int64, role story.Role, content string) (story.Message, error) {
	return story.Message{}, errors.New("not implemented")
}

func (s *stubStore) DeleteFrom(ctx context.Context, chapterID, messageID int64) error {
	return nil
}

func (s *stubStore) Novels(ctx context.Context, chapterID int64) ([]story.Novel, error) {
	return nil, nil
}

func (s *stubStore) AppendNovel(ctx context.Context, chapterID, userID int64, title, content string) (story.Novel, error) {
	return story.Novel{}, errors.New("not implemented")
}

type stubGenerator struct{}

func (stubGenerator) Chat(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	return "", nil
}

func (stubGenerator) Suggestions(ctx context.Context, history []story.Turn, scene story.SceneContext) ([]string, error) {
	return nil, nil
}

func (stubGenerator) Analyze(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	return "", nil
}

func (stubGenerator) Novel(ctx context.Context, prompt string, scene story.SceneContext) (string, error) {
	return "", nil
}

func TestCreateGetDelete(t *testing.T) {
	svc := NewService(&stubStore{}, stubGenerator{})

	id, sess, due, err := svc.Create(context.Background(), 7, 9)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess == nil || id == "" {
		t.Fatal("Create returned empty session or id")
	}
	if due {
		t.Fatal("empty chapter should not request analysis")
	}

	got, err := svc.Get(id)
	if err != nil || got != sess {
		t.Fatalf("Get returned (%v, %v)", got, err)
	}

	if err := svc.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.Delete(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double delete should fail, got %v", err)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	svc := NewService(&stubStore{}, stubGenerator{})

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, _, _, err := svc.Create(context.Background(), 7, 9)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
