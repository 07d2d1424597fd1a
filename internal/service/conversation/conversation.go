// Package conversation implements the chapter co-writing state machine: the
// ordered working set of messages, the single input bubble, rollback, and the
// story-analysis trigger policy.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
	"github.com/zhouzirui/z-novel-studio/internal/service/generation"
)

var (
	ErrTurnInFlight     = errors.New("a turn is already in flight")
	ErrAnalysisInFlight = errors.New("story analysis is already running")
	ErrNovelInFlight    = errors.New("novel generation is already running")
	ErrNotEditing       = errors.New("no message is being edited")
	ErrEmptyNovel       = errors.New("generated novel is empty")
)

const (
	// contextWindow 发送给生成服务的最近消息条数。
	contextWindow = 30
	// analysisInterval 每多少条入库消息触发一次剧情分析。
	analysisInterval = 30
	// rollbackAnalysisSlack 回溯减少的消息数超过该值才考虑重新分析。
	rollbackAnalysisSlack = 5
)

// Store is the external message store the session reconciles against. The
// store assigns strictly increasing positive ids and owns cascade deletion.
type Store interface {
	Chapter(ctx context.Context, chapterID int64) (story.Chapter, error)
	Messages(ctx context.Context, chapterID int64) ([]story.Message, error)
	AppendMessage(ctx context.Context, chapterID, userID int64, role story.Role, content string) (story.Message, error)
	DeleteFrom(ctx context.Context, chapterID, messageID int64) error
	Novels(ctx context.Context, chapterID int64) ([]story.Novel, error)
	AppendNovel(ctx context.Context, chapterID, userID int64, title, content string) (story.Novel, error)
}

// AnalysisState is the derived story-analysis bookkeeping, never persisted.
type AnalysisState struct {
	Content           string `json:"content"`
	LastAnalyzedCount int    `json:"last_analyzed_count"`
	Busy              bool   `json:"busy"`
}

// Session owns the working set for one chapter. All mutable counters the
// original kept as page-level state live here so chapters and tests run
// independently.
type Session struct {
	store     Store
	generator generation.Generator

	chapterID int64
	userID    int64

	mu          sync.Mutex
	chapter     story.Chapter
	messages    []story.Message
	novels      []story.Novel
	suggestions []string
	editingID   int64 // 0 when nothing is being edited
	editText    string
	tempSeq     int64 // next placeholder id, strictly decreasing from -1
	storyGuide  string

	committing   bool
	generating   bool
	analysisBusy bool

	analysisContent   string
	lastAnalyzedCount int
}

// NewSession creates an empty session; call Load before use.
func NewSession(store Store, generator generation.Generator, chapterID, userID int64) *Session {
	return &Session{
		store:     store,
		generator: generator,
		chapterID: chapterID,
		userID:    userID,
		tempSeq:   -1,
	}
}

// Load fetches chapter context, message history and novels, then opens the
// input bubble. A history fetch failure is returned to the caller and leaves
// the session unusable; chapter and novel failures degrade gracefully, the
// way the original page does. The returned flag reports whether an initial
// story analysis is due (history already past the first interval).
func (s *Session) Load(ctx context.Context) (analysisDue bool, err error) {
	chapter, err := s.store.Chapter(ctx, s.chapterID)
	if err != nil {
		log.Printf("[session] chapter %d detail unavailable: %v", s.chapterID, err)
		chapter = story.Chapter{
			ID:         s.chapterID,
			Name:       fmt.Sprintf("章节 %d", s.chapterID),
			Background: "（暂未获取到背景信息）",
		}
	}

	messages, err := s.store.Messages(ctx, s.chapterID)
	if err != nil {
		return false, fmt.Errorf("failed to load history: %w", err)
	}

	novels, err := s.store.Novels(ctx, s.chapterID)
	if err != nil {
		// 小说列表失败不阻塞主流程。
		log.Printf("[session] novels for chapter %d unavailable: %v", s.chapterID, err)
		novels = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapter = chapter
	s.messages = story.SortByIDAsc(messages)
	s.novels = novels
	s.openInputBubbleLocked()

	count := len(story.Canonical(s.messages))
	return count >= analysisInterval && s.lastAnalyzedCount == 0, nil
}

// OpenInputBubble appends a placeholder message and makes it the edit target.
// Callers must not invoke it while a placeholder already exists.
func (s *Session) OpenInputBubble() story.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openInputBubbleLocked()
}

func (s *Session) openInputBubbleLocked() story.Message {
	placeholder := story.Message{
		ID:         s.tempSeq,
		ChapterID:  s.chapterID,
		UserID:     s.userID,
		Role:       story.RoleUser,
		Content:    "",
		CreateTime: time.Now(),
	}
	s.messages = story.SortByIDAsc(append(s.messages, placeholder))
	s.editingID = placeholder.ID
	s.editText = ""
	s.tempSeq--
	return placeholder
}

// RollbackResult reports what a rollback changed.
type RollbackResult struct {
	EditTargetID int64
	EditText     string
	AnalysisDue  bool
}

// Rollback truncates history at the given message. A negative id removes the
// placeholder locally with no store call. A persisted id deletes that message
// and everything after it in the store, keeps the message locally as the new
// edit target (prefix stripped), and re-evaluates the analysis policy against
// the reconciled canonical count.
func (s *Session) Rollback(ctx context.Context, messageID int64) (RollbackResult, error) {
	if messageID < 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		s.messages = kept
		if s.editingID == messageID {
			s.editingID = 0
			s.editText = ""
		}
		return RollbackResult{EditTargetID: s.editingID, EditText: s.editText}, nil
	}

	s.mu.Lock()
	beforeCount := len(story.Canonical(s.messages))
	s.mu.Unlock()

	if err := s.store.DeleteFrom(ctx, s.chapterID, messageID); err != nil {
		return RollbackResult{}, err
	}

	s.mu.Lock()
	idx := -1
	for i, m := range s.messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	var current story.Message
	if idx >= 0 {
		current = s.messages[idx]
		s.messages = story.SortByIDAsc(s.messages[:idx+1])
	} else {
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.ID <= messageID {
				kept = append(kept, m)
			}
		}
		s.messages = story.SortByIDAsc(kept)
	}
	s.editingID = messageID
	s.editText = current.DisplayContent()
	s.mu.Unlock()

	// Reconcile with the store to measure the actual drop.
	canonical, err := s.store.Messages(ctx, s.chapterID)
	if err != nil {
		log.Printf("[session] reconcile after rollback failed: %v", err)
		return RollbackResult{EditTargetID: messageID, EditText: s.EditText()}, nil
	}
	afterCount := len(story.Canonical(canonical))

	s.mu.Lock()
	due := beforeCount-afterCount > rollbackAnalysisSlack && s.shouldAnalyzeLocked(afterCount)
	s.mu.Unlock()

	return RollbackResult{EditTargetID: messageID, EditText: s.EditText(), AnalysisDue: due}, nil
}

// SetStoryGuide stores the free-text guide forwarded on every chat call.
func (s *Session) SetStoryGuide(guide string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storyGuide = guide
}

// EditText returns the current edit buffer.
func (s *Session) EditText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editText
}

// Snapshot is the session view returned to HTTP clients.
type Snapshot struct {
	Chapter     story.Chapter   `json:"chapter"`
	Messages    []story.Message `json:"messages"`
	Novels      []story.Novel   `json:"novels"`
	Suggestions []string        `json:"suggestions"`
	EditingID   int64           `json:"editing_id"`
	EditText    string          `json:"edit_text"`
	StoryGuide  string          `json:"story_guide"`
	Analysis    AnalysisState   `json:"analysis"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Chapter:     s.chapter,
		Messages:    append([]story.Message(nil), s.messages...),
		Novels:      append([]story.Novel(nil), s.novels...),
		Suggestions: append([]string(nil), s.suggestions...),
		EditingID:   s.editingID,
		EditText:    s.editText,
		StoryGuide:  s.storyGuide,
		Analysis: AnalysisState{
			Content:           s.analysisContent,
			LastAnalyzedCount: s.lastAnalyzedCount,
			Busy:              s.analysisBusy,
		},
	}
}

// sceneLocked assembles the generation context from chapter fields plus the
// session's analysis and guide state.
func (s *Session) sceneLocked(withTurnState bool) story.SceneContext {
	scene := s.chapter.Scene()
	if withTurnState {
		scene.StoryAnalysis = s.analysisContent
		scene.StoryGuide = s.storyGuide
	}
	return scene
}
