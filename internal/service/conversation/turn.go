package conversation

import (
	"context"
	"fmt"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// TurnResult is the outcome of one committed turn.
type TurnResult struct {
	UserMessage      story.Message `json:"user_message"`
	AssistantMessage story.Message `json:"assistant_message"`
	PlaceholderID    int64         `json:"placeholder_id"`
	AnalysisDue      bool          `json:"analysis_due"`
}

// CommitEdit runs the three-phase turn: persist the user's text, generate the
// assistant continuation from reconciled store history, persist the reply and
// open the next input bubble. A phase failure aborts the remaining phases but
// does not undo completed ones; the partial state stays visible. A second
// commit while one is in flight is rejected with ErrTurnInFlight.
func (s *Session) CommitEdit(ctx context.Context, text string) (TurnResult, error) {
	s.mu.Lock()
	if s.committing {
		s.mu.Unlock()
		return TurnResult{}, ErrTurnInFlight
	}
	if s.editingID == 0 {
		s.mu.Unlock()
		return TurnResult{}, ErrNotEditing
	}
	s.committing = true
	editingID := s.editingID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.committing = false
		s.mu.Unlock()
	}()

	// Phase 1: persist the user's line, adopt the store-assigned id.
	userMsg, err := s.store.AppendMessage(ctx, s.chapterID, s.userID, story.RoleUser, story.ApplyBodyPrefix(text))
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to save user message: %w", err)
	}

	s.mu.Lock()
	for i, m := range s.messages {
		if m.ID == editingID {
			s.messages[i] = userMsg
			break
		}
	}
	s.messages = story.SortByIDAsc(s.messages)
	s.editingID = 0
	s.editText = ""
	s.mu.Unlock()

	// Phase 2: reconcile against the store and generate the continuation.
	// 本地乐观状态可能落后，上下文一律以存储端为准。
	canonical, err := s.store.Messages(ctx, s.chapterID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to load context history: %w", err)
	}
	canonical = story.Canonical(story.SortByIDAsc(canonical))
	history := story.ToTurns(story.Recent(canonical, contextWindow))

	s.mu.Lock()
	scene := s.sceneLocked(true)
	s.mu.Unlock()

	reply, err := s.generator.Chat(ctx, history, scene)
	if err != nil {
		return TurnResult{}, err
	}

	// Phase 3: persist the assistant reply and invite the next turn.
	assistantMsg, err := s.store.AppendMessage(ctx, s.chapterID, s.userID, story.RoleAssistant, story.ApplyBodyPrefix(reply))
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.mu.Lock()
	s.messages = story.SortByIDAsc(append(s.messages, assistantMsg))
	placeholder := s.openInputBubbleLocked()
	count := len(canonical) + 1
	due := s.shouldAnalyzeLocked(count)
	s.mu.Unlock()

	return TurnResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		PlaceholderID:    placeholder.ID,
		AnalysisDue:      due,
	}, nil
}
