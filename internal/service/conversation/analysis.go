package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// shouldAnalyzeLocked is the analysis trigger policy: fire once per
// 30-message mark, on first crossing the threshold, or after a rollback
// dropped the count below the last analyzed mark.
func (s *Session) shouldAnalyzeLocked(count int) bool {
	if s.analysisBusy || count < analysisInterval {
		return false
	}
	target := count / analysisInterval * analysisInterval
	return (target > 0 && target != s.lastAnalyzedCount) ||
		s.lastAnalyzedCount == 0 ||
		count < s.lastAnalyzedCount
}

// AnalyzeStory fetches the full canonical history and computes a fresh plot
// analysis. Only one analysis runs at a time; concurrent calls are rejected.
func (s *Session) AnalyzeStory(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.analysisBusy {
		s.mu.Unlock()
		return "", ErrAnalysisInFlight
	}
	s.analysisBusy = true
	scene := s.sceneLocked(false)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.analysisBusy = false
		s.mu.Unlock()
	}()

	canonical, err := s.store.Messages(ctx, s.chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to load history for analysis: %w", err)
	}
	ordered := story.Canonical(story.SortByIDAsc(canonical))

	analysis, err := s.generator.Analyze(ctx, story.ToTurns(ordered), scene)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.analysisContent = analysis
	count := len(ordered)
	rounded := count / analysisInterval * analysisInterval
	if rounded == 0 {
		rounded = count
	}
	s.lastAnalyzedCount = rounded
	s.mu.Unlock()

	return analysis, nil
}

// FetchSuggestions asks the generation service for candidate next lines based
// on the canonical history, excluding the in-progress user draft. Concurrent
// fetches are tolerated; the last response wins.
func (s *Session) FetchSuggestions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.editingID == 0 {
		s.mu.Unlock()
		return nil, ErrNotEditing
	}
	base := make([]story.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.ID == s.editingID && m.Role == story.RoleUser {
			continue
		}
		base = append(base, m)
	}
	scene := s.sceneLocked(false)
	s.mu.Unlock()

	canonical := story.Canonical(story.SortByIDAsc(base))
	history := story.ToTurns(story.Recent(canonical, contextWindow))

	suggestions, err := s.generator.Suggestions(ctx, history, scene)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.suggestions = suggestions
	s.mu.Unlock()
	return suggestions, nil
}

// GenerateStory concatenates the canonical dialogue into a prompt, asks for a
// standalone novel, persists it and prepends it to the in-memory list.
func (s *Session) GenerateStory(ctx context.Context) (story.Novel, error) {
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return story.Novel{}, ErrNovelInFlight
	}
	s.generating = true
	scene := s.sceneLocked(false)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
	}()

	messages, err := s.store.Messages(ctx, s.chapterID)
	if err != nil {
		return story.Novel{}, fmt.Errorf("failed to load history for novel: %w", err)
	}
	ordered := story.Canonical(story.SortByIDAsc(messages))

	parts := make([]string, 0, len(ordered))
	for _, m := range ordered {
		parts = append(parts, m.Content)
	}
	prompt := strings.Join(parts, "\n")

	content, err := s.generator.Novel(ctx, prompt, scene)
	if err != nil {
		return story.Novel{}, err
	}
	if content == "" {
		return story.Novel{}, ErrEmptyNovel
	}

	title := story.DeriveNovelTitle(content)
	saved, err := s.store.AppendNovel(ctx, s.chapterID, s.userID, title, content)
	if err != nil {
		return story.Novel{}, fmt.Errorf("failed to save novel: %w", err)
	}

	s.mu.Lock()
	s.novels = append([]story.Novel{saved}, s.novels...)
	s.mu.Unlock()
	return saved, nil
}
