package story_test

import (
	"testing"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

func TestSortByIDAscPlacesPlaceholdersLast(t *testing.T) {
	messages := []story.Message{
		{ID: -1}, {ID: 3}, {ID: -2}, {ID: 1}, {ID: 2},
	}

	sorted := story.SortByIDAsc(messages)

	want := []int64{1, 2, 3, -2, -1}
	if len(sorted) != len(want) {
		t.Fatalf("unexpected length: got %d want %d", len(sorted), len(want))
	}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("position %d: got id %d want %d", i, sorted[i].ID, id)
		}
	}
}

func TestSortByIDAscDoesNotMutateInput(t *testing.T) {
	messages := []story.Message{{ID: 2}, {ID: 1}}
	_ = story.SortByIDAsc(messages)
	if messages[0].ID != 2 {
		t.Fatal("input slice was mutated")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]story.Role{
		"ai":        story.RoleAssistant,
		"assistant": story.RoleAssistant,
		"user":      story.RoleUser,
		"":          story.RoleUser,
	}
	for raw, want := range cases {
		if got := story.NormalizeRole(raw); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestStripPrefix(t *testing.T) {
	if got := story.StripPrefix("正文：Hello"); got != "Hello" {
		t.Fatalf("body prefix not stripped: %q", got)
	}
	if got := story.StripPrefix("开场白：你好"); got != "你好" {
		t.Fatalf("opening prefix not stripped: %q", got)
	}
	if got := story.StripPrefix("plain"); got != "plain" {
		t.Fatalf("unprefixed content changed: %q", got)
	}
}

func TestApplyBodyPrefixAvoidsDoublePrefix(t *testing.T) {
	if got := story.ApplyBodyPrefix("Hello"); got != "正文：Hello" {
		t.Fatalf("prefix not applied: %q", got)
	}
	if got := story.ApplyBodyPrefix("正文：Hello"); got != "正文：Hello" {
		t.Fatalf("prefix duplicated: %q", got)
	}
}

func TestPrefixRoundTrip(t *testing.T) {
	stored := story.ApplyBodyPrefix("Hello")
	m := story.Message{ID: 1, Content: stored}
	if got := m.DisplayContent(); got != "Hello" {
		t.Fatalf("round trip failed: %q", got)
	}
}

func TestCanonicalDropsPlaceholders(t *testing.T) {
	messages := []story.Message{{ID: 1}, {ID: -1}, {ID: 2}}
	canonical := story.Canonical(messages)
	if len(canonical) != 2 {
		t.Fatalf("expected 2 canonical messages, got %d", len(canonical))
	}
}

func TestRecentWindows(t *testing.T) {
	messages := make([]story.Message, 40)
	for i := range messages {
		messages[i].ID = int64(i + 1)
	}

	recent := story.Recent(messages, 30)
	if len(recent) != 30 {
		t.Fatalf("expected 30 messages, got %d", len(recent))
	}
	if recent[0].ID != 11 {
		t.Fatalf("window should start at 11, got %d", recent[0].ID)
	}

	short := story.Recent(messages[:5], 30)
	if len(short) != 5 {
		t.Fatalf("short history should pass through, got %d", len(short))
	}
}

func TestDeriveNovelTitle(t *testing.T) {
	if got := story.DeriveNovelTitle("\n\n风雪夜归人\n正文..."); got != "风雪夜归人" {
		t.Fatalf("unexpected title: %q", got)
	}

	long := ""
	for i := 0; i < 60; i++ {
		long += "雪"
	}
	if got := story.DeriveNovelTitle(long); len([]rune(got)) != 50 {
		t.Fatalf("title not truncated to 50 runes: %d", len([]rune(got)))
	}

	if got := story.DeriveNovelTitle("  \n  "); got != story.DefaultNovelTitle {
		t.Fatalf("expected default title, got %q", got)
	}
}
