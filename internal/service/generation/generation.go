// Package generation abstracts over the two ways chapter text can be
// produced: the remote generation REST service, or an in-process model chain
// when Ark credentials are configured.
package generation

import (
	"context"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// Generator produces assistant continuations, writing suggestions, story
// analyses and materialized novels from ordered conversation history plus
// world context.
type Generator interface {
	Chat(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error)
	Suggestions(ctx context.Context, history []story.Turn, scene story.SceneContext) ([]string, error)
	Analyze(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error)
	Novel(ctx context.Context, prompt string, scene story.SceneContext) (string, error)
}
