package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// GenClient talks to the external generation service (/api/chat*, /api/novel).
type GenClient struct {
	baseURL string
	hc      *http.Client
}

// NewGenClient creates a client for the given base URL.
func NewGenClient(baseURL string, timeout time.Duration) *GenClient {
	return &GenClient{baseURL: baseURL, hc: newHTTPClient(timeout)}
}

type chatRequest struct {
	Messages []story.Turn `json:"messages"`
	story.SceneContext
}

// Chat requests one assistant continuation for the given history and context.
func (c *GenClient) Chat(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	var payload struct {
		Response string `json:"response"`
	}
	req := chatRequest{Messages: history, SceneContext: scene}
	if err := doJSON(ctx, c.hc, http.MethodPost, c.baseURL+"/api/chat", req, &payload); err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}
	return payload.Response, nil
}

// Suggestions requests writing suggestions for the current edit target.
// A {"raw": "..."} fallback body becomes a single suggestion.
func (c *GenClient) Suggestions(ctx context.Context, history []story.Turn, scene story.SceneContext) ([]string, error) {
	var payload struct {
		Suggestions []struct {
			Content string `json:"content"`
		} `json:"suggestions"`
		Raw string `json:"raw"`
	}
	// 建议接口不需要剧情分析与引导字段。
	scene.StoryAnalysis = ""
	scene.StoryGuide = ""
	req := chatRequest{Messages: history, SceneContext: scene}
	if err := doJSON(ctx, c.hc, http.MethodPost, c.baseURL+"/api/chat/suggestions", req, &payload); err != nil {
		return nil, fmt.Errorf("suggestion generation failed: %w", err)
	}

	if len(payload.Suggestions) > 0 {
		out := make([]string, 0, len(payload.Suggestions))
		for _, s := range payload.Suggestions {
			out = append(out, s.Content)
		}
		return out, nil
	}
	if payload.Raw != "" {
		return []string{payload.Raw}, nil
	}
	return nil, nil
}

// Analyze requests a prose analysis of the full canonical history.
func (c *GenClient) Analyze(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	var payload struct {
		Analysis string `json:"analysis"`
	}
	scene.StoryAnalysis = ""
	scene.StoryGuide = ""
	req := chatRequest{Messages: history, SceneContext: scene}
	if err := doJSON(ctx, c.hc, http.MethodPost, c.baseURL+"/api/chat/analyze", req, &payload); err != nil {
		return "", fmt.Errorf("story analysis failed: %w", err)
	}
	return payload.Analysis, nil
}

// Novel materializes the concatenated dialogue into standalone prose.
// The service answers with either {"response"} or {"content"}.
func (c *GenClient) Novel(ctx context.Context, prompt string, scene story.SceneContext) (string, error) {
	var payload struct {
		Response string `json:"response"`
		Content  string `json:"content"`
	}
	scene.StoryAnalysis = ""
	scene.StoryGuide = ""
	req := struct {
		Prompt string `json:"prompt"`
		story.SceneContext
	}{Prompt: prompt, SceneContext: scene}
	if err := doJSON(ctx, c.hc, http.MethodPost, c.baseURL+"/api/novel", req, &payload); err != nil {
		return "", fmt.Errorf("novel generation failed: %w", err)
	}
	if payload.Response != "" {
		return payload.Response, nil
	}
	return payload.Content, nil
}
