package generation

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-novel-studio/internal/config"
	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// ArkService runs generation through an in-process eino chain against the Ark
// chat model, removing the dependency on the remote generation service.
type ArkService struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkService builds the prompt chain from the configured chat model.
func NewArkService(ctx context.Context, cfg config.AIConfig) (*ArkService, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &ArkService{chain: runnable}, nil
}

// Chat generates the next assistant continuation. The trailing user turn is
// the query; everything before it is history.
func (s *ArkService) Chat(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	query := "请继续写下一段正文。"
	if n := len(history); n > 0 && history[n-1].Role == story.RoleUser {
		query = history[n-1].Content
		history = history[:n-1]
	}

	response, err := s.invoke(ctx, buildChatSystemPrompt(scene), history, query)
	if err != nil {
		return "", err
	}
	log.Printf("[ark] generated continuation, length=%d", len(response))
	return response, nil
}

// Suggestions asks the model for candidate next lines.
func (s *ArkService) Suggestions(ctx context.Context, history []story.Turn, scene story.SceneContext) ([]string, error) {
	raw, err := s.invoke(ctx, buildSuggestionSystemPrompt(scene), history, "请给出3条我接下来可以写的内容建议。")
	if err != nil {
		return nil, err
	}
	return parseSuggestionLines(raw), nil
}

// Analyze summarizes plot progress over the full history.
func (s *ArkService) Analyze(ctx context.Context, history []story.Turn, scene story.SceneContext) (string, error) {
	return s.invoke(ctx, buildAnalysisSystemPrompt(scene), history, "请分析目前的剧情进展。")
}

// Novel turns the concatenated dialogue into standalone prose.
func (s *ArkService) Novel(ctx context.Context, prompt string, scene story.SceneContext) (string, error) {
	return s.invoke(ctx, buildNovelSystemPrompt(scene), nil, prompt)
}

func (s *ArkService) invoke(ctx context.Context, system string, history []story.Turn, query string) (string, error) {
	input := map[string]any{
		"system":  system,
		"history": buildHistoryMessages(history),
		"query":   query,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}
	return response.Content, nil
}

func buildHistoryMessages(turns []story.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case story.RoleUser:
			history = append(history, schema.UserMessage(t.Content))
		case story.RoleAssistant:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		}
	}
	return history
}
