package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-novel-studio/internal/model/story"
)

// FormatMasterSitting renders the core-character sheet into bullet text.
// 存储格式形如：名字###白雨|||外貌特征###16 岁，156 cm，45 kg；
func FormatMasterSitting(content string) string {
	if content == "" {
		return ""
	}

	var lines []string
	for _, section := range strings.Split(content, "|||") {
		key, value, ok := strings.Cut(section, "###")
		if !ok || key == "" || value == "" {
			continue
		}
		key = strings.TrimSuffix(key, "：") + "："
		value = strings.TrimSuffix(value, "；")
		value = strings.ReplaceAll(value, `\n`, "\n")
		lines = append(lines, fmt.Sprintf("• %s %s", key, value))
	}
	return strings.Join(lines, "\n")
}

type characterSheet struct {
	Name       string `json:"name"`
	Background string `json:"background"`
}

// FormatMainCharacters renders the supporting-character field, which arrives
// either as a JSON array of character objects or as plain text.
func FormatMainCharacters(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested []characterSheet
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return formatCharacterSheets(nested)
		}
		return strings.ReplaceAll(asString, `\n`, "\n")
	}

	var sheets []characterSheet
	if err := json.Unmarshal(raw, &sheets); err == nil {
		return formatCharacterSheets(sheets)
	}

	return strings.ReplaceAll(string(raw), `\n`, "\n")
}

func formatCharacterSheets(sheets []characterSheet) string {
	parts := make([]string, 0, len(sheets))
	for i, c := range sheets {
		var b strings.Builder
		fmt.Fprintf(&b, "【人物%d】", i+1)
		if c.Name != "" {
			b.WriteString(" " + c.Name)
		}
		if c.Background != "" {
			b.WriteString("\n" + strings.ReplaceAll(c.Background, `\n`, "\n"))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

// buildSceneSections renders the shared world-context block of every prompt.
func buildSceneSections(scene story.SceneContext) string {
	var b strings.Builder
	if scene.Worldview != "" {
		b.WriteString("世界观设定：\n" + scene.Worldview + "\n\n")
	}
	if formatted := FormatMasterSitting(scene.MasterSitting); formatted != "" {
		b.WriteString("核心人物：\n" + formatted + "\n\n")
	}
	if formatted := FormatMainCharacters(scene.MainCharacters); formatted != "" {
		b.WriteString("其他人物：\n" + formatted + "\n\n")
	}
	if scene.Background != "" {
		b.WriteString("章节背景：\n" + scene.Background + "\n\n")
	}
	return b.String()
}

func buildChatSystemPrompt(scene story.SceneContext) string {
	var b strings.Builder
	b.WriteString("你是一位协作小说写作助手，与用户轮流续写章节正文。保持文风连贯，每次续写一段。\n\n")
	b.WriteString(buildSceneSections(scene))
	if scene.StoryAnalysis != "" {
		b.WriteString("目前剧情分析：\n" + scene.StoryAnalysis + "\n\n")
	}
	if scene.StoryGuide != "" {
		b.WriteString("剧情引导（优先遵循）：\n" + scene.StoryGuide + "\n\n")
	}
	b.WriteString("请直接给出下一段正文，不要重复用户的内容，不要输出解释。")
	return b.String()
}

func buildSuggestionSystemPrompt(scene story.SceneContext) string {
	return "你是一位小说写作灵感助手。根据对话历史给出3条用户下一句可以写的内容建议，每行一条，不要编号以外的解释。\n\n" +
		buildSceneSections(scene)
}

func buildAnalysisSystemPrompt(scene story.SceneContext) string {
	return "你是一位小说剧情分析师。请总结目前剧情的主线进展、人物关系变化与未解决的伏笔，用简洁的中文段落回答。\n\n" +
		buildSceneSections(scene)
}

func buildNovelSystemPrompt(scene story.SceneContext) string {
	return "你是一位小说家。请把给出的对话式正文整理成一篇连贯的短篇小说，第一行给出标题。\n\n" +
		buildSceneSections(scene)
}

// parseSuggestionLines splits model output into suggestion entries, dropping
// blank lines and leading list markers.
func parseSuggestionLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•*0123456789.、) ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
