package story

import "encoding/json"

// Chapter 章节元数据与供大模型使用的世界上下文。
// master_sitting 为历史拼写，存储层旧字段名为 master_setting，两者都接受。
type Chapter struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Background     string          `json:"background"`
	Worldview      string          `json:"worldview"`
	MasterSitting  string          `json:"master_sitting"`
	MainCharacters json.RawMessage `json:"main_characters,omitempty"`
}

// SceneContext carries the world/character fields every generation call
// receives, plus the per-turn analysis and guide strings.
type SceneContext struct {
	Worldview      string          `json:"worldview,omitempty"`
	MasterSitting  string          `json:"master_sitting,omitempty"`
	MainCharacters json.RawMessage `json:"main_characters,omitempty"`
	Background     string          `json:"background,omitempty"`
	StoryAnalysis  string          `json:"story_analysis,omitempty"`
	StoryGuide     string          `json:"story_guide,omitempty"`
}

// Scene builds the generation context for this chapter.
func (c Chapter) Scene() SceneContext {
	return SceneContext{
		Worldview:      c.Worldview,
		MasterSitting:  c.MasterSitting,
		MainCharacters: c.MainCharacters,
		Background:     c.Background,
	}
}
