package story

import "strings"

// 正文/开场白前缀是展示层约定：入库内容带前缀，编辑与重新展示时去掉。
const (
	BodyPrefix    = "正文："
	OpeningPrefix = "开场白："
)

// StripPrefix removes a leading body-text or opening-line marker, if present.
func StripPrefix(content string) string {
	if rest, ok := strings.CutPrefix(content, BodyPrefix); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(content, OpeningPrefix); ok {
		return rest
	}
	return content
}

// ApplyBodyPrefix prepends the body-text marker, stripping an existing one
// first so committed content never carries it twice.
func ApplyBodyPrefix(text string) string {
	return BodyPrefix + strings.TrimPrefix(text, BodyPrefix)
}
