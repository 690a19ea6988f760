package decision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// markerPattern 模型不走原生 function calling 时在文本里内嵌的
// 标记格式：<tool_call>{"name":...,"arguments":{...}}</tool_call>
var markerPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

type markerPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseMarkers 从文本中提取标记工具调用并返回剥离标记后的可见文本。
// 无法解析的块按原样留在文本里（对用户可见总好过静默吞掉）。
// arguments 解析失败时降级为空对象。
func parseMarkers(text string) (string, []ToolCallRequest) {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var calls []ToolCallRequest
	var clean strings.Builder
	prev := 0
	for _, m := range matches {
		blockStart, blockEnd := m[0], m[1]
		inner := text[m[2]:m[3]]

		var payload markerPayload
		if err := json.Unmarshal([]byte(inner), &payload); err != nil || payload.Name == "" {
			clean.WriteString(text[prev:blockEnd])
			prev = blockEnd
			continue
		}

		args := map[string]any{}
		if len(payload.Arguments) > 0 {
			if err := json.Unmarshal(payload.Arguments, &args); err != nil {
				args = map[string]any{}
			}
		}
		// id 必须全局唯一：历史重建按 call id 配对工具结果，
		// 跨轮撞 id 会让旧轮配到新结果
		calls = append(calls, ToolCallRequest{
			ID:        "marker_" + uuid.NewString(),
			Name:      payload.Name,
			Arguments: args,
			Raw:       string(payload.Arguments),
		})

		clean.WriteString(text[prev:blockStart])
		prev = blockEnd
	}
	clean.WriteString(text[prev:])
	return strings.TrimSpace(clean.String()), calls
}
