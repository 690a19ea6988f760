package tool

import (
	"fmt"
)

// Envelope 所有工具统一的结果外壳：success 决定 result/error 哪个有意义。
// 这是编排核心与不透明子工作流之间的契约边界。
type Envelope struct {
	Success  bool   `json:"success"`
	Result   any    `json:"result"`
	Error    string `json:"error,omitempty"`
	ToolName string `json:"tool_name"`
}

// Failure 构造失败 Envelope
func Failure(toolName, format string, args ...any) Envelope {
	return Envelope{Success: false, Error: fmt.Sprintf(format, args...), ToolName: toolName}
}

// normalize 将子工作流的异构返回约定归一化为 Envelope：
//   - error 非 nil → 失败
//   - Envelope 原样透传（补 tool_name）
//   - 带 success 键的 map → 显式 Envelope（识别 result/error 键）
//   - 其余裸值 → {success:true, result:<value>}
func normalize(toolName string, value any, err error) Envelope {
	if err != nil {
		return Envelope{Success: false, Error: err.Error(), ToolName: toolName}
	}

	switch v := value.(type) {
	case Envelope:
		v.ToolName = toolName
		return v
	case *Envelope:
		if v == nil {
			return Envelope{Success: true, ToolName: toolName}
		}
		out := *v
		out.ToolName = toolName
		return out
	case map[string]any:
		if rawSuccess, ok := v["success"]; ok {
			success, isBool := rawSuccess.(bool)
			if isBool {
				env := Envelope{Success: success, ToolName: toolName}
				if r, ok := v["result"]; ok {
					env.Result = r
				}
				if e, ok := v["error"]; ok && e != nil {
					env.Error = fmt.Sprintf("%v", e)
				}
				if !success && env.Error == "" {
					env.Error = "tool reported failure without error message"
				}
				return env
			}
		}
		return Envelope{Success: true, Result: v, ToolName: toolName}
	}

	return Envelope{Success: true, Result: value, ToolName: toolName}
}
