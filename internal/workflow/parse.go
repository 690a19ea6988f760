// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseJSONObject 从模型回复中解出 JSON object。容忍 ```json 围栏和前后说明文字；
// 解析失败时返回 {"raw": text}，不让子工作流因格式抖动而失败。
func parseJSONObject(text string) map[string]any {
	candidate := strings.TrimSpace(text)

	if i := strings.Index(candidate, "```"); i >= 0 {
		rest := candidate[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			candidate = rest[:j]
		} else {
			candidate = rest
		}
		candidate = strings.TrimSpace(candidate)
	}

	if start := strings.Index(candidate, "{"); start >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil || out == nil {
		return map[string]any{"raw": strings.TrimSpace(text)}
	}
	return out
}

// compactJSON 把任意值序列化为单行 JSON，失败时退回 %v 表示
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// stringArg 从工具参数里取字符串，缺失或类型不符返回空串
func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

// stringSliceArg 从工具参数里取字符串数组，容忍 []any 形态
func stringSliceArg(args map[string]any, key string) []string {
	if args == nil {
		return nil
	}
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
