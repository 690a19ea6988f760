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

package tool

import (
	"agent-orchestrator/internal/model/llm"
)

// Definition 工具的静态声明。Parameters 是 JSON-schema object：
// {"type":"object","properties":{...},"required":[...]}。
// 启动时构建一次，之后不可变。
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAISchema 转为 LLM 端点的 function calling 声明格式
func (d Definition) OpenAISchema() llm.ToolSpec {
	params := d.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return llm.ToolSpec{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// RequiredParams 从 Parameters 中取 required 列表
func (d Definition) RequiredParams() []string {
	raw, ok := d.Parameters["required"]
	if !ok {
		return nil
	}
	switch list := raw.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
