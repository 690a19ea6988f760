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

package decision

// Kind Decision 的来源变体：原生 function calling、文本标记降级、
// 或 LLM 调用失败后的兜底。两种解析器产出同一种归一化形状，
// 下游不再区分。
type Kind string

const (
	KindNative   Kind = "native"
	KindMarker   Kind = "marker"
	KindFallback Kind = "fallback"
)

// ToolCallRequest 归一化后的单个工具调用请求。
// Arguments 已完成 JSON 解析；解析失败时为空对象。
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Raw       string         `json:"raw,omitempty"`
}

// Decision LLM 对一轮的输出。不直接持久化，只有派生效果
// （Message、ToolCallRecord）落盘。
type Decision struct {
	AssistantText string
	ToolCalls     []ToolCallRequest
	Kind          Kind
	Reasoning     string
	Confidence    float64
}

// Empty 文本与工具调用都为空（软错误，调用方替换为兜底 Decision）
func (d *Decision) Empty() bool {
	return d.AssistantText == "" && len(d.ToolCalls) == 0
}
