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

package llm

import (
	"fmt"
	"sort"
	"strings"
)

// toolCallAccumulator 按流式分片的 index 聚合工具调用。
// OpenAI 流式协议里同一个工具调用的 id/name 只出现在第一个分片，
// 之后的分片只携带 arguments 片段。
type toolCallAccumulator struct {
	partials map[int]*toolCallPartial
}

type toolCallPartial struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{partials: make(map[int]*toolCallPartial)}
}

// add 合并一个分片。空字段不覆盖已有值。
func (a *toolCallAccumulator) add(index int, id, name, argsFragment string) {
	p, ok := a.partials[index]
	if !ok {
		p = &toolCallPartial{}
		a.partials[index] = p
	}
	if id != "" {
		p.id = id
	}
	if name != "" {
		p.name = name
	}
	p.args.WriteString(argsFragment)
}

// finish 按 index 升序输出聚合完成的工具调用。
// 没有任何分片时返回 nil；arguments 为空时补空对象，
// 缺失的 id 用 index 合成，保证后续配对校验可用。
func (a *toolCallAccumulator) finish() []ToolCall {
	if len(a.partials) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.partials))
	for i := range a.partials {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		p := a.partials[i]
		args := p.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		id := p.id
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		calls = append(calls, ToolCall{
			ID:   id,
			Type: "function",
			Function: FunctionCall{
				Name:      p.name,
				Arguments: args,
			},
		})
	}
	return calls
}
