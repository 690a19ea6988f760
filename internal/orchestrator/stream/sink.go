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

package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Sink 增量输出回调：收到的要么是直接渲染的文本片段，
// 要么是带外控制标记（工具生命周期、narration 开始）。
// 消费方必须把不认识的控制标记当 no-op（向前兼容）。
type Sink func(fragment string)

// 控制标记前缀
const (
	toolStartPrefix = "__TOOL_START__"
	toolEndPrefix   = "__TOOL_END__"
	// NewReplyToken narration 阶段开始的标记
	NewReplyToken = "__NEW_AI_REPLY__"
)

// ToolStartToken 构造工具开始标记
func ToolStartToken(name string) string {
	return toolStartPrefix + name
}

// ToolEndToken 构造工具结束标记：__TOOL_END__<name>__<success>__<elapsed 秒>
func ToolEndToken(name string, success bool, elapsedSeconds float64) string {
	return fmt.Sprintf("%s%s__%t__%.2f", toolEndPrefix, name, success, elapsedSeconds)
}

// EventKind 控制标记解析后的事件类别
type EventKind string

const (
	EventToolStart EventKind = "tool_start"
	EventToolEnd   EventKind = "tool_end"
	EventNewReply  EventKind = "new_reply"
)

// Event 解析后的控制事件
type Event struct {
	Kind    EventKind
	Tool    string
	Success bool
	Elapsed float64
}

// ParseControlToken 识别控制标记；普通文本与未知标记返回 (Event{}, false)，
// 消费方据此按 no-op 处理。
func ParseControlToken(fragment string) (Event, bool) {
	switch {
	case fragment == NewReplyToken:
		return Event{Kind: EventNewReply}, true
	case strings.HasPrefix(fragment, toolStartPrefix):
		return Event{Kind: EventToolStart, Tool: strings.TrimPrefix(fragment, toolStartPrefix)}, true
	case strings.HasPrefix(fragment, toolEndPrefix):
		rest := strings.TrimPrefix(fragment, toolEndPrefix)
		parts := strings.Split(rest, "__")
		if len(parts) != 3 {
			return Event{}, false
		}
		success, err := strconv.ParseBool(parts[1])
		if err != nil {
			return Event{}, false
		}
		elapsed, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Event{}, false
		}
		return Event{Kind: EventToolEnd, Tool: parts[0], Success: success, Elapsed: elapsed}, true
	}
	return Event{}, false
}
