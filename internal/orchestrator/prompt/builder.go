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

package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/session"
)

// systemPolicy 固定编排策略文本。状态描述逐轮拼接在其后。
const systemPolicy = `You are a technical planning orchestrator. You turn a user's project idea
into planning artifacts (structured requirements, a scoped plan, technical
research, an architecture design) by deciding, turn by turn, which tool to
call next. Prefer calling a tool over asking clarifying questions when the
user's intent is actionable. Call "design" only after a plan exists. When
all artifacts are ready, summarize them for the user instead of calling
more tools.`

// defaultHistoryWindow Builder 默认携带的历史消息上限
const defaultHistoryWindow = 40

// Builder 将 Session 状态确定性地翻译为发给 LLM 的消息列表。
// 持久化历史只存语义化的工具调用记录，这里按轮重建 wire 配对，
// 换 LLM 后端只需要改 Builder。
type Builder struct {
	HistoryWindow int
}

// NewBuilder 创建 Builder；window <= 0 用默认值
func NewBuilder(window int) *Builder {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	return &Builder{HistoryWindow: window}
}

// Build 组装完整消息列表：system（策略 + 状态描述）→ 重建的历史 →
// 新 user 消息。携带工具调用的历史助手消息会被立刻跟上逐调用的
// tool 消息（tool_call_id 配对），wire 协议拒绝孤儿 tool 消息。
func (b *Builder) Build(sess *session.Session, userMessage, stateDescription string) []llm.Message {
	var msgs []llm.Message

	sys := systemPolicy
	if stateDescription != "" {
		sys += "\n\n## Current state\n" + stateDescription
	}
	msgs = append(msgs, llm.Message{Role: session.RoleSystem, Content: sys})

	records := recordsByCallID(sess.CopyToolHistory())
	for _, m := range sess.LLMContext(b.HistoryWindow) {
		if m.Role == session.RoleAssistant && len(m.ToolCalls) > 0 {
			msgs = append(msgs, llm.Message{Role: session.RoleAssistant, Content: m.Content, ToolCalls: m.ToolCalls})
			for _, tc := range m.ToolCalls {
				msgs = append(msgs, toolResultMessage(tc, records))
			}
			continue
		}
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	if userMessage != "" {
		msgs = append(msgs, llm.Message{Role: session.RoleUser, Content: userMessage})
	}

	b.validate(msgs)
	return msgs
}

// toolResultMessage 按 call id 从历史记录取结果，JSON 字符串化后作为
// tool 消息内容；记录缺失时仍发一条占位，保持 wire 配对合法。
func toolResultMessage(tc llm.ToolCall, records map[string]session.ToolCallRecord) llm.Message {
	content := `{"error":"tool result unavailable"}`
	if rec, ok := records[tc.ID]; ok {
		if rec.Success {
			content = jsonString(rec.Result)
		} else {
			content = jsonString(map[string]any{"error": rec.Err})
		}
	}
	return llm.Message{
		Role:       session.RoleTool,
		Content:    content,
		ToolCallID: tc.ID,
		Name:       tc.Function.Name,
	}
}

func recordsByCallID(history []session.ToolCallRecord) map[string]session.ToolCallRecord {
	m := make(map[string]session.ToolCallRecord, len(history))
	for _, rec := range history {
		m[rec.CallID] = rec
	}
	return m
}

func jsonString(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// validate 检查最终列表的配对完整性。LLM 端点才是最终裁决者，
// 这里只告警不失败。
func (b *Builder) validate(msgs []llm.Message) {
	for i, m := range msgs {
		switch m.Role {
		case session.RoleTool:
			if m.ToolCallID == "" || m.Content == "" {
				slog.Warn("tool 消息缺 tool_call_id 或内容", "index", i)
			}
		case session.RoleAssistant:
			for _, tc := range m.ToolCalls {
				if tc.ID == "" || tc.Function.Name == "" {
					slog.Warn("assistant 工具调用缺 id 或函数名", "index", i, "call", tc)
				}
			}
		}
	}
}

// StateDescription 从 Summary、项目状态完整性与循环计数构建
// 低成本的状态描述文本（不扫描全量历史）。
func StateDescription(sess *session.Session) string {
	sum := sess.Summary()
	var lines []string
	lines = append(lines, fmt.Sprintf("stage: %s", sum.Stage))
	lines = append(lines, fmt.Sprintf("messages: %d, tool executions: %d", sum.MessageCount, sum.ToolExecutionCount))

	artifacts := []struct {
		key   string
		label string
	}{
		{session.StateKeyStructuredRequirements, "structured_requirements"},
		{session.StateKeyPlanningDocument, "planning_document"},
		{session.StateKeyResearchFindings, "research_findings"},
		{session.StateKeyArchitectureDocument, "architecture_document"},
	}
	var have, missing []string
	for _, a := range artifacts {
		if sess.GetState(a.key, nil) != nil {
			have = append(have, a.label)
		} else {
			missing = append(missing, a.label)
		}
	}
	if len(have) > 0 {
		lines = append(lines, "artifacts ready: "+strings.Join(have, ", "))
	}
	if len(missing) > 0 {
		lines = append(lines, "artifacts missing: "+strings.Join(missing, ", "))
	}
	if cycles := sess.GetState(session.StateKeyReactCycleCount, nil); cycles != nil {
		lines = append(lines, fmt.Sprintf("react cycles so far: %v", cycles))
	}
	return strings.Join(lines, "\n")
}
