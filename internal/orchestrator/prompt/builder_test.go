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
	"strings"
	"testing"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/session"
)

func TestBuild_PairsToolCallsWithResults(t *testing.T) {
	sess := session.New("s1")
	sess.AddUserMessage("plan a bookstore")
	sess.AddAssistantMessage("", []llm.ToolCall{
		{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"bookstore"}`}},
		{ID: "call_2", Type: "function", Function: llm.FunctionCall{Name: "research", Arguments: `{"keywords":["go"]}`}},
	})
	sess.RecordToolExecution(session.ToolCallRecord{
		CallID: "call_1", Tool: "short_planning", Success: true,
		Result: map[string]any{"phases": []any{"scope", "build"}},
	})
	sess.RecordToolExecution(session.ToolCallRecord{
		CallID: "call_2", Tool: "research", Success: false, Err: "timeout",
	})
	sess.AddAssistantMessage("here is the plan", nil)

	msgs := NewBuilder(0).Build(sess, "continue", "stage: planning")

	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "stage: planning") {
		t.Fatalf("first message must be system with state description: %+v", msgs[0])
	}
	if last := msgs[len(msgs)-1]; last.Role != "user" || last.Content != "continue" {
		t.Errorf("last message must be the new user turn: %+v", last)
	}

	// 每个携带 tool_calls 的 assistant 消息后面紧跟逐调用的 tool 消息
	for i, m := range msgs {
		if m.Role != "assistant" || len(m.ToolCalls) == 0 {
			continue
		}
		for j, tc := range m.ToolCalls {
			paired := msgs[i+1+j]
			if paired.Role != "tool" {
				t.Fatalf("expected tool message after assistant tool calls, got %+v", paired)
			}
			if paired.ToolCallID != tc.ID {
				t.Errorf("tool_call_id mismatch: want %s, got %s", tc.ID, paired.ToolCallID)
			}
			if paired.Content == "" {
				t.Error("tool message content must be non-empty")
			}
		}
	}

	// 失败记录以 error JSON 形式进入 tool 消息
	var failContent string
	for _, m := range msgs {
		if m.Role == "tool" && m.ToolCallID == "call_2" {
			failContent = m.Content
		}
	}
	if !strings.Contains(failContent, "timeout") {
		t.Errorf("failed tool result should carry the error: %q", failContent)
	}
}

func TestBuild_MissingRecordStillPairs(t *testing.T) {
	sess := session.New("s1")
	sess.AddUserMessage("go")
	sess.AddAssistantMessage("", []llm.ToolCall{
		{ID: "call_x", Type: "function", Function: llm.FunctionCall{Name: "design", Arguments: "{}"}},
	})
	// 故意不 RecordToolExecution

	msgs := NewBuilder(0).Build(sess, "next", "")
	found := false
	for _, m := range msgs {
		if m.Role == "tool" && m.ToolCallID == "call_x" {
			found = true
			if m.Content == "" {
				t.Error("placeholder tool message must have content")
			}
		}
	}
	if !found {
		t.Error("assistant tool call without record must still get a paired tool message")
	}
}

func TestBuild_OmitsSystemHistory(t *testing.T) {
	sess := session.New("s1")
	sess.AddSystemMessage("stored policy", nil)
	sess.AddUserMessage("hello")

	msgs := NewBuilder(0).Build(sess, "again", "")
	systemCount := 0
	for _, m := range msgs {
		if m.Role == "system" {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("exactly one system message expected, got %d", systemCount)
	}
}

func TestStateDescription(t *testing.T) {
	sess := session.New("s1")
	sess.SetState(session.StateKeyPlanningDocument, map[string]any{"phases": []any{"scope"}})
	sess.SetState(session.StateKeyReactCycleCount, 3)

	desc := StateDescription(sess)
	if !strings.Contains(desc, "planning_document") {
		t.Errorf("ready artifact missing from description: %q", desc)
	}
	if !strings.Contains(desc, "architecture_document") {
		t.Errorf("missing artifact should be listed: %q", desc)
	}
	if !strings.Contains(desc, "3") {
		t.Errorf("cycle count missing: %q", desc)
	}
}

func TestBuild_RepeatedToolTurnsKeepOwnResults(t *testing.T) {
	// 两轮相同文案、相同工具，call id 不同（标记解析保证唯一），
	// 每轮的 tool 消息必须配到自己那轮的结果
	sess := session.New("s-repeat")
	sess.AddUserMessage("research go frameworks")
	sess.AddAssistantMessage("on it", []llm.ToolCall{
		{ID: "marker_a", Type: "function", Function: llm.FunctionCall{Name: "research", Arguments: "{}"}},
	})
	sess.RecordToolExecution(session.ToolCallRecord{
		CallID: "marker_a", Tool: "research", Success: true, Result: "RESULT_TURN_1",
	})
	sess.AddUserMessage("research again")
	sess.AddAssistantMessage("on it", []llm.ToolCall{
		{ID: "marker_b", Type: "function", Function: llm.FunctionCall{Name: "research", Arguments: "{}"}},
	})
	sess.RecordToolExecution(session.ToolCallRecord{
		CallID: "marker_b", Tool: "research", Success: true, Result: "RESULT_TURN_2",
	})

	msgs := NewBuilder(0).Build(sess, "summarize", "")

	var toolContents []string
	for _, m := range msgs {
		if m.Role == "tool" {
			toolContents = append(toolContents, m.Content)
		}
	}
	if len(toolContents) != 2 {
		t.Fatalf("both turns must survive with their tool messages, got %d: %+v", len(toolContents), toolContents)
	}
	if !strings.Contains(toolContents[0], "RESULT_TURN_1") {
		t.Errorf("first turn paired with wrong result: %q", toolContents[0])
	}
	if !strings.Contains(toolContents[1], "RESULT_TURN_2") {
		t.Errorf("second turn paired with wrong result: %q", toolContents[1])
	}
}
