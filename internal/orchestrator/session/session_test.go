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

package session

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"agent-orchestrator/internal/model/llm"
)

func TestNew(t *testing.T) {
	s := New("sid1")
	if s == nil || s.ID != "sid1" {
		t.Errorf("New: %+v", s)
	}
	if s.Stage != StageInitialization {
		t.Errorf("stage should start at initialization, got %s", s.Stage)
	}
	if s.ProjectState == nil {
		t.Error("ProjectState should be initialized")
	}
	s2 := New("")
	if !strings.HasPrefix(s2.ID, "session-") {
		t.Errorf("empty id should generate session- id, got %q", s2.ID)
	}
}

func TestSession_AddMessages_EmptyGuard(t *testing.T) {
	s := New("s1")
	if m := s.AddUserMessage(""); m != nil {
		t.Error("empty user message should not be appended")
	}
	if m := s.AddAssistantMessage("", nil); m != nil {
		t.Error("empty assistant message without tool calls should not be appended")
	}
	if m := s.AddSystemMessage("", nil); m != nil {
		t.Error("empty system message should not be appended")
	}
	if len(s.CopyMessages()) != 0 {
		t.Errorf("no messages expected, got %d", len(s.CopyMessages()))
	}

	// 仅携带工具调用的空文本助手消息必须落历史，否则配对丢失
	m := s.AddAssistantMessage("", []llm.ToolCall{{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "design", Arguments: "{}"}}})
	if m == nil {
		t.Fatal("assistant message carrying tool calls should be appended")
	}
	msgs := s.CopyMessages()
	if len(msgs) != 1 || len(msgs[0].ToolCalls) != 1 {
		t.Errorf("messages: %+v", msgs)
	}
}

func TestSession_RecordToolExecution(t *testing.T) {
	s := New("s1")
	s.RecordToolExecution(ToolCallRecord{
		CallID: "call_1", Tool: "short_planning",
		Arguments: map[string]any{"user_requirements": "bookstore"},
		Result:    map[string]any{"phases": []string{"scope"}},
		Success:   true, ExecutionTime: 0.5,
	})
	recs := s.CopyToolHistory()
	if len(recs) != 1 || recs[0].Tool != "short_planning" || !recs[0].Success {
		t.Errorf("CopyToolHistory: %+v", recs)
	}
	if recs[0].At.IsZero() {
		t.Error("At should be stamped")
	}
}

func TestSession_State(t *testing.T) {
	s := New("s1")
	s.SetState("k1", "v1")
	if v := s.GetState("k1", nil); v != "v1" {
		t.Errorf("GetState: %v", v)
	}
	if v := s.GetState("missing", "def"); v != "def" {
		t.Errorf("GetState default: %v", v)
	}
	s.SetState("k1", "v2")
	if v := s.GetState("k1", nil); v != "v2" {
		t.Errorf("last write should win: %v", v)
	}
}

func TestSession_Summary(t *testing.T) {
	s := New("s1")
	s.AddUserMessage("hello")
	s.AddAssistantMessage("hi", nil)
	s.RecordToolExecution(ToolCallRecord{CallID: "c1", Tool: "research", Success: true})
	s.SetStage(StagePlanning)

	sum := s.Summary()
	if sum.Stage != StagePlanning || sum.MessageCount != 2 || sum.ToolExecutionCount != 1 {
		t.Errorf("Summary: %+v", sum)
	}
	if sum.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set")
	}
}

func TestSession_CleanupDuplicateMessages_Idempotent(t *testing.T) {
	s := New("s1")
	s.AddUserMessage("same")
	s.AddAssistantMessage("reply", nil)
	s.AddUserMessage("same")
	s.AddUserMessage("same")

	removed := s.CleanupDuplicateMessages()
	if removed != 2 {
		t.Errorf("first cleanup should remove 2, got %d", removed)
	}
	// 幂等：第二次删除 0 条
	if again := s.CleanupDuplicateMessages(); again != 0 {
		t.Errorf("second cleanup should remove 0, got %d", again)
	}

	// recency wins：保留的是最后一条 "same"
	msgs := s.CopyMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages after cleanup, got %d", len(msgs))
	}
	if msgs[0].Content != "reply" || msgs[1].Content != "same" {
		t.Errorf("most recent duplicate should survive: %+v", msgs)
	}
}

func TestSession_LLMContext(t *testing.T) {
	s := New("s1")
	s.AddSystemMessage("policy", nil)
	s.AddUserMessage("q1")
	s.AddAssistantMessage("a1", nil)
	s.AddUserMessage("q1")
	s.AddUserMessage("q2")

	ctx := s.LLMContext(0)
	for _, m := range ctx {
		if m.Role == RoleSystem {
			t.Error("system messages must be omitted from llm context")
		}
	}
	// q1 去重后保留最近一条，序不变
	var contents []string
	for _, m := range ctx {
		contents = append(contents, m.Content)
	}
	want := []string{"a1", "q1", "q2"}
	if len(contents) != len(want) {
		t.Fatalf("context: %v", contents)
	}
	for i := range want {
		if contents[i] != want[i] {
			t.Errorf("context[%d]: want %s, got %s", i, want[i], contents[i])
		}
	}

	bounded := s.LLMContext(2)
	if len(bounded) != 2 || bounded[1].Content != "q2" {
		t.Errorf("bounded context: %+v", bounded)
	}

	// 只读视图：不改原始历史
	if len(s.CopyMessages()) != 5 {
		t.Errorf("LLMContext must not mutate history, got %d messages", len(s.CopyMessages()))
	}
}

func TestSession_EmptyAssistantSkipIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	s := New("s-empty")
	if m := s.AddAssistantMessage("", nil); m != nil {
		t.Fatal("empty assistant message should not be appended")
	}
	if !strings.Contains(buf.String(), "s-empty") {
		t.Errorf("skipped empty assistant message should be logged with session id: %q", buf.String())
	}
}
