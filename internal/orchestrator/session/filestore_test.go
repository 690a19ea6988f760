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
	"context"
	"testing"

	"agent-orchestrator/internal/model/llm"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	s := New("")
	s.AddUserMessage("build a bookstore")
	s.AddAssistantMessage("", []llm.ToolCall{{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"bookstore"}`}}})
	s.AddAssistantMessage("planned", nil)
	s.RecordToolExecution(ToolCallRecord{
		CallID: "call_1", Tool: "short_planning",
		Arguments:     map[string]any{"user_requirements": "bookstore"},
		Result:        map[string]any{"phases": []any{"scope", "build"}},
		Success:       true,
		ExecutionTime: 1.2,
	})
	s.SetState(StateKeyPlanningDocument, map[string]any{"phases": []any{"scope", "build"}})
	s.SetStage(StagePlanning)

	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded == nil {
		t.Fatal("Get returned nil for saved session")
	}
	if loaded.ID != s.ID || loaded.Stage != StagePlanning {
		t.Errorf("loaded: id=%s stage=%s", loaded.ID, loaded.Stage)
	}

	orig, back := s.CopyMessages(), loaded.CopyMessages()
	if len(back) != len(orig) {
		t.Fatalf("message count: want %d, got %d", len(orig), len(back))
	}
	for i := range orig {
		if back[i].Role != orig[i].Role || back[i].Content != orig[i].Content {
			t.Errorf("message %d: want %+v, got %+v", i, orig[i], back[i])
		}
		if len(back[i].ToolCalls) != len(orig[i].ToolCalls) {
			t.Errorf("message %d tool calls: want %d, got %d", i, len(orig[i].ToolCalls), len(back[i].ToolCalls))
		}
	}

	hist := loaded.CopyToolHistory()
	if len(hist) != 1 || hist[0].CallID != "call_1" || !hist[0].Success {
		t.Errorf("tool history: %+v", hist)
	}
	if loaded.GetState(StateKeyPlanningDocument, nil) == nil {
		t.Error("project state lost in round trip")
	}
}

func TestFileStore_UnknownID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s, err := store.Get(context.Background(), "session-unknown")
	if err != nil {
		t.Errorf("unknown id should not error: %v", err)
	}
	if s != nil {
		t.Errorf("unknown id should return nil, got %+v", s)
	}
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Get(context.Background(), "../etc/passwd"); err == nil {
		t.Error("path traversal id should be rejected")
	}
}

func TestFileStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s := New("")
	s.AddUserMessage("hi")
	if err := store.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ids, err := store.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != s.ID {
		t.Errorf("List: ids=%v err=%v", ids, err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Errorf("Delete: %v", err)
	}
	ids, _ = store.List(ctx)
	if len(ids) != 0 {
		t.Errorf("List after delete: %v", ids)
	}
	// 删除不存在的 id 是 no-op
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Errorf("double delete should be no-op: %v", err)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	s1, err := m.GetOrCreate(ctx, "")
	if err != nil || s1 == nil {
		t.Fatalf("GetOrCreate empty: s=%v err=%v", s1, err)
	}
	s2, err := m.GetOrCreate(ctx, s1.ID)
	if err != nil || s2 == nil || s2.ID != s1.ID {
		t.Errorf("GetOrCreate existing: s=%v err=%v", s2, err)
	}
	s3, err := m.GetOrCreate(ctx, "session-fresh")
	if err != nil || s3 == nil || s3.ID != "session-fresh" {
		t.Errorf("GetOrCreate unknown id should create with that id: s=%v err=%v", s3, err)
	}
}
