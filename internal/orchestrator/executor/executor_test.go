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

package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/tool"
)

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()

	mustRegister := func(def tool.Definition, wf tool.SubWorkflow) {
		if err := r.Register(def, wf); err != nil {
			t.Fatalf("Register %s: %v", def.Name, err)
		}
	}

	mustRegister(tool.Definition{
		Name: "echo",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		return args["text"], nil
	}))

	mustRegister(tool.Definition{
		Name:       "boom",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		return nil, errors.New("boom")
	}))

	mustRegister(tool.Definition{
		Name:       "slow",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	return r
}

func TestExecuteAll_PartialFailureIsolation(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t), 0)
	calls := []decision.ToolCallRequest{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "one"}},
		{ID: "c2", Name: "boom", Arguments: map[string]any{}},
		{ID: "c3", Name: "echo", Arguments: map[string]any{}}, // 缺 required
		{ID: "c4", Name: "nope", Arguments: map[string]any{}}, // 未知工具
		{ID: "c5", Name: "echo", Arguments: map[string]any{"text": "five"}},
	}

	records := exec.ExecuteAll(context.Background(), calls, tool.MapContext{})
	if len(records) != len(calls) {
		t.Fatalf("expected %d records, got %d", len(calls), len(records))
	}

	// 请求序保持
	for i, call := range calls {
		if records[i].CallID != call.ID {
			t.Errorf("record %d out of order: want %s, got %s", i, call.ID, records[i].CallID)
		}
	}

	failures := 0
	for _, rec := range records {
		if !rec.Success {
			failures++
			if rec.Err == "" {
				t.Errorf("failed record needs error text: %+v", rec)
			}
		}
	}
	if failures != 3 {
		t.Errorf("expected exactly 3 failures, got %d", failures)
	}
	if !records[0].Success || records[0].Result != "one" {
		t.Errorf("record 0: %+v", records[0])
	}
	if !records[4].Success || records[4].Result != "five" {
		t.Errorf("record 4: %+v", records[4])
	}
}

func TestExecuteAll_ZeroCalls(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t), 0)
	records := exec.ExecuteAll(context.Background(), nil, tool.MapContext{})
	if len(records) != 0 {
		t.Errorf("zero calls should return empty slice, got %+v", records)
	}
}

func TestExecuteAll_Timeout(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t), 50*time.Millisecond)
	records := exec.ExecuteAll(context.Background(), []decision.ToolCallRequest{
		{ID: "c1", Name: "slow", Arguments: map[string]any{}},
	}, tool.MapContext{})
	if len(records) != 1 || records[0].Success {
		t.Fatalf("timeout should yield failed record: %+v", records)
	}
	if records[0].ExecutionTime <= 0 {
		t.Errorf("execution time should be recorded: %+v", records[0])
	}
}

func TestExecuteAll_DuplicateToolNamesRunIndependently(t *testing.T) {
	r := tool.NewRegistry()
	var calls int64
	err := r.Register(tool.Definition{
		Name:       "counter",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		n := atomic.AddInt64(&calls, 1)
		return fmt.Sprintf("run-%d", n), nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	exec := NewExecutor(r, 0)
	records := exec.ExecuteAll(context.Background(), []decision.ToolCallRequest{
		{ID: "c1", Name: "counter", Arguments: map[string]any{}},
		{ID: "c2", Name: "counter", Arguments: map[string]any{}},
	}, tool.MapContext{})

	if atomic.LoadInt64(&calls) != 2 {
		t.Errorf("duplicate names must each execute, calls=%d", calls)
	}
	if !records[0].Success || !records[1].Success {
		t.Errorf("records: %+v", records)
	}
}

func TestExecuteAll_SharedContextVisibleToTools(t *testing.T) {
	r := tool.NewRegistry()
	err := r.Register(tool.Definition{
		Name:       "design",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		if shared.Get("planning_document", nil) == nil {
			return map[string]any{"success": false, "error": "design requires a prior plan"}, nil
		}
		shared.Set("architecture_document", "arch")
		return "ok", nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	exec := NewExecutor(r, 0)

	shared := tool.MapContext{}
	records := exec.ExecuteAll(context.Background(), []decision.ToolCallRequest{
		{ID: "c1", Name: "design", Arguments: map[string]any{}},
	}, shared)
	if records[0].Success {
		t.Errorf("design without plan should fail: %+v", records[0])
	}

	shared.Set("planning_document", "plan")
	records = exec.ExecuteAll(context.Background(), []decision.ToolCallRequest{
		{ID: "c2", Name: "design", Arguments: map[string]any{}},
	}, shared)
	if !records[0].Success || shared.Get("architecture_document", nil) != "arch" {
		t.Errorf("design with plan: rec=%+v shared=%+v", records[0], shared)
	}
}

func TestExecuteAll_MaxCallsCap(t *testing.T) {
	exec := NewExecutor(newTestRegistry(t), 0)
	exec.SetMaxCalls(2)

	calls := []decision.ToolCallRequest{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "one"}},
		{ID: "c2", Name: "echo", Arguments: map[string]any{"text": "two"}},
		{ID: "c3", Name: "echo", Arguments: map[string]any{"text": "three"}},
	}
	records := exec.ExecuteAll(context.Background(), calls, tool.MapContext{})
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if !records[0].Success || !records[1].Success {
		t.Errorf("calls within the cap must run: %+v", records[:2])
	}
	if records[2].Success {
		t.Errorf("call beyond the cap must not run: %+v", records[2])
	}
	if records[2].Err == "" {
		t.Errorf("capped record needs error text: %+v", records[2])
	}
}
