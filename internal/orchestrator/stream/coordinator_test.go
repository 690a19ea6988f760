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
	"context"
	"errors"
	"strings"
	"testing"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/executor"
	"agent-orchestrator/internal/orchestrator/tool"
)

// sequencedClient 按调用次序返回预设结果：第一次是决策，第二次是 narration
type sequencedClient struct {
	results []*llm.ChatResult
	idx     int
}

func (s *sequencedClient) next() *llm.ChatResult {
	if s.idx >= len(s.results) {
		return &llm.ChatResult{Content: "no more scripted results"}
	}
	r := s.results[s.idx]
	s.idx++
	return r
}

func (s *sequencedClient) Generate(p string, o llm.GenerateOptions) (string, error) {
	return s.next().Content, nil
}
func (s *sequencedClient) GenerateWithContext(ctx context.Context, p string, o llm.GenerateOptions) (string, error) {
	return s.next().Content, nil
}
func (s *sequencedClient) Chat(m []llm.Message, o llm.GenerateOptions) (string, error) {
	return s.next().Content, nil
}
func (s *sequencedClient) ChatWithContext(ctx context.Context, m []llm.Message, o llm.GenerateOptions) (string, error) {
	return s.next().Content, nil
}
func (s *sequencedClient) ChatTools(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions) (*llm.ChatResult, error) {
	return s.next(), nil
}
func (s *sequencedClient) ChatToolsStream(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions, onToken func(string)) (*llm.ChatResult, error) {
	r := s.next()
	if onToken != nil && r.Content != "" {
		onToken(r.Content)
	}
	return r, nil
}
func (s *sequencedClient) Model() string    { return "sequenced" }
func (s *sequencedClient) Provider() string { return "test" }
func (s *sequencedClient) SetModel(string)  {}
func (s *sequencedClient) SetAPIKey(string) {}

func newPlanningRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	err := r.Register(tool.Definition{
		Name: "short_planning",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"user_requirements": map[string]any{"type": "string"}},
			"required":   []any{"user_requirements"},
		},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		return map[string]any{"phases": []any{"scope", "build"}}, nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func TestCoordinator_TwoPhaseWithTools(t *testing.T) {
	client := &sequencedClient{results: []*llm.ChatResult{
		{
			Content: "planning now",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"bookstore"}`}},
			},
		},
		{Content: "Here is your plan: scope, then build."},
	}}
	engine := decision.NewEngine(client, llm.GenerateOptions{}, 0)
	coord := NewCoordinator(engine, executor.NewExecutor(newPlanningRegistry(t), 0))

	var fragments []string
	out := coord.Run(context.Background(), nil, nil, tool.MapContext{}, func(f string) {
		fragments = append(fragments, f)
	})

	if len(out.Records) != 1 || !out.Records[0].Success {
		t.Fatalf("records: %+v", out.Records)
	}
	if !out.Narrated || out.FinalText != "Here is your plan: scope, then build." {
		t.Errorf("final text should be the narration: %+v", out)
	}

	joined := strings.Join(fragments, "\n")
	for _, want := range []string{"planning now", ToolStartToken("short_planning"), NewReplyToken, "Here is your plan"} {
		if !strings.Contains(joined, want) {
			t.Errorf("sink missing %q in:\n%s", want, joined)
		}
	}
	// TOOL_END 标记携带成功标志
	foundEnd := false
	for _, f := range fragments {
		if ev, ok := ParseControlToken(f); ok && ev.Kind == EventToolEnd {
			foundEnd = true
			if ev.Tool != "short_planning" || !ev.Success {
				t.Errorf("tool end event: %+v", ev)
			}
		}
	}
	if !foundEnd {
		t.Error("no TOOL_END control token emitted")
	}

	// 事件序：决策文本 → 工具开始 → 工具结束 → 新回复 → narration
	idxStart := indexOf(fragments, ToolStartToken("short_planning"))
	idxReply := indexOf(fragments, NewReplyToken)
	if idxStart < 0 || idxReply < 0 || idxStart > idxReply {
		t.Errorf("event ordering wrong: %v", fragments)
	}
}

func TestCoordinator_NoToolsGoesStraightToDone(t *testing.T) {
	client := &sequencedClient{results: []*llm.ChatResult{{Content: "just an answer"}}}
	engine := decision.NewEngine(client, llm.GenerateOptions{}, 0)
	coord := NewCoordinator(engine, executor.NewExecutor(newPlanningRegistry(t), 0))

	var fragments []string
	out := coord.Run(context.Background(), nil, nil, tool.MapContext{}, func(f string) {
		fragments = append(fragments, f)
	})

	if out.FinalText != "just an answer" || out.Narrated {
		t.Errorf("outcome: %+v", out)
	}
	if len(out.Records) != 0 {
		t.Errorf("no records expected: %+v", out.Records)
	}
	for _, f := range fragments {
		if f == NewReplyToken {
			t.Error("no narration phase expected without tools")
		}
	}
	if client.idx != 1 {
		t.Errorf("exactly one LLM call expected, got %d", client.idx)
	}
}

func TestCoordinator_NarrationSeededWithPairing(t *testing.T) {
	var narrationMessages []llm.Message
	client := &pairingProbeClient{}
	engine := decision.NewEngine(client, llm.GenerateOptions{}, 0)
	coord := NewCoordinator(engine, executor.NewExecutor(newPlanningRegistry(t), 0))

	coord.Run(context.Background(), []llm.Message{{Role: "user", Content: "plan it"}}, nil, tool.MapContext{}, func(string) {})
	narrationMessages = client.secondCallMessages

	// 第二次调用必须带 assistant 工具调用消息和配对的 tool 结果消息
	var sawAssistantCalls, sawToolResult bool
	for _, m := range narrationMessages {
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			sawAssistantCalls = true
		}
		if m.Role == "tool" && m.ToolCallID == "call_1" && m.Content != "" {
			sawToolResult = true
		}
	}
	if !sawAssistantCalls || !sawToolResult {
		t.Errorf("narration seeding incomplete: %+v", narrationMessages)
	}
}

// pairingProbeClient 记录第二次调用的消息列表
type pairingProbeClient struct {
	calls              int
	secondCallMessages []llm.Message
}

func (p *pairingProbeClient) script() *llm.ChatResult {
	p.calls++
	if p.calls == 1 {
		return &llm.ChatResult{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"x"}`}},
		}}
	}
	return &llm.ChatResult{Content: "narrated"}
}

func (p *pairingProbeClient) Generate(string, llm.GenerateOptions) (string, error) { return "", nil }
func (p *pairingProbeClient) GenerateWithContext(context.Context, string, llm.GenerateOptions) (string, error) {
	return "", nil
}
func (p *pairingProbeClient) Chat([]llm.Message, llm.GenerateOptions) (string, error) {
	return "", nil
}
func (p *pairingProbeClient) ChatWithContext(context.Context, []llm.Message, llm.GenerateOptions) (string, error) {
	return "", nil
}
func (p *pairingProbeClient) ChatTools(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions) (*llm.ChatResult, error) {
	r := p.script()
	if p.calls == 2 {
		p.secondCallMessages = m
	}
	return r, nil
}
func (p *pairingProbeClient) ChatToolsStream(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions, onToken func(string)) (*llm.ChatResult, error) {
	r := p.script()
	if p.calls == 2 {
		p.secondCallMessages = m
	}
	if onToken != nil && r.Content != "" {
		onToken(r.Content)
	}
	return r, nil
}
func (p *pairingProbeClient) Model() string    { return "probe" }
func (p *pairingProbeClient) Provider() string { return "test" }
func (p *pairingProbeClient) SetModel(string)  {}
func (p *pairingProbeClient) SetAPIKey(string) {}

func indexOf(list []string, want string) int {
	for i, v := range list {
		if v == want {
			return i
		}
	}
	return -1
}

func TestParseControlToken(t *testing.T) {
	if ev, ok := ParseControlToken(ToolStartToken("research")); !ok || ev.Tool != "research" {
		t.Errorf("start: %+v ok=%v", ev, ok)
	}
	if ev, ok := ParseControlToken(ToolEndToken("design", false, 1.5)); !ok || ev.Success || ev.Elapsed != 1.5 {
		t.Errorf("end: %+v ok=%v", ev, ok)
	}
	if _, ok := ParseControlToken("plain narration text"); ok {
		t.Error("plain text must not parse as control token")
	}
	if _, ok := ParseControlToken("__SOME_FUTURE_TOKEN__x"); ok {
		t.Error("unknown token must be a no-op for consumers")
	}
}

// erroringClient 所有调用都失败
type erroringClient struct{}

func (e *erroringClient) Generate(string, llm.GenerateOptions) (string, error) {
	return "", errUpstream
}
func (e *erroringClient) GenerateWithContext(context.Context, string, llm.GenerateOptions) (string, error) {
	return "", errUpstream
}
func (e *erroringClient) Chat([]llm.Message, llm.GenerateOptions) (string, error) {
	return "", errUpstream
}
func (e *erroringClient) ChatWithContext(context.Context, []llm.Message, llm.GenerateOptions) (string, error) {
	return "", errUpstream
}
func (e *erroringClient) ChatTools(context.Context, []llm.Message, []llm.ToolSpec, llm.GenerateOptions) (*llm.ChatResult, error) {
	return nil, errUpstream
}
func (e *erroringClient) ChatToolsStream(context.Context, []llm.Message, []llm.ToolSpec, llm.GenerateOptions, func(string)) (*llm.ChatResult, error) {
	return nil, errUpstream
}
func (e *erroringClient) Model() string    { return "erroring" }
func (e *erroringClient) Provider() string { return "test" }
func (e *erroringClient) SetModel(string)  {}
func (e *erroringClient) SetAPIKey(string) {}

var errUpstream = errors.New("upstream 500")

func TestCoordinator_LLMErrorStreamsFallbackText(t *testing.T) {
	engine := decision.NewEngine(&erroringClient{}, llm.GenerateOptions{}, 0)
	coord := NewCoordinator(engine, executor.NewExecutor(newPlanningRegistry(t), 0))

	var fragments []string
	out := coord.Run(context.Background(), nil, nil, tool.MapContext{}, func(f string) {
		fragments = append(fragments, f)
	})

	if out.Decision.Kind != decision.KindFallback || out.FinalText == "" {
		t.Fatalf("outcome: %+v", out)
	}
	// 流从未产生 token，兜底文案必须仍然到达 sink
	joined := strings.Join(fragments, "")
	if !strings.Contains(joined, out.FinalText) {
		t.Errorf("fallback text %q never reached the sink: %q", out.FinalText, joined)
	}
}
