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

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agent-orchestrator/internal/model/llm"
)

// scriptedClient 固定返回预设结果的 ToolCallingClient
type scriptedClient struct {
	result *llm.ChatResult
	err    error
}

func (s *scriptedClient) Generate(prompt string, o llm.GenerateOptions) (string, error) {
	return s.GenerateWithContext(context.Background(), prompt, o)
}
func (s *scriptedClient) GenerateWithContext(ctx context.Context, prompt string, o llm.GenerateOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.result.Content, nil
}
func (s *scriptedClient) Chat(m []llm.Message, o llm.GenerateOptions) (string, error) {
	return s.ChatWithContext(context.Background(), m, o)
}
func (s *scriptedClient) ChatWithContext(ctx context.Context, m []llm.Message, o llm.GenerateOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.result.Content, nil
}
func (s *scriptedClient) ChatTools(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions) (*llm.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}
func (s *scriptedClient) ChatToolsStream(ctx context.Context, m []llm.Message, t []llm.ToolSpec, o llm.GenerateOptions, onToken func(string)) (*llm.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	// 按字符切片模拟 token 粒度
	if onToken != nil {
		for _, r := range s.result.Content {
			onToken(string(r))
		}
	}
	return s.result, nil
}
func (s *scriptedClient) Model() string    { return "scripted" }
func (s *scriptedClient) Provider() string { return "test" }
func (s *scriptedClient) SetModel(string)  {}
func (s *scriptedClient) SetAPIKey(string) {}

func TestDecide_NativeToolCalls(t *testing.T) {
	client := &scriptedClient{result: &llm.ChatResult{
		Content: "let me plan that",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"online bookstore"}`}},
		},
	}}
	d := NewEngine(client, llm.GenerateOptions{}, 0).Decide(context.Background(), nil, nil)

	if d.Kind != KindNative || len(d.ToolCalls) != 1 {
		t.Fatalf("decision: %+v", d)
	}
	tc := d.ToolCalls[0]
	if tc.Name != "short_planning" || tc.Arguments["user_requirements"] != "online bookstore" {
		t.Errorf("tool call: %+v", tc)
	}
	if d.AssistantText != "let me plan that" {
		t.Errorf("assistant text: %q", d.AssistantText)
	}
}

func TestDecide_BadArgumentsFallBackToEmptyObject(t *testing.T) {
	client := &scriptedClient{result: &llm.ChatResult{
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "design", Arguments: `{"broken`}},
		},
	}}
	d := NewEngine(client, llm.GenerateOptions{}, 0).Decide(context.Background(), nil, nil)
	if len(d.ToolCalls) != 1 {
		t.Fatalf("decision: %+v", d)
	}
	if len(d.ToolCalls[0].Arguments) != 0 {
		t.Errorf("unparseable arguments must become empty object: %+v", d.ToolCalls[0].Arguments)
	}
}

func TestDecide_MarkerFallback(t *testing.T) {
	client := &scriptedClient{result: &llm.ChatResult{
		Content: "I'll research this.\n<tool_call>{\"name\":\"research\",\"arguments\":{\"keywords\":[\"go\",\"hertz\"]}}</tool_call>\nStand by.",
	}}
	d := NewEngine(client, llm.GenerateOptions{}, 0).Decide(context.Background(), nil, nil)

	if d.Kind != KindMarker || len(d.ToolCalls) != 1 {
		t.Fatalf("decision: %+v", d)
	}
	if d.ToolCalls[0].Name != "research" {
		t.Errorf("tool call: %+v", d.ToolCalls[0])
	}
	if strings.Contains(d.AssistantText, "<tool_call>") {
		t.Errorf("marker must be stripped from visible text: %q", d.AssistantText)
	}
	if !strings.Contains(d.AssistantText, "I'll research this.") {
		t.Errorf("surrounding prose should survive: %q", d.AssistantText)
	}
}

func TestDecide_LLMErrorYieldsFallback(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream 500")}
	d := NewEngine(client, llm.GenerateOptions{}, 0).Decide(context.Background(), nil, nil)

	if d.Kind != KindFallback || len(d.ToolCalls) != 0 {
		t.Fatalf("decision: %+v", d)
	}
	if d.AssistantText == "" || d.Confidence >= 0.5 {
		t.Errorf("fallback should carry fixed text and low confidence: %+v", d)
	}
}

func TestDecide_EmptyResponseYieldsFallback(t *testing.T) {
	client := &scriptedClient{result: &llm.ChatResult{}}
	d := NewEngine(client, llm.GenerateOptions{}, 0).Decide(context.Background(), nil, nil)
	if d.Kind != KindFallback || d.AssistantText == "" {
		t.Errorf("empty decision is a soft error: %+v", d)
	}
}

func TestDecideStream_EquivalentToDecide(t *testing.T) {
	script := &llm.ChatResult{
		Content: "working on it",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "short_planning", Arguments: `{"user_requirements":"shop"}`}},
			{ID: "call_2", Type: "function", Function: llm.FunctionCall{Name: "research", Arguments: `{"keywords":["go"]}`}},
		},
	}
	engine := NewEngine(&scriptedClient{result: script}, llm.GenerateOptions{}, 0)

	plain := engine.Decide(context.Background(), nil, nil)
	var streamed strings.Builder
	stream := engine.DecideStream(context.Background(), nil, nil, func(token string) {
		streamed.WriteString(token)
	})

	if plain.AssistantText != stream.AssistantText {
		t.Errorf("assistant text differs: %q vs %q", plain.AssistantText, stream.AssistantText)
	}
	if len(plain.ToolCalls) != len(stream.ToolCalls) {
		t.Fatalf("tool call counts differ: %d vs %d", len(plain.ToolCalls), len(stream.ToolCalls))
	}
	for i := range plain.ToolCalls {
		if plain.ToolCalls[i].ID != stream.ToolCalls[i].ID || plain.ToolCalls[i].Name != stream.ToolCalls[i].Name {
			t.Errorf("tool call %d differs: %+v vs %+v", i, plain.ToolCalls[i], stream.ToolCalls[i])
		}
	}
	// token 粒度不要求一致，但拼接结果等于完整文本
	if streamed.String() != script.Content {
		t.Errorf("streamed tokens should concatenate to content: %q", streamed.String())
	}
}

func TestParseMarkers_UnparseableBlockLeftInText(t *testing.T) {
	clean, calls := parseMarkers("before <tool_call>not json</tool_call> after")
	if len(calls) != 0 {
		t.Errorf("unparseable block should not produce calls: %+v", calls)
	}
	if !strings.Contains(clean, "not json") {
		t.Errorf("unparseable block should stay visible: %q", clean)
	}
}

func TestParseMarkers_MultipleCalls(t *testing.T) {
	text := `<tool_call>{"name":"a","arguments":{}}</tool_call><tool_call>{"name":"b","arguments":{"x":1}}</tool_call>`
	clean, calls := parseMarkers(text)
	if len(calls) != 2 || calls[0].Name != "a" || calls[1].Name != "b" {
		t.Fatalf("calls: %+v", calls)
	}
	if calls[0].ID == calls[1].ID {
		t.Error("marker call ids must be unique within a decision")
	}
	if clean != "" {
		t.Errorf("text should be empty after stripping: %q", clean)
	}
}

// textOnlyClient 只实现基础 Client，不支持原生 function calling，
// 工具调用全走文本标记
type textOnlyClient struct {
	content string
}

func (c *textOnlyClient) Generate(string, llm.GenerateOptions) (string, error) {
	return c.content, nil
}
func (c *textOnlyClient) GenerateWithContext(context.Context, string, llm.GenerateOptions) (string, error) {
	return c.content, nil
}
func (c *textOnlyClient) Chat([]llm.Message, llm.GenerateOptions) (string, error) {
	return c.content, nil
}
func (c *textOnlyClient) ChatWithContext(context.Context, []llm.Message, llm.GenerateOptions) (string, error) {
	return c.content, nil
}
func (c *textOnlyClient) Model() string    { return "text-only" }
func (c *textOnlyClient) Provider() string { return "test" }
func (c *textOnlyClient) SetModel(string)  {}
func (c *textOnlyClient) SetAPIKey(string) {}

func TestDecideStream_MarkerClientKeepsProtocolTextOffSink(t *testing.T) {
	client := &textOnlyClient{
		content: "Looking into it.\n<tool_call>{\"name\":\"research\",\"arguments\":{\"keywords\":[\"go\"]}}</tool_call>",
	}
	var streamed strings.Builder
	d := NewEngine(client, llm.GenerateOptions{}, 0).DecideStream(context.Background(), nil, nil, func(token string) {
		streamed.WriteString(token)
	})

	if d.Kind != KindMarker || len(d.ToolCalls) != 1 || d.ToolCalls[0].Name != "research" {
		t.Fatalf("decision: %+v", d)
	}
	if strings.Contains(streamed.String(), "<tool_call>") {
		t.Errorf("marker block must not reach the sink: %q", streamed.String())
	}
	if !strings.Contains(streamed.String(), "Looking into it.") {
		t.Errorf("visible text should still reach the sink: %q", streamed.String())
	}
}

func TestParseMarkers_IDsUniqueAcrossParses(t *testing.T) {
	text := `<tool_call>{"name":"research","arguments":{}}</tool_call>`
	_, first := parseMarkers(text)
	_, second := parseMarkers(text)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("calls: %+v / %+v", first, second)
	}
	// 历史重建按 call id 全局配对，跨轮解析必须产出不同 id
	if first[0].ID == second[0].ID {
		t.Errorf("marker call ids must differ across parses, both %q", first[0].ID)
	}
}
