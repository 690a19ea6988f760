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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/executor"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/metrics"
)

// Coordinator 两阶段流式编排：先流式决策（文本 delta 直达 sink，
// 工具调用分片静默聚合），有工具时执行并发工具事件，
// 再发第二次 LLM 调用把工具结果讲给用户听。
type Coordinator struct {
	engine *decision.Engine
	exec   *executor.Executor
}

// Outcome 一次流式回合的聚合结果。FinalText 是最终落历史的助手文本：
// 无工具时为决策文本，有工具时为 narration 文本。
type Outcome struct {
	Decision  *decision.Decision
	Records   []session.ToolCallRecord
	FinalText string
	Narrated  bool
}

// NewCoordinator 创建 Coordinator
func NewCoordinator(engine *decision.Engine, exec *executor.Executor) *Coordinator {
	return &Coordinator{engine: engine, exec: exec}
}

// Run 执行 STREAMING_DECISION → (EXECUTING_TOOLS → STREAMING_NARRATION)? → DONE。
// 调用方取消时在途工具跑完（子工作流可能有应当完整落地的副作用），
// narration 跳过。
func (c *Coordinator) Run(ctx context.Context, messages []llm.Message, specs []llm.ToolSpec, shared tool.SharedContext, sink Sink) *Outcome {
	metrics.StreamActive.Inc()
	defer metrics.StreamActive.Dec()

	emit := newSerialSink(sink)

	// STREAMING_DECISION
	d := c.engine.DecideStream(ctx, messages, specs, func(token string) {
		emit(token)
	})
	// 兜底 Decision 产生于流中断之后，engine 不会推它的文案；
	// 用户必须看到这段文本，这里补推
	if d.Kind == decision.KindFallback && d.AssistantText != "" {
		emit(d.AssistantText)
	}
	out := &Outcome{Decision: d, FinalText: d.AssistantText}
	if len(d.ToolCalls) == 0 {
		return out
	}

	// EXECUTING_TOOLS：工具生命周期以带外标记发给 sink
	out.Records = c.exec.ExecuteAllWithHooks(ctx, d.ToolCalls, shared, executor.Hooks{
		OnStart: func(call decision.ToolCallRequest) {
			emit(ToolStartToken(call.Name))
		},
		OnDone: func(call decision.ToolCallRequest, rec session.ToolCallRecord) {
			emit(ToolEndToken(call.Name, rec.Success, rec.ExecutionTime))
		},
	})

	if ctx.Err() != nil {
		slog.Info("流式回合被取消，跳过 narration", "error", ctx.Err())
		return out
	}

	// STREAMING_NARRATION：第二次调用带上工具调用/结果配对
	emit(NewReplyToken)
	narration := c.narrate(ctx, messages, d, out.Records, emit)
	if narration != "" {
		out.FinalText = narration
		out.Narrated = true
	}
	return out
}

// narrate 用原始消息 + 助手工具调用消息 + 配对的工具结果消息
// 发起第二次 LLM 调用，流式转发 narration 文本。
func (c *Coordinator) narrate(ctx context.Context, messages []llm.Message, d *decision.Decision, records []session.ToolCallRecord, emit Sink) string {
	seeded := make([]llm.Message, 0, len(messages)+1+len(records))
	seeded = append(seeded, messages...)
	seeded = append(seeded, llm.Message{
		Role:      session.RoleAssistant,
		Content:   d.AssistantText,
		ToolCalls: toWireCalls(d.ToolCalls),
	})
	for _, rec := range records {
		var content string
		if rec.Success {
			content = marshalResult(rec.Result)
		} else {
			content = marshalResult(map[string]any{"error": rec.Err})
		}
		seeded = append(seeded, llm.Message{
			Role:       session.RoleTool,
			Content:    content,
			ToolCallID: rec.CallID,
			Name:       rec.Tool,
		})
	}

	// narration 不带工具声明，这一步只要文本
	nd := c.engine.DecideStream(ctx, seeded, nil, func(token string) {
		emit(token)
	})
	if nd.Kind == decision.KindFallback {
		return ""
	}
	return nd.AssistantText
}

func toWireCalls(calls []decision.ToolCallRequest) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		args := call.Raw
		if args == "" {
			args = marshalResult(call.Arguments)
		}
		out[i] = llm.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      call.Name,
				Arguments: args,
			},
		}
	}
	return out
}

func marshalResult(v any) string {
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

// newSerialSink 串行化 sink 调用；工具结束事件来自 executor 的
// goroutine，与 narration token 可能交错。
func newSerialSink(sink Sink) Sink {
	if sink == nil {
		return func(string) {}
	}
	var mu sync.Mutex
	return func(fragment string) {
		mu.Lock()
		defer mu.Unlock()
		sink(fragment)
	}
}
