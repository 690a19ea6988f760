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
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/metrics"
	"agent-orchestrator/pkg/tracing"
)

const defaultToolTimeout = 120 * time.Second

// Executor 并发执行一个 Decision 的全部工具调用。
// 个别失败不影响兄弟调用，部分成功是一等结果而非错误。
type Executor struct {
	registry *tool.Registry
	timeout  time.Duration
	maxCalls int
}

// NewExecutor 创建 Executor；timeout 为单个工具的超时，<= 0 用默认 120s
func NewExecutor(registry *tool.Registry, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	return &Executor{registry: registry, timeout: timeout}
}

// SetMaxCalls 设置单轮允许的调用数上限；<= 0 不限制。
// 超限的调用不执行，就地合成失败记录。
func (e *Executor) SetMaxCalls(n int) {
	e.maxCalls = n
}

// Hooks 逐调用生命周期回调（供 Streaming Coordinator 发工具事件）。
// 回调可能来自不同 goroutine，实现方自行串行化。
type Hooks struct {
	OnStart func(call decision.ToolCallRequest)
	OnDone  func(call decision.ToolCallRequest, rec session.ToolCallRecord)
}

// ExecuteAll 执行全部调用并按请求序返回记录。
// 参数校验失败的调用就地合成失败记录，不启动任务；
// 合法调用各起一个 goroutine（上限即单轮调用数，天然有界）并 join。
// 零调用直接返回空切片。同名调用各自独立执行。
func (e *Executor) ExecuteAll(ctx context.Context, calls []decision.ToolCallRequest, shared tool.SharedContext) []session.ToolCallRecord {
	return e.ExecuteAllWithHooks(ctx, calls, shared, Hooks{})
}

// ExecuteAllWithHooks 同 ExecuteAll，附带逐调用事件回调
func (e *Executor) ExecuteAllWithHooks(ctx context.Context, calls []decision.ToolCallRequest, shared tool.SharedContext, hooks Hooks) []session.ToolCallRecord {
	records := make([]session.ToolCallRecord, len(calls))
	if len(calls) == 0 {
		return records
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		if e.maxCalls > 0 && i >= e.maxCalls {
			records[i] = failedRecord(call, fmt.Sprintf("tool call limit exceeded (max %d per turn)", e.maxCalls), 0)
			metrics.ToolTotal.WithLabelValues(call.Name, "invalid").Inc()
			if hooks.OnDone != nil {
				hooks.OnDone(call, records[i])
			}
			continue
		}
		if vr := e.registry.ValidateArguments(call.Name, call.Arguments); !vr.Valid {
			records[i] = failedRecord(call, fmt.Sprintf("argument validation failed: %v", vr.Errors), 0)
			metrics.ToolTotal.WithLabelValues(call.Name, "invalid").Inc()
			if hooks.OnDone != nil {
				hooks.OnDone(call, records[i])
			}
			continue
		}

		if hooks.OnStart != nil {
			hooks.OnStart(call)
		}
		wg.Add(1)
		go func(i int, call decision.ToolCallRequest) {
			defer wg.Done()
			records[i] = e.executeOne(ctx, call, shared)
			if hooks.OnDone != nil {
				hooks.OnDone(call, records[i])
			}
		}(i, call)
	}
	wg.Wait()
	return records
}

// executeOne 单个调用：带超时分发 Invoke。子工作流不被强杀
// （可能有应当原子完成的副作用），超时只是放弃等待并记失败。
func (e *Executor) executeOne(ctx context.Context, call decision.ToolCallRequest, shared tool.SharedContext) session.ToolCallRecord {
	ctx, span := tracing.StartToolSpan(ctx, call.Name, call.ID)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan tool.Envelope, 1)
	go func() {
		done <- e.registry.Invoke(ctx, call.Name, call.Arguments, shared)
	}()

	var env tool.Envelope
	select {
	case env = <-done:
	case <-ctx.Done():
		env = tool.Failure(call.Name, "tool timed out or cancelled: %v", ctx.Err())
	}
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Bool("tool.success", env.Success))

	metrics.ToolDuration.WithLabelValues(call.Name).Observe(elapsed.Seconds())
	status := "success"
	if !env.Success {
		status = "failure"
	}
	metrics.ToolTotal.WithLabelValues(call.Name, status).Inc()

	rec := session.ToolCallRecord{
		CallID:        call.ID,
		Tool:          call.Name,
		Arguments:     call.Arguments,
		Success:       env.Success,
		ExecutionTime: elapsed.Seconds(),
	}
	if env.Success {
		rec.Result = env.Result
	} else {
		rec.Err = env.Error
		rec.Result = map[string]any{"error": env.Error}
	}
	return rec
}

func failedRecord(call decision.ToolCallRequest, errMsg string, elapsed float64) session.ToolCallRecord {
	return session.ToolCallRecord{
		CallID:        call.ID,
		Tool:          call.Name,
		Arguments:     call.Arguments,
		Success:       false,
		Err:           errMsg,
		Result:        map[string]any{"error": errMsg},
		ExecutionTime: elapsed,
	}
}
