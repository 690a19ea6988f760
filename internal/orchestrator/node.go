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

package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/decision"
	"agent-orchestrator/internal/orchestrator/executor"
	"agent-orchestrator/internal/orchestrator/prompt"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/stream"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/metrics"
	"agent-orchestrator/pkg/monitoring"
	"agent-orchestrator/pkg/tracing"
)

// RouteSignal 一轮结束后的路由信号
type RouteSignal string

const (
	// RouteWaitForUser 正常结束，等待下一条用户输入。
	// 「接下来做什么」交给 LLM 下一轮自己推理，不做硬编码阶段机。
	RouteWaitForUser RouteSignal = "wait_for_user"
	// RouteError PREP/DECIDE 出现不可恢复异常
	RouteError RouteSignal = "error"
)

// stateKeyForTool 工具名 → project_state 键的唯一映射表
var stateKeyForTool = map[string]string{
	"requirements_analysis": session.StateKeyStructuredRequirements,
	"short_planning":        session.StateKeyPlanningDocument,
	"research":              session.StateKeyResearchFindings,
	"design":                session.StateKeyArchitectureDocument,
	"tool_recommend":        session.StateKeyRecommendedTools,
}

// stageForTool 工具成功后的建议阶段（advisory，不强制状态机）
var stageForTool = map[string]session.Stage{
	"requirements_analysis": session.StageRequirements,
	"short_planning":        session.StagePlanning,
	"research":              session.StageResearch,
	"design":                session.StageArchitecture,
}

// Node ReAct 控制循环：PREP → DECIDE → (EXECUTE_TOOLS)? → UPDATE_STATE → ROUTE。
// 每轮结束后持久化 Session。
type Node struct {
	builder  *prompt.Builder
	engine   *decision.Engine
	exec     *executor.Executor
	registry *tool.Registry
	manager  session.SessionManager
	coord    *stream.Coordinator
}

// NewNode 创建控制循环
func NewNode(builder *prompt.Builder, engine *decision.Engine, exec *executor.Executor, registry *tool.Registry, manager session.SessionManager) *Node {
	return &Node{
		builder:  builder,
		engine:   engine,
		exec:     exec,
		registry: registry,
		manager:  manager,
		coord:    stream.NewCoordinator(engine, exec),
	}
}

// sharedState Session 的 SharedContext 适配：子工作流只透过窄接口
// 读写 project_state，不接触 Session 本体。
type sharedState struct {
	sess *session.Session
}

func (s sharedState) Get(key string, def any) any { return s.sess.GetState(key, def) }
func (s sharedState) Set(key string, value any)   { s.sess.SetState(key, value) }

// Turn 执行一轮。sink 非 nil 时走流式两阶段路径。
// PREP/DECIDE 的不可恢复异常记入 project_state 并路由 error；
// 其余失败（兜底决策、工具失败）都正常收敛到 wait_for_user。
func (n *Node) Turn(ctx context.Context, sess *session.Session, userText string, sink stream.Sink) RouteSignal {
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID
	}
	ctx, span := tracing.StartTurnSpan(ctx, sessionID, sink != nil)
	defer span.End()

	start := time.Now()
	route := n.turn(ctx, sess, userText, sink)

	span.SetAttributes(attribute.String("turn.route", string(route)))
	metrics.TurnDuration.WithLabelValues(string(route)).Observe(time.Since(start).Seconds())
	metrics.TurnTotal.WithLabelValues(string(route)).Inc()
	return route
}

func (n *Node) turn(ctx context.Context, sess *session.Session, userText string, sink stream.Sink) RouteSignal {
	start := time.Now()
	// PREP
	if sess == nil {
		return RouteError
	}
	if userText == "" {
		n.recordTurnError(ctx, sess, "empty user input")
		return RouteError
	}
	sess.AddUserMessage(userText)
	stateDesc := prompt.StateDescription(sess)

	// DECIDE：历史已含本轮用户消息，Build 不再追加
	messages := n.builder.Build(sess, "", stateDesc)
	specs := n.registry.Specs(ctx)
	shared := sharedState{sess: sess}

	var d *decision.Decision
	var records []session.ToolCallRecord
	finalText := ""

	if sink != nil {
		out := n.coord.Run(ctx, messages, specs, shared, sink)
		d, records, finalText = out.Decision, out.Records, out.FinalText
	} else {
		d = n.engine.Decide(ctx, messages, specs)
		if len(d.ToolCalls) > 0 {
			records = n.exec.ExecuteAll(ctx, d.ToolCalls, shared)
		}
		finalText = d.AssistantText
	}

	// UPDATE_STATE
	for _, rec := range records {
		sess.RecordToolExecution(rec)
		if !rec.Success {
			continue
		}
		if key, ok := stateKeyForTool[rec.Tool]; ok {
			sess.SetState(key, rec.Result)
		}
		if stage, ok := stageForTool[rec.Tool]; ok {
			sess.SetStage(stage)
		}
	}

	// 有工具跑过时即使文本为空也落助手消息，保持配对完整
	sess.AddAssistantMessage(finalText, decisionWireCalls(d))
	sess.SetState(session.StateKeyReactCycleCount, asInt(sess.GetState(session.StateKeyReactCycleCount, 0))+1)

	// 持久化失败不影响内存态，数据丢失风险显式暴露而非静默
	if err := n.manager.Save(ctx, sess); err != nil {
		slog.Error("session 持久化failed", "session", sess.ID, "error", err)
	}

	observeTurnQuality(d, records, finalText, time.Since(start))

	// ROUTE
	return RouteWaitForUser
}

// observeTurnQuality 把本轮结果折算为质量评分并上报
func observeTurnQuality(d *decision.Decision, records []session.ToolCallRecord, finalText string, elapsed time.Duration) {
	toolScore := 100.0
	if len(records) > 0 {
		success := 0
		for _, rec := range records {
			if rec.Success {
				success++
			}
		}
		toolScore = 100 * float64(success) / float64(len(records))
	}
	narration := 0.0
	if strings.TrimSpace(finalText) != "" {
		narration = 100
	}
	decisionScore := 100.0
	if d == nil || d.Kind == decision.KindFallback {
		decisionScore = 0
	}
	score := monitoring.ScoreTurn(monitoring.TurnInput{
		ToolSuccessRate: toolScore,
		NarrationScore:  narration,
		DecisionScore:   decisionScore,
		LatencyScore:    monitoring.LatencyScoreFromSeconds(elapsed.Seconds(), 30),
	})
	metrics.TurnQuality.Observe(score.Overall)
}

// recordTurnError PREP/DECIDE 异常落入 project_state，供下一轮重试参考
func (n *Node) recordTurnError(ctx context.Context, sess *session.Session, msg string) {
	sess.SetState(session.StateKeyLastError, msg)
	sess.SetState(session.StateKeyErrorCount, asInt(sess.GetState(session.StateKeyErrorCount, 0))+1)
	sess.SetStage(session.StageError)
	if err := n.manager.Save(ctx, sess); err != nil {
		slog.Error("session 持久化failed", "session", sess.ID, "error", err)
	}
}

func decisionWireCalls(d *decision.Decision) []llm.ToolCall {
	if d == nil || len(d.ToolCalls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(d.ToolCalls))
	for i, call := range d.ToolCalls {
		args := call.Raw
		if args == "" {
			args = "{}"
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

// asInt 容忍 JSON 往返后的数值类型漂移
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
