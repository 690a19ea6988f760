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

package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
)

const designSystemPrompt = `You are a software architect. Based on the planning
document and requirements, produce an architecture document. Respond with a single
JSON object: {"components": [{"name": string, "responsibility": string,
"depends_on": [string]}], "data_flow": string, "technology_choices": [string],
"deployment_notes": string}.
Respond with JSON only, no prose.`

type designInput struct {
	UserRequirements string
	PlanningDocument string
}

// Design 架构设计子工作流。依赖共享上下文里的 planning_document，
// 缺失时返回携带说明的失败（不走异常路径）。
type Design struct {
	runner compose.Runnable[*designInput, map[string]any]
}

var _ tool.SubWorkflow = (*Design)(nil)

// NewDesign 构建并编译设计图
func NewDesign(ctx context.Context, cm model.BaseChatModel) (*Design, error) {
	g := compose.NewGraph[*designInput, map[string]any]()

	g.AddLambdaNode("prepare", compose.InvokableLambda(func(ctx context.Context, in *designInput) ([]*schema.Message, error) {
		var b strings.Builder
		b.WriteString("Planning document:\n")
		b.WriteString(in.PlanningDocument)
		if in.UserRequirements != "" {
			b.WriteString("\n\nAdditional requirements:\n")
			b.WriteString(in.UserRequirements)
		}
		return []*schema.Message{
			schema.SystemMessage(designSystemPrompt),
			schema.UserMessage(b.String()),
		}, nil
	}))
	g.AddChatModelNode("design", cm)
	g.AddLambdaNode("parse", compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (map[string]any, error) {
		return parseJSONObject(msg.Content), nil
	}))

	g.AddEdge(compose.START, "prepare")
	g.AddEdge("prepare", "design")
	g.AddEdge("design", "parse")
	g.AddEdge("parse", compose.END)

	runner, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile design graph failed: %w", err)
	}
	return &Design{runner: runner}, nil
}

// Invoke 实现 tool.SubWorkflow
func (w *Design) Invoke(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
	var planning any
	if shared != nil {
		planning = shared.Get(session.StateKeyPlanningDocument, nil)
	}
	if planning == nil {
		return tool.Failure("design", "design requires a planning document; run short_planning first"), nil
	}

	out, err := w.runner.Invoke(ctx, &designInput{
		UserRequirements: stringArg(args, "user_requirements"),
		PlanningDocument: compactJSON(planning),
	})
	if err != nil {
		return nil, fmt.Errorf("design: %w", err)
	}
	return out, nil
}
