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

const planningSystemPrompt = `You are a project planner. Produce a short, phased plan
for the given requirements. Respond with a single JSON object:
{"phases": [{"name": string, "goal": string, "deliverables": [string]}],
"risks": [string], "estimated_iterations": number}.
Respond with JSON only, no prose.`

type planningInput struct {
	UserRequirements  string
	ImprovementPoints string
	PlanningStage     string
	StructuredReqs    string
}

// ShortPlanning user_requirements → 规划文档的子工作流。
// 若共享上下文里已有结构化需求，会一并进入提示词。
type ShortPlanning struct {
	runner compose.Runnable[*planningInput, map[string]any]
}

var _ tool.SubWorkflow = (*ShortPlanning)(nil)

// NewShortPlanning 构建并编译规划图
func NewShortPlanning(ctx context.Context, cm model.BaseChatModel) (*ShortPlanning, error) {
	g := compose.NewGraph[*planningInput, map[string]any]()

	g.AddLambdaNode("prepare", compose.InvokableLambda(func(ctx context.Context, in *planningInput) ([]*schema.Message, error) {
		if strings.TrimSpace(in.UserRequirements) == "" {
			return nil, fmt.Errorf("user_requirements is required")
		}
		var b strings.Builder
		b.WriteString("Requirements:\n")
		b.WriteString(in.UserRequirements)
		if in.StructuredReqs != "" {
			b.WriteString("\n\nStructured requirements from earlier analysis:\n")
			b.WriteString(in.StructuredReqs)
		}
		if in.ImprovementPoints != "" {
			b.WriteString("\n\nImprovement points from the previous plan revision:\n")
			b.WriteString(in.ImprovementPoints)
		}
		if in.PlanningStage != "" {
			b.WriteString("\n\nPlanning stage: ")
			b.WriteString(in.PlanningStage)
		}
		return []*schema.Message{
			schema.SystemMessage(planningSystemPrompt),
			schema.UserMessage(b.String()),
		}, nil
	}))
	g.AddChatModelNode("plan", cm)
	g.AddLambdaNode("parse", compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (map[string]any, error) {
		return parseJSONObject(msg.Content), nil
	}))

	g.AddEdge(compose.START, "prepare")
	g.AddEdge("prepare", "plan")
	g.AddEdge("plan", "parse")
	g.AddEdge("parse", compose.END)

	runner, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile planning graph failed: %w", err)
	}
	return &ShortPlanning{runner: runner}, nil
}

// Invoke 实现 tool.SubWorkflow
func (w *ShortPlanning) Invoke(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
	in := &planningInput{
		UserRequirements:  stringArg(args, "user_requirements"),
		ImprovementPoints: stringArg(args, "improvement_points"),
		PlanningStage:     stringArg(args, "planning_stage"),
	}
	if shared != nil {
		if reqs := shared.Get(session.StateKeyStructuredRequirements, nil); reqs != nil {
			in.StructuredReqs = compactJSON(reqs)
		}
	}
	out, err := w.runner.Invoke(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("short planning: %w", err)
	}
	return out, nil
}
