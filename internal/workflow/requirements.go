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

	"agent-orchestrator/internal/orchestrator/tool"
)

const requirementsSystemPrompt = `You are a requirements analyst. Extract structured
requirements from the user's project description. Respond with a single JSON object:
{"project_type": string, "core_features": [string], "technical_constraints": [string],
"target_users": string, "open_questions": [string]}.
Respond with JSON only, no prose.`

type analysisInput struct {
	UserInput string
}

// RequirementsAnalysis user_input → 结构化需求 JSON 的子工作流（eino 图：组装提示 → 模型 → 解析）
type RequirementsAnalysis struct {
	runner compose.Runnable[*analysisInput, map[string]any]
}

var _ tool.SubWorkflow = (*RequirementsAnalysis)(nil)

// NewRequirementsAnalysis 构建并编译需求分析图
func NewRequirementsAnalysis(ctx context.Context, cm model.BaseChatModel) (*RequirementsAnalysis, error) {
	g := compose.NewGraph[*analysisInput, map[string]any]()

	g.AddLambdaNode("prepare", compose.InvokableLambda(func(ctx context.Context, in *analysisInput) ([]*schema.Message, error) {
		if strings.TrimSpace(in.UserInput) == "" {
			return nil, fmt.Errorf("user_input is required")
		}
		return []*schema.Message{
			schema.SystemMessage(requirementsSystemPrompt),
			schema.UserMessage(in.UserInput),
		}, nil
	}))
	g.AddChatModelNode("analyze", cm)
	g.AddLambdaNode("parse", compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (map[string]any, error) {
		return parseJSONObject(msg.Content), nil
	}))

	g.AddEdge(compose.START, "prepare")
	g.AddEdge("prepare", "analyze")
	g.AddEdge("analyze", "parse")
	g.AddEdge("parse", compose.END)

	runner, err := g.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile requirements graph failed: %w", err)
	}
	return &RequirementsAnalysis{runner: runner}, nil
}

// Invoke 实现 tool.SubWorkflow
func (w *RequirementsAnalysis) Invoke(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
	out, err := w.runner.Invoke(ctx, &analysisInput{UserInput: stringArg(args, "user_input")})
	if err != nil {
		return nil, fmt.Errorf("requirements analysis: %w", err)
	}
	return out, nil
}
