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

	"github.com/cloudwego/eino/components/model"
	einoretriever "github.com/cloudwego/eino/components/retriever"

	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/secrets"
)

// Deps 子工作流注册所需的外部依赖
type Deps struct {
	ChatModel model.BaseChatModel

	// CatalogRetriever tool_recommend 的检索后端；nil 时跳过注册
	CatalogRetriever einoretriever.Retriever

	// Secrets + ResearchCredentialKey 决定 research 工具按调用时点的可用性
	Secrets               secrets.Store
	ResearchCredentialKey string
	ResearchSources       []string
}

// RegisterAll 把全部子工作流注册到工具注册表。
// research 带凭据可用性谓词；tool_recommend 只在检索后端就绪时注册。
func RegisterAll(ctx context.Context, registry *tool.Registry, deps Deps) error {
	if deps.ChatModel == nil {
		return fmt.Errorf("workflow registration requires a chat model")
	}

	requirements, err := NewRequirementsAnalysis(ctx, deps.ChatModel)
	if err != nil {
		return err
	}
	if err := registry.Register(requirementsDefinition(), requirements); err != nil {
		return err
	}

	planning, err := NewShortPlanning(ctx, deps.ChatModel)
	if err != nil {
		return err
	}
	if err := registry.Register(planningDefinition(), planning); err != nil {
		return err
	}

	design, err := NewDesign(ctx, deps.ChatModel)
	if err != nil {
		return err
	}
	if err := registry.Register(designDefinition(), design); err != nil {
		return err
	}

	credentialKey := deps.ResearchCredentialKey
	if credentialKey == "" {
		credentialKey = "RESEARCH_API_KEY"
	}
	research := NewResearch(deps.ChatModel, deps.ResearchSources)
	err = registry.Register(researchDefinition(), research, tool.WithAvailability(func(ctx context.Context) bool {
		return secrets.Present(ctx, deps.Secrets, credentialKey)
	}))
	if err != nil {
		return err
	}

	if deps.CatalogRetriever != nil {
		recommend := NewToolRecommend(deps.CatalogRetriever, deps.ChatModel)
		if err := registry.Register(recommendDefinition(), recommend); err != nil {
			return err
		}
	}

	return nil
}

func requirementsDefinition() tool.Definition {
	return tool.Definition{
		Name:        "requirements_analysis",
		Description: "Analyze the user's project description and extract structured requirements.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_input": map[string]any{
					"type":        "string",
					"description": "The user's project description in their own words",
				},
			},
			"required": []string{"user_input"},
		},
	}
}

func planningDefinition() tool.Definition {
	return tool.Definition{
		Name:        "short_planning",
		Description: "Produce a short phased plan for the given requirements.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_requirements": map[string]any{
					"type":        "string",
					"description": "Requirements the plan must cover",
				},
				"improvement_points": map[string]any{
					"type":        "string",
					"description": "Feedback on the previous plan revision, if any",
				},
				"planning_stage": map[string]any{
					"type":        "string",
					"description": "Which planning stage this revision targets",
				},
			},
			"required": []string{"user_requirements"},
		},
	}
}

func designDefinition() tool.Definition {
	return tool.Definition{
		Name:        "design",
		Description: "Produce an architecture document from the current planning document.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_requirements": map[string]any{
					"type":        "string",
					"description": "Additional requirements to take into account",
				},
			},
		},
	}
}

func researchDefinition() tool.Definition {
	return tool.Definition{
		Name:        "research",
		Description: "Research the given keywords against configured sources and summarize findings.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keywords": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Topics to research",
				},
				"focus_areas": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Aspects to focus the findings on",
				},
				"project_context": map[string]any{
					"type":        "string",
					"description": "Project background to ground the research",
				},
			},
			"required": []string{"keywords"},
		},
	}
}

func recommendDefinition() tool.Definition {
	return tool.Definition{
		Name:        "tool_recommend",
		Description: "Recommend development tools from the indexed catalog for the given query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What kind of tooling is needed",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "How many candidates to retrieve, default 5",
				},
				"tool_types": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Restrict results to these catalog types",
				},
				"use_llm_filter": map[string]any{
					"type":        "boolean",
					"description": "Run an extra LLM relevance pass over the candidates",
				},
			},
			"required": []string{"query"},
		},
	}
}
