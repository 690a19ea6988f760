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

// Package workflow 提供注册到编排器工具注册表的子工作流参考实现。
// 每个子工作流实现 tool.SubWorkflow，内部用 eino 图或命令式流程组织。
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"agent-orchestrator/pkg/config"
)

// NewChatModel 根据 config.Model.Defaults.LLM（provider.model_key）创建 ChatModel
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, fmt.Errorf("model.defaults.llm not configured")
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q not configured", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("LLM model %q not configured in provider %q", modelKey, provider)
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q api_key not configured", provider)
	}

	mc := &openai.ChatModelConfig{
		Model:  mi.Name,
		APIKey: pc.APIKey,
	}
	if pc.BaseURL != "" {
		mc.BaseURL = pc.BaseURL
	}
	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return chatModel, nil
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
