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

package app

import (
	"fmt"
	"strings"

	"agent-orchestrator/internal/model/embedding"
	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/pkg/config"
)

// NewLLMClientFromConfig 根据 config.Model 的 defaults.llm 创建 LLM 客户端
// （如 "openai.gpt_4o"）。配置了 rate_limits.llm 时包一层限流。
func NewLLMClientFromConfig(cfg *config.Config) (llm.Client, error) {
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, nil
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}
	client, err := llm.NewClient(provider, mi.Name, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}

	if len(cfg.RateLimits.LLM) > 0 {
		limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
		for p, rl := range cfg.RateLimits.LLM {
			limits[p] = llm.LLMLimitConfig{
				TokensPerMinute:   rl.TokensPerMinute,
				RequestsPerMinute: rl.RequestsPerMinute,
				MaxConcurrent:     rl.MaxConcurrent,
			}
		}
		client = llm.NewRateLimitedClient(client, llm.NewLLMRateLimiter(limits, nil))
	}
	return client, nil
}

// NewEmbedderFromConfig 根据 config.Model 的 defaults.embedding 创建 Embedder，
// 供 tool_recommend 的目录索引/检索向量化使用
func NewEmbedderFromConfig(cfg *config.Config) (embedding.Embedder, error) {
	if cfg == nil || cfg.Model.Defaults.Embedding == "" {
		return nil, nil
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.Embedding)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("Embedding provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, fmt.Errorf("Embedding model %q 未在 provider %q 中配置", modelKey, provider)
	}
	dimension := mi.Dimension
	if dimension <= 0 {
		dimension = 1536
	}
	return embedding.NewEmbedder(provider, pc.APIKey, mi.Name, dimension)
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
