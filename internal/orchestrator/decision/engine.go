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
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/pkg/metrics"
)

// fallbackText LLM 调用失败时展示给用户的固定文案
const fallbackText = "I'm having trouble processing your request right now. Please try again in a moment."

const defaultDecideTimeout = 60 * time.Second

// Engine 与外部 LLM 端点的唯一接触点；把端点响应归一化为 Decision。
// 任何 LLM 异常都吸收为兜底 Decision，控制循环永远可以继续。
type Engine struct {
	client  llm.Client
	options llm.GenerateOptions
	timeout time.Duration
}

// NewEngine 创建 Decision Engine；timeout <= 0 用默认 60s
func NewEngine(client llm.Client, options llm.GenerateOptions, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultDecideTimeout
	}
	return &Engine{client: client, options: options, timeout: timeout}
}

// Decide 非流式决策：一次 chat-completion 调用（tool_choice 默认 auto），
// 解析首个 choice。原生工具调用优先；否则解析文本内嵌标记。
func (e *Engine) Decide(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) *Decision {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.chat(ctx, messages, tools)
	if err != nil {
		return e.fallback(err)
	}
	return e.parse(result)
}

// DecideStream 流式决策：文本 delta 实时转发 onToken，工具调用分片
// 在客户端内按 index 聚合；流结束后产出与 Decide 相同形状的 Decision。
func (e *Engine) DecideStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, onToken func(token string)) *Decision {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.chatStream(ctx, messages, tools, onToken)
	if err != nil {
		return e.fallback(err)
	}
	return e.parse(result)
}

// chat 优先走原生 function calling；客户端不支持时退回纯文本对话，
// 标记解析承接工具调用。
func (e *Engine) chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.ChatResult, error) {
	if tc, ok := e.client.(llm.ToolCallingClient); ok {
		result, err := tc.ChatTools(ctx, messages, tools, e.options)
		if err == nil || !errors.Is(err, llm.ErrToolCallsUnsupported) {
			return result, err
		}
	}
	content, err := e.client.ChatWithContext(ctx, messages, e.options)
	if err != nil {
		return nil, err
	}
	return &llm.ChatResult{Content: content}, nil
}

func (e *Engine) chatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, onToken func(string)) (*llm.ChatResult, error) {
	if tc, ok := e.client.(llm.ToolCallingClient); ok {
		result, err := tc.ChatToolsStream(ctx, messages, tools, e.options, onToken)
		if err == nil || !errors.Is(err, llm.ErrToolCallsUnsupported) {
			return result, err
		}
	}
	// 客户端无流式能力：整段取回后一次性推给 sink。
	// 标记块是内部协议，推送前剥离，只给用户可见文本
	content, err := e.client.ChatWithContext(ctx, messages, e.options)
	if err != nil {
		return nil, err
	}
	if onToken != nil && content != "" {
		visible, _ := parseMarkers(content)
		if visible != "" {
			onToken(visible)
		}
	}
	return &llm.ChatResult{Content: content}, nil
}

// parse 归一化端点响应：原生调用 → KindNative；文本标记 → KindMarker
// （标记从可见文本剥离）；两者皆空 → 兜底。
func (e *Engine) parse(result *llm.ChatResult) *Decision {
	if result.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(result.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(result.Usage.CompletionTokens))
	}

	if len(result.ToolCalls) > 0 {
		d := &Decision{
			AssistantText: result.Content,
			Kind:          KindNative,
			Confidence:    1.0,
		}
		for _, tc := range result.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					slog.Warn("工具调用参数 JSON 解析failed，降级为空对象",
						"tool", tc.Function.Name, "error", err)
					args = map[string]any{}
				}
			}
			d.ToolCalls = append(d.ToolCalls, ToolCallRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
				Raw:       tc.Function.Arguments,
			})
		}
		return d
	}

	clean, markerCalls := parseMarkers(result.Content)
	if len(markerCalls) > 0 {
		return &Decision{
			AssistantText: clean,
			ToolCalls:     markerCalls,
			Kind:          KindMarker,
			Confidence:    0.8,
		}
	}

	d := &Decision{AssistantText: clean, Kind: KindNative, Confidence: 1.0}
	if d.Empty() {
		// 空响应是软错误，换兜底文案
		return e.fallback(errors.New("empty decision"))
	}
	return d
}

// fallback 吸收 LLM 异常为兜底 Decision：固定文案、无工具调用、低置信度
func (e *Engine) fallback(err error) *Decision {
	slog.Warn("LLM 决策failed，使用兜底 Decision", "error", err)
	metrics.DecisionFallbackTotal.Inc()
	return &Decision{
		AssistantText: fallbackText,
		Kind:          KindFallback,
		Reasoning:     err.Error(),
		Confidence:    0.1,
	}
}
