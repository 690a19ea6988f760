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

package llm

import (
	"context"
	"errors"
)

// ErrToolCallsUnsupported 底层 Provider 不支持原生 function calling 时返回。
// Decision Engine 捕获该错误后切换到标记协议降级路径。
var ErrToolCallsUnsupported = errors.New("provider does not support native tool calls")

// Client LLM 客户端接口
type Client interface {
	// Generate 生成文本
	Generate(prompt string, options GenerateOptions) (string, error)
	// GenerateWithContext 使用上下文生成文本
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Chat 聊天
	Chat(messages []Message, options GenerateOptions) (string, error)
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// SetModel 设置模型
	SetModel(model string)
	// SetAPIKey 设置 API Key
	SetAPIKey(apiKey string)
}

// ToolCallingClient 支持 OpenAI 风格 function calling 的客户端。
// 不支持的 Provider（如 Claude 文本客户端）只实现 Client，
// 调用方用类型断言探测能力。
type ToolCallingClient interface {
	Client
	// ChatTools 带工具声明的单次对话，返回文本回复或工具调用请求
	ChatTools(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error)
	// ChatToolsStream 流式版本；onToken 逐 token 回调，返回聚合后的完整结果。
	// onToken 只接收文本 delta，工具调用分片在内部聚合。
	ChatToolsStream(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions, onToken func(token string)) (*ChatResult, error)
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	TopP             float64  `json:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	Stop             []string `json:"stop"`
}

// Message 聊天消息。tool 角色消息通过 ToolCallID 关联此前 assistant
// 消息中的某个 ToolCall；assistant 消息可同时携带 Content 与 ToolCalls。
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall 模型请求的一次工具调用
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // 目前固定为 function
	Function FunctionCall `json:"function"`
}

// FunctionCall 工具调用的函数名与 JSON 编码的参数
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec 传给模型的工具声明（OpenAI function calling 格式）
type ToolSpec struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction 工具的名称、描述与 JSON Schema 参数
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage token 用量统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult 一次对话调用的完整结果。Content 与 ToolCalls 可同时非空。
type ChatResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope/DeepSeek），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "openai", "qwen", "deepseek":
		return NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
	case "claude":
		return NewClaudeClient(model, apiKey)
	default:
		return NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
	}
}
