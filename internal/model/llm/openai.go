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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 兼容客户端，支持原生 function calling 与 SSE 流式输出
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

var _ ToolCallingClient = (*OpenAIClient)(nil)

// NewOpenAIClient 创建新的 OpenAI 客户端（base 优先用 OPENAI_BASE_URL 环境变量）
func NewOpenAIClient(model, apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithBaseURL(model, apiKey, "")
}

// NewOpenAIClientWithBaseURL 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIClientWithBaseURL(model, apiKey, baseURL string) (*OpenAIClient, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider: "openai",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// chatCompletionRequest /chat/completions 请求体
type chatCompletionRequest struct {
	Model       string       `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []ToolSpec   `json:"tools,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

// wireMessage 与 Message 字段一致，单独定义以保证 wire 格式稳定
type wireMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
	}
	return out
}

// Generate 生成文本
func (c *OpenAIClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *OpenAIClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 聊天
func (c *OpenAIClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	result, err := c.ChatTools(ctx, messages, nil, options)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// ChatTools 带工具声明的单次对话
func (c *OpenAIClient) ChatTools(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error) {
	request := chatCompletionRequest{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Tools:       tools,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		TopP:        options.TopP,
		Stop:        options.Stop,
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI API failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API 返回错误: %s", response.String())
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应failed: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API 没有返回结果")
	}

	choice := result.Choices[0]
	return &ChatResult{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage:        result.Usage,
	}, nil
}

// streamChunk SSE data 行中的单个 chunk
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// ChatToolsStream 流式对话。文本 delta 实时回调 onToken，
// 工具调用分片按 index 聚合，流结束后统一返回。
func (c *OpenAIClient) ChatToolsStream(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions, onToken func(token string)) (*ChatResult, error) {
	request := chatCompletionRequest{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Tools:       tools,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		TopP:        options.TopP,
		Stop:        options.Stop,
		Stream:      true,
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetDoNotParseResponse(true).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI 流式 API failed: %w", err)
	}
	body := response.RawBody()
	defer body.Close()

	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("OpenAI 流式 API 返回错误: status %d", response.StatusCode())
	}

	result := &ChatResult{}
	acc := newToolCallAccumulator()
	var content strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// 跳过无法解析的 chunk，流中偶发的 keep-alive 行不致命
			continue
		}
		if chunk.Usage != nil {
			result.Usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if onToken != nil {
				onToken(choice.Delta.Content)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			acc.add(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取 OpenAI 流式响应failed: %w", err)
	}

	result.Content = content.String()
	result.ToolCalls = acc.finish()
	return result, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}

// SetModel 设置模型
func (c *OpenAIClient) SetModel(model string) {
	c.model = model
}

// SetAPIKey 设置 API Key
func (c *OpenAIClient) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}
