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

package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIEmbedder OpenAI 兼容的 Embedding 客户端
type OpenAIEmbedder struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder 创建 OpenAI Embedding 客户端（base 优先用 OPENAI_BASE_URL 环境变量）
func NewOpenAIEmbedder(model, apiKey string, dimension int) (*OpenAIEmbedder, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	baseURL := "https://api.openai.com/v1"
	if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
		baseURL = envURL
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)

	return &OpenAIEmbedder{
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed 调用 /embeddings，结果按 Index 回填保证与 texts 对齐
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embeddingResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(embeddingRequest{Model: e.model, Input: texts}).
		SetResult(&result).
		Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != nil {
			return nil, fmt.Errorf("embedding API error: %s", result.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", resp.StatusCode())
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(result.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Model 返回模型名称
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }
