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
)

// Embedder 文本向量化接口
type Embedder interface {
	// Embed 对文本做向量化，返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Model 返回模型名称
	Model() string

	// Dimension 返回向量维度
	Dimension() int
}

// NewEmbedder 按 provider 创建 Embedder
func NewEmbedder(provider, apiKey, model string, dimension int) (Embedder, error) {
	switch provider {
	case "", "openai", "qwen", "deepseek":
		return NewOpenAIEmbedder(model, apiKey, dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
