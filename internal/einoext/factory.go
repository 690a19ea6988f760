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

package einoext

import (
	"context"
	"fmt"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"agent-orchestrator/internal/storage/vector"
	"agent-orchestrator/pkg/config"
)

const (
	defaultBatchSize = 100
	defaultTopK      = 10
	defaultThreshold = 0.3
	defaultIndex     = "tool_catalog"
)

// NewCatalogIndexer 根据 RecommendConfig 创建工具目录 Indexer（memory 用 vector.Store；redis 用 eino-ext）
func NewCatalogIndexer(ctx context.Context, cfg config.RecommendConfig, vectorStore vector.Store, embedder einoembed.Embedder) (einoindexer.Indexer, error) {
	t := cfg.Type
	if t == "" {
		t = "memory"
	}
	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}
	switch t {
	case "memory":
		return NewMemoryIndexer(vectorStore, index, embedder)
	case "redis":
		opts, err := RedisOptionsFromRecommendConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis options: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:    client,
			KeyPrefix: index,
			BatchSize: defaultBatchSize,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis indexer: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported recommend index type: %s", t)
	}
}

// NewCatalogRetriever 根据 RecommendConfig 创建工具目录 Retriever（memory 用 vector.Store；redis 用 eino-ext）
func NewCatalogRetriever(ctx context.Context, cfg config.RecommendConfig, vectorStore vector.Store, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	t := cfg.Type
	if t == "" {
		t = "memory"
	}
	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}
	switch t {
	case "memory":
		return NewMemoryRetriever(vectorStore, index, defaultTopK, defaultThreshold, embedder)
	case "redis":
		opts, err := RedisOptionsFromRecommendConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis options: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
			Client:    client,
			Index:     index,
			TopK:      defaultTopK,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis retriever: %w", err)
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("unsupported recommend index type: %s", t)
	}
}
