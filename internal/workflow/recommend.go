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

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/model"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"agent-orchestrator/internal/orchestrator/tool"
)

const recommendFilterPrompt = `You pick development tools for a project. From the
candidate list below, keep only the tools genuinely relevant to the query and order
them by relevance. Respond with a JSON object {"names": [string]} containing the
kept tool names. Respond with JSON only, no prose.`

// CatalogEntry 工具目录条目
type CatalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ToolRecommend 工具推荐子工作流：向量检索候选，类型过滤，可选 LLM 复筛
type ToolRecommend struct {
	retriever einoretriever.Retriever
	cm        model.BaseChatModel
}

var _ tool.SubWorkflow = (*ToolRecommend)(nil)

// NewToolRecommend 创建工具推荐子工作流；cm 可为 nil（禁用 LLM 复筛）
func NewToolRecommend(retriever einoretriever.Retriever, cm model.BaseChatModel) *ToolRecommend {
	return &ToolRecommend{retriever: retriever, cm: cm}
}

// DefaultCatalog 内置工具目录，启动时作为索引种子；
// 生产部署可通过再次 IndexCatalog 追加自定义条目。
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Name: "gin", Description: "HTTP web framework for Go with routing and middleware", Type: "framework"},
		{Name: "hertz", Description: "high performance Go HTTP framework from CloudWeGo", Type: "framework"},
		{Name: "grpc", Description: "RPC framework with protobuf service definitions", Type: "framework"},
		{Name: "pgx", Description: "PostgreSQL driver and connection pool for Go", Type: "database"},
		{Name: "go-redis", Description: "Redis client for caching, queues and vector search", Type: "database"},
		{Name: "gorm", Description: "ORM library for relational databases", Type: "database"},
		{Name: "kafka", Description: "distributed event streaming and message broker", Type: "messaging"},
		{Name: "prometheus", Description: "metrics collection and monitoring system", Type: "observability"},
		{Name: "opentelemetry", Description: "distributed tracing and telemetry instrumentation", Type: "observability"},
		{Name: "viper", Description: "configuration management with files and environment variables", Type: "tooling"},
		{Name: "testify", Description: "assertions and mocks for Go tests", Type: "tooling"},
		{Name: "docker", Description: "container packaging and deployment", Type: "infrastructure"},
	}
}

// IndexCatalog 把目录条目写入索引，检索文本为 name + description
func IndexCatalog(ctx context.Context, indexer einoindexer.Indexer, entries []CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]*schema.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, &schema.Document{
			ID:      e.Name,
			Content: e.Name + ": " + e.Description,
			MetaData: map[string]any{
				"name": e.Name,
				"type": e.Type,
			},
		})
	}
	if _, err := indexer.Store(ctx, docs); err != nil {
		return fmt.Errorf("index tool catalog: %w", err)
	}
	return nil
}

// Invoke 实现 tool.SubWorkflow
func (w *ToolRecommend) Invoke(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
	query := stringArg(args, "query")
	if strings.TrimSpace(query) == "" {
		return tool.Failure("tool_recommend", "query is required"), nil
	}

	topK := 5
	if v, ok := args["top_k"]; ok {
		switch n := v.(type) {
		case int:
			topK = n
		case float64:
			topK = int(n)
		}
		if topK <= 0 {
			topK = 5
		}
	}
	toolTypes := stringSliceArg(args, "tool_types")
	useLLMFilter := false
	if v, ok := args["use_llm_filter"].(bool); ok {
		useLLMFilter = v
	}

	docs, err := w.retriever.Retrieve(ctx, query, einoretriever.WithTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("tool recommend retrieve: %w", err)
	}

	entries := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		entry := map[string]any{
			"name":        docName(d),
			"description": d.Content,
			"score":       d.Score(),
		}
		if t, ok := d.MetaData["type"].(string); ok && t != "" {
			entry["type"] = t
			if len(toolTypes) > 0 && !containsString(toolTypes, t) {
				continue
			}
		}
		entries = append(entries, entry)
	}

	if useLLMFilter && w.cm != nil && len(entries) > 0 {
		filtered, err := w.llmFilter(ctx, query, entries)
		if err == nil {
			entries = filtered
		}
		// 复筛失败时退回检索结果，不让推荐整体失败
	}

	return map[string]any{"query": query, "tools": entries}, nil
}

// llmFilter 让模型按相关性复筛候选，返回保留顺序后的条目
func (w *ToolRecommend) llmFilter(ctx context.Context, query string, entries []map[string]any) ([]map[string]any, error) {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nCandidates:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %v: %v\n", e["name"], e["description"])
	}

	msg, err := w.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(recommendFilterPrompt),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return nil, err
	}

	parsed := parseJSONObject(msg.Content)
	names, ok := parsed["names"].([]any)
	if !ok {
		return nil, fmt.Errorf("filter reply missing names array")
	}

	byName := make(map[string]map[string]any, len(entries))
	for _, e := range entries {
		if n, ok := e["name"].(string); ok {
			byName[n] = e
		}
	}
	kept := make([]map[string]any, 0, len(names))
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		if e, found := byName[name]; found {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func docName(d *schema.Document) string {
	if n, ok := d.MetaData["name"].(string); ok && n != "" {
		return n
	}
	return d.ID
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
