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

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"agent-orchestrator/internal/storage/vector"
)

// MemoryIndexer 基于 vector.Store 实现的 Eino indexer.Indexer（memory 后端）
type MemoryIndexer struct {
	vectorStore vector.Store
	index       string
	embedder    einoembed.Embedder
}

var _ einoindexer.Indexer = (*MemoryIndexer)(nil)

// NewMemoryIndexer 创建基于 vector.Store 的 Eino Indexer
func NewMemoryIndexer(vectorStore vector.Store, index string, embedder einoembed.Embedder) (*MemoryIndexer, error) {
	if vectorStore == nil {
		return nil, fmt.Errorf("MemoryIndexer requires a vector store")
	}
	if embedder == nil {
		return nil, fmt.Errorf("MemoryIndexer requires an embedder")
	}
	if index == "" {
		index = "default"
	}
	return &MemoryIndexer{vectorStore: vectorStore, index: index, embedder: embedder}, nil
}

// Store 实现 github.com/cloudwego/eino/components/indexer.Indexer
func (m *MemoryIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Content)
	}
	vecs, err := m.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("indexer embedding: %w", err)
	}
	if len(vecs) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	if err := vector.EnsureIndex(ctx, m.vectorStore, m.index, len(vecs[0]), "cosine"); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	vectors := make([]*vector.Vector, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.New().String()
		}
		metadata := map[string]string{"content": doc.Content}
		for k, v := range doc.MetaData {
			if s, ok := v.(string); ok {
				metadata[k] = s
			}
		}
		vectors = append(vectors, &vector.Vector{ID: id, Values: vecs[i], Metadata: metadata})
		ids = append(ids, id)
	}

	if err := m.vectorStore.Add(ctx, m.index, vectors); err != nil {
		return nil, fmt.Errorf("vector store add: %w", err)
	}
	return ids, nil
}

// MemoryRetriever 基于 vector.Store 实现的 Eino retriever.Retriever（memory 后端）
type MemoryRetriever struct {
	vectorStore vector.Store
	index       string
	topK        int
	threshold   float64
	embedder    einoembed.Embedder
}

var _ einoretriever.Retriever = (*MemoryRetriever)(nil)

// NewMemoryRetriever 创建基于 vector.Store 的 Eino Retriever
func NewMemoryRetriever(vectorStore vector.Store, index string, topK int, threshold float64, embedder einoembed.Embedder) (*MemoryRetriever, error) {
	if vectorStore == nil {
		return nil, fmt.Errorf("MemoryRetriever requires a vector store")
	}
	if embedder == nil {
		return nil, fmt.Errorf("MemoryRetriever requires an embedder")
	}
	if index == "" {
		index = "default"
	}
	if topK <= 0 {
		topK = 10
	}
	return &MemoryRetriever{
		vectorStore: vectorStore,
		index:       index,
		topK:        topK,
		threshold:   threshold,
		embedder:    embedder,
	}, nil
}

// Retrieve 实现 github.com/cloudwego/eino/components/retriever.Retriever
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(nil, opts...)
	topK := m.topK
	if options != nil && options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := m.threshold
	if options != nil && options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	vecs, err := m.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	searchResults, err := m.vectorStore.Search(ctx, m.index, vecs[0], &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector store search: %w", err)
	}

	docs := make([]*schema.Document, 0, len(searchResults))
	for _, sr := range searchResults {
		meta := make(map[string]any, len(sr.Metadata))
		content := ""
		for k, v := range sr.Metadata {
			meta[k] = v
			if k == "content" {
				content = v
			}
		}
		d := &schema.Document{ID: sr.ID, Content: content, MetaData: meta}
		d.WithScore(sr.Score)
		docs = append(docs, d)
	}
	return docs, nil
}
