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
	"strings"
	"testing"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	"agent-orchestrator/internal/storage/vector"
)

// hashEmbedder 词面特征向量，仅供内存后端测试用
type hashEmbedder struct{}

func (hashEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, 8)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			var h int
			for _, r := range word {
				h = h*31 + int(r)
			}
			if h < 0 {
				h = -h
			}
			vec[h%8]++
		}
		out[i] = vec
	}
	return out, nil
}

func TestMemoryIndexRoundTrip(t *testing.T) {
	store := vector.NewMemoryStore()
	embedder := hashEmbedder{}

	indexer, err := NewMemoryIndexer(store, "catalog", embedder)
	if err != nil {
		t.Fatalf("NewMemoryIndexer: %v", err)
	}
	retriever, err := NewMemoryRetriever(store, "catalog", 5, 0, embedder)
	if err != nil {
		t.Fatalf("NewMemoryRetriever: %v", err)
	}

	docs := []*schema.Document{
		{ID: "gin", Content: "gin http web framework", MetaData: map[string]any{"name": "gin", "type": "framework"}},
		{ID: "pgx", Content: "pgx postgres database driver", MetaData: map[string]any{"name": "pgx", "type": "database"}},
	}
	ids, err := indexer.Store(context.Background(), docs)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	results, err := retriever.Retrieve(context.Background(), "gin http web framework")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ID != "gin" {
		t.Errorf("best match should be gin, got %+v", results[0])
	}
	if results[0].MetaData["type"] != "framework" {
		t.Errorf("metadata should survive round trip: %+v", results[0].MetaData)
	}
}

func TestMemoryIndexerEmptyDocs(t *testing.T) {
	indexer, err := NewMemoryIndexer(vector.NewMemoryStore(), "catalog", hashEmbedder{})
	if err != nil {
		t.Fatalf("NewMemoryIndexer: %v", err)
	}
	ids, err := indexer.Store(context.Background(), nil)
	if err != nil || ids != nil {
		t.Errorf("empty store: ids=%v err=%v", ids, err)
	}
}
