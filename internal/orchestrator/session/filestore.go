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

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore 文件实现：每个 Session 一个 JSON 文档，写入走临时文件 + rename
type FileStore struct {
	dir string
}

// NewFileStore 创建文件 Session 存储，目录不存在则创建
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session 存储目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建 session 目录failed: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) (string, error) {
	// id 来自外部输入，拒绝路径穿越
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("非法 session id: %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

// Get 实现 SessionStore；文件不存在返回 (nil, nil)
func (f *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取 session 文件failed: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析 session 文档failed: %w", err)
	}
	return fromDocument(&doc), nil
}

// Put 实现 SessionStore
func (f *FileStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	p, err := f.path(s.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.toDocument(), "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 session failed: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入 session 文件failed: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("落盘 session 文件failed: %w", err)
	}
	return nil
}

// Delete 实现 SessionStore；文件不存在是 no-op
func (f *FileStore) Delete(ctx context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除 session 文件failed: %w", err)
	}
	return nil
}

// List 实现 SessionStore
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("读取 session 目录failed: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
