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
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// Manager 基于 SessionStore 的实现
type Manager struct {
	store SessionStore
}

// NewManager 创建 SessionManager
func NewManager(store SessionStore) *Manager {
	return &Manager{store: store}
}

// Create 创建新 Session 并立即持久化
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := New("")
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get 按 ID 获取 Session；未知 id 返回 (nil, nil)
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// GetOrCreate 若 id 为空则 Create，否则 Get；Get 未命中时用该 id 创建新 Session
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.Create(ctx)
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	s = New(id)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save 持久化 Session
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return m.store.Put(ctx, s)
}

// Delete 删除 Session
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// List 列出所有 Session id
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
