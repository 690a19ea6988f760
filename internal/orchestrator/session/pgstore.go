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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore PostgreSQL 实现：单表，session 文档整体存 JSONB
type pgStore struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS orchestrator_sessions (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore 创建基于 PostgreSQL 的 Session 存储；dsn 为连接串
func NewPostgresStore(ctx context.Context, dsn string) (SessionStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 session 表failed: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

// Close 关闭连接池（可选，用于优雅退出）
func (s *pgStore) Close() {
	s.pool.Close()
}

// Get 实现 SessionStore；未知 id 返回 (nil, nil)
func (s *pgStore) Get(ctx context.Context, id string) (*Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM orchestrator_sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析 session 文档failed: %w", err)
	}
	return fromDocument(&doc), nil
}

// Put 实现 SessionStore（upsert）
func (s *pgStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	data, err := json.Marshal(sess.toDocument())
	if err != nil {
		return fmt.Errorf("序列化 session failed: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO orchestrator_sessions (id, doc, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET doc = $2, updated_at = now()`,
		sess.ID, data)
	return err
}

// Delete 实现 SessionStore
func (s *pgStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM orchestrator_sessions WHERE id = $1`, id)
	return err
}

// List 实现 SessionStore
func (s *pgStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM orchestrator_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
