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
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "orch:sess:"
const defaultCacheTTL = 30 * time.Minute

// CacheStore cache-aside 包装：读先查 Redis，miss 回源 inner 并回填；
// 写同时更新两边。Redis 故障只降级为直连 inner，不向上传播。
type CacheStore struct {
	inner SessionStore
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCacheStore 创建 Redis 缓存包装；ttl <= 0 时用默认 30 分钟
func NewCacheStore(inner SessionStore, rdb *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CacheStore{inner: inner, rdb: rdb, ttl: ttl}
}

// Get 实现 SessionStore
func (c *CacheStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := c.rdb.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err == nil {
		var doc document
		if jsonErr := json.Unmarshal(data, &doc); jsonErr == nil {
			return fromDocument(&doc), nil
		}
		// 缓存内容损坏，删掉回源
		c.rdb.Del(ctx, cacheKeyPrefix+id)
	}

	s, err := c.inner.Get(ctx, id)
	if err != nil || s == nil {
		return s, err
	}
	c.fill(ctx, s)
	return s, nil
}

// Put 实现 SessionStore；先写 inner，成功后刷新缓存
func (c *CacheStore) Put(ctx context.Context, s *Session) error {
	if err := c.inner.Put(ctx, s); err != nil {
		return err
	}
	if s != nil {
		c.fill(ctx, s)
	}
	return nil
}

// Delete 实现 SessionStore
func (c *CacheStore) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.rdb.Del(ctx, cacheKeyPrefix+id)
	return nil
}

// List 实现 SessionStore；列表不走缓存
func (c *CacheStore) List(ctx context.Context) ([]string, error) {
	return c.inner.List(ctx)
}

func (c *CacheStore) fill(ctx context.Context, s *Session) {
	data, err := json.Marshal(s.toDocument())
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKeyPrefix+s.ID, data, c.ttl)
}
