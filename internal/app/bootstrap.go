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

package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/storage/vector"
	"agent-orchestrator/pkg/config"
	"agent-orchestrator/pkg/log"
	"agent-orchestrator/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config       *config.Config
	Logger       *log.Logger
	Secrets      secrets.Store
	SessionStore session.SessionStore
	LLMClient    llm.Client
	VectorStore  vector.Store
}

// NewBootstrap 根据配置创建 Bootstrap（日志/凭据/Session 存储/LLM 客户端）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	var secretStore secrets.Store
	if cfg != nil {
		secretStore, err = secrets.NewStore(secrets.Config{
			Provider: cfg.Secrets.Type,
			Vault: secrets.VaultConfig{
				Address:    cfg.Secrets.VaultAddress,
				Token:      cfg.Secrets.VaultToken,
				PathPrefix: cfg.Secrets.VaultPrefix,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("初始化凭据存储failed: %w", err)
		}
	} else {
		secretStore = secrets.NewEnvStore()
	}

	var sessionStore session.SessionStore
	if cfg != nil {
		sessionStore, err = newSessionStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化 session 存储failed: %w", err)
		}
	} else {
		sessionStore = session.NewMemoryStore()
	}

	var llmClient llm.Client
	if cfg != nil {
		llmClient, err = NewLLMClientFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化 LLM 客户端failed: %w", err)
		}
	}

	// type=memory 或空时创建 vector.Store；type=redis 由 einoext 工厂走 eino-ext 组件
	var vecStore vector.Store
	if cfg != nil {
		t := cfg.Tools.Recommend.Type
		if t == "" || t == "memory" {
			vecStore, err = vector.NewStore("memory")
			if err != nil {
				return nil, fmt.Errorf("初始化向量存储failed: %w", err)
			}
		}
	}

	return &Bootstrap{
		Config:       cfg,
		Logger:       logger,
		Secrets:      secretStore,
		SessionStore: sessionStore,
		LLMClient:    llmClient,
		VectorStore:  vecStore,
	}, nil
}

// newSessionStore 按配置选择 Session 持久化后端，cache=redis 时叠加 cache-aside 层
func newSessionStore(cfg *config.Config) (session.SessionStore, error) {
	var store session.SessionStore
	var err error

	switch cfg.SessionStore.Type {
	case "", "memory":
		store = session.NewMemoryStore()
	case "file":
		dir := cfg.SessionStore.Dir
		if dir == "" {
			dir = "./sessions"
		}
		store, err = session.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
	case "postgres":
		if cfg.SessionStore.DSN == "" {
			return nil, fmt.Errorf("session_store.type=postgres 需要配置 dsn")
		}
		store, err = session.NewPostgresStore(context.Background(), cfg.SessionStore.DSN)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("不支持的 session 存储类型: %s", cfg.SessionStore.Type)
	}

	if cfg.SessionStore.Cache == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.SessionStore.RedisAddr,
			DB:       cfg.SessionStore.RedisDB,
			Password: cfg.SessionStore.RedisPassword,
		})
		store = session.NewCacheStore(store, rdb, 0)
	}
	return store, nil
}
