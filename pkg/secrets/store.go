// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string      `yaml:"provider"` // vault | env | memory
	Vault    VaultConfig `yaml:"vault"`
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// placeholderValues 常见占位值；凭据等于占位值时视同缺失
var placeholderValues = []string{"", "changeme", "your-api-key", "placeholder", "xxx", "todo"}

// Present 判断凭据是否存在且非占位值（供按环境条件注册工具时调用）
func Present(ctx context.Context, store Store, key string) bool {
	if store == nil || key == "" {
		return false
	}
	val, err := store.Get(ctx, key)
	if err != nil {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(val))
	for _, p := range placeholderValues {
		if lower == p {
			return false
		}
	}
	return true
}
