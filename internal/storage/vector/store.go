package vector

import (
	"fmt"
)

// NewStore 按类型创建向量存储。redis 后端走 eino-ext 组件，不经过本接口，
// 这里仅覆盖 memory。
func NewStore(storeType string) (Store, error) {
	switch storeType {
	case "", "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", storeType)
	}
}
