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

package tool

import (
	"context"
)

// SharedContext 子工作流与编排器共享的窄接口。子工作流可以读写
// 任意键（与遗留子工作流的集成缝），但只通过 Get/Set，
// 不直接接触 Session。
type SharedContext interface {
	Get(key string, def any) any
	Set(key string, value any)
}

// SubWorkflow 外部子工作流。返回值允许三种约定：
// 裸值、带 success 键的 map、或 Envelope；由 Invoker 统一归一化。
type SubWorkflow interface {
	Invoke(ctx context.Context, args map[string]any, shared SharedContext) (any, error)
}

// SubWorkflowFunc 函数式 SubWorkflow
type SubWorkflowFunc func(ctx context.Context, args map[string]any, shared SharedContext) (any, error)

// Invoke 实现 SubWorkflow
func (f SubWorkflowFunc) Invoke(ctx context.Context, args map[string]any, shared SharedContext) (any, error) {
	return f(ctx, args, shared)
}

// MapContext 基于 map 的 SharedContext，供测试与独立运行使用
type MapContext map[string]any

// Get 实现 SharedContext
func (m MapContext) Get(key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// Set 实现 SharedContext
func (m MapContext) Set(key string, value any) {
	m[key] = value
}
