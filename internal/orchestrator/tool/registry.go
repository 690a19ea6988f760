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
	"fmt"
	"sync"

	"agent-orchestrator/internal/model/llm"
	"agent-orchestrator/pkg/errors"
)

// AvailabilityFunc 运行时可用性判定；每次列举/调用时求值，
// 凭证变化在下一轮生效，不做永久缓存。
type AvailabilityFunc func(ctx context.Context) bool

type registration struct {
	def       Definition
	wf        SubWorkflow
	available AvailabilityFunc
}

// RegisterOption Register 的可选项
type RegisterOption func(*registration)

// WithAvailability 给工具挂运行时可用性判定（如凭证存在性检查）
func WithAvailability(fn AvailabilityFunc) RegisterOption {
	return func(r *registration) { r.available = fn }
}

// Registry LLM 可见工具集合与分发器
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
	order []string
}

// NewRegistry 创建新 Registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registration)}
}

// Register 注册工具；名称必须唯一
func (r *Registry) Register(def Definition, wf SubWorkflow, opts ...RegisterOption) error {
	if def.Name == "" {
		return fmt.Errorf("工具名不能为空")
	}
	if wf == nil {
		return fmt.Errorf("工具 %s 缺少 SubWorkflow", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("工具 %s 已注册", def.Name)
	}
	reg := &registration{def: def, wf: wf}
	for _, opt := range opts {
		opt(reg)
	}
	r.tools[def.Name] = reg
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions 返回当前环境下可用的工具声明（注册序）。
// 可用性判定逐个求值，被判定不可用的工具对 LLM 不可见。
func (r *Registry) Definitions(ctx context.Context) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		reg := r.tools[name]
		if reg.available != nil && !reg.available(ctx) {
			continue
		}
		defs = append(defs, reg.def)
	}
	return defs
}

// Specs 返回可用工具的 LLM function calling 声明
func (r *Registry) Specs(ctx context.Context) []llm.ToolSpec {
	defs := r.Definitions(ctx)
	if len(defs) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, len(defs))
	for i, d := range defs {
		specs[i] = d.OpenAISchema()
	}
	return specs
}

// Lookup 按名取声明；未注册返回 ErrToolNotFound
func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Definition{}, errors.Wrapf(errors.ErrToolNotFound, "tool %q", name)
	}
	return reg.def, nil
}

// ValidationResult 参数校验结果
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateArguments 检查 required 参数齐全；未知工具名本身是错误。
// 必须先于分发执行，校验失败直接短路为失败 Envelope，不触达子工作流。
func (r *Registry) ValidateArguments(name string, args map[string]any) ValidationResult {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ValidationResult{Errors: []string{fmt.Sprintf("unknown tool: %s", name)}}
	}

	var missing []string
	for _, req := range reg.def.RequiredParams() {
		if v, ok := args[req]; !ok || v == nil {
			missing = append(missing, fmt.Sprintf("missing required parameter: %s", req))
		}
	}
	if len(missing) > 0 {
		return ValidationResult{Errors: missing}
	}
	return ValidationResult{Valid: true}
}

// Invoke 校验参数后分发到子工作流，归一化返回值。
// 子工作流 panic 被捕获为失败 Envelope，单个工具失败不会掀翻整轮。
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, shared SharedContext) (env Envelope) {
	if vr := r.ValidateArguments(name, args); !vr.Valid {
		env = Failure(name, "argument validation failed: %v", vr.Errors)
		return env
	}

	r.mu.RLock()
	reg := r.tools[name]
	r.mu.RUnlock()
	if reg.available != nil && !reg.available(ctx) {
		return Failure(name, "tool %s is not available in this environment", name)
	}

	defer func() {
		if p := recover(); p != nil {
			env = Failure(name, "tool panicked: %v", p)
		}
	}()

	value, err := reg.wf.Invoke(ctx, args, shared)
	env = normalize(name, value, err)
	return env
}
