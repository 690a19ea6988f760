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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-orchestrator/internal/model/llm"
)

// Session 一次规划对话的唯一状态载体：对话历史、工具执行记录、
// 项目状态三者都只通过 Session 读写，其他组件不持有私有副本。
type Session struct {
	ID          string
	Stage       Stage
	CreatedAt   time.Time
	LastUpdated time.Time

	Messages     []*Message       // 对话历史（插入序，不可原地修改）
	ToolHistory  []ToolCallRecord // 工具调用记录
	ProjectState map[string]any   // 项目状态（last-write-wins）

	mu sync.RWMutex
}

// Summary Session 的 O(1) 快照，用于构建 LLM 状态描述
type Summary struct {
	Stage              Stage     `json:"stage"`
	MessageCount       int       `json:"message_count"`
	ToolExecutionCount int       `json:"tool_execution_count"`
	LastUpdated        time.Time `json:"last_updated"`
}

// New 创建新 Session（id 为空时自动分配）
func New(id string) *Session {
	now := time.Now()
	if id == "" {
		id = "session-" + uuid.New().String()
	}
	return &Session{
		ID:           id,
		Stage:        StageInitialization,
		CreatedAt:    now,
		LastUpdated:  now,
		ProjectState: make(map[string]any),
	}
}

// AddUserMessage 追加用户消息；空文本不追加，返回 nil
func (s *Session) AddUserMessage(text string) *Message {
	if text == "" {
		return nil
	}
	return s.append(&Message{Role: RoleUser, Content: text})
}

// AddAssistantMessage 追加助手消息。空文本且无工具调用时不追加（防止
// 污染 prompt 历史）；仅携带工具调用的空文本消息允许追加，
// 否则后续轮次无法重建配对。
func (s *Session) AddAssistantMessage(text string, toolCalls []llm.ToolCall) *Message {
	if text == "" && len(toolCalls) == 0 {
		slog.Debug("跳过空助手消息", "session_id", s.ID)
		return nil
	}
	return s.append(&Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls})
}

// AddSystemMessage 追加系统消息；空文本不追加
func (s *Session) AddSystemMessage(text string, metadata map[string]any) *Message {
	if text == "" {
		return nil
	}
	return s.append(&Message{Role: RoleSystem, Content: text, Metadata: metadata})
}

func (s *Session) append(m *Message) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdated = time.Now()
	m.Timestamp = s.LastUpdated
	m.ContentHash = m.hash()
	s.Messages = append(s.Messages, m)
	return m
}

// RecordToolExecution 追加一条工具调用记录；永不失败。
// At 为空时补当前时间。
func (s *Session) RecordToolExecution(rec ToolCallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdated = time.Now()
	if rec.At.IsZero() {
		rec.At = s.LastUpdated
	}
	s.ToolHistory = append(s.ToolHistory, rec)
}

// SetState 写入项目状态；last-write-wins，无事务合并
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdated = time.Now()
	if s.ProjectState == nil {
		s.ProjectState = make(map[string]any)
	}
	s.ProjectState[key] = value
}

// GetState 读取项目状态，缺失时返回 def
func (s *Session) GetState(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.ProjectState[key]
	if !ok {
		return def
	}
	return v
}

// SetStage 更新阶段；任意字符串都接受，只有枚举值对编排有意义
func (s *Session) SetStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdated = time.Now()
	s.Stage = stage
}

// Summary 返回 O(1) 快照，不扫描完整历史
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Stage:              s.Stage,
		MessageCount:       len(s.Messages),
		ToolExecutionCount: len(s.ToolHistory),
		LastUpdated:        s.LastUpdated,
	}
}

// LLMContext 返回适合直接进入 prompt 的历史投影：
// 过滤 system 消息（系统提示另行提供），按 content_hash 去重
// （保留最近一条），再截取最后 maxMessages 条。
// 携带工具调用的助手消息与其结果的配对由 Message Builder 重建，
// 这里只保证消息序不被打乱。maxMessages <= 0 表示不限。
func (s *Session) LLMContext(maxMessages int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(s.Messages))
	kept := make([]*Message, 0, len(s.Messages))
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleSystem {
			continue
		}
		if seen[m.ContentHash] {
			continue
		}
		seen[m.ContentHash] = true
		kept = append(kept, m)
	}
	// 反向扫描后恢复插入序
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	if maxMessages > 0 && len(kept) > maxMessages {
		kept = kept[len(kept)-maxMessages:]
	}
	return kept
}

// CleanupDuplicateMessages 删除 content_hash 重复的消息，返回删除数。
// 重复集合中保留最近一条（recency wins），因此幂等：第二次调用删除 0 条。
func (s *Session) CleanupDuplicateMessages() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.Messages))
	kept := make([]*Message, 0, len(s.Messages))
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if seen[m.ContentHash] {
			continue
		}
		seen[m.ContentHash] = true
		kept = append(kept, m)
	}
	removed := len(s.Messages) - len(kept)
	if removed == 0 {
		return 0
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.Messages = kept
	s.LastUpdated = time.Now()
	return removed
}

// CopyMessages 返回 Messages 的副本（供 Builder 等只读使用）
func (s *Session) CopyMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		c := *m
		out[i] = &c
	}
	return out
}

// CopyToolHistory 返回 ToolHistory 的副本
func (s *Session) CopyToolHistory() []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ToolHistory) == 0 {
		return nil
	}
	out := make([]ToolCallRecord, len(s.ToolHistory))
	copy(out, s.ToolHistory)
	return out
}

// CopyProjectState 返回 ProjectState 的浅副本
func (s *Session) CopyProjectState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.ProjectState))
	for k, v := range s.ProjectState {
		out[k] = v
	}
	return out
}
