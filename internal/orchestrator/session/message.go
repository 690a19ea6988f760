package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"agent-orchestrator/internal/model/llm"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 一条对话消息。ToolCalls 仅助手消息携带；
// tool 角色的配对消息不落历史，由 Message Builder 按 ToolHistory 重建。
type Message struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	ToolCalls   []llm.ToolCall `json:"tool_calls,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
}

// hash 计算去重指纹：role + content + 工具调用 id 序列。
// 携带不同工具调用的空文本助手消息不会互相视为重复。
func (m *Message) hash() string {
	h := sha256.New()
	h.Write([]byte(m.Role))
	h.Write([]byte{0})
	h.Write([]byte(m.Content))
	for _, tc := range m.ToolCalls {
		h.Write([]byte{0})
		h.Write([]byte(tc.ID))
		h.Write([]byte{0})
		h.Write([]byte(tc.Function.Name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ToLLM 转为 llm.Message
func (m *Message) ToLLM() llm.Message {
	return llm.Message{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls}
}
