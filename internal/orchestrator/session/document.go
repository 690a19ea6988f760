package session

import (
	"time"
)

// document Session 的扁平持久化格式。save/load 往返必须复原
// 等价的 Session：相同消息序、相同 project_state、相同 tool_history。
type document struct {
	SessionID    string           `json:"session_id"`
	Stage        Stage            `json:"stage"`
	CreatedAt    time.Time        `json:"created_at"`
	LastUpdated  time.Time        `json:"last_updated"`
	Messages     []*Message       `json:"messages"`
	ProjectState map[string]any   `json:"project_state"`
	ToolHistory  []ToolCallRecord `json:"tool_history"`
}

// toDocument 导出持久化文档（持读锁拷贝）
func (s *Session) toDocument() *document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := &document{
		SessionID:    s.ID,
		Stage:        s.Stage,
		CreatedAt:    s.CreatedAt,
		LastUpdated:  s.LastUpdated,
		ProjectState: make(map[string]any, len(s.ProjectState)),
	}
	for k, v := range s.ProjectState {
		doc.ProjectState[k] = v
	}
	if len(s.Messages) > 0 {
		doc.Messages = make([]*Message, len(s.Messages))
		for i, m := range s.Messages {
			c := *m
			doc.Messages[i] = &c
		}
	}
	if len(s.ToolHistory) > 0 {
		doc.ToolHistory = make([]ToolCallRecord, len(s.ToolHistory))
		copy(doc.ToolHistory, s.ToolHistory)
	}
	return doc
}

// fromDocument 从持久化文档复原 Session
func fromDocument(doc *document) *Session {
	s := &Session{
		ID:           doc.SessionID,
		Stage:        doc.Stage,
		CreatedAt:    doc.CreatedAt,
		LastUpdated:  doc.LastUpdated,
		Messages:     doc.Messages,
		ToolHistory:  doc.ToolHistory,
		ProjectState: doc.ProjectState,
	}
	if s.Stage == "" {
		s.Stage = StageInitialization
	}
	if s.ProjectState == nil {
		s.ProjectState = make(map[string]any)
	}
	// 老文档缺 hash 时补算，去重逻辑依赖它
	for _, m := range s.Messages {
		if m.ContentHash == "" {
			m.ContentHash = m.hash()
		}
	}
	return s
}
