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

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"agent-orchestrator/internal/orchestrator"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/log"
)

// Handler HTTP 处理器
type Handler struct {
	node     *orchestrator.Node
	manager  session.SessionManager
	registry *tool.Registry
	logger   *log.Logger
	started  time.Time
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(node *orchestrator.Node, manager session.SessionManager, registry *tool.Registry, logger *log.Logger) *Handler {
	return &Handler{
		node:     node,
		manager:  manager,
		registry: registry,
		logger:   logger,
		started:  time.Now(),
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "agent-orchestrator",
	})
}

// CreateSession 创建会话
func (h *Handler) CreateSession(ctx context.Context, c *app.RequestContext) {
	sess, err := h.manager.Create(ctx)
	if err != nil {
		h.logger.Error("创建会话失败", "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "create session failed"})
		return
	}
	c.JSON(http.StatusOK, utils.H{
		"session_id": sess.ID,
		"stage":      sess.Stage,
		"created_at": sess.CreatedAt,
	})
}

// GetSession 获取会话摘要
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	sess, err := h.manager.Get(ctx, id)
	if err != nil {
		h.logger.Error("读取会话失败", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "load session failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, utils.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, utils.H{
		"session_id":    sess.ID,
		"summary":       sess.Summary(),
		"project_state": sess.CopyProjectState(),
	})
}

// DeleteSession 删除会话
func (h *Handler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if err := h.manager.Delete(ctx, id); err != nil {
		h.logger.Error("删除会话失败", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "delete session failed"})
		return
	}
	c.JSON(http.StatusOK, utils.H{"status": "success"})
}

// ListSessions 列出会话 ID
func (h *Handler) ListSessions(ctx context.Context, c *app.RequestContext) {
	ids, err := h.manager.List(ctx)
	if err != nil {
		h.logger.Error("列出会话失败", "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "list sessions failed"})
		return
	}
	c.JSON(http.StatusOK, utils.H{"sessions": ids, "total": len(ids)})
}

// GetHistory 获取会话消息与工具执行历史
func (h *Handler) GetHistory(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	sess, err := h.manager.Get(ctx, id)
	if err != nil {
		h.logger.Error("读取会话失败", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "load session failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, utils.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, utils.H{
		"session_id":   sess.ID,
		"messages":     sess.CopyMessages(),
		"tool_history": sess.CopyToolHistory(),
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

// PostMessage 进行一轮非流式对话
func (h *Handler) PostMessage(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	var req messageRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}

	sess, err := h.manager.GetOrCreate(ctx, id)
	if err != nil {
		h.logger.Error("读取会话失败", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": "load session failed"})
		return
	}

	route := h.node.Turn(ctx, sess, req.Message, nil)

	c.JSON(http.StatusOK, utils.H{
		"session_id": sess.ID,
		"route":      route,
		"reply":      lastAssistantText(sess),
		"summary":    sess.Summary(),
	})
}

// ListTools 列出当前可用工具
func (h *Handler) ListTools(ctx context.Context, c *app.RequestContext) {
	defs := h.registry.Definitions(ctx)
	c.JSON(http.StatusOK, utils.H{"tools": defs, "total": len(defs)})
}

// SystemStatus 系统状态
func (h *Handler) SystemStatus(ctx context.Context, c *app.RequestContext) {
	ids, _ := h.manager.List(ctx)
	defs := h.registry.Definitions(ctx)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	c.JSON(http.StatusOK, utils.H{
		"status":         "running",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"session_count":  len(ids),
		"tools":          names,
		"timestamp":      time.Now(),
	})
}

// lastAssistantText 取最近一条助手消息的文本
func lastAssistantText(sess *session.Session) string {
	msgs := sess.CopyMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == session.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}
