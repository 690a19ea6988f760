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
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
)

// StreamMessage 进行一轮流式对话，以 SSE 转发 sink 片段与控制令牌。
// data 事件承载片段（含 __TOOL_START__ 等控制令牌，由客户端解析），
// 轮结束后发送一个 done 事件携带路由信号。
func (h *Handler) StreamMessage(ctx context.Context, c *app.RequestContext) {
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

	pr, pw := io.Pipe()
	go func() {
		var mu sync.Mutex
		sink := func(fragment string) {
			mu.Lock()
			defer mu.Unlock()
			_ = writeSSE(pw, "", fragment)
		}
		route := h.node.Turn(ctx, sess, req.Message, sink)
		mu.Lock()
		_ = writeSSE(pw, "done", string(route))
		mu.Unlock()
		_ = pw.Close()
	}()

	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.SetStatusCode(http.StatusOK)
	c.Response.SetBodyStream(pr, -1)
}

// writeSSE 按 SSE 格式写一个事件；data 内的换行拆成多个 data 行
func writeSSE(w io.Writer, event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
