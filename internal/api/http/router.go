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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"agent-orchestrator/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwtAuth    *jwt.HertzJWTMiddleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT 认证（/api 下除 health 外的路由）
func (r *Router) SetJWT(auth *jwt.HertzJWTMiddleware) {
	r.jwtAuth = auth
}

// Build 构建 Hertz server 并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	serverOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(serverOpts...)

	api := h.Group("/api")
	api.Use(r.middleware.CORS())

	api.GET("/health", r.handler.HealthCheck)

	sessions := api.Group("/sessions")
	system := api.Group("/system")
	tools := api.Group("/tools")
	if r.jwtAuth != nil {
		sessions.Use(r.jwtAuth.MiddlewareFunc())
		system.Use(r.jwtAuth.MiddlewareFunc())
		tools.Use(r.jwtAuth.MiddlewareFunc())
	}

	sessions.POST("/", r.handler.CreateSession)
	sessions.GET("/", r.handler.ListSessions)
	sessions.GET("/:id", r.handler.GetSession)
	sessions.DELETE("/:id", r.handler.DeleteSession)
	sessions.GET("/:id/history", r.handler.GetHistory)
	sessions.POST("/:id/messages", r.handler.PostMessage)
	sessions.POST("/:id/messages/stream", r.handler.StreamMessage)

	tools.GET("/", r.handler.ListTools)

	system.GET("/status", r.handler.SystemStatus)
	system.GET("/metrics", r.handler.SystemMetrics)

	return h
}
