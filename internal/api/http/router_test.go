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
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"agent-orchestrator/internal/api/http/middleware"
	"agent-orchestrator/internal/orchestrator/session"
	"agent-orchestrator/internal/orchestrator/tool"
	"agent-orchestrator/pkg/log"
)

func buildServerForTest(t *testing.T) (*server.Hertz, session.SessionManager) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	manager := session.NewManager(session.NewMemoryStore())
	registry := tool.NewRegistry()
	err = registry.Register(tool.Definition{
		Name:       "short_planning",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}, tool.SubWorkflowFunc(func(ctx context.Context, args map[string]any, shared tool.SharedContext) (any, error) {
		return "ok", nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	h := NewHandler(nil, manager, registry, logger)
	r := NewRouter(h, middleware.NewMiddleware())
	return r.Build(":0"), manager
}

func TestHealthCheck(t *testing.T) {
	s, _ := buildServerForTest(t)
	w := ut.PerformRequest(s.Engine, "GET", "/api/health", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/health status = %d, want 200", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"status":"ok"`)) {
		t.Errorf("body: %s", w.Result().Body())
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := buildServerForTest(t)

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions/", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("POST /api/sessions status = %d, want 200", got)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Result().Body(), &created); err != nil || created.SessionID == "" {
		t.Fatalf("create response: %s (%v)", w.Result().Body(), err)
	}

	w = ut.PerformRequest(s.Engine, "GET", "/api/sessions/"+created.SessionID, nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET session status = %d, want 200", got)
	}

	w = ut.PerformRequest(s.Engine, "GET", "/api/sessions/"+created.SessionID+"/history", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET history status = %d, want 200", got)
	}

	w = ut.PerformRequest(s.Engine, "DELETE", "/api/sessions/"+created.SessionID, nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("DELETE session status = %d, want 200", got)
	}
}

func TestGetUnknownSessionIs404(t *testing.T) {
	s, _ := buildServerForTest(t)
	w := ut.PerformRequest(s.Engine, "GET", "/api/sessions/session-missing", nil)
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestListTools(t *testing.T) {
	s, _ := buildServerForTest(t)
	w := ut.PerformRequest(s.Engine, "GET", "/api/tools/", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/tools status = %d, want 200", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("short_planning")) {
		t.Errorf("body should list short_planning: %s", w.Result().Body())
	}
}

func TestSystemMetricsEndpoint(t *testing.T) {
	s, _ := buildServerForTest(t)
	w := ut.PerformRequest(s.Engine, "GET", "/api/system/metrics", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/system/metrics status = %d, want 200", got)
	}
}
