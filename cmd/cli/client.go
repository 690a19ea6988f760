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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func checkHealth() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return out, nil
}

func createSession() (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Post("/api/sessions/")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return "", fmt.Errorf("POST /api/sessions: %s", resp.String())
	}
	return out.SessionID, nil
}

func listSessions() ([]map[string]interface{}, error) {
	var out struct {
		Sessions []map[string]interface{} `json:"sessions"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/sessions/")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/sessions: %s", resp.String())
	}
	return out.Sessions, nil
}

func getSession(sessionID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/sessions/" + sessionID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/sessions/%s: %s", sessionID, resp.String())
	}
	return out, nil
}

func deleteSession(sessionID string) error {
	resp, err := newClient().R().
		Delete("/api/sessions/" + sessionID)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("DELETE /api/sessions/%s: %s", sessionID, resp.String())
	}
	return nil
}

func getHistory(sessionID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/sessions/" + sessionID + "/history")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET history: %s", resp.String())
	}
	return out, nil
}

func listTools() ([]map[string]interface{}, error) {
	var out struct {
		Tools []map[string]interface{} `json:"tools"`
	}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/tools/")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/tools: %s", resp.String())
	}
	return out.Tools, nil
}

func systemStatus() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/system/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/system/status: %s", resp.String())
	}
	return out, nil
}

// streamMessage 发送一条消息并消费 SSE 响应流。
// 文本片段（含控制标记）逐个回调 onFragment，返回 done 事件携带的路由信号。
func streamMessage(sessionID, message string, onFragment func(fragment string)) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}
	client := resty.New().
		SetBaseURL(apiBaseURL()).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json")
	resp, err := client.R().
		SetBody(body).
		Post("/api/sessions/" + sessionID + "/messages/stream")
	if err != nil {
		return "", err
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.StatusCode() != http.StatusOK {
		b, _ := io.ReadAll(raw)
		return "", fmt.Errorf("POST stream: %s", string(b))
	}
	return consumeSSE(raw, onFragment)
}

// consumeSSE 解析 text/event-stream：默认事件的 data 行回调 onFragment，
// "done" 事件的 data 作为路由信号返回。
func consumeSSE(r io.Reader, onFragment func(fragment string)) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	route := ""
	event := ""
	var data []string
	dispatch := func() {
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")
		if event == "done" {
			route = payload
		} else if onFragment != nil {
			onFragment(payload)
		}
		event = ""
		data = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	dispatch()
	if err := scanner.Err(); err != nil {
		return route, err
	}
	return route, nil
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
