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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	content := `
api:
  port: 9090
  host: "0.0.0.0"
orchestrator:
  history_window: 10
  max_tool_calls: 3
session_store:
  type: file
  dir: ./sessions
tools:
  research_credential_key: RESEARCH_API_KEY
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api.port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Orchestrator.HistoryWindow != 10 || cfg.Orchestrator.MaxToolCalls != 3 {
		t.Errorf("orchestrator config: %+v", cfg.Orchestrator)
	}
	if cfg.SessionStore.Type != "file" {
		t.Errorf("session_store.type = %q", cfg.SessionStore.Type)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log config: %+v", cfg.Log)
	}
}

func TestReplaceEnvVars(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-from-env")
	cfg := &Config{}
	cfg.Model.LLM.Providers = map[string]ProviderConfig{
		"openai": {APIKey: "${TEST_LLM_KEY}"},
	}
	if err := replaceEnvVars(cfg); err != nil {
		t.Fatal(err)
	}
	if got := cfg.Model.LLM.Providers["openai"].APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want env value", got)
	}
}
