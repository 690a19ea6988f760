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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	SessionStore SessionStoreConfig `mapstructure:"session_store"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Model        ModelConfig        `mapstructure:"model"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// OrchestratorConfig 编排核心配置
type OrchestratorConfig struct {
	HistoryWindow  int    `mapstructure:"history_window"`  // LLM 上下文保留的消息条数，<=0 默认 20
	ToolTimeout    string `mapstructure:"tool_timeout"`    // 单工具调用超时，如 "120s"，空则默认 120s
	DecideTimeout  string `mapstructure:"decide_timeout"`  // LLM 决策调用超时，如 "60s"，空则默认 60s
	MaxToolCalls   int    `mapstructure:"max_tool_calls"`  // 单轮允许的工具调用上限，<=0 默认 5
	SystemPromptID string `mapstructure:"system_prompt"`   // 系统提示词模板标识，空则用内置默认
}

// SessionStoreConfig Session 持久化配置
type SessionStoreConfig struct {
	Type          string `mapstructure:"type"`  // memory | file | postgres
	Dir           string `mapstructure:"dir"`   // type=file 时的目录，空则 "./sessions"
	DSN           string `mapstructure:"dsn"`   // type=postgres 时必填
	Cache         string `mapstructure:"cache"` // "" | redis：redis 时叠加 cache-aside 层
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`
}

// ToolsConfig 工具注册表配置
type ToolsConfig struct {
	ResearchCredentialKey string          `mapstructure:"research_credential_key"` // secrets 中研究工具凭据的键名，空则 "RESEARCH_API_KEY"
	ResearchSources       []string        `mapstructure:"research_sources"`        // research 工具抓取的源 URL 列表
	Recommend             RecommendConfig `mapstructure:"recommend"`
}

// RecommendConfig 工具推荐（向量检索）配置
type RecommendConfig struct {
	Type     string `mapstructure:"type"`     // memory | redis
	Addr     string `mapstructure:"addr"`     // redis 地址
	DB       string `mapstructure:"db"`       // Redis DB 编号，如 "0"
	Index    string `mapstructure:"index"`    // 索引名/键前缀，空则 "tool_catalog"
	Password string `mapstructure:"password"` // Redis 密码，可选
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置（provider.model_key，如 openai.gpt_4o）
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// RateLimitsConfig 限流配置（LLM Provider 维度）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig 凭据存储配置
type SecretsConfig struct {
	Type         string `mapstructure:"type"`           // env | memory | vault
	VaultAddress string `mapstructure:"vault_address"`  // type=vault 时使用
	VaultToken   string `mapstructure:"vault_token"`
	VaultPrefix  string `mapstructure:"vault_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// replaceEnvVars 替换配置中的 ${ENV_VAR} 形式的模型 API Key
func replaceEnvVars(config *Config) error {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.LLM.Providers[provider] = providerConfig
			}
		}
	}

	for provider, providerConfig := range config.Model.Embedding.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.Embedding.Providers[provider] = providerConfig
			}
		}
	}

	return nil
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置，便于 API 使用 LLM/Embedding
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelCfg, err := LoadConfig("configs/model.yaml")
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

// LoadModelConfig 加载模型配置
func LoadModelConfig() (*Config, error) {
	return LoadConfig("configs/model.yaml")
}
