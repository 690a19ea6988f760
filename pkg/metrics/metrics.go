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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal,
		ToolDuration, ToolTotal,
		LLMTokensTotal, DecisionFallbackTotal,
		StreamActive, RateLimitWaitSeconds,
		TurnQuality,
	)
}

// TurnDuration 单轮编排耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orch_turn_duration_seconds",
		Help:    "单轮编排耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"}, // wait_for_user | error
)

// TurnTotal 轮次总数（按路由信号）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orch_turn_total",
		Help: "轮次总数（按路由信号）",
	},
	[]string{"route"},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orch_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolTotal 工具调用总数（按结果）
var ToolTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orch_tool_total",
		Help: "工具调用总数（按结果）",
	},
	[]string{"tool", "status"}, // success | failure
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orch_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// DecisionFallbackTotal Decision 降级次数（LLM 调用失败或空响应）
var DecisionFallbackTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orch_decision_fallback_total",
		Help: "Decision 降级次数",
	},
)

// StreamActive 当前活跃的流式会话数
var StreamActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orch_stream_active",
		Help: "当前活跃的流式会话数",
	},
)

// RateLimitWaitSeconds 限流等待耗时（秒），仅记录超过 100ms 的等待
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orch_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// TurnQuality 单轮质量评分（0-100）
var TurnQuality = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "orch_turn_quality_score",
		Help:    "单轮质量评分（0-100）",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
