// Copyright 2026 fanjia1024
// Turn quality scoring

package monitoring

import (
	"math"
)

// TurnInput 单轮质量评分输入。不依赖 internal，调用方自行从
// 工具记录与决策结果折算各分项（0-100）。
type TurnInput struct {
	ToolSuccessRate float64 // 工具调用成功率 ×100；无调用按 100
	NarrationScore  float64 // 助手回复质量（有实质内容 100，空 0）
	DecisionScore   float64 // 决策质量（原生/标记解析 100，兜底 0）
	LatencyScore    float64 // 耗时折算分
}

// QualityScore 质量评分
type QualityScore struct {
	Overall         float64  `json:"overall"`
	ToolSuccessRate float64  `json:"tool_success_rate"`
	Narration       float64  `json:"narration"`
	Decision        float64  `json:"decision"`
	Latency         float64  `json:"latency"`
	Recommendations []string `json:"recommendations"`
}

// ScoreTurn 对单轮编排结果评分
func ScoreTurn(in TurnInput) *QualityScore {
	input := TurnInput{
		ToolSuccessRate: clampScore(in.ToolSuccessRate),
		NarrationScore:  clampScore(in.NarrationScore),
		DecisionScore:   clampScore(in.DecisionScore),
		LatencyScore:    clampScore(in.LatencyScore),
	}

	overall := 0.35*input.ToolSuccessRate +
		0.25*input.NarrationScore +
		0.25*input.DecisionScore +
		0.15*input.LatencyScore

	return &QualityScore{
		Overall:         round1(overall),
		ToolSuccessRate: round1(input.ToolSuccessRate),
		Narration:       round1(input.NarrationScore),
		Decision:        round1(input.DecisionScore),
		Latency:         round1(input.LatencyScore),
		Recommendations: buildRecommendations(input),
	}
}

// LatencyScoreFromSeconds 把单轮耗时折算为 0-100 分；budget 秒内满分，线性衰减到 4×budget
func LatencyScoreFromSeconds(elapsed, budget float64) float64 {
	if budget <= 0 {
		budget = 30
	}
	if elapsed <= budget {
		return 100
	}
	if elapsed >= 4*budget {
		return 0
	}
	return 100 * (1 - (elapsed-budget)/(3*budget))
}

func buildRecommendations(in TurnInput) []string {
	recs := make([]string, 0, 4)
	if in.ToolSuccessRate < 70 {
		recs = append(recs, "inspect failing tools and their argument schemas")
	}
	if in.NarrationScore < 70 {
		recs = append(recs, "review system prompt so replies narrate tool outcomes")
	}
	if in.DecisionScore < 70 {
		recs = append(recs, "check LLM endpoint health and fallback frequency")
	}
	if in.LatencyScore < 70 {
		recs = append(recs, "review tool timeouts and slow sub-workflows")
	}
	return recs
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
