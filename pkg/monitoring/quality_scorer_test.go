// Copyright 2026 fanjia1024

package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreTurn_AllGood(t *testing.T) {
	score := ScoreTurn(TurnInput{
		ToolSuccessRate: 100,
		NarrationScore:  100,
		DecisionScore:   100,
		LatencyScore:    100,
	})
	assert.Equal(t, 100.0, score.Overall)
	assert.Empty(t, score.Recommendations)
}

func TestScoreTurn_ClampsAndRecommends(t *testing.T) {
	score := ScoreTurn(TurnInput{
		ToolSuccessRate: -10,
		NarrationScore:  150,
		DecisionScore:   50,
		LatencyScore:    60,
	})
	assert.Equal(t, 0.0, score.ToolSuccessRate)
	assert.Equal(t, 100.0, score.Narration)
	assert.GreaterOrEqual(t, score.Overall, 0.0)
	assert.LessOrEqual(t, score.Overall, 100.0)
	// 工具、决策、耗时三项低于阈值
	assert.Len(t, score.Recommendations, 3)
}

func TestLatencyScoreFromSeconds(t *testing.T) {
	assert.Equal(t, 100.0, LatencyScoreFromSeconds(10, 30))
	assert.Equal(t, 0.0, LatencyScoreFromSeconds(120, 30))
	mid := LatencyScoreFromSeconds(75, 30)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 100.0)
}
