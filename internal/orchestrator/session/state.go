package session

import (
	"time"
)

// Stage Session 所处的规划阶段
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageRequirements   Stage = "requirements"
	StagePlanning       Stage = "planning"
	StageResearch       Stage = "research"
	StageArchitecture   Stage = "architecture"
	StageCompleted      Stage = "completed"
	StageError          Stage = "error"
)

// ProjectState 的键约定（编排器与工具共用）
const (
	StateKeyStructuredRequirements = "structured_requirements"
	StateKeyPlanningDocument       = "planning_document"
	StateKeyResearchFindings       = "research_findings"
	StateKeyArchitectureDocument   = "architecture_document"
	StateKeyRecommendedTools       = "recommended_tools"
	StateKeyReactCycleCount        = "react_cycle_count"
	StateKeyErrorCount             = "error_count"
	StateKeyLastError              = "last_error"
)

// ToolCallRecord 单次工具调用记录。Decision 发出的每个工具调用
// 恰好产生一条记录，异常也以失败记录落盘，不会静默丢弃。
// 终结后不再修改。
type ToolCallRecord struct {
	CallID        string         `json:"call_id"`
	Tool          string         `json:"tool_name"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	Result        any            `json:"result,omitempty"`
	Success       bool           `json:"success"`
	Err           string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time"` // 秒
	At            time.Time      `json:"at"`
}
