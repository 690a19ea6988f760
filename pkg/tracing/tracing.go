// Package tracing OpenTelemetry 封装：编排轮次与工具调用的 span 辅助（不依赖 internal）
package tracing
