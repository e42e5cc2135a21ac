package wallet

import (
	"fmt"
	"strconv"
)

// ReasonCode 准入失败原因的封闭集合。
// 调用方按码值分支，人类可读文案由 Message 承载，仅用于展示。
type ReasonCode string

const (
	ReasonCircuitBreaker         ReasonCode = "CIRCUIT_BREAKER"           // 熔断器已触发
	ReasonDailyLossLimit         ReasonCode = "DAILY_LOSS_LIMIT"          // 单日亏损超限
	ReasonDrawdownLimit          ReasonCode = "DRAWDOWN_LIMIT"            // 回撤超限
	ReasonMaxOpenPositions       ReasonCode = "MAX_OPEN_POSITIONS"        // 持仓数已达上限
	ReasonInsufficientMargin     ReasonCode = "INSUFFICIENT_MARGIN"       // 可用保证金不足
	ReasonMaxPositionSize        ReasonCode = "MAX_POSITION_SIZE"         // 超过单笔仓位绝对上限
	ReasonMaxPositionSizePercent ReasonCode = "MAX_POSITION_SIZE_PERCENT" // 超过单笔仓位百分比上限
)

// MarginCheckResult 保证金准入检查结果。
// 准入失败是常规业务结果，以值返回，绝不以error/panic形式传播。
type MarginCheckResult struct {
	OK              bool       `json:"ok"`                // 是否通过
	Reason          ReasonCode `json:"reason,omitempty"`  // 失败原因码
	Message         string     `json:"message,omitempty"` // 人类可读文案
	Limit           float64    `json:"limit,omitempty"`   // 触发的限制值
	Actual          float64    `json:"actual,omitempty"`  // 实际值
	AvailableMargin float64    `json:"available_margin"`  // 当前可用保证金
	RequiredMargin  float64    `json:"required_margin"`   // 请求占用的保证金
}

// formatAmount 金额转展示字符串，不保留多余的小数位
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// 失败文案格式化，展示层关注点，与判定逻辑解耦

func breakerMessage(reason string) string {
	return fmt.Sprintf("circuit breaker tripped: %s", reason)
}

func dailyLossMessage(loss, limit float64) string {
	return fmt.Sprintf("daily loss limit breached (loss %s, limit %s)", formatAmount(loss), formatAmount(limit))
}

func drawdownMessage(drawdown, limit float64) string {
	return fmt.Sprintf("drawdown limit breached (drawdown %s, limit %s)", formatAmount(drawdown), formatAmount(limit))
}

func maxPositionsMessage(limit int) string {
	return fmt.Sprintf("max open positions reached (%d)", limit)
}

func insufficientMarginMessage(required, available float64) string {
	return fmt.Sprintf("insufficient margin (required %s, available %s)", formatAmount(required), formatAmount(available))
}

func maxPositionSizeMessage(limit float64) string {
	return fmt.Sprintf("exceeds max position size (max %s)", formatAmount(limit))
}

func maxPositionSizePercentMessage(percent, limit float64) string {
	return fmt.Sprintf("exceeds %s%% of capital (max %s)", formatAmount(percent), formatAmount(limit))
}
