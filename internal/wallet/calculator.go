package wallet

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CalculatePnl 计算已实现盈亏
// 多头类型方向为 (exitPrice - entryPrice) * qty，空头类型取反
func CalculatePnl(side string, qty, entryPrice, exitPrice float64) float64 {
	diff := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(entryPrice))
	pnl := diff.Mul(decimal.NewFromFloat(qty))
	if IsShortSide(side) {
		pnl = pnl.Neg()
	}
	result, _ := pnl.Float64()
	return result
}

// IsShortSide 判断交易方向是否为空头类型
func IsShortSide(side string) bool {
	switch strings.ToUpper(side) {
	case "SELL", "SHORT":
		return true
	}
	return false
}

// CalculateWinRate 计算胜率(%)
func CalculateWinRate(winCount, lossCount int) float64 {
	total := winCount + lossCount
	if total == 0 {
		return 0
	}
	return float64(winCount) / float64(total) * 100
}

// PercentOf 计算 base 的 percent%
func PercentOf(base, percent float64) float64 {
	result, _ := decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Float64()
	return result
}

// NextBreakerReset 计算熔断器自动恢复时间：次日09:00
func NextBreakerReset(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, now.Location())
}

// 以下为货币运算辅助函数，经由decimal避免浮点累计误差

func addAmount(a, b float64) float64 {
	result, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return result
}

func subAmount(a, b float64) float64 {
	result, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return result
}

func mulAmount(a, b float64) float64 {
	result, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return result
}
