package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePnl(t *testing.T) {
	tests := []struct {
		name       string
		side       string
		qty        float64
		entryPrice float64
		exitPrice  float64
		want       float64
	}{
		{"多头盈利", "BUY", 10, 100, 110, 100},
		{"多头亏损", "BUY", 10, 100, 95, -50},
		{"空头盈利", "SELL", 10, 200, 190, 100},
		{"空头亏损", "SHORT", 5, 100, 108, -40},
		{"价格不变", "BUY", 10, 100, 100, 0},
		{"小写方向", "sell", 10, 100, 90, 100},
		{"浮点精度", "BUY", 3, 0.1, 0.3, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePnl(tt.side, tt.qty, tt.entryPrice, tt.exitPrice)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsShortSide(t *testing.T) {
	assert.True(t, IsShortSide("SELL"))
	assert.True(t, IsShortSide("SHORT"))
	assert.True(t, IsShortSide("sell"))
	assert.False(t, IsShortSide("BUY"))
	assert.False(t, IsShortSide("LONG"))
	assert.False(t, IsShortSide(""))
}

func TestCalculateWinRate(t *testing.T) {
	assert.Equal(t, 0.0, CalculateWinRate(0, 0))
	assert.Equal(t, 100.0, CalculateWinRate(5, 0))
	assert.Equal(t, 0.0, CalculateWinRate(0, 5))
	assert.Equal(t, 50.0, CalculateWinRate(3, 3))
	assert.Equal(t, 60.0, CalculateWinRate(3, 2))
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 20000.0, PercentOf(100000, 20))
	assert.Equal(t, 3000.0, PercentOf(100000, 3))
	assert.Equal(t, 0.0, PercentOf(0, 20))
	assert.Equal(t, 0.0, PercentOf(100000, 0))
}

func TestNextBreakerReset(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local), NextBreakerReset(now))

	// 月末跨月
	now = time.Date(2026, 8, 31, 23, 59, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local), NextBreakerReset(now))
}
