package wallet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/tradecore/internal/mocks"
	"github.com/life2you_mini/tradecore/internal/models"
)

// 固定测试时钟: 2026-08-28 10:00 本地时间
var testNow = time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)

const testTradingDate = "2026-08-28"

func newTestLedger(t *testing.T, store *mocks.MockWalletStore) *Ledger {
	l := NewLedger(zaptest.NewLogger(t), store, Defaults{
		Mode:           models.WalletModeVirtual,
		InitialCapital: 100000,
		RiskLimits:     models.DefaultRiskLimits(),
	})
	l.now = func() time.Time { return testNow }
	return l
}

// newTestWallet 构造与当前测试时钟同一交易日的钱包，避免触发日切
func newTestWallet() *models.Wallet {
	capital := 100000.0
	return &models.Wallet{
		ID:              "w1",
		Mode:            models.WalletModeVirtual,
		InitialCapital:  capital,
		CurrentBalance:  capital,
		AvailableMargin: capital,
		TradingDate:     testTradingDate,
		DayStartBalance: capital,
		RiskLimits:      models.DefaultRiskLimits(),
		PeakBalance:     capital,
		Version:         1,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

func TestCheckMarginAvailable(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(w *models.Wallet)
		required      float64
		openPositions int
		wantOK        bool
		wantReason    ReasonCode
		wantMessage   string
	}{
		{
			name:     "余额充足时通过",
			required: 15000,
			wantOK:   true,
		},
		{
			name:        "超过单笔仓位百分比上限",
			required:    25000,
			wantOK:      false,
			wantReason:  ReasonMaxPositionSizePercent,
			wantMessage: "exceeds 20% of capital (max 20000)",
		},
		{
			name: "可用保证金不足",
			setup: func(w *models.Wallet) {
				w.UsedMargin = 95000
				w.AvailableMargin = 5000
			},
			required:    10000,
			wantOK:      false,
			wantReason:  ReasonInsufficientMargin,
			wantMessage: "insufficient margin",
		},
		{
			name:          "持仓数已达上限",
			required:      1000,
			openPositions: 10,
			wantOK:        false,
			wantReason:    ReasonMaxOpenPositions,
			wantMessage:   "max open positions reached (10)",
		},
		{
			name: "熔断器已触发",
			setup: func(w *models.Wallet) {
				w.CircuitBreaker = models.CircuitBreakerState{
					Tripped: true,
					Reason:  "daily loss limit breached (loss 3200, limit 3000)",
				}
			},
			required:    1000,
			wantOK:      false,
			wantReason:  ReasonCircuitBreaker,
			wantMessage: "daily loss limit breached",
		},
		{
			name: "日亏损超限",
			setup: func(w *models.Wallet) {
				w.DayRealizedPnl = -3500
			},
			required:    1000,
			wantOK:      false,
			wantReason:  ReasonDailyLossLimit,
			wantMessage: "daily loss limit breached",
		},
		{
			name: "回撤超限",
			setup: func(w *models.Wallet) {
				w.PeakBalance = 120000
				w.CurrentBalance = 105000
				w.AvailableMargin = 105000
			},
			required:    1000,
			wantOK:      false,
			wantReason:  ReasonDrawdownLimit,
			wantMessage: "drawdown limit breached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWallet()
			if tt.setup != nil {
				tt.setup(w)
			}

			store := new(mocks.MockWalletStore)
			store.On("GetWallet", mock.Anything, "w1").Return(w, nil)

			l := newTestLedger(t, store)
			result, err := l.CheckMarginAvailable(context.Background(), "w1", tt.required, tt.openPositions)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantOK, result.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantReason, result.Reason)
				assert.Contains(t, result.Message, tt.wantMessage)
			}
			assert.Equal(t, tt.required, result.RequiredMargin)
		})
	}
}

func TestCheckMarginAvailable_检查顺序短路(t *testing.T) {
	// 同时满足多个失败条件时，熔断器优先于其他所有检查
	w := newTestWallet()
	w.CircuitBreaker = models.CircuitBreakerState{Tripped: true, Reason: "manual"}
	w.DayRealizedPnl = -50000
	w.UsedMargin = 99000
	w.AvailableMargin = 1000

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)

	l := newTestLedger(t, store)
	result, err := l.CheckMarginAvailable(context.Background(), "w1", 50000, 0)

	assert.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, ReasonCircuitBreaker, result.Reason)
}

func TestCheckMarginAvailable_懒创建钱包(t *testing.T) {
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "fresh").Return(nil, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)
	result, err := l.CheckMarginAvailable(context.Background(), "fresh", 10000, 0)

	assert.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 100000.0, result.AvailableMargin)
	store.AssertCalled(t, "SaveWallet", mock.Anything, mock.Anything)
}

func TestDeductMargin(t *testing.T) {
	w := newTestWallet()
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)

	var captured *models.WalletTransaction
	store.On("AppendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*models.WalletTransaction)
	}).Return(nil)

	l := newTestLedger(t, store)
	updated, err := l.DeductMargin(context.Background(), "w1", "ord-1", "RELIANCE", "Reliance Industries", "BUY", 10, 100)

	assert.NoError(t, err)
	assert.Equal(t, 1000.0, updated.UsedMargin)
	assert.Equal(t, 99000.0, updated.AvailableMargin)
	assert.Equal(t, 100000.0, updated.CurrentBalance)
	assert.Equal(t, 1, updated.DayTradeCount)

	// 不变量: available == balance - used - reserved
	assert.Equal(t, updated.CurrentBalance-updated.UsedMargin-updated.ReservedMargin, updated.AvailableMargin)

	assert.NotNil(t, captured)
	assert.Equal(t, models.TxTypeMarginDeduct, captured.Type)
	assert.Equal(t, "ord-1", captured.OrderID)
	assert.Equal(t, 100000.0, captured.BalanceBefore)
	assert.Equal(t, 0.0, captured.MarginBefore)
	assert.Equal(t, 1000.0, captured.MarginAfter)
	assert.NotEmpty(t, captured.ID)
}

func TestCreditPnl_多头亏损(t *testing.T) {
	w := newTestWallet()
	w.UsedMargin = 1000
	w.AvailableMargin = 99000

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)
	updated, err := l.CreditPnl(context.Background(), "w1", "pos-1", "RELIANCE", "Reliance Industries", "BUY", 10, 100, 95, "SL_HIT")

	assert.NoError(t, err)
	assert.Equal(t, 99950.0, updated.CurrentBalance)
	assert.Equal(t, 0.0, updated.UsedMargin)
	assert.Equal(t, 99950.0, updated.AvailableMargin)
	assert.Equal(t, -50.0, updated.DayRealizedPnl)
	assert.Equal(t, -50.0, updated.RealizedPnl)
	assert.Equal(t, 1, updated.DayLossCount)
	assert.Equal(t, 1, updated.TotalLossCount)
	assert.Equal(t, 0.0, updated.WinRate)
	assert.False(t, updated.CircuitBreaker.Tripped)
}

func TestCreditPnl_空头盈利(t *testing.T) {
	w := newTestWallet()
	w.UsedMargin = 2000
	w.AvailableMargin = 98000

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)
	updated, err := l.CreditPnl(context.Background(), "w1", "pos-2", "TCS", "Tata Consultancy", "SELL", 10, 200, 190, "TP1_HIT")

	assert.NoError(t, err)
	assert.Equal(t, 100100.0, updated.CurrentBalance)
	assert.Equal(t, 100.0, updated.DayRealizedPnl)
	assert.Equal(t, 1, updated.TotalWinCount)
	assert.Equal(t, 100.0, updated.WinRate)
	assert.Equal(t, 100100.0, updated.PeakBalance)
	// 释放保证金下限为0: 2000 - 200*10 < 0
	assert.Equal(t, 0.0, updated.UsedMargin)
}

func TestCreditPnl_日亏损触发熔断(t *testing.T) {
	w := newTestWallet()
	w.UsedMargin = 10000
	w.AvailableMargin = 90000

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)

	// 日亏损3200，超过100000的3%上限
	updated, err := l.CreditPnl(context.Background(), "w1", "pos-3", "INFY", "Infosys", "BUY", 100, 100, 68, "SL_HIT")
	assert.NoError(t, err)
	assert.True(t, updated.CircuitBreaker.Tripped)
	assert.Contains(t, updated.CircuitBreaker.Reason, "daily loss limit breached")
	assert.NotNil(t, updated.CircuitBreaker.ResetsAt)
	assert.Equal(t, time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local), *updated.CircuitBreaker.ResetsAt)

	// 熔断后所有准入请求被拒绝
	result, err := l.CheckMarginAvailable(context.Background(), "w1", 100, 0)
	assert.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, ReasonCircuitBreaker, result.Reason)
	assert.Contains(t, result.Message, "daily loss limit breached")
}

func TestRollover_日切重置(t *testing.T) {
	w := newTestWallet()
	w.TradingDate = "2026-08-27"
	w.CurrentBalance = 98000
	w.AvailableMargin = 98000
	w.DayRealizedPnl = -2000
	w.DayTradeCount = 5
	w.DayWinCount = 1
	w.DayLossCount = 2

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)

	var txTypes []string
	store.On("AppendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		txTypes = append(txTypes, args.Get(1).(*models.WalletTransaction).Type)
	}).Return(nil)

	l := newTestLedger(t, store)
	summary, err := l.GetWalletSummary(context.Background(), "w1")

	assert.NoError(t, err)
	assert.Equal(t, testTradingDate, summary.TradingDate)
	assert.Equal(t, 98000.0, summary.DayStartBalance)
	assert.Equal(t, 0.0, summary.DayRealizedPnl)
	assert.Equal(t, 0, summary.DayTradeCount)
	assert.Equal(t, 0, summary.DayWinCount)
	assert.Equal(t, 0, summary.DayLossCount)
	assert.Contains(t, txTypes, models.TxTypeDailyReset)

	// 同一交易日内重复调用为空操作，不再写DAILY_RESET
	txTypes = nil
	_, err = l.GetWalletSummary(context.Background(), "w1")
	assert.NoError(t, err)
	assert.Empty(t, txTypes)
}

func TestRollover_清除到期熔断(t *testing.T) {
	resetsAt := time.Date(2026, 8, 28, 9, 0, 0, 0, time.Local)
	trippedAt := time.Date(2026, 8, 27, 14, 30, 0, 0, time.Local)

	w := newTestWallet()
	w.TradingDate = "2026-08-27"
	w.CircuitBreaker = models.CircuitBreakerState{
		Tripped:   true,
		Reason:    "daily loss limit breached (loss 3200, limit 3000)",
		TrippedAt: &trippedAt,
		ResetsAt:  &resetsAt,
	}

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)
	summary, err := l.GetWalletSummary(context.Background(), "w1")

	assert.NoError(t, err)
	assert.False(t, summary.CircuitBreaker.Tripped)
	assert.Empty(t, summary.CircuitBreaker.Reason)
}

func TestResetCircuitBreaker(t *testing.T) {
	w := newTestWallet()
	w.CircuitBreaker = models.CircuitBreakerState{Tripped: true, Reason: "manual trip"}

	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)
	updated, err := l.ResetCircuitBreaker(context.Background(), "w1")

	assert.NoError(t, err)
	assert.False(t, updated.CircuitBreaker.Tripped)
}

func TestDepositAndWithdraw(t *testing.T) {
	w := newTestWallet()
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil)

	l := newTestLedger(t, store)

	updated, err := l.Deposit(context.Background(), "w1", 5000)
	assert.NoError(t, err)
	assert.Equal(t, 105000.0, updated.CurrentBalance)
	assert.Equal(t, 105000.0, updated.AvailableMargin)
	assert.Equal(t, 105000.0, updated.PeakBalance)

	updated, err = l.Withdraw(context.Background(), "w1", 3000)
	assert.NoError(t, err)
	assert.Equal(t, 102000.0, updated.CurrentBalance)

	// 出金不能超过可用保证金
	_, err = l.Withdraw(context.Background(), "w1", 999999)
	assert.Error(t, err)

	// 非正金额直接拒绝
	_, err = l.Deposit(context.Background(), "w1", -1)
	assert.Error(t, err)
	_, err = l.Withdraw(context.Background(), "w1", 0)
	assert.Error(t, err)
}

func TestPersist_持久化失败不阻断(t *testing.T) {
	w := newTestWallet()
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(fmt.Errorf("redis连接中断"))
	store.On("AppendTransaction", mock.Anything, mock.Anything).Return(fmt.Errorf("redis连接中断"))

	l := newTestLedger(t, store)
	updated, err := l.DeductMargin(context.Background(), "w1", "ord-1", "RELIANCE", "Reliance Industries", "BUY", 10, 100)

	// 可用性优先: 存储失败被吞掉，内存结果照常返回
	assert.NoError(t, err)
	assert.Equal(t, 1000.0, updated.UsedMargin)
}

func TestRecentTransactions_流水往返(t *testing.T) {
	w := newTestWallet()
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)
	store.On("SaveWallet", mock.Anything, mock.Anything).Return(nil)

	var written []*models.WalletTransaction
	store.On("AppendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = append(written, args.Get(1).(*models.WalletTransaction))
	}).Return(nil)

	l := newTestLedger(t, store)
	ctx := context.Background()

	_, err := l.Deposit(ctx, "w1", 5000)
	assert.NoError(t, err)
	_, err = l.DeductMargin(ctx, "w1", "ord-1", "RELIANCE", "Reliance Industries", "BUY", 10, 100)
	assert.NoError(t, err)
	_, err = l.CreditPnl(ctx, "w1", "pos-1", "RELIANCE", "Reliance Industries", "BUY", 10, 100, 110, "TP1_HIT")
	assert.NoError(t, err)

	// 每个影响余额的操作恰好写入一条带ID与时间戳的流水
	assert.Len(t, written, 3)
	assert.Equal(t, models.TxTypeDeposit, written[0].Type)
	assert.Equal(t, models.TxTypeMarginDeduct, written[1].Type)
	assert.Equal(t, models.TxTypePnlCredit, written[2].Type)
	for _, tx := range written {
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, "w1", tx.WalletID)
		assert.False(t, tx.Timestamp.IsZero())
	}

	// 查询按时间倒序返回，受limit约束
	recent := []*models.WalletTransaction{written[2], written[1]}
	store.On("RecentTransactions", mock.Anything, "w1", 2).Return(recent, nil)

	txs, err := l.RecentTransactions(ctx, "w1", 2)
	assert.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, written[2].ID, txs[0].ID)
	assert.Equal(t, written[1].ID, txs[1].ID)
}

func TestGetWalletSummary_返回副本(t *testing.T) {
	w := newTestWallet()
	store := new(mocks.MockWalletStore)
	store.On("GetWallet", mock.Anything, "w1").Return(w, nil)

	l := newTestLedger(t, store)
	summary, err := l.GetWalletSummary(context.Background(), "w1")

	assert.NoError(t, err)
	summary.CurrentBalance = -1
	assert.Equal(t, 100000.0, w.CurrentBalance)
}
