package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/lock"
	"github.com/life2you_mini/tradecore/internal/metrics"
	"github.com/life2you_mini/tradecore/internal/models"
	"github.com/life2you_mini/tradecore/internal/storage"
)

// 交易日日期格式
const tradingDateLayout = "2006-01-02"

// Defaults 懒创建钱包时使用的默认配置
type Defaults struct {
	Mode           string            // 钱包模式
	InitialCapital float64           // 初始资金
	RiskLimits     models.RiskLimits // 风险限制
}

// Ledger 钱包账本与风控准入器。
// 所有对同一钱包的读-改-写序列通过按钱包ID的互斥锁串行化，
// 锁在持久化完成之前不释放；不同钱包之间完全并行。
type Ledger struct {
	logger   *zap.Logger
	store    storage.WalletStore
	locks    *lock.KeyedMutex
	defaults Defaults
	now      func() time.Time
}

// NewLedger 创建新的钱包账本
func NewLedger(logger *zap.Logger, store storage.WalletStore, defaults Defaults) *Ledger {
	if defaults.Mode == "" {
		defaults.Mode = models.WalletModeVirtual
	}
	return &Ledger{
		logger:   logger.With(zap.String("component", "wallet_ledger")),
		store:    store,
		locks:    lock.NewKeyedMutex(),
		defaults: defaults,
		now:      time.Now,
	}
}

// CheckMarginAvailable 保证金准入检查，按固定顺序短路评估：
// (1)熔断器 (2)日亏损 (3)回撤 (4)持仓数 (5)可用保证金 (6)单笔仓位绝对上限 (7)单笔仓位百分比上限。
// 只读操作，但会先执行日切检查。失败结果对本次请求是终局的，内部不重试。
func (l *Ledger) CheckMarginAvailable(ctx context.Context, walletID string, requiredMargin float64, currentOpenPositions int) (*MarginCheckResult, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	result := &MarginCheckResult{
		AvailableMargin: w.AvailableMargin,
		RequiredMargin:  requiredMargin,
	}

	// (1) 熔断器
	if w.CircuitBreaker.Tripped {
		return l.reject(result, ReasonCircuitBreaker, 0, 0, breakerMessage(w.CircuitBreaker.Reason)), nil
	}

	// (2) 日亏损限制，dailyLoss为正值表示亏损
	dailyLoss := -w.DayRealizedPnl
	if limit := w.RiskLimits.MaxDailyLoss; limit > 0 && dailyLoss >= limit {
		return l.reject(result, ReasonDailyLossLimit, limit, dailyLoss, dailyLossMessage(dailyLoss, limit)), nil
	}
	if pct := w.RiskLimits.MaxDailyLossPercent; pct > 0 {
		if limit := PercentOf(w.DayStartBalance, pct); limit > 0 && dailyLoss >= limit {
			return l.reject(result, ReasonDailyLossLimit, limit, dailyLoss, dailyLossMessage(dailyLoss, limit)), nil
		}
	}

	// (3) 回撤限制
	drawdown := subAmount(w.PeakBalance, w.CurrentBalance)
	if limit := w.RiskLimits.MaxDrawdown; limit > 0 && drawdown >= limit {
		return l.reject(result, ReasonDrawdownLimit, limit, drawdown, drawdownMessage(drawdown, limit)), nil
	}
	if pct := w.RiskLimits.MaxDrawdownPercent; pct > 0 {
		if limit := PercentOf(w.PeakBalance, pct); limit > 0 && drawdown >= limit {
			return l.reject(result, ReasonDrawdownLimit, limit, drawdown, drawdownMessage(drawdown, limit)), nil
		}
	}

	// (4) 持仓数限制
	if limit := w.RiskLimits.MaxOpenPositions; limit > 0 && currentOpenPositions >= limit {
		return l.reject(result, ReasonMaxOpenPositions, float64(limit), float64(currentOpenPositions), maxPositionsMessage(limit)), nil
	}

	// (5) 可用保证金
	if requiredMargin > w.AvailableMargin {
		return l.reject(result, ReasonInsufficientMargin, w.AvailableMargin, requiredMargin,
			insufficientMarginMessage(requiredMargin, w.AvailableMargin)), nil
	}

	// (6) 单笔仓位绝对上限
	if limit := w.RiskLimits.MaxPositionSize; limit > 0 && requiredMargin > limit {
		return l.reject(result, ReasonMaxPositionSize, limit, requiredMargin, maxPositionSizeMessage(limit)), nil
	}

	// (7) 单笔仓位百分比上限
	if pct := w.RiskLimits.MaxPositionSizePercent; pct > 0 {
		if limit := PercentOf(w.CurrentBalance, pct); limit > 0 && requiredMargin > limit {
			return l.reject(result, ReasonMaxPositionSizePercent, limit, requiredMargin,
				maxPositionSizePercentMessage(pct, limit)), nil
		}
	}

	result.OK = true
	return result, nil
}

// DeductMargin 成交后扣减保证金。准入检查被假定已在此前通过，
// 两次调用之间不构成原子事务，这是已知的一致性缺口。本操作不拒绝。
func (l *Ledger) DeductMargin(ctx context.Context, walletID, orderID, scrip, symbol, side string, qty, fillPrice float64) (*models.Wallet, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	amount := mulAmount(qty, fillPrice)
	balanceBefore := w.CurrentBalance
	marginBefore := w.UsedMargin

	w.UsedMargin = addAmount(w.UsedMargin, amount)
	l.recalcAvailable(w)
	w.DayTradeCount++

	l.persist(ctx, w)
	l.record(ctx, &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          models.TxTypeMarginDeduct,
		OrderID:       orderID,
		Scrip:         scrip,
		Symbol:        symbol,
		Side:          side,
		Qty:           qty,
		EntryPrice:    fillPrice,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.CurrentBalance,
		MarginBefore:  marginBefore,
		MarginAfter:   w.UsedMargin,
	})

	l.logger.Info("保证金已扣减",
		zap.String("wallet_id", w.ID),
		zap.String("order_id", orderID),
		zap.Float64("amount", amount),
		zap.Float64("used_margin", w.UsedMargin),
		zap.Float64("available_margin", w.AvailableMargin))

	return w, nil
}

// CreditPnl 平仓/部分平仓后入账已实现盈亏，释放对应保证金，
// 更新统计指标，并在入账后评估熔断条件。
func (l *Ledger) CreditPnl(ctx context.Context, walletID, positionID, scrip, symbol, side string, qty, entryPrice, exitPrice float64, exitReason string) (*models.Wallet, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	pnl := CalculatePnl(side, qty, entryPrice, exitPrice)
	balanceBefore := w.CurrentBalance
	marginBefore := w.UsedMargin

	w.CurrentBalance = addAmount(w.CurrentBalance, pnl)

	// 释放入场价值对应的保证金，下限为0
	release := mulAmount(entryPrice, qty)
	w.UsedMargin = subAmount(w.UsedMargin, release)
	if w.UsedMargin < 0 {
		w.UsedMargin = 0
	}
	l.recalcAvailable(w)

	w.RealizedPnl = addAmount(w.RealizedPnl, pnl)
	w.DayRealizedPnl = addAmount(w.DayRealizedPnl, pnl)
	w.WeekRealizedPnl = addAmount(w.WeekRealizedPnl, pnl)
	w.MonthRealizedPnl = addAmount(w.MonthRealizedPnl, pnl)
	w.TotalPnl = addAmount(w.RealizedPnl, w.UnrealizedPnl)

	if pnl > 0 {
		w.TotalWinCount++
		w.DayWinCount++
	} else if pnl < 0 {
		w.TotalLossCount++
		w.DayLossCount++
	}
	w.WinRate = CalculateWinRate(w.TotalWinCount, w.TotalLossCount)

	if w.CurrentBalance > w.PeakBalance {
		w.PeakBalance = w.CurrentBalance
	}
	if drawdown := subAmount(w.PeakBalance, w.CurrentBalance); drawdown > w.MaxDrawdownHit {
		w.MaxDrawdownHit = drawdown
	}

	l.evaluateCircuitBreaker(w)

	l.persist(ctx, w)
	l.record(ctx, &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          models.TxTypePnlCredit,
		PositionID:    positionID,
		Scrip:         scrip,
		Symbol:        symbol,
		Side:          side,
		Qty:           qty,
		EntryPrice:    entryPrice,
		ExitPrice:     exitPrice,
		Amount:        pnl,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.CurrentBalance,
		MarginBefore:  marginBefore,
		MarginAfter:   w.UsedMargin,
		Note:          exitReason,
	})

	l.logger.Info("盈亏已入账",
		zap.String("wallet_id", w.ID),
		zap.String("position_id", positionID),
		zap.Float64("pnl", pnl),
		zap.Float64("balance", w.CurrentBalance),
		zap.Float64("day_realized_pnl", w.DayRealizedPnl))

	return w, nil
}

// UpdateUnrealizedPnl 覆盖写入未实现盈亏并重算合计盈亏。
// 按市值盯市，不是账本事件，不记流水。
func (l *Ledger) UpdateUnrealizedPnl(ctx context.Context, walletID string, totalUnrealizedPnl float64) (*models.Wallet, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	w.UnrealizedPnl = totalUnrealizedPnl
	w.TotalPnl = addAmount(w.RealizedPnl, w.UnrealizedPnl)

	l.persist(ctx, w)
	return w, nil
}

// ResetCircuitBreaker 管理端手动复位熔断器，立即生效
func (l *Ledger) ResetCircuitBreaker(ctx context.Context, walletID string) (*models.Wallet, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	previousReason := w.CircuitBreaker.Reason
	w.CircuitBreaker = models.CircuitBreakerState{}
	metrics.SetCircuitBreakerTripped(w.ID, false)

	l.persist(ctx, w)

	l.logger.Info("熔断器已手动复位",
		zap.String("wallet_id", w.ID),
		zap.String("previous_reason", previousReason))

	return w, nil
}

// GetWalletSummary 返回钱包当前状态的只读投影，作为副作用触发日切检查
func (l *Ledger) GetWalletSummary(ctx context.Context, walletID string) (*models.Wallet, error) {
	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	// 返回副本，避免调用方绕过锁修改账本状态
	summary := *w
	return &summary, nil
}

// RecentTransactions 按时间倒序返回最近的流水
func (l *Ledger) RecentTransactions(ctx context.Context, walletID string, limit int) ([]*models.WalletTransaction, error) {
	return l.store.RecentTransactions(ctx, walletID, limit)
}

// Deposit 入金
func (l *Ledger) Deposit(ctx context.Context, walletID string, amount float64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("入金金额必须大于0")
	}

	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	balanceBefore := w.CurrentBalance
	w.CurrentBalance = addAmount(w.CurrentBalance, amount)
	l.recalcAvailable(w)
	if w.CurrentBalance > w.PeakBalance {
		w.PeakBalance = w.CurrentBalance
	}

	l.persist(ctx, w)
	l.record(ctx, &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          models.TxTypeDeposit,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.CurrentBalance,
		MarginBefore:  w.UsedMargin,
		MarginAfter:   w.UsedMargin,
	})

	return w, nil
}

// Withdraw 出金，只允许动用可用保证金
func (l *Ledger) Withdraw(ctx context.Context, walletID string, amount float64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("出金金额必须大于0")
	}

	unlock := l.locks.Lock(walletID)
	defer unlock()

	w, err := l.getOrCreate(ctx, walletID)
	if err != nil {
		return nil, err
	}

	l.rollover(ctx, w)

	if amount > w.AvailableMargin {
		return nil, fmt.Errorf("可用保证金不足，无法出金: 请求 %s, 可用 %s",
			formatAmount(amount), formatAmount(w.AvailableMargin))
	}

	balanceBefore := w.CurrentBalance
	w.CurrentBalance = subAmount(w.CurrentBalance, amount)
	l.recalcAvailable(w)

	l.persist(ctx, w)
	l.record(ctx, &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          models.TxTypeWithdrawal,
		Amount:        -amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.CurrentBalance,
		MarginBefore:  w.UsedMargin,
		MarginAfter:   w.UsedMargin,
	})

	return w, nil
}

// getOrCreate 读取钱包，首次引用时按默认风险配置懒创建
func (l *Ledger) getOrCreate(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := l.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("读取钱包失败: %w", err)
	}
	if w != nil {
		return w, nil
	}

	now := l.now()
	capital := l.defaults.InitialCapital
	w = &models.Wallet{
		ID:              walletID,
		Mode:            l.defaults.Mode,
		InitialCapital:  capital,
		CurrentBalance:  capital,
		AvailableMargin: capital,
		TradingDate:     now.Format(tradingDateLayout),
		DayStartBalance: capital,
		RiskLimits:      l.defaults.RiskLimits,
		PeakBalance:     capital,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.store.SaveWallet(ctx, w); err != nil {
		// 可用性优先：持久化失败不阻断内存状态
		metrics.IncPersistenceFailure("wallet")
		l.logger.Error("创建钱包持久化失败，内存状态继续生效",
			zap.String("wallet_id", walletID), zap.Error(err))
	}

	l.logger.Info("钱包不存在，使用默认风险配置创建",
		zap.String("wallet_id", walletID),
		zap.String("mode", w.Mode),
		zap.Float64("initial_capital", capital))

	return w, nil
}

// rollover 日切检查：交易日变更时重置所有日维度字段，
// 并清除已到自动恢复时间的熔断。同一交易日内重复调用为空操作。
func (l *Ledger) rollover(ctx context.Context, w *models.Wallet) {
	today := l.now().Format(tradingDateLayout)
	if w.TradingDate == today {
		return
	}

	l.logger.Info("执行日切",
		zap.String("wallet_id", w.ID),
		zap.String("previous_date", w.TradingDate),
		zap.String("trading_date", today))

	w.TradingDate = today
	w.DayStartBalance = w.CurrentBalance
	w.DayRealizedPnl = 0
	w.DayTradeCount = 0
	w.DayWinCount = 0
	w.DayLossCount = 0

	if w.CircuitBreaker.Tripped && w.CircuitBreaker.ResetsAt != nil && l.now().After(*w.CircuitBreaker.ResetsAt) {
		l.logger.Info("熔断器到达自动恢复时间，清除熔断状态",
			zap.String("wallet_id", w.ID),
			zap.String("reason", w.CircuitBreaker.Reason))
		w.CircuitBreaker = models.CircuitBreakerState{}
		metrics.SetCircuitBreakerTripped(w.ID, false)
	}

	l.persist(ctx, w)
	l.record(ctx, &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          models.TxTypeDailyReset,
		BalanceBefore: w.CurrentBalance,
		BalanceAfter:  w.CurrentBalance,
		MarginBefore:  w.UsedMargin,
		MarginAfter:   w.UsedMargin,
	})
}

// evaluateCircuitBreaker 盈亏入账后评估熔断条件：
// 日亏损超过绝对/百分比上限，或回撤超过绝对/峰值百分比上限。
// 触发后记录原因并安排次日09:00自动恢复。
func (l *Ledger) evaluateCircuitBreaker(w *models.Wallet) {
	if w.CircuitBreaker.Tripped {
		return
	}

	dailyLoss := -w.DayRealizedPnl
	drawdown := subAmount(w.PeakBalance, w.CurrentBalance)

	var reason string
	switch {
	case w.RiskLimits.MaxDailyLoss > 0 && dailyLoss >= w.RiskLimits.MaxDailyLoss:
		reason = dailyLossMessage(dailyLoss, w.RiskLimits.MaxDailyLoss)
	case w.RiskLimits.MaxDailyLossPercent > 0 && percentLimitHit(dailyLoss, w.DayStartBalance, w.RiskLimits.MaxDailyLossPercent):
		reason = dailyLossMessage(dailyLoss, PercentOf(w.DayStartBalance, w.RiskLimits.MaxDailyLossPercent))
	case w.RiskLimits.MaxDrawdown > 0 && drawdown >= w.RiskLimits.MaxDrawdown:
		reason = drawdownMessage(drawdown, w.RiskLimits.MaxDrawdown)
	case w.RiskLimits.MaxDrawdownPercent > 0 && percentLimitHit(drawdown, w.PeakBalance, w.RiskLimits.MaxDrawdownPercent):
		reason = drawdownMessage(drawdown, PercentOf(w.PeakBalance, w.RiskLimits.MaxDrawdownPercent))
	}

	if reason == "" {
		return
	}

	now := l.now()
	resetsAt := NextBreakerReset(now)
	w.CircuitBreaker = models.CircuitBreakerState{
		Tripped:   true,
		Reason:    reason,
		TrippedAt: &now,
		ResetsAt:  &resetsAt,
	}
	metrics.SetCircuitBreakerTripped(w.ID, true)

	l.logger.Warn("熔断器触发，停止后续准入",
		zap.String("wallet_id", w.ID),
		zap.String("reason", reason),
		zap.Time("resets_at", resetsAt))
}

// percentLimitHit 判断 actual 是否达到 base 的 percent%（base为0时不启用）
func percentLimitHit(actual, base, percent float64) bool {
	limit := PercentOf(base, percent)
	return limit > 0 && actual >= limit
}

// recalcAvailable 重算可用保证金，维持不变量
// availableMargin == currentBalance - usedMargin - reservedMargin
func (l *Ledger) recalcAvailable(w *models.Wallet) {
	w.AvailableMargin = subAmount(subAmount(w.CurrentBalance, w.UsedMargin), w.ReservedMargin)
}

// persist 持久化钱包并递增版本号。
// 可用性优先：失败只记日志与指标，已计算的内存状态照常返回给调用方。
func (l *Ledger) persist(ctx context.Context, w *models.Wallet) {
	w.Version++
	w.UpdatedAt = l.now()

	if err := l.store.SaveWallet(ctx, w); err != nil {
		metrics.IncPersistenceFailure("wallet")
		l.logger.Error("保存钱包失败，内存状态继续生效",
			zap.String("wallet_id", w.ID),
			zap.Int64("version", w.Version),
			zap.Error(err))
	}
}

// record 写入一条审计流水，失败只记日志与指标
func (l *Ledger) record(ctx context.Context, tx *models.WalletTransaction) {
	tx.ID = uuid.NewString()
	tx.Timestamp = l.now()

	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		metrics.IncPersistenceFailure("transaction")
		l.logger.Error("保存流水失败",
			zap.String("wallet_id", tx.WalletID),
			zap.String("type", tx.Type),
			zap.Error(err))
	}
}

// reject 构造失败结果并记录指标
func (l *Ledger) reject(result *MarginCheckResult, code ReasonCode, limit, actual float64, message string) *MarginCheckResult {
	result.OK = false
	result.Reason = code
	result.Limit = limit
	result.Actual = actual
	result.Message = message
	metrics.IncMarginCheckRejection(string(code))

	l.logger.Info("保证金检查未通过",
		zap.String("reason", string(code)),
		zap.Float64("required_margin", result.RequiredMargin),
		zap.Float64("available_margin", result.AvailableMargin),
		zap.String("message", message))

	return result
}
