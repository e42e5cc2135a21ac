package models

import (
	"time"
)

// 钱包模式常量
const (
	WalletModeVirtual = "VIRTUAL" // 虚拟盘
	WalletModeLive    = "LIVE"    // 实盘
)

// 交易流水类型常量
const (
	TxTypeDeposit       = "DEPOSIT"        // 入金
	TxTypeWithdrawal    = "WITHDRAWAL"     // 出金
	TxTypeMarginReserve = "MARGIN_RESERVE" // 保证金预留
	TxTypeMarginRelease = "MARGIN_RELEASE" // 保证金释放
	TxTypeMarginDeduct  = "MARGIN_DEDUCT"  // 保证金扣减(成交)
	TxTypeMarginReturn  = "MARGIN_RETURN"  // 保证金退回
	TxTypePnlCredit     = "PNL_CREDIT"     // 已实现盈亏入账
	TxTypeFee           = "FEE"            // 手续费
	TxTypeAdjustment    = "ADJUSTMENT"     // 人工调整
	TxTypeDailyReset    = "DAILY_RESET"    // 日切重置
)

// RiskLimits 钱包风险限制配置
type RiskLimits struct {
	MaxDailyLoss           float64 `json:"max_daily_loss"`            // 单日最大亏损(绝对值，0表示不启用)
	MaxDailyLossPercent    float64 `json:"max_daily_loss_percent"`    // 单日最大亏损(占日初余额百分比)
	MaxDrawdown            float64 `json:"max_drawdown"`              // 最大回撤(绝对值，0表示不启用)
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`      // 最大回撤(占峰值余额百分比)
	MaxOpenPositions       int     `json:"max_open_positions"`        // 最大同时持仓数
	MaxPositionSize        float64 `json:"max_position_size"`         // 单笔最大仓位(绝对值，0表示不启用)
	MaxPositionSizePercent float64 `json:"max_position_size_percent"` // 单笔最大仓位(占当前余额百分比)
}

// DefaultRiskLimits 返回默认风险配置，用于懒创建钱包
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxDailyLossPercent:    3.0,
		MaxDrawdownPercent:     10.0,
		MaxOpenPositions:       10,
		MaxPositionSizePercent: 20.0,
	}
}

// CircuitBreakerState 熔断器状态
type CircuitBreakerState struct {
	Tripped   bool       `json:"tripped"`              // 是否已熔断
	Reason    string     `json:"reason,omitempty"`     // 熔断原因
	TrippedAt *time.Time `json:"tripped_at,omitempty"` // 熔断时间
	ResetsAt  *time.Time `json:"resets_at,omitempty"`  // 自动恢复时间
}

// Wallet 交易账户钱包，是资金与风控状态的唯一事实来源
type Wallet struct {
	ID   string `json:"id"`   // 钱包ID
	Mode string `json:"mode"` // 模式: VIRTUAL, LIVE

	InitialCapital  float64 `json:"initial_capital"`  // 初始资金
	CurrentBalance  float64 `json:"current_balance"`  // 当前余额
	UsedMargin      float64 `json:"used_margin"`      // 已用保证金
	AvailableMargin float64 `json:"available_margin"` // 可用保证金 = 余额 - 已用 - 预留
	ReservedMargin  float64 `json:"reserved_margin"`  // 预留保证金

	RealizedPnl      float64 `json:"realized_pnl"`       // 累计已实现盈亏
	UnrealizedPnl    float64 `json:"unrealized_pnl"`     // 未实现盈亏(按市值)
	TotalPnl         float64 `json:"total_pnl"`          // 合计盈亏
	WeekRealizedPnl  float64 `json:"week_realized_pnl"`  // 本周已实现盈亏
	MonthRealizedPnl float64 `json:"month_realized_pnl"` // 本月已实现盈亏

	TradingDate     string  `json:"trading_date"`      // 当前交易日(YYYY-MM-DD)
	DayStartBalance float64 `json:"day_start_balance"` // 日初余额
	DayRealizedPnl  float64 `json:"day_realized_pnl"`  // 当日已实现盈亏
	DayTradeCount   int     `json:"day_trade_count"`   // 当日成交笔数
	DayWinCount     int     `json:"day_win_count"`     // 当日盈利笔数
	DayLossCount    int     `json:"day_loss_count"`    // 当日亏损笔数

	RiskLimits     RiskLimits          `json:"risk_limits"`     // 风险限制
	CircuitBreaker CircuitBreakerState `json:"circuit_breaker"` // 熔断器状态

	TotalWinCount  int     `json:"total_win_count"`  // 累计盈利笔数
	TotalLossCount int     `json:"total_loss_count"` // 累计亏损笔数
	WinRate        float64 `json:"win_rate"`         // 胜率(%)
	PeakBalance    float64 `json:"peak_balance"`     // 历史峰值余额
	MaxDrawdownHit float64 `json:"max_drawdown_hit"` // 历史最大回撤

	Version   int64     `json:"version"`    // 版本号，每次持久化递增
	CreatedAt time.Time `json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最后更新时间
}

// WalletTransaction 钱包流水，不可变审计记录，每次影响余额的操作写入一条
type WalletTransaction struct {
	ID       string `json:"id"`        // 流水ID
	WalletID string `json:"wallet_id"` // 钱包ID
	Type     string `json:"type"`      // 流水类型

	OrderID    string `json:"order_id,omitempty"`    // 关联订单ID
	PositionID string `json:"position_id,omitempty"` // 关联持仓ID
	Scrip      string `json:"scrip,omitempty"`       // 标的代码
	Symbol     string `json:"symbol,omitempty"`      // 标的名称

	Side       string  `json:"side,omitempty"`        // 交易方向
	Qty        float64 `json:"qty,omitempty"`         // 数量
	EntryPrice float64 `json:"entry_price,omitempty"` // 入场价
	ExitPrice  float64 `json:"exit_price,omitempty"`  // 出场价

	Amount        float64 `json:"amount"`         // 有符号金额
	BalanceBefore float64 `json:"balance_before"` // 操作前余额
	BalanceAfter  float64 `json:"balance_after"`  // 操作后余额
	MarginBefore  float64 `json:"margin_before"`  // 操作前已用保证金
	MarginAfter   float64 `json:"margin_after"`   // 操作后已用保证金

	Note      string    `json:"note,omitempty"` // 备注(如平仓原因)
	Timestamp time.Time `json:"timestamp"`      // 发生时间
}
