package models

import (
	"time"
)

// 订单生命周期状态常量
const (
	StatusUnknown         = "UNKNOWN"          // 隐式起点，乱序事件的防御性来源状态
	StatusCreated         = "CREATED"          // 已创建
	StatusPartiallyFilled = "PARTIALLY_FILLED" // 部分成交
	StatusFilled          = "FILLED"           // 全部成交
	StatusRejected        = "REJECTED"         // 被拒绝
	StatusCanceled        = "CANCELED"         // 已撤销
	StatusClosed          = "CLOSED"           // 持仓完全退出，终态
)

// 订单状态事件类型常量
const (
	EventOrderCreated     = "ORDER_CREATED"      // 订单创建
	EventOrderFilled      = "ORDER_FILLED"       // 订单全部成交
	EventOrderPartialFill = "ORDER_PARTIAL_FILL" // 部分成交
	EventOrderRejected    = "ORDER_REJECTED"     // 订单被拒绝
	EventOrderCanceled    = "ORDER_CANCELED"     // 订单撤销
	EventPositionOpened   = "POSITION_OPENED"    // 持仓建立
	EventPositionUpdated  = "POSITION_UPDATED"   // 持仓更新
	EventPositionClosed   = "POSITION_CLOSED"    // 持仓平仓
	EventSlHit            = "SL_HIT"             // 止损触发
	EventTp1Hit           = "TP1_HIT"            // 第一目标位触发
	EventTrailingArmed    = "TRAILING_ARMED"     // 移动止损启动
	EventTrailingUpdated  = "TRAILING_UPDATED"   // 移动止损更新
	EventMarginDeducted   = "MARGIN_DEDUCTED"    // 保证金扣减
	EventPnlCredited      = "PNL_CREDITED"       // 盈亏入账
)

// IsTerminalStatus 判断状态是否为终态(不再发生转移)
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusRejected, StatusCanceled, StatusClosed:
		return true
	}
	return false
}

// Order 上游下单路径传入的订单快照，由经纪商/虚拟成交协作方产生
type Order struct {
	OrderID   string  `json:"order_id"`             // 订单ID
	Scrip     string  `json:"scrip"`                // 标的代码
	Symbol    string  `json:"symbol"`               // 标的名称
	Side      string  `json:"side"`                 // 方向: BUY, SELL
	OrderType string  `json:"order_type"`           // 订单类型: MARKET, LIMIT
	Qty       float64 `json:"qty"`                  // 委托数量
	Price     float64 `json:"price,omitempty"`      // 限价
	FillPrice float64 `json:"fill_price,omitempty"` // 成交价
	StopLoss  float64 `json:"stop_loss,omitempty"`  // 止损价
	Target1   float64 `json:"target1,omitempty"`    // 第一目标价
	Target2   float64 `json:"target2,omitempty"`    // 第二目标价
	SignalID  string  `json:"signal_id,omitempty"`  // 来源信号ID
}

// Position 平仓通知携带的持仓快照
type Position struct {
	PositionID string  `json:"position_id"`         // 持仓ID
	SignalID   string  `json:"signal_id,omitempty"` // 来源信号ID
	WalletID   string  `json:"wallet_id,omitempty"` // 钱包ID
	Scrip      string  `json:"scrip"`               // 标的代码
	Symbol     string  `json:"symbol"`              // 标的名称
	Side       string  `json:"side"`                // 方向
	Qty        float64 `json:"qty"`                 // 数量
	EntryPrice float64 `json:"entry_price"`         // 入场价
}

// OrderTrackingEntry 单个订单的生命周期跟踪记录
type OrderTrackingEntry struct {
	OrderID   string `json:"order_id"`   // 订单ID
	Scrip     string `json:"scrip"`      // 标的代码
	Symbol    string `json:"symbol"`     // 标的名称
	Side      string `json:"side"`       // 方向
	OrderType string `json:"order_type"` // 订单类型

	OriginalQty  float64 `json:"original_qty"`             // 原始委托数量
	FilledQty    float64 `json:"filled_qty"`               // 已成交数量
	RemainingQty float64 `json:"remaining_qty"`            // 剩余数量
	LimitPrice   float64 `json:"limit_price,omitempty"`    // 限价
	AvgFillPrice float64 `json:"avg_fill_price,omitempty"` // 加权平均成交价

	StopLoss float64 `json:"stop_loss,omitempty"` // 止损价
	Target1  float64 `json:"target1,omitempty"`   // 第一目标价
	Target2  float64 `json:"target2,omitempty"`   // 第二目标价

	Status          string `json:"status"`                     // 当前状态
	RejectionReason string `json:"rejection_reason,omitempty"` // 拒绝原因

	SignalID   string `json:"signal_id,omitempty"`   // 来源信号ID
	WalletID   string `json:"wallet_id,omitempty"`   // 钱包ID
	PositionID string `json:"position_id,omitempty"` // 关联持仓ID

	MarginReserved float64 `json:"margin_reserved,omitempty"` // 预留保证金
	MarginUsed     float64 `json:"margin_used,omitempty"`     // 已用保证金
	RealizedPnl    float64 `json:"realized_pnl,omitempty"`    // 已实现盈亏
	UnrealizedPnl  float64 `json:"unrealized_pnl,omitempty"`  // 未实现盈亏

	CreatedAt time.Time  `json:"created_at"`          // 创建时间
	UpdatedAt time.Time  `json:"updated_at"`          // 最后更新时间
	FilledAt  *time.Time `json:"filled_at,omitempty"` // 全部成交时间
	ClosedAt  *time.Time `json:"closed_at,omitempty"` // 平仓时间
}

// OrderStatusEvent 一次状态转移的不可变记录，持久化最近100条，对外全量发布
type OrderStatusEvent struct {
	ID         string `json:"id"`                    // 事件ID
	OrderID    string `json:"order_id,omitempty"`    // 订单ID
	PositionID string `json:"position_id,omitempty"` // 持仓ID
	SignalID   string `json:"signal_id,omitempty"`   // 信号ID
	EventType  string `json:"event_type"`            // 事件类型

	Scrip  string `json:"scrip"`            // 标的代码
	Symbol string `json:"symbol,omitempty"` // 标的名称
	Side   string `json:"side,omitempty"`   // 方向

	Qty          float64 `json:"qty,omitempty"`           // 数量
	Price        float64 `json:"price,omitempty"`         // 价格
	FillPrice    float64 `json:"fill_price,omitempty"`    // 成交价
	TriggerPrice float64 `json:"trigger_price,omitempty"` // 触发价(SL/TP)
	Pnl          float64 `json:"pnl,omitempty"`           // 盈亏

	Reason    string    `json:"reason,omitempty"` // 附加原因(拒绝/平仓)
	Source    string    `json:"source,omitempty"` // 来源标记
	Timestamp time.Time `json:"timestamp"`        // 发生时间
}

// OrderCounts 订单聚合计数
type OrderCounts struct {
	Active    int64 `json:"active"`    // 活跃订单数
	Completed int64 `json:"completed"` // 已完结订单数
}
