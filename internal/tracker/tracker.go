package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/events"
	"github.com/life2you_mini/tradecore/internal/lock"
	"github.com/life2you_mini/tradecore/internal/metrics"
	"github.com/life2you_mini/tradecore/internal/models"
	"github.com/life2you_mini/tradecore/internal/storage"
)

// 事件来源标记
const eventSource = "order_tracker"

// Tracker 订单生命周期跟踪器。
// 对同一订单的变更通过按订单ID的互斥锁串行化，事件按到达顺序
// 应用与发布；乱序的部分成交不做重排，假定上游推送已排好序。
type Tracker struct {
	logger    *zap.Logger
	store     storage.OrderStore
	publisher events.Publisher
	locks     *lock.KeyedMutex
	now       func() time.Time
}

// NewTracker 创建新的订单跟踪器
func NewTracker(logger *zap.Logger, store storage.OrderStore, publisher events.Publisher) *Tracker {
	return &Tracker{
		logger:    logger.With(zap.String("component", "order_tracker")),
		store:     store,
		publisher: publisher,
		locks:     lock.NewKeyedMutex(),
		now:       time.Now,
	}
}

// TrackOrderCreated 记录订单创建，复制订单携带的风险价位，
// 写入CREATED状态记录并发布ORDER_CREATED事件
func (t *Tracker) TrackOrderCreated(ctx context.Context, order *models.Order, walletID string) (*models.OrderTrackingEntry, error) {
	unlock := t.locks.Lock(order.OrderID)
	defer unlock()

	now := t.now()
	entry := &models.OrderTrackingEntry{
		OrderID:      order.OrderID,
		Scrip:        order.Scrip,
		Symbol:       order.Symbol,
		Side:         order.Side,
		OrderType:    order.OrderType,
		OriginalQty:  order.Qty,
		RemainingQty: order.Qty,
		LimitPrice:   order.Price,
		StopLoss:     order.StopLoss,
		Target1:      order.Target1,
		Target2:      order.Target2,
		Status:       models.StatusCreated,
		SignalID:     order.SignalID,
		WalletID:     walletID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.save(ctx, entry)

	event := t.newEvent(entry, models.EventOrderCreated)
	event.Qty = order.Qty
	event.Price = order.Price
	t.appendAndPublish(ctx, entry.OrderID, event)

	t.logger.Info("订单已创建",
		zap.String("order_id", entry.OrderID),
		zap.String("scrip", entry.Scrip),
		zap.String("side", entry.Side),
		zap.Float64("qty", entry.OriginalQty))

	return entry, nil
}

// TrackOrderFilled 记录订单全部成交。找不到跟踪记录时告警并丢弃，
// 不重试：创建路径被假定为最终一致且通常先到。
func (t *Tracker) TrackOrderFilled(ctx context.Context, order *models.Order) {
	unlock := t.locks.Lock(order.OrderID)
	defer unlock()

	entry := t.load(ctx, order.OrderID, "order_filled")
	if entry == nil {
		return
	}

	now := t.now()
	entry.FilledQty = entry.OriginalQty
	entry.RemainingQty = 0
	entry.AvgFillPrice = order.FillPrice
	entry.Status = models.StatusFilled
	entry.FilledAt = &now
	entry.UpdatedAt = now

	t.save(ctx, entry)

	event := t.newEvent(entry, models.EventOrderFilled)
	event.Qty = entry.FilledQty
	event.FillPrice = order.FillPrice
	t.appendAndPublish(ctx, entry.OrderID, event)

	t.logger.Info("订单全部成交",
		zap.String("order_id", entry.OrderID),
		zap.Float64("fill_price", order.FillPrice))
}

// TrackPartialFill 记录一次部分成交并重算加权平均成交价。
// 剩余数量归零时状态转为FILLED，否则为PARTIALLY_FILLED。
func (t *Tracker) TrackPartialFill(ctx context.Context, order *models.Order, filledQty, fillPrice float64) {
	unlock := t.locks.Lock(order.OrderID)
	defer unlock()

	entry := t.load(ctx, order.OrderID, "partial_fill")
	if entry == nil {
		return
	}

	now := t.now()
	previousFilled := entry.FilledQty
	entry.AvgFillPrice = weightedAvgPrice(entry.AvgFillPrice, previousFilled, fillPrice, filledQty)

	newFilled := addQty(previousFilled, filledQty)
	if newFilled > entry.OriginalQty {
		// 上游超量推送，封顶保持 filled + remaining == original
		t.logger.Warn("累计成交数量超过原始委托数量，按原始数量封顶",
			zap.String("order_id", entry.OrderID),
			zap.Float64("reported_filled_qty", newFilled),
			zap.Float64("original_qty", entry.OriginalQty))
		newFilled = entry.OriginalQty
	}
	entry.FilledQty = newFilled
	entry.RemainingQty = subQty(entry.OriginalQty, newFilled)

	if entry.RemainingQty <= 0 {
		entry.RemainingQty = 0
		entry.Status = models.StatusFilled
		entry.FilledAt = &now
	} else {
		entry.Status = models.StatusPartiallyFilled
	}
	entry.UpdatedAt = now

	t.save(ctx, entry)

	event := t.newEvent(entry, models.EventOrderPartialFill)
	event.Qty = filledQty
	event.FillPrice = fillPrice
	t.appendAndPublish(ctx, entry.OrderID, event)

	t.logger.Info("部分成交",
		zap.String("order_id", entry.OrderID),
		zap.Float64("filled_qty", entry.FilledQty),
		zap.Float64("remaining_qty", entry.RemainingQty),
		zap.Float64("avg_fill_price", entry.AvgFillPrice))
}

// TrackOrderRejected 记录订单被拒绝。拒绝通知可能抢在创建写入之前到达，
// 此时从隐式UNKNOWN状态防御性地合成一条最小记录再转移到REJECTED。
func (t *Tracker) TrackOrderRejected(ctx context.Context, order *models.Order, reason string) {
	unlock := t.locks.Lock(order.OrderID)
	defer unlock()

	now := t.now()
	entry, err := t.store.GetOrder(ctx, order.OrderID)
	if err != nil {
		metrics.IncPersistenceFailure("order")
		t.logger.Error("读取订单跟踪记录失败", zap.String("order_id", order.OrderID), zap.Error(err))
	}
	if entry == nil {
		t.logger.Warn("拒绝通知先于创建写入到达，合成最小跟踪记录",
			zap.String("order_id", order.OrderID))
		entry = &models.OrderTrackingEntry{
			OrderID:      order.OrderID,
			Scrip:        order.Scrip,
			Symbol:       order.Symbol,
			Side:         order.Side,
			OrderType:    order.OrderType,
			OriginalQty:  order.Qty,
			RemainingQty: order.Qty,
			SignalID:     order.SignalID,
			Status:       models.StatusUnknown,
			CreatedAt:    now,
		}
	}

	entry.Status = models.StatusRejected
	entry.RejectionReason = reason
	entry.UpdatedAt = now

	t.save(ctx, entry)

	event := t.newEvent(entry, models.EventOrderRejected)
	event.Reason = reason
	t.appendAndPublish(ctx, entry.OrderID, event)

	t.logger.Info("订单被拒绝",
		zap.String("order_id", entry.OrderID),
		zap.String("reason", reason))
}

// TrackOrderCanceled 记录订单撤销
func (t *Tracker) TrackOrderCanceled(ctx context.Context, order *models.Order, reason string) {
	unlock := t.locks.Lock(order.OrderID)
	defer unlock()

	entry := t.load(ctx, order.OrderID, "order_canceled")
	if entry == nil {
		return
	}

	entry.Status = models.StatusCanceled
	entry.UpdatedAt = t.now()

	t.save(ctx, entry)

	event := t.newEvent(entry, models.EventOrderCanceled)
	event.Reason = reason
	t.appendAndPublish(ctx, entry.OrderID, event)

	t.logger.Info("订单已撤销",
		zap.String("order_id", entry.OrderID),
		zap.String("reason", reason))
}

// TrackPositionClosed 记录持仓平仓。若持仓携带信号ID，
// 将该信号下所有标的匹配的订单记录标记为CLOSED并写入事件；
// 无论是否命中订单记录，独立的POSITION_CLOSED事件总会持久化并发布。
func (t *Tracker) TrackPositionClosed(ctx context.Context, position *models.Position, exitPrice, pnl float64, exitReason string) {
	now := t.now()
	event := &models.OrderStatusEvent{
		ID:         uuid.NewString(),
		PositionID: position.PositionID,
		SignalID:   position.SignalID,
		EventType:  models.EventPositionClosed,
		Scrip:      position.Scrip,
		Symbol:     position.Symbol,
		Side:       position.Side,
		Qty:        position.Qty,
		Price:      exitPrice,
		Pnl:        pnl,
		Reason:     exitReason,
		Source:     eventSource,
		Timestamp:  now,
	}

	matched := 0
	if position.SignalID != "" {
		entries, err := t.store.OrdersBySignal(ctx, position.SignalID)
		if err != nil {
			metrics.IncPersistenceFailure("order")
			t.logger.Error("按信号查找订单失败",
				zap.String("signal_id", position.SignalID), zap.Error(err))
		}

		for _, candidate := range entries {
			if candidate.Scrip != position.Scrip {
				continue
			}

			unlock := t.locks.Lock(candidate.OrderID)

			// 集合快照在取锁前读出，可能已经过期，锁内重新读取最新记录再变更
			entry, err := t.store.GetOrder(ctx, candidate.OrderID)
			if err != nil {
				metrics.IncPersistenceFailure("order")
				t.logger.Error("读取订单跟踪记录失败",
					zap.String("order_id", candidate.OrderID), zap.Error(err))
				unlock()
				continue
			}
			if entry == nil {
				unlock()
				continue
			}

			entry.Status = models.StatusClosed
			entry.RealizedPnl = pnl
			entry.PositionID = position.PositionID
			entry.ClosedAt = &now
			entry.UpdatedAt = now

			t.save(ctx, entry)

			orderEvent := *event
			orderEvent.OrderID = entry.OrderID
			t.appendAndPublish(ctx, entry.OrderID, &orderEvent)

			unlock()
			matched++
		}
	}

	if matched == 0 {
		metrics.IncTrackingUpdateMiss("position_closed")
		t.logger.Warn("平仓事件未命中任何订单跟踪记录",
			zap.String("position_id", position.PositionID),
			zap.String("signal_id", position.SignalID),
			zap.String("scrip", position.Scrip))
	}

	// 独立事件无论是否命中订单都按持仓ID落盘并发布，保证审计可追溯
	if err := t.store.AppendEvent(ctx, position.PositionID, event); err != nil {
		metrics.IncPersistenceFailure("order_event")
		t.logger.Error("保存平仓事件失败",
			zap.String("position_id", position.PositionID), zap.Error(err))
	}
	t.publish(ctx, event)

	t.logger.Info("持仓已平仓",
		zap.String("position_id", position.PositionID),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", pnl),
		zap.String("exit_reason", exitReason),
		zap.Int("orders_closed", matched))
}

// TrackSlHit 记录止损触发。只记录与发布，不强制状态转移，
// 是否整体/部分平仓由持仓引擎决定。
func (t *Tracker) TrackSlHit(ctx context.Context, orderID, scrip string, triggerPrice, qty, pnl float64) {
	t.trackTrigger(ctx, orderID, scrip, models.EventSlHit, triggerPrice, qty, pnl)
}

// TrackTp1Hit 记录第一目标位触发
func (t *Tracker) TrackTp1Hit(ctx context.Context, orderID, scrip string, triggerPrice, qty, pnl float64) {
	t.trackTrigger(ctx, orderID, scrip, models.EventTp1Hit, triggerPrice, qty, pnl)
}

// GetOrder 按订单ID查询跟踪记录
func (t *Tracker) GetOrder(ctx context.Context, orderID string) (*models.OrderTrackingEntry, error) {
	return t.store.GetOrder(ctx, orderID)
}

// GetEvents 按时间顺序返回订单的全部已保留事件
func (t *Tracker) GetEvents(ctx context.Context, orderID string) ([]*models.OrderStatusEvent, error) {
	return t.store.GetEvents(ctx, orderID)
}

// ActiveOrders 返回所有非终态订单
func (t *Tracker) ActiveOrders(ctx context.Context) ([]*models.OrderTrackingEntry, error) {
	return t.store.ActiveOrders(ctx)
}

// OrdersBySignal 返回关联指定信号的全部订单
func (t *Tracker) OrdersBySignal(ctx context.Context, signalID string) ([]*models.OrderTrackingEntry, error) {
	return t.store.OrdersBySignal(ctx, signalID)
}

// Counts 返回活跃/完结订单的聚合计数
func (t *Tracker) Counts(ctx context.Context) (*models.OrderCounts, error) {
	return t.store.Counts(ctx)
}

// trackTrigger 记录一次SL/TP触发事件
func (t *Tracker) trackTrigger(ctx context.Context, orderID, scrip, eventType string, triggerPrice, qty, pnl float64) {
	unlock := t.locks.Lock(orderID)
	defer unlock()

	event := &models.OrderStatusEvent{
		ID:           uuid.NewString(),
		OrderID:      orderID,
		EventType:    eventType,
		Scrip:        scrip,
		Qty:          qty,
		TriggerPrice: triggerPrice,
		Pnl:          pnl,
		Source:       eventSource,
		Timestamp:    t.now(),
	}

	t.appendAndPublish(ctx, orderID, event)

	t.logger.Info("风险价位触发",
		zap.String("order_id", orderID),
		zap.String("event_type", eventType),
		zap.Float64("trigger_price", triggerPrice),
		zap.Float64("qty", qty),
		zap.Float64("pnl", pnl))
}

// load 读取订单跟踪记录，缺失时告警、计数并返回nil(调用方丢弃本次更新)
func (t *Tracker) load(ctx context.Context, orderID, operation string) *models.OrderTrackingEntry {
	entry, err := t.store.GetOrder(ctx, orderID)
	if err != nil {
		metrics.IncPersistenceFailure("order")
		t.logger.Error("读取订单跟踪记录失败",
			zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	if entry == nil {
		metrics.IncTrackingUpdateMiss(operation)
		t.logger.Warn("订单跟踪记录不存在，丢弃本次更新",
			zap.String("order_id", orderID),
			zap.String("operation", operation))
		return nil
	}
	return entry
}

// save 持久化跟踪记录。可用性优先：失败只记日志与指标，
// 已计算的内存状态照常生效。
func (t *Tracker) save(ctx context.Context, entry *models.OrderTrackingEntry) {
	if err := t.store.SaveOrder(ctx, entry); err != nil {
		metrics.IncPersistenceFailure("order")
		t.logger.Error("保存订单跟踪记录失败",
			zap.String("order_id", entry.OrderID),
			zap.String("status", entry.Status),
			zap.Error(err))
	}
}

// appendAndPublish 持久化事件并对外发布，两个失败路径都不向上抛
func (t *Tracker) appendAndPublish(ctx context.Context, orderID string, event *models.OrderStatusEvent) {
	if err := t.store.AppendEvent(ctx, orderID, event); err != nil {
		metrics.IncPersistenceFailure("order_event")
		t.logger.Error("保存状态事件失败",
			zap.String("order_id", orderID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
	t.publish(ctx, event)
}

// publish 发布事件，失败只记日志，绝不阻断记账热路径
func (t *Tracker) publish(ctx context.Context, event *models.OrderStatusEvent) {
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Error("发布状态事件失败",
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

// newEvent 基于跟踪记录构造事件骨架
func (t *Tracker) newEvent(entry *models.OrderTrackingEntry, eventType string) *models.OrderStatusEvent {
	return &models.OrderStatusEvent{
		ID:        uuid.NewString(),
		OrderID:   entry.OrderID,
		SignalID:  entry.SignalID,
		EventType: eventType,
		Scrip:     entry.Scrip,
		Symbol:    entry.Symbol,
		Side:      entry.Side,
		Source:    eventSource,
		Timestamp: t.now(),
	}
}

// weightedAvgPrice 重算加权平均成交价：
// avg' = (avg*prevFilled + fillPrice*delta) / (prevFilled+delta)，首笔成交直接取本次成交价
func weightedAvgPrice(avg, prevFilled, fillPrice, delta float64) float64 {
	if prevFilled <= 0 {
		return fillPrice
	}

	total := decimal.NewFromFloat(prevFilled).Add(decimal.NewFromFloat(delta))
	if total.IsZero() {
		return avg
	}

	weighted := decimal.NewFromFloat(avg).Mul(decimal.NewFromFloat(prevFilled)).
		Add(decimal.NewFromFloat(fillPrice).Mul(decimal.NewFromFloat(delta))).
		Div(total)

	result, _ := weighted.Float64()
	return result
}

func addQty(a, b float64) float64 {
	result, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return result
}

func subQty(a, b float64) float64 {
	result, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return result
}
