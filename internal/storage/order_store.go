package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/models"
)

// RedisOrderStore 基于Redis的订单跟踪存储
type RedisOrderStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// NewRedisOrderStore 创建新的订单跟踪存储
func NewRedisOrderStore(client *redis.Client, logger *zap.Logger, keyPrefix string) *RedisOrderStore {
	return &RedisOrderStore{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// GetOrder 按订单ID读取跟踪记录，不存在时返回 (nil, nil)
func (s *RedisOrderStore) GetOrder(ctx context.Context, orderID string) (*models.OrderTrackingEntry, error) {
	data, err := s.client.Get(ctx, s.orderKey(orderID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("读取订单跟踪记录失败: %w", err)
	}

	var entry models.OrderTrackingEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("反序列化订单跟踪记录失败: %w", err)
	}

	return &entry, nil
}

// SaveOrder 整体写入跟踪记录并维护索引集合。
// 终态订单设置保留期TTL并从活跃集合移入完结集合。
func (s *RedisOrderStore) SaveOrder(ctx context.Context, entry *models.OrderTrackingEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化订单跟踪记录失败: %w", err)
	}

	// 创建管道以执行多个操作
	pipe := s.client.Pipeline()

	if models.IsTerminalStatus(entry.Status) {
		pipe.Set(ctx, s.orderKey(entry.OrderID), data, RetentionTTL)
		pipe.Expire(ctx, s.eventsKey(entry.OrderID), RetentionTTL)
		pipe.SRem(ctx, s.activeSetKey(), entry.OrderID)
		pipe.SAdd(ctx, s.completedSetKey(), entry.OrderID)
		pipe.Expire(ctx, s.completedSetKey(), RetentionTTL)
	} else {
		pipe.Set(ctx, s.orderKey(entry.OrderID), data, 0)
		pipe.SAdd(ctx, s.activeSetKey(), entry.OrderID)
	}

	// 更新信号→订单索引
	if entry.SignalID != "" {
		pipe.SAdd(ctx, s.signalSetKey(entry.SignalID), entry.OrderID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存订单跟踪记录失败: %w", err)
	}

	return nil
}

// AppendEvent 追加一条状态事件，仅保留最近 MaxOrderEvents 条
func (s *RedisOrderStore) AppendEvent(ctx context.Context, orderID string, event *models.OrderStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化状态事件失败: %w", err)
	}

	key := s.eventsKey(orderID)

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -MaxOrderEvents, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存状态事件失败: %w", err)
	}

	return nil
}

// GetEvents 按时间顺序返回订单的全部已保留事件
func (s *RedisOrderStore) GetEvents(ctx context.Context, orderID string) ([]*models.OrderStatusEvent, error) {
	values, err := s.client.LRange(ctx, s.eventsKey(orderID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取状态事件失败: %w", err)
	}

	events := make([]*models.OrderStatusEvent, 0, len(values))
	for _, value := range values {
		var event models.OrderStatusEvent
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			s.logger.Warn("反序列化状态事件失败，跳过",
				zap.String("order_id", orderID),
				zap.Error(err))
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

// ActiveOrders 返回所有非终态订单
func (s *RedisOrderStore) ActiveOrders(ctx context.Context) ([]*models.OrderTrackingEntry, error) {
	return s.ordersFromSet(ctx, s.activeSetKey())
}

// OrdersBySignal 返回关联指定信号的全部订单
func (s *RedisOrderStore) OrdersBySignal(ctx context.Context, signalID string) ([]*models.OrderTrackingEntry, error) {
	return s.ordersFromSet(ctx, s.signalSetKey(signalID))
}

// Counts 返回活跃/完结订单的聚合计数
func (s *RedisOrderStore) Counts(ctx context.Context) (*models.OrderCounts, error) {
	pipe := s.client.Pipeline()
	activeCmd := pipe.SCard(ctx, s.activeSetKey())
	completedCmd := pipe.SCard(ctx, s.completedSetKey())

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("读取订单计数失败: %w", err)
	}

	return &models.OrderCounts{
		Active:    activeCmd.Val(),
		Completed: completedCmd.Val(),
	}, nil
}

// 根据ID集合批量加载订单
func (s *RedisOrderStore) ordersFromSet(ctx context.Context, setKey string) ([]*models.OrderTrackingEntry, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("读取订单索引集合失败: %w", err)
	}

	entries := make([]*models.OrderTrackingEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.GetOrder(ctx, id)
		if err != nil {
			s.logger.Warn("读取订单跟踪记录失败，跳过", zap.String("order_id", id), zap.Error(err))
			continue
		}
		if entry == nil {
			// 记录已过期，索引滞留，忽略
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// 订单跟踪记录键
func (s *RedisOrderStore) orderKey(orderID string) string {
	return fmt.Sprintf("%sorder:%s", s.keyPrefix, orderID)
}

// 订单事件列表键
func (s *RedisOrderStore) eventsKey(orderID string) string {
	return fmt.Sprintf("%sorder:%s:events", s.keyPrefix, orderID)
}

// 活跃订单集合键
func (s *RedisOrderStore) activeSetKey() string {
	return fmt.Sprintf("%sorders:active", s.keyPrefix)
}

// 完结订单集合键
func (s *RedisOrderStore) completedSetKey() string {
	return fmt.Sprintf("%sorders:completed", s.keyPrefix)
}

// 信号→订单集合键
func (s *RedisOrderStore) signalSetKey(signalID string) string {
	return fmt.Sprintf("%sorders:signal:%s", s.keyPrefix, signalID)
}
