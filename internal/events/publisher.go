package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/metrics"
	"github.com/life2you_mini/tradecore/internal/models"
)

// Publisher 订单状态事件的对外发布接口
type Publisher interface {
	// Publish 将事件发布到按标的代码分片的外部通道
	Publish(ctx context.Context, event *models.OrderStatusEvent) error
}

// RedisPublisher 基于Redis Pub/Sub的事件发布器，
// 通道按标的代码分片，供行情面板/分析端订阅
type RedisPublisher struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// NewRedisPublisher 创建新的事件发布器
func NewRedisPublisher(client *redis.Client, logger *zap.Logger, keyPrefix string) *RedisPublisher {
	return &RedisPublisher{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// Publish 发布事件。下游不可用绝不能阻塞记账热路径，
// 因此调用方对返回错误只记日志，不向上抛。
func (p *RedisPublisher) Publish(ctx context.Context, event *models.OrderStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化状态事件失败: %w", err)
	}

	channel := p.channelKey(event.Scrip)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		metrics.IncEventPublishFailure(event.EventType)
		return fmt.Errorf("发布状态事件失败: %w", err)
	}

	metrics.IncEventPublished(event.EventType)
	p.logger.Debug("状态事件已发布",
		zap.String("channel", channel),
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID))

	return nil
}

// 事件通道键，按标的代码分片
func (p *RedisPublisher) channelKey(scrip string) string {
	return fmt.Sprintf("%sevents:%s", p.keyPrefix, scrip)
}
