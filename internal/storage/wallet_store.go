package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/models"
)

// RedisWalletStore 基于Redis的钱包账本存储
type RedisWalletStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// NewRedisWalletStore 创建新的钱包存储
func NewRedisWalletStore(client *redis.Client, logger *zap.Logger, keyPrefix string) *RedisWalletStore {
	return &RedisWalletStore{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// GetWallet 按ID读取钱包，不存在时返回 (nil, nil)
func (s *RedisWalletStore) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	data, err := s.client.Get(ctx, s.walletKey(walletID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("读取钱包失败: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("反序列化钱包数据失败: %w", err)
	}

	return &wallet, nil
}

// SaveWallet 整体写入钱包记录
func (s *RedisWalletStore) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("序列化钱包数据失败: %w", err)
	}

	// 钱包记录生产环境不删除，不设置TTL
	if err := s.client.Set(ctx, s.walletKey(wallet.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("保存钱包失败: %w", err)
	}

	return nil
}

// AppendTransaction 追加一条不可变流水：流水本体带TTL，
// 同时把流水ID推入按钱包维度裁剪的索引列表
func (s *RedisWalletStore) AppendTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("序列化流水数据失败: %w", err)
	}

	listKey := s.txListKey(tx.WalletID)

	// 创建管道以执行多个操作
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.txKey(tx.ID), data, RetentionTTL)
	pipe.LPush(ctx, listKey, tx.ID)
	pipe.LTrim(ctx, listKey, 0, MaxTransactionHistory-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存流水失败: %w", err)
	}

	return nil
}

// RecentTransactions 按时间倒序返回最近的流水
func (s *RedisWalletStore) RecentTransactions(ctx context.Context, walletID string, limit int) ([]*models.WalletTransaction, error) {
	if limit <= 0 || limit > MaxTransactionHistory {
		limit = MaxTransactionHistory
	}

	ids, err := s.client.LRange(ctx, s.txListKey(walletID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取流水索引失败: %w", err)
	}

	if len(ids) == 0 {
		return []*models.WalletTransaction{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.txKey(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("读取流水失败: %w", err)
	}

	transactions := make([]*models.WalletTransaction, 0, len(values))
	for i, value := range values {
		if value == nil {
			// 流水本体已过TTL，索引仍在，跳过
			continue
		}

		str, ok := value.(string)
		if !ok {
			continue
		}

		var tx models.WalletTransaction
		if err := json.Unmarshal([]byte(str), &tx); err != nil {
			s.logger.Warn("反序列化流水失败，跳过",
				zap.String("wallet_id", walletID),
				zap.String("tx_id", ids[i]),
				zap.Error(err))
			continue
		}
		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

// DeleteWallet 删除钱包及其流水索引（仅供测试/管理使用）
func (s *RedisWalletStore) DeleteWallet(ctx context.Context, walletID string) error {
	return s.client.Del(ctx, s.walletKey(walletID), s.txListKey(walletID)).Err()
}

// 钱包记录键
func (s *RedisWalletStore) walletKey(walletID string) string {
	return fmt.Sprintf("%swallet:%s", s.keyPrefix, walletID)
}

// 钱包流水索引列表键
func (s *RedisWalletStore) txListKey(walletID string) string {
	return fmt.Sprintf("%swallet:%s:transactions", s.keyPrefix, walletID)
}

// 流水记录键
func (s *RedisWalletStore) txKey(txID string) string {
	return fmt.Sprintf("%stransaction:%s", s.keyPrefix, txID)
}
