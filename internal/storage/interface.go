package storage

import (
	"context"
	"time"

	"github.com/life2you_mini/tradecore/internal/models"
)

// 存储保留策略常量
const (
	// RetentionTTL 流水与完结订单的保留期
	RetentionTTL = 30 * 24 * time.Hour

	// MaxTransactionHistory 每个钱包保留的流水ID数量
	MaxTransactionHistory = 1000

	// MaxOrderEvents 每个订单持久化的事件数量上限
	MaxOrderEvents = 100
)

// WalletStore 定义钱包账本的持久化接口，可以有多种实现（Redis、PostgreSQL等）
type WalletStore interface {
	// GetWallet 按ID读取钱包，不存在时返回 (nil, nil)
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, error)

	// SaveWallet 整体写入钱包记录（读-改-写，不做字段级补丁）
	SaveWallet(ctx context.Context, wallet *models.Wallet) error

	// AppendTransaction 追加一条不可变流水并裁剪流水索引
	AppendTransaction(ctx context.Context, tx *models.WalletTransaction) error

	// RecentTransactions 按时间倒序返回最近的流水
	RecentTransactions(ctx context.Context, walletID string, limit int) ([]*models.WalletTransaction, error)

	// DeleteWallet 删除钱包（仅供测试/管理使用，生产路径不会调用）
	DeleteWallet(ctx context.Context, walletID string) error
}

// OrderStore 定义订单跟踪记录的持久化接口
type OrderStore interface {
	// GetOrder 按订单ID读取跟踪记录，不存在时返回 (nil, nil)
	GetOrder(ctx context.Context, orderID string) (*models.OrderTrackingEntry, error)

	// SaveOrder 整体写入跟踪记录并维护活跃/完结/信号索引集合
	SaveOrder(ctx context.Context, entry *models.OrderTrackingEntry) error

	// AppendEvent 追加一条状态事件，仅保留最近 MaxOrderEvents 条
	AppendEvent(ctx context.Context, orderID string, event *models.OrderStatusEvent) error

	// GetEvents 按时间顺序返回订单的全部已保留事件
	GetEvents(ctx context.Context, orderID string) ([]*models.OrderStatusEvent, error)

	// ActiveOrders 返回所有非终态订单
	ActiveOrders(ctx context.Context) ([]*models.OrderTrackingEntry, error)

	// OrdersBySignal 返回关联指定信号的全部订单
	OrdersBySignal(ctx context.Context, signalID string) ([]*models.OrderTrackingEntry, error)

	// Counts 返回活跃/完结订单的聚合计数
	Counts(ctx context.Context) (*models.OrderCounts, error)
}
