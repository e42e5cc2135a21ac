package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/tradecore/internal/models"
)

// MockWalletStore 钱包存储的mock实现
type MockWalletStore struct {
	mock.Mock
}

func (m *MockWalletStore) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	args := m.Called(ctx, walletID)
	if w := args.Get(0); w != nil {
		return w.(*models.Wallet), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWalletStore) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *MockWalletStore) AppendTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockWalletStore) RecentTransactions(ctx context.Context, walletID string, limit int) ([]*models.WalletTransaction, error) {
	args := m.Called(ctx, walletID, limit)
	if txs := args.Get(0); txs != nil {
		return txs.([]*models.WalletTransaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWalletStore) DeleteWallet(ctx context.Context, walletID string) error {
	args := m.Called(ctx, walletID)
	return args.Error(0)
}

// MockOrderStore 订单存储的mock实现
type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetOrder(ctx context.Context, orderID string) (*models.OrderTrackingEntry, error) {
	args := m.Called(ctx, orderID)
	if entry := args.Get(0); entry != nil {
		return entry.(*models.OrderTrackingEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) SaveOrder(ctx context.Context, entry *models.OrderTrackingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOrderStore) AppendEvent(ctx context.Context, orderID string, event *models.OrderStatusEvent) error {
	args := m.Called(ctx, orderID, event)
	return args.Error(0)
}

func (m *MockOrderStore) GetEvents(ctx context.Context, orderID string) ([]*models.OrderStatusEvent, error) {
	args := m.Called(ctx, orderID)
	if events := args.Get(0); events != nil {
		return events.([]*models.OrderStatusEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) ActiveOrders(ctx context.Context) ([]*models.OrderTrackingEntry, error) {
	args := m.Called(ctx)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.OrderTrackingEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) OrdersBySignal(ctx context.Context, signalID string) ([]*models.OrderTrackingEntry, error) {
	args := m.Called(ctx, signalID)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.OrderTrackingEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) Counts(ctx context.Context) (*models.OrderCounts, error) {
	args := m.Called(ctx)
	if counts := args.Get(0); counts != nil {
		return counts.(*models.OrderCounts), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPublisher 事件发布器的mock实现
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *models.OrderStatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
