package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/tradecore/internal/mocks"
	"github.com/life2you_mini/tradecore/internal/models"
	"github.com/life2you_mini/tradecore/internal/tracker"
	"github.com/life2you_mini/tradecore/internal/wallet"
)

func newTestServer(t *testing.T, walletStore *mocks.MockWalletStore, orderStore *mocks.MockOrderStore) *Server {
	logger := zaptest.NewLogger(t)
	ledger := wallet.NewLedger(logger, walletStore, wallet.Defaults{
		Mode:           models.WalletModeVirtual,
		InitialCapital: 100000,
		RiskLimits:     models.DefaultRiskLimits(),
	})

	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	trk := tracker.NewTracker(logger, orderStore, publisher)

	return NewServer(logger, ledger, trk, ":0")
}

func existingWallet() *models.Wallet {
	capital := 100000.0
	return &models.Wallet{
		ID:              "w1",
		Mode:            models.WalletModeVirtual,
		InitialCapital:  capital,
		CurrentBalance:  capital,
		AvailableMargin: capital,
		TradingDate:     time.Now().Format("2006-01-02"),
		DayStartBalance: capital,
		RiskLimits:      models.DefaultRiskLimits(),
		PeakBalance:     capital,
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, new(mocks.MockWalletStore), new(mocks.MockOrderStore))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleGetWallet(t *testing.T) {
	walletStore := new(mocks.MockWalletStore)
	walletStore.On("GetWallet", mock.Anything, "w1").Return(existingWallet(), nil)

	s := newTestServer(t, walletStore, new(mocks.MockOrderStore))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/w1", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.Wallet
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "w1", got.ID)
	assert.Equal(t, 100000.0, got.CurrentBalance)
}

func TestHandleMarginCheck(t *testing.T) {
	walletStore := new(mocks.MockWalletStore)
	walletStore.On("GetWallet", mock.Anything, "w1").Return(existingWallet(), nil)

	s := newTestServer(t, walletStore, new(mocks.MockOrderStore))

	body := `{"required_margin": 25000, "open_positions": 2}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/w1/margin-check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result wallet.MarginCheckResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.OK)
	assert.Equal(t, wallet.ReasonMaxPositionSizePercent, result.Reason)
	assert.Contains(t, result.Message, "exceeds 20% of capital (max 20000)")
}

func TestHandleMarginCheck_请求体非法(t *testing.T) {
	s := newTestServer(t, new(mocks.MockWalletStore), new(mocks.MockOrderStore))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/w1/margin-check", strings.NewReader(`{"required_margin": -5}`))
	req.Header.Set("Content-Type", "application/json")
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetOrder_不存在返回404(t *testing.T) {
	orderStore := new(mocks.MockOrderStore)
	orderStore.On("GetOrder", mock.Anything, "ghost").Return(nil, nil)

	s := newTestServer(t, new(mocks.MockWalletStore), orderStore)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ghost", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleActiveOrders(t *testing.T) {
	orderStore := new(mocks.MockOrderStore)
	orderStore.On("ActiveOrders", mock.Anything).Return([]*models.OrderTrackingEntry{
		{OrderID: "ord-1", Scrip: "RELIANCE", Status: models.StatusFilled},
		{OrderID: "ord-2", Scrip: "TCS", Status: models.StatusCreated},
	}, nil)

	s := newTestServer(t, new(mocks.MockWalletStore), orderStore)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/active", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestHandleOrderStats(t *testing.T) {
	orderStore := new(mocks.MockOrderStore)
	orderStore.On("Counts", mock.Anything).Return(&models.OrderCounts{Active: 3, Completed: 7}, nil)

	s := newTestServer(t, new(mocks.MockWalletStore), orderStore)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/stats", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var counts models.OrderCounts
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, int64(3), counts.Active)
	assert.Equal(t, int64(7), counts.Completed)
}

func TestHandleGetTransactions_limit非法(t *testing.T) {
	s := newTestServer(t, new(mocks.MockWalletStore), new(mocks.MockOrderStore))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/w1/transactions?limit=abc", nil)
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
