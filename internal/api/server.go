package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/tracker"
	"github.com/life2you_mini/tradecore/internal/wallet"
)

// 流水查询的默认与最大条数
const (
	defaultTxLimit = 50
	maxTxLimit     = 1000
)

// Server 查询与管理HTTP服务，只暴露只读查询和少量管理操作，
// 下单/成交路径不走HTTP，由进程内直接调用账本与跟踪器。
type Server struct {
	logger  *zap.Logger
	ledger  *wallet.Ledger
	tracker *tracker.Tracker
	server  *http.Server
}

// NewServer 创建新的HTTP服务
func NewServer(logger *zap.Logger, ledger *wallet.Ledger, trk *tracker.Tracker, listenAddr string) *Server {
	s := &Server{
		logger:  logger.With(zap.String("component", "api_server")),
		ledger:  ledger,
		tracker: trk,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/wallets/:id", s.handleGetWallet)
		v1.GET("/wallets/:id/transactions", s.handleGetTransactions)
		v1.POST("/wallets/:id/margin-check", s.handleMarginCheck)
		v1.POST("/wallets/:id/circuit-breaker/reset", s.handleResetBreaker)

		v1.GET("/orders/active", s.handleActiveOrders)
		v1.GET("/orders/stats", s.handleOrderStats)
		v1.GET("/orders/:id", s.handleGetOrder)
		v1.GET("/orders/:id/events", s.handleGetOrderEvents)

		v1.GET("/signals/:id/orders", s.handleOrdersBySignal)
	}

	s.server = &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start 启动HTTP服务，阻塞直到服务退出
func (s *Server) Start() error {
	s.logger.Info("HTTP服务启动", zap.String("listen_addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP服务关闭中")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetWallet(c *gin.Context) {
	w, err := s.ledger.GetWalletSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleGetTransactions(c *gin.Context) {
	limit := defaultTxLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit必须为正整数"})
			return
		}
		limit = parsed
	}
	if limit > maxTxLimit {
		limit = maxTxLimit
	}

	txs, err := s.ledger.RecentTransactions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// marginCheckRequest 保证金准入检查请求体
type marginCheckRequest struct {
	RequiredMargin float64 `json:"required_margin" binding:"required,gt=0"` // 请求占用的保证金
	OpenPositions  int     `json:"open_positions"`                          // 当前持仓数
}

func (s *Server) handleMarginCheck(c *gin.Context) {
	var req marginCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.ledger.CheckMarginAvailable(c.Request.Context(), c.Param("id"), req.RequiredMargin, req.OpenPositions)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleResetBreaker(c *gin.Context) {
	w, err := s.ledger.ResetCircuitBreaker(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handleActiveOrders(c *gin.Context) {
	orders, err := s.tracker.ActiveOrders(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Server) handleOrderStats(c *gin.Context) {
	counts, err := s.tracker.Counts(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	entry, err := s.tracker.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "订单不存在"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleGetOrderEvents(c *gin.Context) {
	events, err := s.tracker.GetEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) handleOrdersBySignal(c *gin.Context) {
	orders, err := s.tracker.OrdersBySignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Error("请求处理失败",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}
