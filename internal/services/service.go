package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/api"
	"github.com/life2you_mini/tradecore/internal/config"
	"github.com/life2you_mini/tradecore/internal/events"
	"github.com/life2you_mini/tradecore/internal/logger"
	"github.com/life2you_mini/tradecore/internal/models"
	"github.com/life2you_mini/tradecore/internal/storage"
	"github.com/life2you_mini/tradecore/internal/tracker"
	"github.com/life2you_mini/tradecore/internal/wallet"
)

// Service 交易核心服务，负责组装并管理账本、跟踪器与查询API的生命周期
type Service struct {
	cfg    *config.Config
	logger *logger.Logger

	redisClient *redis.Client
	ledger      *wallet.Ledger
	tracker     *tracker.Tracker
	apiServer   *api.Server

	apiErr chan error
}

// New 组装交易核心服务
func New(cfg *config.Config) (*Service, error) {
	log, err := logger.NewLogger(cfg.System.LogDir, cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	client, err := storage.NewRedisClient(storage.ClientOptions{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}

	walletStore := storage.NewRedisWalletStore(client, log.Logger, cfg.Redis.KeyPrefix)
	orderStore := storage.NewRedisOrderStore(client, log.Logger, cfg.Redis.KeyPrefix)
	publisher := events.NewRedisPublisher(client, log.Logger, cfg.Redis.KeyPrefix)

	ledger := wallet.NewLedger(log.Logger, walletStore, wallet.Defaults{
		Mode:           cfg.Wallet.Mode,
		InitialCapital: cfg.Wallet.InitialCapital,
		RiskLimits: models.RiskLimits{
			MaxDailyLoss:           cfg.Wallet.MaxDailyLoss,
			MaxDailyLossPercent:    cfg.Wallet.MaxDailyLossPercent,
			MaxDrawdown:            cfg.Wallet.MaxDrawdown,
			MaxDrawdownPercent:     cfg.Wallet.MaxDrawdownPercent,
			MaxOpenPositions:       cfg.Wallet.MaxOpenPositions,
			MaxPositionSize:        cfg.Wallet.MaxPositionSize,
			MaxPositionSizePercent: cfg.Wallet.MaxPositionSizePercent,
		},
	})

	trk := tracker.NewTracker(log.Logger, orderStore, publisher)

	s := &Service{
		cfg:         cfg,
		logger:      log,
		redisClient: client,
		ledger:      ledger,
		tracker:     trk,
		apiErr:      make(chan error, 1),
	}

	if cfg.API.Enabled {
		s.apiServer = api.NewServer(log.Logger, ledger, trk, cfg.API.ListenAddr)
	}

	return s, nil
}

// Start 启动服务，API启用时在独立goroutine中运行HTTP服务
func (s *Service) Start() error {
	s.logger.Info("交易核心服务启动",
		zap.String("wallet_mode", s.cfg.Wallet.Mode),
		zap.Bool("api_enabled", s.cfg.API.Enabled))

	if s.apiServer != nil {
		go func() {
			if err := s.apiServer.Start(); err != nil {
				s.logger.Error("HTTP服务异常退出", zap.Error(err))
				s.apiErr <- err
			}
		}()
	}

	return nil
}

// Stop 优雅关闭服务，先停HTTP再断开Redis
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("交易核心服务关闭中")

	if s.apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.apiServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP服务关闭失败", zap.Error(err))
		}
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("关闭Redis连接失败", zap.Error(err))
	}

	s.logger.Info("交易核心服务已停止")
	_ = s.logger.Sync()
	return nil
}

// Ledger 暴露钱包账本，供进程内下单/持仓协作方直接调用
func (s *Service) Ledger() *wallet.Ledger {
	return s.ledger
}

// Tracker 暴露订单跟踪器
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// APIError 返回HTTP服务异常退出的通知通道
func (s *Service) APIError() <-chan error {
	return s.apiErr
}
