package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/tradecore/internal/config"
	"github.com/life2you_mini/tradecore/internal/services"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 启动阶段的临时日志器，正式日志器由服务按配置创建
	bootLogger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("初始化启动日志失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLogger.Fatal("加载配置失败", zap.String("config_path", *configPath), zap.Error(err))
	}

	service, err := services.New(cfg)
	if err != nil {
		bootLogger.Fatal("初始化服务失败", zap.Error(err))
	}

	if err := service.Start(); err != nil {
		bootLogger.Fatal("启动服务失败", zap.Error(err))
	}

	// 等待退出信号或HTTP服务异常
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		bootLogger.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-service.APIError():
		bootLogger.Error("HTTP服务异常", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Stop(ctx); err != nil {
		bootLogger.Error("关闭服务失败", zap.Error(err))
		os.Exit(1)
	}
}
