package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MeloFM/cache"
	"MeloFM/config"
	"MeloFM/core/api"
	"MeloFM/core/channel"
	"MeloFM/core/library"
	"MeloFM/core/player"
	"MeloFM/core/progress"
	"MeloFM/logger"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "启动播放编排引擎",
	Long:  `连接目录服务器的推送通道，维护任务进度注册表和资料库镜像，等待播放指令。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})

		// 列表缓存可选；Redis 不可用时引擎照常运行
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("redis unavailable, listing cache disabled", logger.ErrorField(err))
		}
		defer cache.CloseRedis()

		apiClient := api.NewClient(cfg.ServerURL)
		lib := library.NewStore(apiClient)
		registry := progress.NewRegistry()
		defer registry.Close()
		pl := player.NewPlayer(apiClient, nil, cfg.DefaultVolume)

		ch, err := channel.New(cfg.ServerURL, cfg.WSPath, channel.LogNotifier{}, registry, pl, lib)
		if err != nil {
			logger.Fatal("push channel setup failed", logger.ErrorField(err))
		}
		if err := ch.Connect(); err != nil {
			// 重连策略会继续尝试
			logger.Warn("initial connect failed", logger.ErrorField(err))
		}
		defer ch.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		lib.LoadCached(ctx)
		if err := lib.Refresh(ctx); err != nil {
			logger.Warn("initial library refresh failed", logger.ErrorField(err))
		}
		cancel()

		logger.Info("engine running", logger.String("server", cfg.ServerURL))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("engine shutting down")
	},
}

func init() {
	rootCmd.AddCommand(engineCmd)
}
