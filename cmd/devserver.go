package cmd

import (
	"github.com/spf13/cobra"

	"MeloFM/config"
	"MeloFM/logger"
	"MeloFM/server"
)

var devServerAddr string

var devServerCmd = &cobra.Command{
	Use:   "devserver",
	Short: "启动模拟目录后端",
	Long:  `启动一个模拟的目录服务器：提供下载/歌词/任务控制等接口，并在 /ws/progress 上推送事件，用于本地开发引擎。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:   logger.LogLevel(cfg.LogLevel),
			MaxSize: 100,
		})

		srv := server.NewDevServer(cfg)
		if err := srv.Start(devServerAddr); err != nil {
			logger.Fatal("dev backend failed", logger.ErrorField(err))
		}
	},
}

func init() {
	devServerCmd.Flags().StringVar(&devServerAddr, "addr", ":8000", "listen address")
	rootCmd.AddCommand(devServerCmd)
}
