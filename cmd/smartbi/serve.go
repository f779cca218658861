package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/huuly01092003/Smart-bi/internal/config"
	"github.com/huuly01092003/Smart-bi/internal/logging"
	"github.com/huuly01092003/Smart-bi/internal/server"
	"github.com/huuly01092003/Smart-bi/internal/util"
)

type serveFlags struct {
	port    int
	devMode bool
	dataDir string
	open    bool
	config  string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, f)
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&f.devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	cmd.Flags().BoolVar(&f.open, "open", false, "启动后打开浏览器")
	cmd.Flags().StringVar(&f.config, "config", "", "配置文件路径 (默认为可执行文件目录下的 config.toml)")
	return cmd
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	cfg, info, err := loadConfig(f.config)
	if err != nil {
		return err
	}

	// 命令行参数覆盖配置
	if f.port > 0 && !info.PortSpecified {
		cfg.Server.Port = f.port
	}
	if f.devMode {
		cfg.Server.DevMode = true
	}
	if f.dataDir != "" {
		cfg.Data.DataDir = f.dataDir
	}

	logging.Init(cfg.Logging())
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info().Str("config", info.Path).Bool("found", info.FileFound).Msg("config loaded")

	srv, err := server.Open(cfg, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if f.open {
		url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		if cfg.Server.DevMode && cfg.Server.FrontendURL != "" {
			url = cfg.Server.FrontendURL
		}
		if err := util.OpenBrowserWithFallback(url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("无法自动打开浏览器，请手动访问")
		}
	}
	return srv.Run(ctx)
}

func loadConfig(path string) (*config.AppConfig, config.LoadConfigInfo, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfigWithInfo()
}
