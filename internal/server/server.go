package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/huuly01092003/Smart-bi/internal/api"
	"github.com/huuly01092003/Smart-bi/internal/config"
	"github.com/huuly01092003/Smart-bi/internal/metrics"
	"github.com/huuly01092003/Smart-bi/internal/session"
	"github.com/huuly01092003/Smart-bi/internal/store"
)

// Server HTTP服务器
type Server struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
}

// Options 服务器依赖
type Options struct {
	Store     *store.Store // 可为 nil
	ExportDir string
	Version   string
}

// Open 准备数据目录、打开审计库并创建服务器
func Open(cfg *config.AppConfig, version string) (*Server, error) {
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data dir: %w", err)
	}
	st, err := store.New(config.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return New(cfg, Options{
		Store:     st,
		ExportDir: filepath.Join(dataDir, "exports"),
		Version:   version,
	}), nil
}

// New 创建服务器
func New(cfg *config.AppConfig, opts Options) *Server {
	sessions := session.NewManager(session.Options{
		TTL:      time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		MaxViews: cfg.Session.MaxCachedViews,
	})
	s := &Server{
		cfg:      cfg,
		router:   gin.New(),
		store:    opts.Store,
		sessions: sessions,
	}

	handler := api.NewHandler(api.Deps{
		Config:    cfg,
		Sessions:  sessions,
		Store:     opts.Store,
		ExportDir: opts.ExportDir,
		Version:   opts.Version,
	})
	s.setupRoutes(handler)
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(h *api.Handler) {
	s.router.Use(gin.Recovery(), requestLogger(), requestMetrics(), cors())

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.RegisterRoutes(s.router.Group("/api"))

	if s.cfg.Server.DevMode && s.cfg.Server.FrontendURL != "" {
		// 开发模式：页面交给前端开发服务器
		frontend := strings.TrimRight(s.cfg.Server.FrontendURL, "/")
		s.router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
				return
			}
			c.Redirect(http.StatusTemporaryRedirect, frontend+c.Request.URL.RequestURI())
		})
	}
}

// cors 跨域
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+api.SessionHeader+", "+api.SeqHeader)
		c.Header("Access-Control-Expose-Headers", api.SessionHeader+", Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger 请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = log.Error()
		case status >= http.StatusBadRequest:
			evt = log.Warn()
		}
		if sid := c.Writer.Header().Get(api.SessionHeader); sid != "" {
			evt = evt.Str("session", sid)
		} else if sid := c.GetHeader(api.SessionHeader); sid != "" {
			evt = evt.Str("session", sid)
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Msg("request")
	}
}

// requestMetrics 请求指标，按路由模板聚合
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions 会话管理器
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Addr 监听地址
func (s *Server) Addr() string {
	return ":" + strconv.Itoa(s.cfg.Server.Port)
}

// Run 在监督树中运行 HTTP 服务与会话清理，ctx 取消后返回
func (s *Server) Run(ctx context.Context) error {
	shutdown := time.Duration(s.cfg.Server.ShutdownSeconds) * time.Second
	httpSrv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := newSupervisor("smartbi", shutdown)
	sup.Add(NewHTTPService(httpSrv, shutdown))
	sup.Add(session.NewJanitor(s.sessions, time.Duration(s.cfg.Session.SweepSeconds)*time.Second))

	log.Info().Str("addr", httpSrv.Addr).Bool("dev", s.cfg.Server.DevMode).Msg("server started")
	err := sup.Serve(ctx)
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close database")
		}
	}
	if err != nil && ctx.Err() != nil {
		log.Info().Msg("server stopped")
		return nil
	}
	return err
}
