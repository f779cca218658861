package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/huuly01092003/Smart-bi/internal/config"
	"github.com/huuly01092003/Smart-bi/internal/exporter"
	"github.com/huuly01092003/Smart-bi/internal/importer"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
	"github.com/huuly01092003/Smart-bi/internal/session"
	"github.com/huuly01092003/Smart-bi/internal/store"
)

// Deps 处理器依赖
type Deps struct {
	Config    *config.AppConfig
	Sessions  *session.Manager
	Store     *store.Store // 可为 nil（不记录审计日志）
	ExportDir string
	Version   string
}

// Handler API 处理器
type Handler struct {
	cfg         *config.AppConfig
	sessions    *session.Manager
	store       *store.Store
	coordinator *importer.Coordinator
	engine      *recalc.Engine
	exporter    *exporter.Exporter
	downloads   *downloadStore
	limiter     *rate.Limiter
	exportDir   string
	version     string
}

// NewHandler 创建 API 处理器
func NewHandler(d Deps) *Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	perSecond := rate.Limit(cfg.Upload.RatePerMinute / 60)
	return &Handler{
		cfg:         cfg,
		sessions:    d.Sessions,
		store:       d.Store,
		coordinator: importer.NewCoordinator(d.Store, cfg.Business.Classes),
		engine:      recalc.NewEngine(),
		exporter:    exporter.NewExporter(),
		downloads:   newDownloadStore(),
		limiter:     rate.NewLimiter(perSecond, cfg.Upload.Burst),
		exportDir:   d.ExportDir,
		version:     d.Version,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/health", h.Health)
	router.GET("/imports", h.ListImports)

	// 上传
	router.POST("/upload", h.Upload)
	router.POST("/upload/stream", h.UploadStream)

	// 数据查询
	router.GET("/sheets", h.ListSheets)
	router.GET("/data/:sheet", h.GetData)
	router.GET("/sheet/:sheet", h.GetSheet)
	router.GET("/filter/:sheet", h.FilterRows)
	router.GET("/analytics/:sheet", h.GetAnalytics)
	router.GET("/charts/:sheet", h.GetCharts)
	router.GET("/view/:sheet", h.GetView)
	router.GET("/map_data", h.MapData)

	// 重算
	router.POST("/recalculate", h.Recalculate)

	// 导出
	router.GET("/download", h.Download)
	router.POST("/export", h.Export)
	router.POST("/export/stream", h.ExportStream)
	router.GET("/export/download/:token", h.DownloadExport)
}

func (h *Handler) requestTimeout() time.Duration {
	return time.Duration(h.cfg.Server.RequestTimeoutSeconds) * time.Second
}

func (h *Handler) uploadTimeout() time.Duration {
	return time.Duration(h.cfg.Server.UploadTimeoutSeconds) * time.Second
}
