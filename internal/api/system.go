package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/store"
)

// Health 健康检查
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	db := "disabled"
	if h.store != nil {
		ctx, cancel := h.withDeadline(c)
		defer cancel()
		db = "ok"
		if err := h.store.Ping(ctx); err != nil {
			status, db = "degraded", err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"sessions":  h.sessions.Len(),
		"downloads": h.downloads.len(),
		"database":  db,
		"version":   h.version,
	})
}

// importEntry 导入日志及其工作表识别结果
type importEntry struct {
	store.ImportLog
	Sheets []store.SheetMeta `json:"sheets"`
}

// ListImports 当前会话最近的导入日志
// GET /api/imports?limit=
func (h *Handler) ListImports(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "imports": []importEntry{}})
		return
	}

	limit := h.cfg.Upload.ImportLogLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n < limit {
		limit = n
	}
	ctx, cancel := h.withDeadline(c)
	defer cancel()

	logs, err := h.store.ListImportLogs(ctx, sess.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	entries := make([]importEntry, 0, len(logs))
	for _, l := range logs {
		metas, err := h.store.ListSheetMeta(ctx, l.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if metas == nil {
			metas = []store.SheetMeta{}
		}
		entries = append(entries, importEntry{ImportLog: l, Sheets: metas})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imports": entries})
}
