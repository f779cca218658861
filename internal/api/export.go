package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huuly01092003/Smart-bi/internal/exporter"
	"github.com/huuly01092003/Smart-bi/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Download 直接下载当前会话数据（含重算结果）
// GET /api/download
func (h *Handler) Download(c *gin.Context) {
	wb, err := h.sessionWorkbook(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.withDeadline(c)
	defer cancel()
	f, err := h.exporter.Export(ctx, wb, exporter.ExportOptions{})
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", exporter.ContentDisposition(exporter.Filename(wb.Version, time.Now())))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("failed to write export")
	}
}

// exportEvent 导出进度 SSE 事件
type exportEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Export 导出到数据目录并返回一次性下载地址
// POST /api/export
func (h *Handler) Export(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		respondError(c, err)
		return
	}
	wb, err := sess.Workbook()
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout())
	defer cancel()
	link, err := h.exportToFile(ctx, sess.ID, wb, exporter.ExportOptions{})
	if err != nil {
		respondError(c, err)
		return
	}
	link["success"] = true
	c.JSON(http.StatusOK, link)
}

// ExportStream 导出并以 SSE 推送每个工作表的进度，完成后给出一次性下载地址
// POST /api/export/stream
func (h *Handler) ExportStream(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		respondError(c, err)
		return
	}
	wb, err := sess.Workbook()
	if err != nil {
		respondError(c, err)
		return
	}
	stream, err := openEventStream(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stream.send("start", exportEvent{
		Type:      "start",
		Message:   "export started",
		Data:      gin.H{"version": wb.Version, "sheets": wb.Sheets()},
		Timestamp: time.Now(),
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout())
	defer cancel()
	link, err := h.exportToFile(ctx, sess.ID, wb, exporter.ExportOptions{
		Progress: func(p exporter.ProgressEvent) {
			stream.send("progress", exportEvent{Type: "progress", Message: p.Stage, Data: p, Timestamp: time.Now()})
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("streamed export failed")
		stream.send("error", exportEvent{
			Type:      "error",
			Message:   "export failed: " + err.Error(),
			Data:      gin.H{"status": statusFor(err)},
			Timestamp: time.Now(),
		})
		return
	}
	link["percent"] = 100
	stream.send("done", exportEvent{Type: "done", Message: "export finished", Data: link, Timestamp: time.Now()})
}

// exportToFile 导出工作簿到数据目录并登记一次性下载令牌
func (h *Handler) exportToFile(ctx context.Context, sessionID string, wb *model.Workbook, opts exporter.ExportOptions) (gin.H, error) {
	f, err := h.exporter.Export(ctx, wb, opts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := h.exportDir
	if dir == "" {
		dir = os.TempDir()
	}
	filename := exporter.Filename(wb.Version, time.Now())
	path := filepath.Join(dir, fmt.Sprintf("%s-%s", sessionID, filename))
	if err := f.SaveAs(path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	ttl := time.Duration(h.cfg.Session.DownloadTTLSecs) * time.Second
	token := h.downloads.put(exportDownload{filePath: path, filename: filename, sessionID: sessionID}, ttl)
	return gin.H{
		"filename":    filename,
		"downloadUrl": "/api/export/download/" + token,
		"expiresIn":   int(ttl.Seconds()),
	}, nil
}

// DownloadExport 下载导出文件（一次性）
// GET /api/export/download/:token
func (h *Handler) DownloadExport(c *gin.Context) {
	item, ok := h.downloads.take(c.Param("token"))
	if !ok {
		respondError(c, fmt.Errorf("download link expired: %w", model.ErrSheetNotLoaded))
		return
	}
	defer os.Remove(item.filePath)

	if _, err := os.Stat(item.filePath); err != nil {
		respondError(c, fmt.Errorf("export file missing: %w", model.ErrSheetNotLoaded))
		return
	}
	c.Header("Content-Disposition", exporter.ContentDisposition(item.filename))
	c.Header("Content-Type", xlsxContentType)
	c.File(item.filePath)
}

// sessionWorkbook 当前会话的工作簿
func (h *Handler) sessionWorkbook(c *gin.Context) (*model.Workbook, error) {
	sess, err := h.currentSession(c)
	if err != nil {
		return nil, err
	}
	return sess.Workbook()
}
