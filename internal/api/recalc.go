package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huuly01092003/Smart-bi/internal/metrics"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/analytics"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
	"github.com/huuly01092003/Smart-bi/internal/session"
	"github.com/huuly01092003/Smart-bi/internal/store"
)

// Recalculate 应用主参数与路线明细修改并重算；失败、超时或被取代的请求不改变会话数据
// POST /api/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	start := time.Now()

	var req recalc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body: %v", model.ErrInvalidChange, err))
		return
	}
	sess, err := h.currentSession(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ticket, err := begin(c, sess, session.ChannelRecalc)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout())
	defer cancel()

	var updated []string
	wb, err := sess.Update(ctx, ticket, func(cur *model.Workbook) (*model.Workbook, error) {
		res, err := h.engine.Apply(ctx, cur, req)
		if err != nil {
			return nil, err
		}
		updated = res.Updated
		return res.Workbook, nil
	})
	if err != nil {
		updated = nil
	}
	duration := time.Since(start)
	metrics.RecordRecalculation(duration, err)
	h.logRecalc(sess.ID, wb, req, updated, duration, err)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"success":      true,
		"version":      wb.Version,
		"masterParams": wb.Master,
		"balanceLoad":  wb.Balance,
		"updatedRows":  updated,
	}
	if ds, err := wb.Dataset(model.SheetRouteDetail); err == nil {
		resp["detailRows"] = ds.Records(ds.Rows)
		resp["summary"] = analytics.Summarize(ds.Rows, model.SheetRouteDetail, columns.Classify(ds.Type, ds.Columns))
	}
	c.JSON(http.StatusOK, resp)
}

// logRecalc 写日志并记录审计
func (h *Handler) logRecalc(sessionID string, wb *model.Workbook, req recalc.Request, updated []string, d time.Duration, err error) {
	entry := store.RecalcLog{
		SessionID:   sessionID,
		Changes:     len(req.Changes),
		Master:      req.MasterParams,
		UpdatedRows: updated,
		Status:      store.ImportSuccess,
		Duration:    d,
	}
	if wb != nil {
		entry.Version = wb.Version
	}
	if err != nil {
		entry.Status = store.ImportFailed
		entry.ErrorMessage = err.Error()
		log.Warn().Err(err).Str("session", sessionID).Int("changes", len(req.Changes)).Msg("recalculation rejected")
	} else {
		log.Info().Str("session", sessionID).Uint64("version", entry.Version).Int("rows", len(updated)).Dur("duration", d).Msg("recalculated")
	}

	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.InsertRecalcLog(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("failed to write recalc log")
	}
}
