package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/importer"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/session"
)

// uploadRequest 一次上传的准备结果
type uploadRequest struct {
	sess    *session.Session
	created bool
	opts    importer.ImportOptions
}

// prepareUpload 限流、读取表单文件、登记请求序号
func (h *Handler) prepareUpload(c *gin.Context) (*uploadRequest, error) {
	if !h.limiter.Allow() {
		return nil, errRateLimited
	}

	maxBytes := int64(h.cfg.Upload.MaxSizeMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit %d MB", errTooLarge, h.cfg.Upload.MaxSizeMB)
		}
		return nil, fmt.Errorf("%w: invalid multipart form: %v", model.ErrInvalidUpload, err)
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var inputs []importer.Input
	for _, field := range fields {
		hint := importer.HintFromField(field)
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidUpload, fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidUpload, fh.Filename, err)
			}
			inputs = append(inputs, importer.Input{Filename: fh.Filename, Hint: hint, Data: data})
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", model.ErrInvalidUpload)
	}

	sess, created := h.sessions.Acquire(sessionID(c))
	ticket, err := begin(c, sess, session.ChannelUpload)
	if err != nil {
		if created {
			h.sessions.Remove(sess.ID)
		}
		return nil, err
	}
	master := h.cfg.Business.Master
	return &uploadRequest{
		sess:    sess,
		created: created,
		opts: importer.ImportOptions{
			SessionID: sess.ID,
			Files:     inputs,
			Master:    &master,
			Commit: func(ctx context.Context, wb *model.Workbook) (uint64, error) {
				return sess.Replace(ctx, ticket, wb)
			},
		},
	}, nil
}

// discard 导入失败时丢弃新建的空会话
func (h *Handler) discard(req *uploadRequest) {
	if req.created {
		h.sessions.Remove(req.sess.ID)
	}
}

// Upload 上传一个或多个文件并整体替换会话数据
// POST /api/upload
func (h *Handler) Upload(c *gin.Context) {
	req, err := h.prepareUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout())
	defer cancel()

	outcome, _, err := h.coordinator.Run(ctx, req.opts)
	if err != nil {
		h.discard(req)
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, req.sess.ID)
	c.JSON(http.StatusOK, uploadResponse(req.sess.ID, outcome))
}

// uploadResponse 上传成功的响应体
func uploadResponse(sessionID string, out *importer.Outcome) gin.H {
	wb := out.Workbook
	resp := gin.H{
		"success":      true,
		"sessionId":    sessionID,
		"importId":     out.ImportID,
		"version":      out.Version,
		"sheets":       out.Sheets,
		"report":       out.Reports,
		"warnings":     out.Warnings,
		"masterParams": wb.Master,
		"balanceLoad":  wb.Balance,
	}
	if ds, err := wb.Dataset(model.SheetRouteDetail); err == nil {
		resp["detailRows"] = ds.Records(ds.Rows)
	}
	return resp
}

// UploadStream 上传并以 SSE 推送导入进度
// POST /api/upload/stream
func (h *Handler) UploadStream(c *gin.Context) {
	req, err := h.prepareUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stream, err := openEventStream(c)
	if err != nil {
		h.discard(req)
		respondError(c, err)
		return
	}
	h.setSessionCookie(c, req.sess.ID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout())
	defer cancel()

	for event := range h.coordinator.Import(ctx, req.opts) {
		if event.Type == importer.EventError {
			h.discard(req)
		}
		if out, ok := event.Data.(*importer.Outcome); ok && event.Type == importer.EventDone {
			event.Data = uploadResponse(req.sess.ID, out)
		}
		stream.send(event.Type, event)
	}
}
