package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// 仅在 HTTP 层使用的错误
var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("too many uploads, retry later")
	errTooLarge    = errors.New("upload too large")
)

// statusFor 错误 → HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidUpload),
		errors.Is(err, model.ErrInvalidChange):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoSession),
		errors.Is(err, model.ErrSheetNotLoaded),
		errors.Is(err, model.ErrUnknownSheet):
		return http.StatusNotFound
	case errors.Is(err, model.ErrStaleRequest):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError 统一错误响应 {"success": false, "error": ...}
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}
