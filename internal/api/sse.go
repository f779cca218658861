package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// eventStream SSE 写出器
type eventStream struct {
	c       *gin.Context
	flusher http.Flusher
}

// openEventStream 写出 SSE 响应头；响应不支持 flush 时返回错误且不写任何内容
func openEventStream(c *gin.Context) (*eventStream, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &eventStream{c: c, flusher: flusher}, nil
}

// send 以 `data: {json}\n\n` 写出一个事件
func (s *eventStream) send(kind string, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("type", kind).Msg("failed to encode progress event")
		return
	}
	fmt.Fprintf(s.c.Writer, "data: %s\n\n", b)
	s.flusher.Flush()
}
