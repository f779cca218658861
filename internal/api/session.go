package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/filter"
	"github.com/huuly01092003/Smart-bi/internal/session"
)

// 会话与请求序号的传递方式
const (
	SessionCookie = "smartbi_session"
	SessionHeader = "X-Session-ID"
	SeqHeader     = "X-Request-Seq"
)

// sessionID 依次从请求头、Cookie、查询参数读取会话 ID
func sessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("session"))
}

// currentSession 已存在的会话
func (h *Handler) currentSession(c *gin.Context) (*session.Session, error) {
	return h.sessions.Get(sessionID(c))
}

// setSessionCookie 写回会话 Cookie 与响应头
func (h *Handler) setSessionCookie(c *gin.Context, id string) {
	maxAge := h.cfg.Session.TTLMinutes * 60
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, maxAge, "/", "", false, true)
	c.Header(SessionHeader, id)
}

// requestSeq 请求序号；未携带时为 0
func requestSeq(c *gin.Context) (uint64, error) {
	raw := strings.TrimSpace(c.GetHeader(SeqHeader))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("seq"))
	}
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, SeqHeader, raw)
	}
	return seq, nil
}

// begin 登记请求序号
func begin(c *gin.Context, s *session.Session, channel string) (session.Ticket, error) {
	seq, err := requestSeq(c)
	if err != nil {
		return session.Ticket{}, err
	}
	return s.Begin(channel, seq)
}

// parseSheet 解析路径中的工作表名
func parseSheet(c *gin.Context) (model.SheetType, error) {
	name := c.Param("sheet")
	t, ok := model.ParseSheetType(name)
	if !ok || !t.IsTable() {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownSheet, name)
	}
	return t, nil
}

// filterKey 筛选条件的缓存键（包含显式指定的匹配方式）
func filterKey(spec filter.Spec, override filter.Modes) string {
	active := spec.Active()
	var modes []string
	for field, m := range override {
		if _, ok := active[field]; ok {
			modes = append(modes, field+":"+string(m))
		}
	}
	sort.Strings(modes)
	return spec.Canonical() + "#" + strings.Join(modes, ",")
}
