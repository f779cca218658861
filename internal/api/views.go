package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/analytics"
	"github.com/huuly01092003/Smart-bi/internal/service/chart"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
	"github.com/huuly01092003/Smart-bi/internal/service/filter"
	"github.com/huuly01092003/Smart-bi/internal/service/table"
	"github.com/huuly01092003/Smart-bi/internal/session"
)

// 派生视图类型
const (
	viewData      = "data"
	viewSheet     = "sheet"
	viewFilter    = "filter"
	viewAnalytics = "analytics"
	viewCharts    = "charts"
	viewTable     = "view"
	viewMap       = "map"
)

// sheetScope 单次视图请求的上下文
type sheetScope struct {
	sess    *session.Session
	ticket  session.Ticket
	sheet   model.SheetType
	version uint64
	wb      *model.Workbook // 与 version 对应的快照
	ds      *model.Dataset
	cls     columns.Classification
	options filter.OptionSet
	spec    filter.Spec
	modes   filter.Modes
	key     string // 筛选条件缓存键
}

// memo 在会话缓存中按 (版本, 视图, 工作表, key) 缓存
func memo[T any](sc *sheetScope, kind, key string, compute func() (T, error)) (T, error) {
	return session.Memo(sc.sess, sc.version, kind+"|"+string(sc.sheet)+"|"+key, compute)
}

// openSheet 解析工作表、会话与筛选条件；withFilters=false 时忽略查询中的筛选
func (h *Handler) openSheet(c *gin.Context, kind string, withFilters bool) (*sheetScope, error) {
	sheet, err := parseSheet(c)
	if err != nil {
		return nil, err
	}
	return h.openDataset(c, kind, sheet, withFilters)
}

func (h *Handler) openDataset(c *gin.Context, kind string, sheet model.SheetType, withFilters bool) (*sheetScope, error) {
	sess, err := h.currentSession(c)
	if err != nil {
		return nil, err
	}
	ticket, err := begin(c, sess, fmt.Sprintf("%s:%s:%s", session.ChannelView, kind, sheet))
	if err != nil {
		return nil, err
	}
	wb, err := sess.Workbook()
	if err != nil {
		return nil, err
	}
	ds, err := wb.Dataset(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	sc := &sheetScope{sess: sess, ticket: ticket, sheet: sheet, version: wb.Version, wb: wb, ds: ds}
	sc.cls, _ = memo(sc, "columns", "", func() (columns.Classification, error) {
		return columns.Classify(sheet, ds.Columns), nil
	})
	sc.options, _ = memo(sc, "options", "", func() (filter.OptionSet, error) {
		return filter.ComputeOptions(ds.Rows, filter.Fields(sheet), filter.DefaultOptionCap), nil
	})

	sc.spec = filter.Spec{}
	var override filter.Modes
	if withFilters {
		sc.spec, override = filter.ParseQuery(sheet, c.Request.URL.Query(), ds.Columns)
	}
	sc.modes = filter.MergeModes(sc.options.Modes(), override)
	sc.key = filterKey(sc.spec, override)
	return sc, nil
}

// rows 筛选后的行
func (sc *sheetScope) rows() []model.Row {
	rows, _ := memo(sc, "rows", sc.key, func() ([]model.Row, error) {
		return filter.Apply(sc.ds.Rows, sc.spec, sc.modes), nil
	})
	return rows
}

// summary 筛选后的汇总
func (sc *sheetScope) summary() analytics.Summary {
	sum, _ := memo(sc, "summary", sc.key, func() (analytics.Summary, error) {
		return analytics.Summarize(sc.rows(), sc.sheet, sc.cls), nil
	})
	return sum
}

// respond 结果已被更新的请求取代时返回 409，否则返回 200
func respond(c *gin.Context, sc *sheetScope, body interface{}) {
	if !sc.ticket.Current() {
		respondError(c, fmt.Errorf("view of %s superseded: %w", sc.sheet, model.ErrStaleRequest))
		return
	}
	c.JSON(http.StatusOK, body)
}

// withDeadline 读请求超时
func (h *Handler) withDeadline(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.requestTimeout())
}

// ListSheets 当前会话已加载的工作表
// GET /api/sheets
func (h *Handler) ListSheets(c *gin.Context) {
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
	type sheetInfo struct {
		Type    model.SheetType `json:"type"`
		Title   string          `json:"title"`
		Name    string          `json:"sheetName"`
		Source  string          `json:"source"`
		Rows    int             `json:"rows"`
		Columns int             `json:"columns"`
	}
	sheets := make([]sheetInfo, 0, len(wb.Datasets))
	for _, t := range wb.Sheets() {
		ds, _ := wb.Dataset(t)
		sheets = append(sheets, sheetInfo{
			Type: t, Title: t.Title(), Name: ds.SheetName, Source: ds.Source,
			Rows: len(ds.Rows), Columns: len(ds.Columns),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"version":  wb.Version,
		"loadedAt": wb.LoadedAt,
		"files":    wb.Files,
		"sheets":   sheets,
	})
}

// dataPayload /data 与 /sheet 的响应体
type dataPayload struct {
	Success        bool                       `json:"success"`
	Sheet          model.SheetType            `json:"sheet"`
	Data           []model.Record             `json:"data"`
	Columns        []string                   `json:"columns"`
	Filters        filter.OptionSet           `json:"filters"`
	GroupedColumns map[columns.Group][]string `json:"grouped_columns"`
	Weeks          []columns.WeekBucket       `json:"weeks"`
	TotalRows      int                        `json:"total_rows"`
	Stats          *analytics.Summary         `json:"stats,omitempty"`
}

func (h *Handler) serveData(c *gin.Context, kind string, withFilters bool) {
	sc, err := h.openSheet(c, kind, withFilters)
	if err != nil {
		respondError(c, err)
		return
	}
	payload, _ := memo(sc, kind, sc.key, func() (*dataPayload, error) {
		rows := sc.rows()
		sum := sc.summary()
		weeks := sc.cls.Weeks
		if weeks == nil {
			weeks = []columns.WeekBucket{}
		}
		return &dataPayload{
			Success:        true,
			Sheet:          sc.sheet,
			Data:           sc.ds.Records(rows),
			Columns:        sc.ds.Columns,
			Filters:        sc.options,
			GroupedColumns: sc.cls.Assignment(),
			Weeks:          weeks,
			TotalRows:      len(rows),
			Stats:          &sum,
		}, nil
	})
	respond(c, sc, payload)
}

// GetData 工作表全部数据、筛选选项与列分组
// GET /api/data/:sheet
func (h *Handler) GetData(c *gin.Context) {
	h.serveData(c, viewData, false)
}

// GetSheet 与 GetData 相同，但应用查询中的筛选条件
// GET /api/sheet/:sheet
func (h *Handler) GetSheet(c *gin.Context) {
	h.serveData(c, viewSheet, true)
}

// FilterRows 仅返回筛选后的行
// GET /api/filter/:sheet
func (h *Handler) FilterRows(c *gin.Context) {
	sc, err := h.openSheet(c, viewFilter, true)
	if err != nil {
		respondError(c, err)
		return
	}
	rows := sc.rows()
	respond(c, sc, gin.H{
		"success":    true,
		"data":       sc.ds.Records(rows),
		"total_rows": len(rows),
	})
}

// GetAnalytics 筛选后的汇总统计
// GET /api/analytics/:sheet
func (h *Handler) GetAnalytics(c *gin.Context) {
	sc, err := h.openSheet(c, viewAnalytics, true)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, sc, gin.H{"success": true, "analytics": sc.summary()})
}

// GetCharts 筛选后的图表数据
// GET /api/charts/:sheet
func (h *Handler) GetCharts(c *gin.Context) {
	sc, err := h.openSheet(c, viewCharts, true)
	if err != nil {
		respondError(c, err)
		return
	}
	set, _ := memo(sc, viewCharts, sc.key, func() (chart.Set, error) {
		return chart.Build(sc.rows(), sc.sheet, sc.cls, sc.summary()), nil
	})
	respond(c, sc, gin.H{"success": true, "charts": set})
}

// GetView 排序分页后的表格视图
// GET /api/view/:sheet?sort=&dir=&page=&page_size=
func (h *Handler) GetView(c *gin.Context) {
	q, err := parseTableQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	sc, err := h.openSheet(c, viewTable, true)
	if err != nil {
		respondError(c, err)
		return
	}
	q.SortKey = model.CanonicalColumn(sc.sheet, q.SortKey)
	key := fmt.Sprintf("%s|%s|%t|%d|%d", sc.key, q.SortKey, q.Desc, q.Page, q.PageSize)

	ctx, cancel := h.withDeadline(c)
	defer cancel()
	view, err := memo(sc, viewTable, key, func() (table.View, error) {
		v := table.Build(sc.rows(), sc.cls, q)
		if err := ctx.Err(); err != nil {
			return table.View{}, fmt.Errorf("table view aborted: %w", err)
		}
		return v, nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, sc, gin.H{"success": true, "view": view})
}

// parseTableQuery 排序与分页参数；非法数字或超出上限返回 400
func parseTableQuery(c *gin.Context) (table.Query, error) {
	q := table.Query{
		SortKey: strings.TrimSpace(c.Query("sort")),
		Desc:    strings.EqualFold(strings.TrimSpace(c.Query("dir")), "desc"),
		Page:    1,
	}
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid page %q", errBadRequest, raw)
		}
		q.Page = n
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: invalid page_size %q", errBadRequest, raw)
		}
		if n > table.MaxPageSize {
			return q, fmt.Errorf("%w: page_size exceeds %d", errBadRequest, table.MaxPageSize)
		}
		q.PageSize = n
	}
	return q, nil
}
