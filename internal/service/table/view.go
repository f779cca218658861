package table

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

// 每页行数：默认值与上限
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// 标记列展示符号
const (
	MarkSet     = "X"
	MarkCleared = "-"
)

// Query 排序与分页参数
type Query struct {
	SortKey  string
	Desc     bool
	Page     int
	PageSize int
}

// HeaderColumn 第二层表头
type HeaderColumn struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// HeaderGroup 第一层表头（跨越 Span 列）
type HeaderGroup struct {
	Label   string         `json:"label"`
	Group   columns.Group  `json:"group"`
	Span    int            `json:"span"`
	Columns []HeaderColumn `json:"columns"`
}

// ViewRow 可见行
type ViewRow struct {
	Key     string       `json:"key"`
	Values  model.Record `json:"values"`
	Display []string     `json:"display"`
}

// View 表格视图
type View struct {
	HeaderGroups []HeaderGroup `json:"headerGroups"`
	Columns      []string      `json:"columns"`
	Rows         []ViewRow     `json:"rows"`
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalPages   int           `json:"totalPages"`
	TotalRows    int           `json:"totalRows"`
	SortKey      string        `json:"sortKey,omitempty"`
	Desc         bool          `json:"desc,omitempty"`
}

// Build 排序、分页并生成分组表头；不修改输入行
func Build(rows []model.Row, cls columns.Classification, q Query) View {
	headers, cols := Headers(cls)
	sorted := Sort(rows, q.SortKey, q.Desc)
	pageSize := EffectivePageSize(q.PageSize)
	start, end, page, totalPages := Paginate(len(sorted), q.Page, pageSize)

	v := View{
		HeaderGroups: headers,
		Columns:      cols,
		Rows:         make([]ViewRow, 0, end-start),
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalRows:    len(sorted),
		SortKey:      q.SortKey,
		Desc:         q.Desc,
	}
	for _, r := range sorted[start:end] {
		vr := ViewRow{Key: r.Key(), Values: r.Record(cols), Display: make([]string, len(cols))}
		for i, c := range cols {
			vr.Display[i] = FormatCell(r.Get(c), cls.IsFlag(c))
		}
		v.Rows = append(v.Rows, vr)
	}
	return v
}

// EffectivePageSize 非正值取默认值，超过上限取上限
func EffectivePageSize(pageSize int) int {
	switch {
	case pageSize <= 0:
		return DefaultPageSize
	case pageSize > MaxPageSize:
		return MaxPageSize
	}
	return pageSize
}

// Paginate 计算分页区间；页码钳制到 [1, totalPages]，无数据时为第 1 页
func Paginate(total, page, pageSize int) (start, end, clamped, totalPages int) {
	pageSize = EffectivePageSize(pageSize)
	totalPages = total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	clamped = page
	if clamped > totalPages {
		clamped = totalPages
	}
	if clamped < 1 {
		clamped = 1
	}
	start = (clamped - 1) * pageSize
	if start > total {
		start = total
	}
	end = total
	if total-start > pageSize {
		end = start + pageSize
	}
	return start, end, clamped, totalPages
}

// Headers 按分组顺序生成两层表头；日列按周拆成多个分组
func Headers(cls columns.Classification) ([]HeaderGroup, []string) {
	var groups []HeaderGroup
	var cols []string
	add := func(label string, g columns.Group, names []string) {
		if len(names) == 0 {
			return
		}
		hg := HeaderGroup{Label: label, Group: g, Span: len(names)}
		for _, n := range names {
			hg.Columns = append(hg.Columns, HeaderColumn{Key: n, Label: cls.Label(n)})
			cols = append(cols, n)
		}
		groups = append(groups, hg)
	}
	for _, g := range groupOrder(cls) {
		if g != columns.GroupDay {
			add(cls.GroupLabel(g), g, cls.Members(g))
			continue
		}
		inWeeks := make(map[string]bool)
		for _, w := range cls.Weeks {
			add(w.Label, g, w.Columns)
			for _, c := range w.Columns {
				inWeeks[c] = true
			}
		}
		var rest []string
		for _, c := range cls.Day {
			if !inWeeks[c] {
				rest = append(rest, c)
			}
		}
		add(cls.GroupLabel(g), g, rest)
	}
	if groups == nil {
		groups = []HeaderGroup{}
	}
	return groups, cols
}

// groupOrder 表头分组顺序；规则未列出的分组追加在最后
func groupOrder(cls columns.Classification) []columns.Group {
	order := append([]columns.Group(nil), cls.Order()...)
	seen := make(map[columns.Group]bool, len(order))
	for _, g := range order {
		seen[g] = true
	}
	for _, g := range []columns.Group{columns.GroupBase, columns.GroupMetric, columns.GroupDay, columns.GroupWeek, columns.GroupMapping} {
		if !seen[g] {
			order = append(order, g)
		}
	}
	return order
}

// FormatCell 单元格展示：标记列值为 1 时显示 X，否则显示 -
func FormatCell(v model.Value, flag bool) string {
	if !flag {
		return v.String()
	}
	if f, ok := v.Float(); ok && f == 1 {
		return MarkSet
	}
	return MarkCleared
}

var collatorPool = sync.Pool{
	New: func() any { return collate.New(language.Vietnamese) },
}

// Sort 稳定排序：数值按大小，文本按越南语排序规则，数值排在文本之前，空值始终在最后；
// 未指定排序列时保持原顺序
func Sort(rows []model.Row, key string, desc bool) []model.Row {
	out := append([]model.Row(nil), rows...)
	if key == "" || len(out) < 2 {
		return out
	}
	coll := collatorPool.Get().(*collate.Collator)
	defer collatorPool.Put(coll)

	vals := make([]model.Value, len(out))
	for i, r := range out {
		vals[i] = r.Get(key)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := vals[idx[i]], vals[idx[j]]
		if a.IsEmpty() || b.IsEmpty() {
			return !a.IsEmpty() && b.IsEmpty()
		}
		c := compareValues(coll, a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]model.Row, len(out))
	for i, k := range idx {
		sorted[i] = out[k]
	}
	return sorted
}

func compareValues(coll *collate.Collator, a, b model.Value) int {
	an, bn := a.IsNumber(), b.IsNumber()
	switch {
	case an && bn:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	return coll.CompareString(a.String(), b.String())
}
