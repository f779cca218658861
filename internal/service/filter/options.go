package filter

import (
	"net/url"
	"strings"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// DefaultOptionCap 下拉选项上限，超过后按文本框处理
const DefaultOptionCap = 50

// Options 单个字段的可选值
type Options struct {
	Field      string   `json:"field"`
	Values     []string `json:"values"`     // 首次出现顺序，截断到上限
	Total      int      `json:"total"`      // 去重后的总数
	Enumerated bool     `json:"enumerated"` // Total 未超过上限时为下拉选择
}

// Mode 该字段的匹配方式
func (o Options) Mode() Mode {
	if o.Enumerated {
		return ModeExact
	}
	return ModeText
}

// OptionSet 多个字段的可选值（按字段顺序）
type OptionSet []Options

// Get 取字段可选值
func (s OptionSet) Get(field string) (Options, bool) {
	for _, o := range s {
		if o.Field == field {
			return o, true
		}
	}
	return Options{}, false
}

// Modes 由可选值推导匹配方式
func (s OptionSet) Modes() Modes {
	m := make(Modes, len(s))
	for _, o := range s {
		m[o.Field] = o.Mode()
	}
	return m
}

// ComputeOptions 统计各字段去重值（首次出现顺序）；截断只影响展示
func ComputeOptions(rows []model.Row, fields []string, limit int) OptionSet {
	if limit <= 0 {
		limit = DefaultOptionCap
	}
	out := make(OptionSet, 0, len(fields))
	for _, f := range fields {
		seen := make(map[string]bool)
		opt := Options{Field: f, Values: []string{}}
		for _, r := range rows {
			v := strings.TrimSpace(r.Get(f).String())
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			opt.Total++
			if len(opt.Values) < limit {
				opt.Values = append(opt.Values, v)
			}
		}
		opt.Enumerated = opt.Total > 0 && opt.Total <= limit
		out = append(out, opt)
	}
	return out
}

// Fields 各工作表的可筛选字段
func Fields(sheet model.SheetType) []string {
	switch sheet {
	case model.SheetRevenue:
		return []string{model.ColCustCode, model.ColClass}
	case model.SheetCustomers:
		return []string{
			model.ColStatus, model.ColCustomerCode, model.ColWard,
			model.ColDistrict, model.ColChannel, model.ColOwnerStaff,
		}
	case model.SheetStaffRoutes:
		return []string{model.ColStaffName, model.ColStaffStatus, model.ColSupervisor}
	case model.SheetRouteDetail:
		return []string{
			model.ColDetailCustCode, model.ColDetailCustName, model.ColSuggestStaffName,
			model.ColProductChannel, model.ColDistChannel,
		}
	}
	return nil
}

// 查询参数中保留给分页/排序/请求序号的键
var reservedParams = map[string]bool{
	"sort": true, "dir": true, "page": true, "page_size": true, "seq": true, "session": true,
}

// revenueParams 营收表的特殊查询参数
var revenueParams = map[string]struct {
	field string
	mode  Mode
}{
	"custcode":       {model.ColCustCode, ModeText},
	"classification": {model.ColClass, ModeExact},
}

// ParseQuery 从查询参数构建筛选条件；仅保留数据集中存在的列
func ParseQuery(sheet model.SheetType, query url.Values, columns []string) (Spec, Modes) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	spec := make(Spec)
	modes := make(Modes)
	for key, vals := range query {
		if len(vals) == 0 || reservedParams[key] {
			continue
		}
		value := vals[len(vals)-1]
		if sheet == model.SheetRevenue {
			if p, ok := revenueParams[strings.ToLower(key)]; ok {
				spec[p.field] = value
				modes[p.field] = p.mode
				continue
			}
		}
		field := model.CanonicalColumn(sheet, key)
		if !known[field] {
			continue
		}
		spec[field] = value
	}
	return spec.Active(), modes
}

// MergeModes 合并匹配方式，后者优先
func MergeModes(base Modes, override Modes) Modes {
	out := make(Modes, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
