package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// HeaderRow 各工作表的表头行（0 起）；路线明细为两行表头的第一行
func HeaderRow(t model.SheetType) int {
	switch t {
	case model.SheetCustomers, model.SheetStaffRoutes:
		return 1
	case model.SheetRouteDetail:
		return 2
	default:
		return 0
	}
}

// columnAliases 上传文件中的常见列名写法 → 规范列名（按 FoldKey 匹配）
var columnAliases = map[model.SheetType]map[string]string{
	model.SheetRevenue: {
		"custcode":      model.ColCustCode,
		"ma khach hang": model.ColCustCode,
		"t-3":           model.ColT3,
		"t-2":           model.ColT2,
		"t-1":           model.ColT1,
		"t":             model.ColT,
	},
	model.SheetCustomers: {
		"lat":       model.ColLat,
		"latitude":  model.ColLat,
		"vi do":     model.ColLat,
		"lng":       model.ColLng,
		"long":      model.ColLng,
		"longitude": model.ColLng,
		"kinh do":   model.ColLng,
	},
}

// canonicalHeader 规范化列名：别名表优先，其次强类型列名（忽略声调与大小写）
func canonicalHeader(t model.SheetType, name string) string {
	key := FoldKey(name)
	if alias, ok := columnAliases[t][key]; ok {
		return alias
	}
	for _, c := range model.TypedColumns(t) {
		if FoldKey(c) == key {
			return c
		}
	}
	return model.CanonicalColumn(t, name)
}

var (
	sttRe        = regexp.MustCompile(`\bstt\b`)
	routeDayRe   = regexp.MustCompile(`t([2-7])$`)
	weekNumberRe = regexp.MustCompile(`\bw([1-9])\b`)
)

// detailRule 路线明细列名重命名规则（按顺序匹配，首个命中生效）
type detailRule func(key string, seen map[string]bool) string

var detailRules = []detailRule{
	func(k string, _ map[string]bool) string { return when(sttRe.MatchString(k), model.ColSTT) },
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "ma khach hang"), model.ColDetailCustCode)
	},
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "ten khach hang"), model.ColDetailCustName)
	},
	func(k string, _ map[string]bool) string { return when(strings.Contains(k, "dia chi"), model.ColAddress) },
	func(k string, _ map[string]bool) string {
		if !strings.Contains(k, "lo trinh dms") {
			return ""
		}
		if m := routeDayRe.FindStringSubmatch(k); m != nil {
			return fmt.Sprintf("T%s_LoTrinhDMS", m[1])
		}
		return skip
	},
	func(k string, _ map[string]bool) string {
		if !strings.Contains(k, "tan suat dms") || strings.Contains(k, "goi y") {
			return ""
		}
		if m := weekNumberRe.FindStringSubmatch(k); m != nil {
			return fmt.Sprintf("W%s_TanSuatDMS", m[1])
		}
		return skip
	},
	func(k string, _ map[string]bool) string {
		if !strings.Contains(k, "tan suat goi y") {
			return ""
		}
		if m := weekNumberRe.FindStringSubmatch(k); m != nil {
			return fmt.Sprintf("W%s_TanSuatGoiY_Mapping", m[1])
		}
		return ""
	},
	func(k string, _ map[string]bool) string { return when(strings.Contains(k, "phu trach"), model.ColDetailOwner) },
	func(k string, _ map[string]bool) string { return when(strings.Contains(k, "ma tuyen"), model.ColDetailRoute) },
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "ma nhan vien"), model.ColSuggestStaffCode)
	},
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "ten nhan vien"), model.ColSuggestStaffName)
	},
	func(k string, seen map[string]bool) string {
		return when(strings.Contains(k, "tan suat goi y") && !seen[model.ColSuggestFreqValue], model.ColSuggestFreqValue)
	},
	func(k string, _ map[string]bool) string { return when(strings.Contains(k, "kenh hang"), model.ColProductChannel) },
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "doanh so tb") || k == "ds tb", model.ColAvgRevenue)
	},
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "tan suat hien tai"), model.ColCurrentFreq)
	},
	func(k string, _ map[string]bool) string {
		return when(ContainsAny(k, []string{"tan suat gsbh", "chia lai", "freq chia"}), model.ColFreqSplit)
	},
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "tan suat") && strings.Contains(k, "khach hang"), model.ColCustomerFreq)
	},
	func(k string, _ map[string]bool) string { return when(strings.Contains(k, "kenh"), model.ColDistChannel) },
	func(k string, _ map[string]bool) string {
		return when(strings.Contains(k, "tan suat goi y"), model.ColSuggestFreq)
	},
}

// skip 命中规则但不保留该列
const skip = "\x00"

func when(ok bool, name string) string {
	if ok {
		return name
	}
	return ""
}

// RenameDetailColumns 路线明细列名重命名；返回 列下标 → 规范列名，
// 未识别的列与重复的目标列被丢弃
func RenameDetailColumns(headers []string) map[int]string {
	out := make(map[int]string)
	seen := make(map[string]bool)
	for i, h := range headers {
		k := FoldKey(h)
		if k == "" {
			continue
		}
		name := NormalizeColumnName(h)
		if alias := model.CanonicalColumn(model.SheetRouteDetail, name); alias != name || isDetailColumn(name) {
			if !seen[alias] {
				out[i] = alias
				seen[alias] = true
			}
			continue
		}
		for _, rule := range detailRules {
			target := rule(k, seen)
			if target == "" {
				continue
			}
			if target != skip && !seen[target] {
				out[i] = target
				seen[target] = true
			}
			break
		}
	}
	return out
}

var detailFlagRe = regexp.MustCompile(`^(T[2-7]_LoTrinhDMS|W[1-9]_TanSuatDMS|W[1-9]_TanSuatGoiY_Mapping)$`)

// isDetailColumn 已是规范列名（如重新上传导出的文件）
func isDetailColumn(name string) bool {
	if detailFlagRe.MatchString(name) {
		return true
	}
	for _, c := range model.TypedColumns(model.SheetRouteDetail) {
		if c == name {
			return true
		}
	}
	return false
}

// isDetailFlag 路线明细中 x → 1 的标记列
func isDetailFlag(column string) bool {
	return strings.HasSuffix(column, "_LoTrinhDMS") ||
		strings.HasSuffix(column, "_TanSuatDMS") ||
		strings.HasSuffix(column, "_TanSuatGoiY_Mapping")
}
