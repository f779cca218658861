package filter

import (
	"net/url"
	"sort"
	"strings"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// AllValue 表示不限制
const AllValue = "all"

// Mode 匹配方式
type Mode string

const (
	ModeText  Mode = "text"  // 子串包含
	ModeExact Mode = "exact" // 枚举值精确匹配
)

// Spec 字段 → 匹配值
type Spec map[string]string

// Modes 字段 → 匹配方式，未列出的字段按子串匹配
type Modes map[string]Mode

// Normalize 去除首尾空白并转小写
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Active 去掉空值与 all 之后的有效条件
func (s Spec) Active() Spec {
	out := make(Spec, len(s))
	for k, v := range s {
		if isUnconstrained(v) {
			continue
		}
		out[k] = v
	}
	return out
}

func isUnconstrained(v string) bool {
	n := Normalize(v)
	return n == "" || n == AllValue
}

// Canonical 稳定的文本表示（用作缓存键）
func (s Spec) Canonical() string {
	active := s.Active()
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(Normalize(active[k])))
	}
	return b.String()
}

// Match 单行是否满足全部条件（AND）
func Match(row model.Row, spec Spec, modes Modes) bool {
	for field, want := range spec {
		if isUnconstrained(want) {
			continue
		}
		if !matchValue(row.Get(field), want, modes[field]) {
			return false
		}
	}
	return true
}

func matchValue(v model.Value, want string, mode Mode) bool {
	cell := Normalize(v.String())
	target := Normalize(want)
	if cell == "" {
		return false
	}
	if mode == ModeExact {
		return cell == target
	}
	return strings.Contains(cell, target)
}

// Apply 返回满足条件的行，保持原有顺序；不修改输入
func Apply(rows []model.Row, spec Spec, modes Modes) []model.Row {
	active := spec.Active()
	out := make([]model.Row, 0, len(rows))
	if len(active) == 0 {
		return append(out, rows...)
	}
	for _, r := range rows {
		if Match(r, active, modes) {
			out = append(out, r)
		}
	}
	return out
}
