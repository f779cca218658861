package columns

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// WeekSize 每周最多 6 个日列（T2..T7）
const WeekSize = 6

// DayColumn 解析后的日列
type DayColumn struct {
	Name    string
	Weekday int // 2=Thứ 2 .. 7=Thứ 7
	Suffix  int // 0 表示第 1 周
}

// ParseDay 解析日列名，不是日列返回 false
func ParseDay(name string) (DayColumn, bool) {
	m := dayPattern.FindStringSubmatch(name)
	if m == nil {
		return DayColumn{}, false
	}
	weekday, _ := strconv.Atoi(m[1])
	suffix := 0
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return DayColumn{}, false
		}
		suffix = n
	}
	return DayColumn{Name: name, Weekday: weekday, Suffix: suffix}, true
}

// SortDays 日列排序：先按周后缀，再按星期，均升序；非日列被丢弃
func SortDays(names []string) []string {
	days := make([]DayColumn, 0, len(names))
	for _, n := range names {
		if d, ok := ParseDay(n); ok {
			days = append(days, d)
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		if days[i].Suffix != days[j].Suffix {
			return days[i].Suffix < days[j].Suffix
		}
		return days[i].Weekday < days[j].Weekday
	})
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Name
	}
	return out
}

// WeekBucket 周分桶
type WeekBucket struct {
	Index   int      `json:"index"` // 0 起
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
}

// BucketWeeks 将已排序的日列按周切分：同一后缀为一周，每桶至多 6 列，不跨后缀
func BucketWeeks(sorted []string) []WeekBucket {
	var buckets []WeekBucket
	for _, name := range sorted {
		d, ok := ParseDay(name)
		if !ok {
			continue
		}
		n := len(buckets)
		if n == 0 || buckets[n-1].Index != d.Suffix || len(buckets[n-1].Columns) >= WeekSize {
			buckets = append(buckets, WeekBucket{
				Index: d.Suffix,
				Label: fmt.Sprintf("Tuần %d", d.Suffix+1),
			})
			n++
		}
		buckets[n-1].Columns = append(buckets[n-1].Columns, name)
	}
	return buckets
}

// Classification 一个工作表的列分组结果
type Classification struct {
	Sheet   model.SheetType  `json:"sheet"`
	Columns []string         `json:"columns"`
	Groups  map[string]Group `json:"groups"`

	Base    []string     `json:"base"`
	Metric  []string     `json:"metric"`
	Day     []string     `json:"day"` // 规范顺序
	Week    []string     `json:"week"`
	Mapping []string     `json:"mapping"`
	Weeks   []WeekBucket `json:"weeks"` // 仅 T2..T7 日列

	Flags map[string]bool `json:"flags"`

	rules SheetRules
}

// Classify 按列名对列分组（规则依次匹配，首个命中生效）
func Classify(sheet model.SheetType, columns []string) Classification {
	rules := RulesFor(sheet)
	c := Classification{
		Sheet:   sheet,
		Columns: append([]string(nil), columns...),
		Groups:  make(map[string]Group, len(columns)),
		Flags:   make(map[string]bool),
		rules:   rules,
	}

	base := make(map[string]bool, len(rules.Base))
	for _, b := range rules.Base {
		base[b] = true
	}

	var days, dayFlags []string
	for _, name := range columns {
		if _, dup := c.Groups[name]; dup {
			continue
		}
		g, flag := classifyOne(name, base, rules.Rules)
		c.Groups[name] = g
		if flag {
			c.Flags[name] = true
		}
		switch g {
		case GroupDay:
			if dayPattern.MatchString(name) {
				days = append(days, name)
			} else {
				dayFlags = append(dayFlags, name)
			}
		case GroupMetric:
			c.Metric = append(c.Metric, name)
		case GroupWeek:
			c.Week = append(c.Week, name)
		case GroupMapping:
			c.Mapping = append(c.Mapping, name)
		default:
			c.Base = append(c.Base, name)
		}
	}

	sorted := SortDays(days)
	c.Day = append(sorted, dayFlags...)
	c.Weeks = BucketWeeks(sorted)
	return c
}

func classifyOne(name string, base map[string]bool, rules []Rule) (Group, bool) {
	if dayPattern.MatchString(name) {
		return GroupDay, false
	}
	if base[name] {
		return GroupBase, false
	}
	for _, r := range rules {
		if r.match(name) {
			return r.Group, r.Flag
		}
	}
	return GroupBase, false
}

// GroupOf 取列所属分组（未知列按 base 处理）
func (c Classification) GroupOf(column string) Group {
	if g, ok := c.Groups[column]; ok {
		return g
	}
	return GroupBase
}

// Members 某一分组内的列
func (c Classification) Members(g Group) []string {
	switch g {
	case GroupBase:
		return c.Base
	case GroupMetric:
		return c.Metric
	case GroupDay:
		return c.Day
	case GroupWeek:
		return c.Week
	case GroupMapping:
		return c.Mapping
	}
	return nil
}

// Order 表头分组顺序
func (c Classification) Order() []Group {
	return c.rules.Order
}

// Ordered 按表头分组顺序排列的全部列
func (c Classification) Ordered() []string {
	out := make([]string, 0, len(c.Columns))
	seen := make(map[Group]bool)
	for _, g := range c.rules.Order {
		seen[g] = true
		out = append(out, c.Members(g)...)
	}
	for _, g := range []Group{GroupBase, GroupMetric, GroupDay, GroupWeek, GroupMapping} {
		if !seen[g] {
			out = append(out, c.Members(g)...)
		}
	}
	return out
}

// HasDays 是否存在 T2..T7 日列
func (c Classification) HasDays() bool {
	return len(c.Weeks) > 0
}

// IsFlag 是否为 0/1 标记列
func (c Classification) IsFlag(column string) bool {
	return c.Flags[column]
}

// Label 列展示名；未配置时回退为原始列名
func (c Classification) Label(column string) string {
	if l, ok := c.rules.Labels[column]; ok {
		return l
	}
	if d, ok := ParseDay(column); ok {
		return fmt.Sprintf("T%d", d.Weekday)
	}
	if s := labelSuffixes.ReplaceAllString(column, ""); s != column && s != "" {
		return s
	}
	return column
}

// GroupLabel 分组表头名
func (c Classification) GroupLabel(g Group) string {
	if l, ok := c.rules.GroupLabels[g]; ok {
		return l
	}
	return string(g)
}

// Assignment 列名 → 分组，按分组输出（用于 grouped_columns）
func (c Classification) Assignment() map[Group][]string {
	out := make(map[Group][]string)
	for _, g := range []Group{GroupBase, GroupMetric, GroupDay, GroupWeek, GroupMapping} {
		if m := c.Members(g); len(m) > 0 {
			out[g] = append([]string(nil), m...)
		}
	}
	return out
}
