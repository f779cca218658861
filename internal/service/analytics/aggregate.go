package analytics

import (
	"sort"
	"strings"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// CategoryCount 分类计数
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Entity 带数值的实体（员工、客户等）
type Entity struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// CountBy 按字段分组计数，结果按首次出现顺序；空值不计入
func CountBy(rows []model.Row, field string) []CategoryCount {
	index := make(map[string]int)
	var out []CategoryCount
	for _, r := range rows {
		name := strings.TrimSpace(r.Get(field).String())
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryCount{Name: name})
		}
		out[i].Count++
	}
	return out
}

// TopCounts 计数降序取前 n 个，计数相同按首次出现顺序
func TopCounts(counts []CategoryCount, n int) []CategoryCount {
	out := append([]CategoryCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopN 数值降序取前 n 个，数值相同按名称升序
func TopN(entities []Entity, n int) []Entity {
	out := append([]Entity(nil), entities...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []Entity{}
	}
	return out
}

// SumBy 按 key 字段分组求和（首次出现顺序），非数值按 0 计
func SumBy(rows []model.Row, keyField, valueField string) []Entity {
	index := make(map[string]int)
	var out []Entity
	for _, r := range rows {
		name := strings.TrimSpace(r.Get(keyField).String())
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, Entity{Name: name})
		}
		out[i].Value += r.Get(valueField).FloatOrZero()
	}
	return out
}

// Sum 字段求和，缺失或非数值按 0 计
func Sum(rows []model.Row, field string) float64 {
	total := 0.0
	for _, r := range rows {
		total += r.Get(field).FloatOrZero()
	}
	return total
}

// Mean 平均值：总和除以参与行数（包括缺失值的行）；无行时为 0
func Mean(rows []model.Row, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	return Sum(rows, field) / float64(len(rows))
}

// Distinct 字段去重计数（忽略空值）
func Distinct(rows []model.Row, field string) int {
	seen := make(map[string]bool)
	for _, r := range rows {
		if v := strings.TrimSpace(r.Get(field).String()); v != "" {
			seen[v] = true
		}
	}
	return len(seen)
}

// nonNilCounts 输出 JSON 时用空数组代替 null
func nonNilCounts(c []CategoryCount) []CategoryCount {
	if c == nil {
		return []CategoryCount{}
	}
	return c
}
