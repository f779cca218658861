package chart

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/analytics"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

// MaxEntities 周折线图最多展示的实体数
const MaxEntities = 8

// Kind 图表类型
type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
	KindPie  Kind = "pie"
)

// Point 单序列数据点
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SeriesValue 多序列数据点中某一序列的值；nil 表示该点缺失
type SeriesValue struct {
	Name  string
	Value *float64
}

// MultiPoint 多序列数据点，序列化为 {"label": ..., "<序列名>": 值或 null}
type MultiPoint struct {
	Label  string
	Values []SeriesValue
}

// labelKey 多序列数据点中标签占用的键
const labelKey = "label"

// MarshalJSON 保持序列顺序；与 "label" 或前面序列同名的键被跳过
func (p MultiPoint) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"label":`)
	lb, err := json.Marshal(p.Label)
	if err != nil {
		return nil, err
	}
	buf.Write(lb)
	written := map[string]bool{labelKey: true}
	for _, v := range p.Values {
		if written[v.Name] {
			continue
		}
		written[v.Name] = true
		buf.WriteByte(',')
		k, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if v.Value == nil {
			buf.WriteString("null")
		} else {
			buf.WriteString(strconv.FormatFloat(*v.Value, 'f', -1, 64))
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get 取某一序列的值
func (p MultiPoint) Get(name string) (*float64, bool) {
	for _, v := range p.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Chart 图表：单序列使用 Points，多序列使用 Series + Multi
type Chart struct {
	ID     string       `json:"id"`
	Kind   Kind         `json:"kind"`
	Title  string       `json:"title"`
	Points []Point      `json:"points,omitempty"`
	Series []string     `json:"series,omitempty"`
	Multi  []MultiPoint `json:"data,omitempty"`
}

// WeeklyLines 某一周按星期的多实体折线
type WeeklyLines struct {
	Week     int          `json:"week"` // 1 起
	Label    string       `json:"label"`
	Entities []string     `json:"entities"`
	Points   []MultiPoint `json:"data"`
}

// FromCounts 分类计数 → 数据点（保持输入顺序）
func FromCounts(counts []analytics.CategoryCount) []Point {
	out := make([]Point, 0, len(counts))
	for _, c := range counts {
		out = append(out, Point{Label: c.Name, Value: float64(c.Count)})
	}
	return out
}

// FromEntities 实体数值 → 数据点（保持输入顺序）
func FromEntities(es []analytics.Entity) []Point {
	out := make([]Point, 0, len(es))
	for _, e := range es {
		out = append(out, Point{Label: e.Name, Value: e.Value})
	}
	return out
}

// WeekdayLabel 星期展示名
func WeekdayLabel(weekday int) string {
	return fmt.Sprintf("Thứ %d", weekday)
}

// WeekdayAverages 每个星期（T2..T7）在所有周、所有行上的平均值；缺失按 0 计入
func WeekdayAverages(rows []model.Row, cls columns.Classification) []Point {
	if !cls.HasDays() {
		return []Point{}
	}
	totals := make(map[int]float64)
	counts := make(map[int]int)
	for _, name := range cls.Day {
		d, ok := columns.ParseDay(name)
		if !ok {
			continue
		}
		for _, r := range rows {
			totals[d.Weekday] += r.Get(name).FloatOrZero()
			counts[d.Weekday]++
		}
	}
	out := make([]Point, 0, 6)
	for wd := 2; wd <= 7; wd++ {
		n, ok := counts[wd]
		if !ok {
			continue
		}
		avg := 0.0
		if n > 0 {
			avg = totals[wd] / float64(n)
		}
		out = append(out, Point{Label: WeekdayLabel(wd), Value: avg})
	}
	return out
}

// TopEntities 按 rankField 求和排名取前 k 个实体名（数值相同按名称升序）
func TopEntities(rows []model.Row, entityField, rankField string, k int) []string {
	if k <= 0 || k > MaxEntities {
		k = MaxEntities
	}
	top := analytics.TopN(analytics.SumBy(rows, entityField, rankField), k)
	out := make([]string, len(top))
	for i, e := range top {
		out[i] = e.Name
	}
	return out
}

// SeriesKeys 实体名转为 JSON 序列键：与 "label" 或已有键冲突时追加 " (2)"、" (3)" …
func SeriesKeys(names []string) []string {
	taken := map[string]bool{labelKey: true}
	out := make([]string, len(names))
	for i, name := range names {
		key := name
		for n := 2; taken[key]; n++ {
			key = fmt.Sprintf("%s (%d)", name, n)
		}
		taken[key] = true
		out[i] = key
	}
	return out
}

// BuildWeeklyLines 每个周分桶生成一组折线：每个星期一个点，每个实体一个序列。
// 实体在某天没有数值时该点为 null（前端连接缺口），不按 0 绘制。
func BuildWeeklyLines(rows []model.Row, cls columns.Classification, entityField, rankField string, k int) []WeeklyLines {
	if !cls.HasDays() {
		return []WeeklyLines{}
	}
	entities := TopEntities(rows, entityField, rankField, k)
	keys := SeriesKeys(entities)
	byEntity := make(map[string][]model.Row, len(entities))
	for _, r := range rows {
		name := strings.TrimSpace(r.Get(entityField).String())
		byEntity[name] = append(byEntity[name], r)
	}

	out := make([]WeeklyLines, 0, len(cls.Weeks))
	for _, bucket := range cls.Weeks {
		wl := WeeklyLines{
			Week:     bucket.Index + 1,
			Label:    bucket.Label,
			Entities: keys,
			Points:   make([]MultiPoint, 0, len(bucket.Columns)),
		}
		for _, col := range bucket.Columns {
			d, _ := columns.ParseDay(col)
			p := MultiPoint{Label: WeekdayLabel(d.Weekday)}
			for i, name := range entities {
				p.Values = append(p.Values, SeriesValue{Name: keys[i], Value: entityValue(byEntity[name], col)})
			}
			wl.Points = append(wl.Points, p)
		}
		out = append(out, wl)
	}
	return out
}

// entityValue 实体在某列上的合计；所有行都没有数值时返回 nil
func entityValue(rows []model.Row, column string) *float64 {
	var total float64
	found := false
	for _, r := range rows {
		if f, ok := r.Get(column).Float(); ok {
			total += f
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}
