package analytics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

// DefaultTopN 排行榜默认条数
const DefaultTopN = 10

// ClassOrder 营收分类（从高到低）
var ClassOrder = []string{"VIP", "High", "Medium", "Low"}

// Summary 汇总结果；按工作表类型只填充对应字段
type Summary struct {
	Sheet     model.SheetType  `json:"sheet"`
	TotalRows int              `json:"total_rows"`
	Revenue   *RevenueSummary  `json:"revenue,omitempty"`
	Customers *CustomerSummary `json:"customers,omitempty"`
	Staff     *StaffSummary    `json:"staff,omitempty"`
	Detail    *DetailSummary   `json:"detail,omitempty"`
}

// ClassBucket 营收分类汇总
type ClassBucket struct {
	Class   string  `json:"class"`
	Count   int     `json:"count"`
	Current float64 `json:"current"` // Σ T
	Avg     float64 `json:"avg"`     // Σ TB / count
}

// RevenueTop 营收排行
type RevenueTop struct {
	CustCode string  `json:"CustCode"`
	TB       float64 `json:"TB"`
	Class    string  `json:"class"`
}

// RevenueSummary Doanh số khách hàng 汇总
type RevenueSummary struct {
	TotalT  float64       `json:"total_t"`
	TotalTB float64       `json:"total_tb"`
	Months  []Entity      `json:"months"`
	Classes []ClassBucket `json:"classes"`
	Top     []RevenueTop  `json:"top10"`
}

// CustomerSummary DSKH 汇总
type CustomerSummary struct {
	ByStatus  []CategoryCount `json:"by_status"`
	Channels  []CategoryCount `json:"channels"`
	Districts []CategoryCount `json:"districts"`
	WithCoord int             `json:"with_coordinates"`
}

// StaffSummary Tuyến và nhân viên 汇总
type StaffSummary struct {
	UniqueStaff    int             `json:"unique_staff"`
	UniqueRoutes   int             `json:"unique_routes"`
	TotalCalls     float64         `json:"total_calls"`
	AvgCalls       float64         `json:"avg_calls"`
	ByStatus       []CategoryCount `json:"by_status"`
	TopSupervisors []CategoryCount `json:"top_supervisors"`
	TopStaff       []Entity        `json:"top_staff"`
	WeekdayTotals  []Entity        `json:"weekday_totals"`
}

// WeekCompare 周频次对比
type WeekCompare struct {
	Week    string  `json:"week"`
	DMS     float64 `json:"dms"`
	Suggest float64 `json:"goi_y"`
}

// DetailSummary Chi tiết tuyến 汇总
type DetailSummary struct {
	TotalRevenue float64         `json:"total_doanh_so_tb"`
	AvgCustFreq  float64         `json:"avg_tan_suat_khach_hang"`
	TopStaff     []Entity        `json:"top_nhan_vien"`
	Channels     []CategoryCount `json:"kenh_hang"`
	RouteDays    []Entity        `json:"tan_suat_theo_ngay"`
	Weeks        []WeekCompare   `json:"dms_vs_goi_y"`
	CheckOK      int             `json:"check_ok"`
	CheckError   int             `json:"check_error"`
}

// Summarize 对筛选后的行重新计算汇总（无增量状态）
func Summarize(rows []model.Row, sheet model.SheetType, cls columns.Classification) Summary {
	s := Summary{Sheet: sheet, TotalRows: len(rows)}
	switch sheet {
	case model.SheetRevenue:
		s.Revenue = summarizeRevenue(rows)
	case model.SheetCustomers:
		s.Customers = summarizeCustomers(rows)
	case model.SheetStaffRoutes:
		s.Staff = summarizeStaff(rows, cls)
	case model.SheetRouteDetail:
		s.Detail = summarizeDetail(rows, cls)
	}
	return s
}

func summarizeRevenue(rows []model.Row) *RevenueSummary {
	out := &RevenueSummary{
		TotalT:  Sum(rows, model.ColT),
		TotalTB: Sum(rows, model.ColAvg),
	}
	for _, m := range model.MonthColumns {
		out.Months = append(out.Months, Entity{Name: m, Value: Sum(rows, m)})
	}

	buckets := make(map[string]*ClassBucket, len(ClassOrder))
	for _, c := range ClassOrder {
		b := ClassBucket{Class: c}
		buckets[c] = &b
	}
	var extra []string
	tops := make([]Entity, 0, len(rows))
	classOf := make(map[string]string, len(rows))
	for _, r := range rows {
		class := r.Get(model.ColClass).String()
		b, ok := buckets[class]
		if !ok && class != "" {
			b = &ClassBucket{Class: class}
			buckets[class] = b
			extra = append(extra, class)
		}
		if b != nil {
			b.Count++
			b.Current += r.Get(model.ColT).FloatOrZero()
			b.Avg += r.Get(model.ColAvg).FloatOrZero()
		}
		code := r.Key()
		if code != "" {
			tops = append(tops, Entity{Name: code, Value: r.Get(model.ColAvg).FloatOrZero()})
			classOf[code] = class
		}
	}
	for _, c := range append(append([]string(nil), ClassOrder...), extra...) {
		b := buckets[c]
		if b.Count > 0 {
			b.Avg /= float64(b.Count)
		}
		out.Classes = append(out.Classes, *b)
	}
	out.Top = []RevenueTop{}
	for _, e := range TopN(tops, DefaultTopN) {
		out.Top = append(out.Top, RevenueTop{CustCode: e.Name, TB: e.Value, Class: classOf[e.Name]})
	}
	return out
}

func summarizeCustomers(rows []model.Row) *CustomerSummary {
	out := &CustomerSummary{
		ByStatus:  nonNilCounts(CountBy(rows, model.ColStatus)),
		Channels:  nonNilCounts(TopCounts(CountBy(rows, model.ColChannel), DefaultTopN)),
		Districts: nonNilCounts(TopCounts(CountBy(rows, model.ColDistrict), DefaultTopN)),
	}
	for _, r := range rows {
		if _, ok := Coordinates(r); ok {
			out.WithCoord++
		}
	}
	return out
}

// Coordinates 取客户经纬度；缺失或为 0 时返回 false
func Coordinates(r model.Row) ([2]float64, bool) {
	lat, ok1 := r.Get(model.ColLat).Float()
	lng, ok2 := r.Get(model.ColLng).Float()
	if !ok1 || !ok2 || lat == 0 || lng == 0 {
		return [2]float64{}, false
	}
	return [2]float64{lat, lng}, true
}

func summarizeStaff(rows []model.Row, cls columns.Classification) *StaffSummary {
	out := &StaffSummary{
		UniqueStaff:    Distinct(rows, model.ColStaffName),
		UniqueRoutes:   Distinct(rows, model.ColRouteCode),
		TotalCalls:     Sum(rows, model.ColCalls),
		AvgCalls:       Mean(rows, model.ColCalls),
		ByStatus:       nonNilCounts(CountBy(rows, model.ColStaffStatus)),
		TopSupervisors: nonNilCounts(TopCounts(CountBy(rows, model.ColSupervisor), DefaultTopN)),
		TopStaff:       TopN(SumBy(rows, model.ColStaffName, model.ColCalls), DefaultTopN),
		WeekdayTotals:  []Entity{},
	}
	if !cls.HasDays() {
		return out
	}
	// 同一星期在各周的合计
	totals := make(map[int]float64)
	for _, name := range cls.Day {
		d, ok := columns.ParseDay(name)
		if !ok {
			continue
		}
		totals[d.Weekday] += Sum(rows, name)
	}
	for wd := 2; wd <= 7; wd++ {
		if v, ok := totals[wd]; ok {
			out.WeekdayTotals = append(out.WeekdayTotals, Entity{Name: "T" + strconv.Itoa(wd), Value: v})
		}
	}
	return out
}

var (
	dmsWeekColumn     = regexp.MustCompile(`^W(\d+)_TanSuatDMS$`)
	suggestWeekColumn = regexp.MustCompile(`^W(\d+)_TanSuatGoiY_Mapping$`)
)

func summarizeDetail(rows []model.Row, cls columns.Classification) *DetailSummary {
	out := &DetailSummary{
		TotalRevenue: Sum(rows, model.ColAvgRevenue),
		AvgCustFreq:  Mean(rows, model.ColCustomerFreq),
		TopStaff:     TopN(SumBy(rows, model.ColSuggestStaffName, model.ColAvgRevenue), DefaultTopN),
		Channels:     nonNilCounts(CountBy(rows, model.ColProductChannel)),
		RouteDays:    []Entity{},
		Weeks:        []WeekCompare{},
	}

	for wd := 2; wd <= 7; wd++ {
		col := fmt.Sprintf("T%d_LoTrinhDMS", wd)
		if hasColumn(cls, col) {
			out.RouteDays = append(out.RouteDays, Entity{Name: fmt.Sprintf("T%d", wd), Value: Sum(rows, col)})
		}
	}

	weeks := weekNumbers(cls)
	for _, w := range weeks {
		out.Weeks = append(out.Weeks, WeekCompare{
			Week:    fmt.Sprintf("W%d", w),
			DMS:     Sum(rows, fmt.Sprintf("W%d_TanSuatDMS", w)),
			Suggest: Sum(rows, fmt.Sprintf("W%d_TanSuatGoiY_Mapping", w)),
		})
	}

	for _, r := range rows {
		switch r.Get(model.ColFreqCheck).String() {
		case model.CheckOK:
			out.CheckOK++
		case model.CheckError:
			out.CheckError++
		}
	}
	return out
}

func hasColumn(cls columns.Classification, col string) bool {
	_, ok := cls.Groups[col]
	return ok
}

// weekNumbers 路线明细中出现的周编号（升序）
func weekNumbers(cls columns.Classification) []int {
	seen := make(map[int]bool)
	for _, c := range cls.Columns {
		for _, re := range []*regexp.Regexp{dmsWeekColumn, suggestWeekColumn} {
			if m := re.FindStringSubmatch(c); m != nil {
				n, _ := strconv.Atoi(m[1])
				seen[n] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
