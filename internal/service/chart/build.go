package chart

import (
	"math"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/analytics"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

// Set 某一工作表的全部图表
type Set struct {
	Sheet  model.SheetType `json:"sheet"`
	Charts []Chart         `json:"charts"`
	Weekly []WeeklyLines   `json:"weekly"`
}

// Build 由筛选后的行与其汇总生成图表；没有日列时只输出基础图表
func Build(rows []model.Row, sheet model.SheetType, cls columns.Classification, sum analytics.Summary) Set {
	set := Set{Sheet: sheet, Charts: []Chart{}, Weekly: []WeeklyLines{}}
	switch sheet {
	case model.SheetRevenue:
		if s := sum.Revenue; s != nil {
			set.Charts = append(set.Charts,
				Chart{ID: "monthly", Kind: KindLine, Title: "Doanh số theo tháng", Points: FromEntities(s.Months)},
				Chart{ID: "classes", Kind: KindPie, Title: "Phân loại khách hàng", Points: classPoints(s.Classes)},
				Chart{ID: "top10", Kind: KindBar, Title: "Top 10 khách hàng theo TB", Points: revenueTopPoints(s.Top)},
			)
		}
	case model.SheetCustomers:
		if s := sum.Customers; s != nil {
			set.Charts = append(set.Charts,
				Chart{ID: "status", Kind: KindPie, Title: "Trạng thái", Points: FromCounts(s.ByStatus)},
				Chart{ID: "channels", Kind: KindPie, Title: "Kênh", Points: FromCounts(s.Channels)},
				Chart{ID: "districts", Kind: KindBar, Title: "Quận/huyện", Points: FromCounts(s.Districts)},
			)
		}
	case model.SheetStaffRoutes:
		set.Charts = append(set.Charts, staffPerformance(rows))
		if cls.HasDays() {
			set.Charts = append(set.Charts, Chart{
				ID: "weekday_avg", Kind: KindBar, Title: "Trung bình calls theo thứ",
				Points: WeekdayAverages(rows, cls),
			})
			set.Weekly = BuildWeeklyLines(rows, cls, model.ColStaffName, model.ColCalls, MaxEntities)
		}
	case model.SheetRouteDetail:
		if s := sum.Detail; s != nil {
			set.Charts = append(set.Charts,
				Chart{ID: "route_days", Kind: KindBar, Title: "Lộ trình theo ngày", Points: FromEntities(s.RouteDays)},
				weekCompare(s.Weeks),
				Chart{ID: "kenh_hang", Kind: KindPie, Title: "Kênh hàng", Points: FromCounts(s.Channels)},
				Chart{ID: "top_staff", Kind: KindBar, Title: "Top nhân viên theo doanh số", Points: FromEntities(s.TopStaff)},
			)
		}
	}
	return set
}

func classPoints(buckets []analytics.ClassBucket) []Point {
	out := make([]Point, 0, len(buckets))
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		out = append(out, Point{Label: b.Class, Value: float64(b.Count)})
	}
	return out
}

func revenueTopPoints(top []analytics.RevenueTop) []Point {
	out := make([]Point, 0, len(top))
	for _, t := range top {
		out = append(out, Point{Label: t.CustCode, Value: t.TB})
	}
	return out
}

// staffPerformance 前 10 名员工的 Số Calls / Call Min / Call Max
func staffPerformance(rows []model.Row) Chart {
	series := []string{model.ColCalls, model.ColCallMin, model.ColCallMax}
	c := Chart{ID: "performance", Kind: KindBar, Title: "Hiệu suất nhân viên", Series: series, Multi: []MultiPoint{}}
	top := analytics.TopN(analytics.SumBy(rows, model.ColStaffName, model.ColCalls), analytics.DefaultTopN)
	for _, e := range top {
		minCall, maxCall := math.Inf(1), 0.0
		for _, r := range rows {
			if r.Key() != e.Name {
				continue
			}
			if v := r.Get(model.ColCallMin).FloatOrZero(); v < minCall {
				minCall = v
			}
			if v := r.Get(model.ColCallMax).FloatOrZero(); v > maxCall {
				maxCall = v
			}
		}
		if math.IsInf(minCall, 1) {
			minCall = 0
		}
		calls := e.Value
		c.Multi = append(c.Multi, MultiPoint{Label: e.Name, Values: []SeriesValue{
			{Name: model.ColCalls, Value: &calls},
			{Name: model.ColCallMin, Value: &minCall},
			{Name: model.ColCallMax, Value: &maxCall},
		}})
	}
	return c
}

func weekCompare(weeks []analytics.WeekCompare) Chart {
	c := Chart{
		ID: "dms_vs_goi_y", Kind: KindLine, Title: "Tần suất DMS và gợi ý theo tuần",
		Series: []string{"DMS", "Gợi ý"}, Multi: []MultiPoint{},
	}
	for _, w := range weeks {
		dms, sug := w.DMS, w.Suggest
		c.Multi = append(c.Multi, MultiPoint{Label: w.Week, Values: []SeriesValue{
			{Name: "DMS", Value: &dms},
			{Name: "Gợi ý", Value: &sug},
		}})
	}
	return c
}
