package recalc

import (
	"math"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// Thresholds 客户分级阈值（按 TB Doanh số）
type Thresholds struct {
	VIP    float64 `toml:"vip" validate:"gte=0"`
	High   float64 `toml:"high" validate:"gte=0,ltefield=VIP"`
	Medium float64 `toml:"medium" validate:"gte=0,ltefield=High"`
}

// DefaultThresholds 默认分级阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		VIP:    5_000_000,
		High:   2_000_000,
		Medium: 500_000,
	}
}

// 客户分级
const (
	ClassVIP    = "VIP"
	ClassHigh   = "High"
	ClassMedium = "Medium"
	ClassLow    = "Low"
)

// Average T-3..T-1 三个月平均（取整）；三个月合计不大于 0 时为 0
func Average(months [4]float64) float64 {
	sum := months[0] + months[1] + months[2]
	if sum <= 0 {
		return 0
	}
	return math.Round(sum / 3)
}

// Forecast 下月预测（取整）：T + (T - T-3) / 3，不低于 0；T-3 不大于 0 时趋势按 0 计
func Forecast(months [4]float64) float64 {
	trend := 0.0
	if months[0] > 0 {
		trend = (months[3] - months[0]) / 3
	}
	return math.Max(0, math.Round(months[3]+trend))
}

// ClassOf 按 TB Doanh số 分级
func ClassOf(tb float64, th Thresholds) string {
	switch {
	case tb >= th.VIP:
		return ClassVIP
	case tb >= th.High:
		return ClassHigh
	case tb >= th.Medium:
		return ClassMedium
	default:
		return ClassLow
	}
}

// EnrichRevenue 计算营收表的派生列（原地写入）
func EnrichRevenue(ds *model.Dataset, th Thresholds) {
	if ds == nil || ds.Type != model.SheetRevenue {
		return
	}
	for _, r := range ds.Rows {
		rev := r.Revenue
		if rev == nil {
			continue
		}
		rev.Average = Average(rev.Months)
		rev.Forecast = Forecast(rev.Months)
		rev.Class = ClassOf(rev.Average, th)
	}
	for _, c := range model.DerivedColumns(model.SheetRevenue) {
		ds.EnsureColumn(c)
	}
}

// revenueIndex 客户编码 → TB Doanh số
func revenueIndex(wb *model.Workbook) map[string]float64 {
	ds, err := wb.Dataset(model.SheetRevenue)
	if err != nil {
		return nil
	}
	idx := make(map[string]float64, len(ds.Rows))
	for _, r := range ds.Rows {
		if r.Revenue == nil || r.Revenue.CustCode == "" {
			continue
		}
		if _, dup := idx[r.Revenue.CustCode]; dup {
			continue
		}
		idx[r.Revenue.CustCode] = r.Revenue.Average
	}
	return idx
}
