package recalc

import (
	"math"
	"regexp"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// 频次
const (
	FreqF0 = "F0"
	FreqF2 = "F2"
	FreqF4 = "F4"
	FreqF8 = "F8"
)

// 负载状态
const (
	StatusShort = "Thiếu"
	StatusOver  = "Vượt"
	StatusOK    = "Đạt"
)

// callsPerFrequency 频次 → 每月拜访次数
var callsPerFrequency = map[string]float64{
	"F0":  0,
	"F1":  1,
	"F2":  2,
	"F3":  3,
	"F4":  4,
	"F8":  8,
	"F12": 12,
}

var frequencyPattern = regexp.MustCompile(`^F\d+$`)

// ValidFrequency 是否为合法频次（规范化后为 F<n>，或为空）
func ValidFrequency(v model.Value) bool {
	f := model.NormalizeFrequency(v)
	return f == "" || frequencyPattern.MatchString(f)
}

// SuggestFrequency 按平均营收与主参数阈值给出建议频次
func SuggestFrequency(revenue float64, p model.MasterParams) string {
	switch {
	case math.IsNaN(revenue):
		return FreqF0
	case revenue >= p.ThresholdF8:
		return FreqF8
	case revenue >= p.ThresholdF4:
		return FreqF4
	case revenue >= p.ThresholdF2:
		return FreqF2
	default:
		return FreqF0
	}
}

// CallsPerMonth 频次对应的每月拜访次数，未知频次为 0
func CallsPerMonth(freq string) float64 {
	return callsPerFrequency[freq]
}

// RecalcDetail 重算路线明细的派生列（原地写入）：
// DS_TB_Final 优先取营收表的 TB Doanh số，缺失时取本行 DoanhSoTB
func RecalcDetail(ds *model.Dataset, revenue map[string]float64, p model.MasterParams) {
	if ds == nil || ds.Type != model.SheetRouteDetail {
		return
	}
	for _, r := range ds.Rows {
		d := r.Detail
		if d == nil {
			continue
		}
		final, ok := revenue[d.CustCode]
		if !ok {
			final = d.AvgRevenue
		}
		if math.IsNaN(final) || math.IsInf(final, 0) {
			final = 0
		}
		d.FinalRevenue = final
		d.ProposedFreq = SuggestFrequency(final, p)
		if d.FreqSplit == d.ProposedFreq {
			d.FreqCheck = model.CheckOK
		} else {
			d.FreqCheck = model.CheckError
		}
		d.CallsMonth = CallsPerMonth(d.FreqSplit)
	}
	for _, c := range model.DerivedColumns(model.SheetRouteDetail) {
		ds.EnsureColumn(c)
	}
}

// Balance 按 (Mã tuyến, Mã nhân viên phụ trách) 汇总负载，分组按首次出现顺序
func Balance(rows []model.Row, p model.MasterParams) []model.BalanceLoad {
	type groupKey struct{ route, staff string }
	index := make(map[groupKey]int)
	out := []model.BalanceLoad{}
	for _, r := range rows {
		d := r.Detail
		if d == nil {
			continue
		}
		k := groupKey{d.RouteCode, d.OwnerStaff}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, model.BalanceLoad{
				RouteCode: d.RouteCode,
				StaffCode: d.OwnerStaff,
				CustMin:   p.CustMinStaff,
				CustMax:   p.CustMaxStaff,
				CallMin:   p.CallMinMonth,
				CallMax:   p.CallMaxMonth,
			})
		}
		b := &out[i]
		if d.CustCode != "" {
			b.TotalCust++
		}
		b.TotalCalls += d.CallsMonth
		b.TotalRevenue += d.FinalRevenue
	}
	for i := range out {
		b := &out[i]
		b.CustStatus = loadStatus(float64(b.TotalCust), b.CustMin, b.CustMax)
		b.CallStatus = loadStatus(b.TotalCalls, b.CallMin, b.CallMax)
	}
	return out
}

func loadStatus(v, lo, hi float64) string {
	switch {
	case v < lo:
		return StatusShort
	case v > hi:
		return StatusOver
	default:
		return StatusOK
	}
}

// Refresh 重算工作簿中依赖主参数与营收的全部派生数据（原地写入）
func Refresh(wb *model.Workbook) {
	if wb == nil {
		return
	}
	ds, err := wb.Dataset(model.SheetRouteDetail)
	if err != nil {
		wb.Balance = nil
		return
	}
	RecalcDetail(ds, revenueIndex(wb), wb.Master)
	wb.Balance = Balance(ds.Rows, wb.Master)
}
