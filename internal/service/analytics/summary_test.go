package analytics

import (
	"reflect"
	"testing"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

func revenueRow(code string, t, tb float64, class string) model.Row {
	r := model.NewRow(model.SheetRevenue)
	r.Revenue.CustCode = code
	r.Revenue.Months[3] = t
	r.Revenue.Average = tb
	r.Revenue.Class = class
	return r
}

func names(es []Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name
	}
	return out
}

func TestTopN_TiesBreakByName(t *testing.T) {
	t.Parallel()

	in := []Entity{{"B", 10}, {"A", 10}, {"C", 5}}
	for i := 0; i < 3; i++ {
		got := names(TopN(in, 2))
		if !reflect.DeepEqual(got, []string{"A", "B"}) {
			t.Fatalf("run %d: unexpected top2: %v", i, got)
		}
	}
	if !reflect.DeepEqual(names(in), []string{"B", "A", "C"}) {
		t.Fatalf("input mutated: %v", names(in))
	}
}

func TestTopCounts_TiesBreakByFirstSeen(t *testing.T) {
	t.Parallel()

	counts := []CategoryCount{{"GT", 2}, {"MT", 3}, {"HORECA", 2}, {"Online", 1}}
	got := TopCounts(counts, 3)
	want := []CategoryCount{{"MT", 3}, {"GT", 2}, {"HORECA", 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestSum_ZeroFillsMissingAndNonNumeric(t *testing.T) {
	t.Parallel()

	mk := func(v model.Value) model.Row {
		r := model.NewRow(model.SheetStaffRoutes)
		r.Set("T2", v)
		return r
	}
	rows := []model.Row{mk(model.Number(4)), mk(model.Text("abc")), mk(model.Empty()), mk(model.Text("6"))}
	if got := Sum(rows, "T2"); got != 10 {
		t.Fatalf("unexpected sum: %v", got)
	}
	// 平均值除以参与的行数
	if diff := Mean(rows, "T2") - 2.5; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("unexpected mean: %v", Mean(rows, "T2"))
	}
	if Mean(nil, "T2") != 0 {
		t.Fatalf("mean of empty set should be 0")
	}
}

func TestSummarize_RevenueBucketsAndTop(t *testing.T) {
	t.Parallel()

	rows := []model.Row{
		revenueRow("A", 6_000_000, 5_500_000, "VIP"),
		revenueRow("B", 2_500_000, 2_100_000, "High"),
		revenueRow("C", 100, 50, "Low"),
		revenueRow("D", 3_000_000, 2_100_000, "High"),
	}
	cols := []string{model.ColCustCode, model.ColT, model.ColAvg, model.ColClass}
	s := Summarize(rows, model.SheetRevenue, columns.Classify(model.SheetRevenue, cols))

	if s.TotalRows != 4 || s.Revenue.TotalT != 11_500_100 {
		t.Fatalf("unexpected totals: %+v", s.Revenue)
	}
	if len(s.Revenue.Classes) != 4 {
		t.Fatalf("unexpected classes: %+v", s.Revenue.Classes)
	}
	high := s.Revenue.Classes[1]
	if high.Class != "High" || high.Count != 2 || high.Current != 5_500_000 || high.Avg != 2_100_000 {
		t.Fatalf("unexpected High bucket: %+v", high)
	}
	if med := s.Revenue.Classes[2]; med.Count != 0 || med.Avg != 0 {
		t.Fatalf("empty bucket should be zero: %+v", med)
	}
	var top []string
	for _, r := range s.Revenue.Top {
		top = append(top, r.CustCode)
	}
	if !reflect.DeepEqual(top, []string{"A", "B", "D", "C"}) {
		t.Fatalf("unexpected top: %v", top)
	}
}

func TestSummarize_EmptyRowsIsValid(t *testing.T) {
	t.Parallel()

	for _, sheet := range model.TableSheets {
		s := Summarize(nil, sheet, columns.Classify(sheet, nil))
		if s.TotalRows != 0 {
			t.Fatalf("%s: unexpected rows", sheet)
		}
	}
}

func TestSummarize_StaffWeekdayTotals(t *testing.T) {
	t.Parallel()

	mk := func(name string, calls float64, t2, t2w2 model.Value) model.Row {
		r := model.NewRow(model.SheetStaffRoutes)
		r.Staff.StaffName = name
		r.Staff.Calls = calls
		r.Set("T2", t2)
		r.Set("T2.1", t2w2)
		return r
	}
	rows := []model.Row{
		mk("An", 100, model.Number(3), model.Number(4)),
		mk("Bình", 300, model.Empty(), model.Number(1)),
	}
	cls := columns.Classify(model.SheetStaffRoutes, []string{model.ColStaffName, model.ColCalls, "T2", "T2.1"})
	s := Summarize(rows, model.SheetStaffRoutes, cls)

	if !reflect.DeepEqual(s.Staff.WeekdayTotals, []Entity{{"T2", 8}}) {
		t.Fatalf("unexpected weekday totals: %+v", s.Staff.WeekdayTotals)
	}
	if !reflect.DeepEqual(names(s.Staff.TopStaff), []string{"Bình", "An"}) {
		t.Fatalf("unexpected top staff: %+v", s.Staff.TopStaff)
	}
	if s.Staff.AvgCalls != 200 || s.Staff.UniqueStaff != 2 {
		t.Fatalf("unexpected staff stats: %+v", s.Staff)
	}
}

func TestSummarize_RouteDetail(t *testing.T) {
	t.Parallel()

	mk := func(code, staff, channel string, ds float64, t2, w1dms, w1goi float64, check string) model.Row {
		r := model.NewRow(model.SheetRouteDetail)
		r.Detail.CustCode = code
		r.Detail.SuggestStaffName = staff
		r.Detail.ProductChannel = channel
		r.Detail.AvgRevenue = ds
		r.Detail.FreqCheck = check
		r.Set("T2_LoTrinhDMS", model.Number(t2))
		r.Set("W1_TanSuatDMS", model.Number(w1dms))
		r.Set("W1_TanSuatGoiY_Mapping", model.Number(w1goi))
		return r
	}
	rows := []model.Row{
		mk("K1", "NV A", "GT", 100, 1, 1, 0, model.CheckOK),
		mk("K2", "NV B", "MT", 300, 0, 1, 1, model.CheckError),
		mk("K3", "NV A", "GT", 250, 1, 0, 1, model.CheckOK),
	}
	cls := columns.Classify(model.SheetRouteDetail, []string{
		model.ColDetailCustCode, "T2_LoTrinhDMS", "W1_TanSuatDMS", "W1_TanSuatGoiY_Mapping",
		model.ColSuggestStaffName, model.ColProductChannel, model.ColAvgRevenue, model.ColFreqCheck,
	})
	d := Summarize(rows, model.SheetRouteDetail, cls).Detail

	if d.TotalRevenue != 650 {
		t.Fatalf("unexpected total: %v", d.TotalRevenue)
	}
	if !reflect.DeepEqual(d.TopStaff, []Entity{{"NV A", 350}, {"NV B", 300}}) {
		t.Fatalf("unexpected top staff: %+v", d.TopStaff)
	}
	if !reflect.DeepEqual(d.RouteDays, []Entity{{"T2", 2}}) {
		t.Fatalf("unexpected route days: %+v", d.RouteDays)
	}
	if !reflect.DeepEqual(d.Weeks, []WeekCompare{{Week: "W1", DMS: 2, Suggest: 2}}) {
		t.Fatalf("unexpected weeks: %+v", d.Weeks)
	}
	if d.CheckOK != 2 || d.CheckError != 1 {
		t.Fatalf("unexpected check counts: %d/%d", d.CheckOK, d.CheckError)
	}
	if !reflect.DeepEqual(d.Channels, []CategoryCount{{"GT", 2}, {"MT", 1}}) {
		t.Fatalf("unexpected channels: %+v", d.Channels)
	}
}
