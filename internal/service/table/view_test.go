package table

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
)

func staffRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		r := model.NewRow(model.SheetStaffRoutes)
		r.Staff.StaffName = fmt.Sprintf("NV%03d", i)
		r.Staff.Calls = float64(i)
		rows[i] = r
	}
	return rows
}

func keys(v View) []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Key
	}
	return out
}

func TestPaginate_Clamps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                string
		total, page, size   int
		wantStart, wantEnd  int
		wantPage, wantPages int
	}{
		{"first", 105, 1, 50, 0, 50, 1, 3},
		{"zero", 105, 0, 50, 0, 50, 1, 3},
		{"negative", 105, -3, 50, 0, 50, 1, 3},
		{"overflow", 105, 4, 50, 100, 105, 3, 3},
		{"empty", 0, 5, 50, 0, 0, 1, 0},
		{"default size", 250, 3, 0, 200, 250, 3, 3},
		{"huge size", 105, 1, math.MaxInt, 0, 105, 1, 1},
		{"huge size huge page", 2500, math.MaxInt, math.MaxInt, 2000, 2500, 3, 3},
	}
	for _, tc := range cases {
		start, end, page, pages := Paginate(tc.total, tc.page, tc.size)
		if start != tc.wantStart || end != tc.wantEnd || page != tc.wantPage || pages != tc.wantPages {
			t.Fatalf("%s: got (%d,%d,%d,%d)", tc.name, start, end, page, pages)
		}
	}
}

func TestBuild_CapsPageSize(t *testing.T) {
	t.Parallel()

	cls := columns.Classify(model.SheetStaffRoutes, []string{model.ColStaffName, model.ColCalls})
	v := Build(staffRows(1005), cls, Query{Page: 2, PageSize: math.MaxInt})
	if v.PageSize != MaxPageSize || v.TotalPages != 2 || v.Page != 2 || len(v.Rows) != 5 {
		t.Fatalf("unexpected view: size=%d page=%d pages=%d rows=%d", v.PageSize, v.Page, v.TotalPages, len(v.Rows))
	}
}

func TestBuild_PageBeyondLastShowsLastPage(t *testing.T) {
	t.Parallel()

	rows := staffRows(105)
	cls := columns.Classify(model.SheetStaffRoutes, []string{model.ColStaffName, model.ColCalls})
	v := Build(rows, cls, Query{Page: 4, PageSize: 50})

	if v.Page != 3 || v.TotalPages != 3 || v.TotalRows != 105 || len(v.Rows) != 5 {
		t.Fatalf("unexpected view: page=%d pages=%d rows=%d", v.Page, v.TotalPages, len(v.Rows))
	}
	if v.Rows[0].Key != "NV100" {
		t.Fatalf("unexpected first row: %s", v.Rows[0].Key)
	}

	empty := Build(nil, cls, Query{Page: 2})
	if empty.Page != 1 || empty.TotalPages != 0 || len(empty.Rows) != 0 || empty.PageSize != DefaultPageSize {
		t.Fatalf("unexpected empty view: %+v", empty)
	}
}

func TestSort_MixedValues(t *testing.T) {
	t.Parallel()

	vals := []model.Value{
		model.Text("Đức"), model.Number(5), model.Empty(), model.Text("An"),
		model.Number(2), model.Text("Bình"), model.Empty(),
	}
	rows := make([]model.Row, len(vals))
	for i, v := range vals {
		r := model.NewRow(model.SheetStaffRoutes)
		r.Staff.StaffName = fmt.Sprintf("r%d", i)
		r.Set("Ghi chú", v)
		rows[i] = r
	}

	order := func(rs []model.Row) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Key()
		}
		return out
	}

	asc := order(Sort(rows, "Ghi chú", false))
	if want := []string{"r4", "r1", "r3", "r5", "r0", "r2", "r6"}; !reflect.DeepEqual(asc, want) {
		t.Fatalf("asc: got=%v want=%v", asc, want)
	}
	desc := order(Sort(rows, "Ghi chú", true))
	if want := []string{"r0", "r5", "r3", "r1", "r4", "r2", "r6"}; !reflect.DeepEqual(desc, want) {
		t.Fatalf("desc: got=%v want=%v", desc, want)
	}
	if got := order(Sort(rows, "", false)); !reflect.DeepEqual(got, order(rows)) {
		t.Fatalf("no sort key should keep input order: %v", got)
	}
}

func TestSort_Stable(t *testing.T) {
	t.Parallel()

	rows := staffRows(6)
	for i := range rows {
		rows[i].Staff.Calls = float64(i % 2)
	}
	got := Sort(rows, model.ColCalls, false)
	want := []string{"NV000", "NV002", "NV004", "NV001", "NV003", "NV005"}
	for i, r := range got {
		if r.Key() != want[i] {
			t.Fatalf("unstable order at %d: %s", i, r.Key())
		}
	}
	if rows[1].Key() != "NV001" {
		t.Fatalf("input reordered")
	}
}

func TestHeaders_StaffWeeks(t *testing.T) {
	t.Parallel()

	cols := []string{model.ColStaffName, model.ColCalls, "T3.1", "T2", "T3", "T2.1"}
	groups, order := Headers(columns.Classify(model.SheetStaffRoutes, cols))

	var labels []string
	for _, g := range groups {
		labels = append(labels, fmt.Sprintf("%s/%d", g.Label, g.Span))
	}
	if want := []string{"Thông tin/1", "Calls/1", "Tuần 1/2", "Tuần 2/2"}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("unexpected groups: %v", labels)
	}
	if want := []string{model.ColStaffName, model.ColCalls, "T2", "T3", "T2.1", "T3.1"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("unexpected column order: %v", order)
	}
	if groups[3].Columns[1].Label != "T3" {
		t.Fatalf("unexpected day label: %+v", groups[3].Columns[1])
	}
}

func TestBuild_FlagCells(t *testing.T) {
	t.Parallel()

	r := model.NewRow(model.SheetRouteDetail)
	r.Detail.CustCode = "KH1"
	r.Set("T2_LoTrinhDMS", model.Number(1))
	r.Set("T3_LoTrinhDMS", model.Number(0))
	r.Set("W1_TanSuatDMS", model.Text("1"))
	cols := []string{model.ColDetailCustCode, "T2_LoTrinhDMS", "T3_LoTrinhDMS", "W1_TanSuatDMS"}
	v := Build([]model.Row{r}, columns.Classify(model.SheetRouteDetail, cols), Query{})

	if want := []string{"KH1", MarkSet, MarkCleared, MarkSet}; !reflect.DeepEqual(v.Rows[0].Display, want) {
		t.Fatalf("unexpected display: %v", v.Rows[0].Display)
	}
	if got := v.Rows[0].Values.Get("T2_LoTrinhDMS"); !got.Equal(model.Number(1)) {
		t.Fatalf("raw value should be kept: %v", got)
	}
	if keys(v)[0] != "KH1" {
		t.Fatalf("unexpected keys: %v", keys(v))
	}
}
