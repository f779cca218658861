package model

import (
	"reflect"
	"testing"
)

func TestRow_TypedAndExtraColumns(t *testing.T) {
	t.Parallel()

	r := NewRow(SheetRouteDetail)
	r.Set(ColDetailCustCode, Text("KH01"))
	r.Set(ColFreqSplit, Number(3))
	r.Set(ColAvgRevenue, Text("1,200"))
	r.Set("T2", Text("x"))

	if r.Key() != "KH01" {
		t.Fatalf("key: %q", r.Key())
	}
	if got := r.Get(ColFreqSplit); !got.Equal(Text("F3")) {
		t.Fatalf("freq split: %+v", got)
	}
	if r.Detail.AvgRevenue != 1200 {
		t.Fatalf("numeric coercion: %v", r.Detail.AvgRevenue)
	}
	if !r.Has("T2") || len(r.Extra) != 1 {
		t.Fatalf("extra column missing: %+v", r.Extra)
	}
	if r.Has("T3") || !r.Get("T3").IsEmpty() {
		t.Fatalf("unknown column must be empty")
	}

	r.Set("T2", Empty())
	if len(r.Extra) != 1 || !r.Get("T2").IsEmpty() {
		t.Fatalf("extra column overwrite: %+v", r.Extra)
	}
}

func TestRow_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := NewRow(SheetRouteDetail)
	r.Set(ColDetailCustCode, Text("KH01"))
	r.Set("T2", Text("x"))

	c := r.Clone()
	c.Set(ColDetailCustCode, Text("KH99"))
	c.Set("T2", Empty())

	if r.Key() != "KH01" || !r.Get("T2").Equal(Text("x")) {
		t.Fatalf("clone mutated original: %+v %+v", r.Detail, r.Extra)
	}
}

func TestDataset_FindRowAndRecords(t *testing.T) {
	t.Parallel()

	ds := &Dataset{Type: SheetCustomers, Columns: []string{ColCustomerCode, ColDistrict}}
	for _, code := range []string{"KH01", "KH02"} {
		r := NewRow(SheetCustomers)
		r.Set(ColCustomerCode, Text(code))
		r.Set(ColDistrict, Text("Q1"))
		ds.Rows = append(ds.Rows, r)
	}
	ds.EnsureColumn(ColDistrict)
	ds.EnsureColumn("Ghi chú")

	if len(ds.Columns) != 3 {
		t.Fatalf("columns: %v", ds.Columns)
	}
	if idx := ds.FindRows(" KH02 "); !reflect.DeepEqual(idx, []int{1}) {
		t.Fatalf("find rows: %v", idx)
	}
	if idx := ds.FindRows("KH09"); len(idx) != 0 {
		t.Fatalf("missing row: %v", idx)
	}
	dup := NewRow(SheetCustomers)
	dup.Set(ColCustomerCode, Text("KH01"))
	ds.Rows = append(ds.Rows, dup)
	if idx := ds.FindRows("KH01"); !reflect.DeepEqual(idx, []int{0, 2}) {
		t.Fatalf("duplicate keys: %v", idx)
	}
	ds.Rows = ds.Rows[:2]
	recs := ds.Records(ds.Rows)
	if len(recs) != 2 || recs[1].Get(ColCustomerCode).String() != "KH02" || len(recs[0]) != 3 {
		t.Fatalf("records: %+v", recs)
	}

	clone := ds.Clone()
	clone.Rows[0].Set(ColDistrict, Text("Q9"))
	if ds.Rows[0].Get(ColDistrict).String() != "Q1" {
		t.Fatalf("dataset clone shares rows")
	}
}

func TestSchemaHelpers(t *testing.T) {
	t.Parallel()

	if !IsNumericColumn(SheetRevenue, ColT) || IsNumericColumn(SheetRevenue, ColCustCode) {
		t.Fatalf("revenue numeric columns")
	}
	if IsNumericColumn(SheetMaster, ColT) {
		t.Fatalf("master has no typed columns")
	}
	if got := CanonicalColumn(SheetRouteDetail, " Freq_Chia "); got != ColFreqSplit {
		t.Fatalf("alias: %q", got)
	}
	if got := CanonicalColumn(SheetCustomers, "Freq_Chia"); got != "Freq_Chia" {
		t.Fatalf("aliases only apply to route detail: %q", got)
	}

	var p MasterParams
	if !p.Set("KH_Max_NVBH", 2) || p.CustMaxStaff != 2 {
		t.Fatalf("master set: %+v", p)
	}
	if p.Set("Unknown", 1) {
		t.Fatalf("unknown master key accepted")
	}
	if v, ok := DefaultMasterParams().Get("DS_Nguong_F2"); !ok || v != 1_000_000 {
		t.Fatalf("master get: %v %v", v, ok)
	}
}
