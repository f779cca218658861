package filter

import (
	"fmt"
	"net/url"
	"reflect"
	"testing"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

func customer(code, status, district, channel string) model.Row {
	r := model.NewRow(model.SheetCustomers)
	r.Set(model.ColCustomerCode, model.Text(code))
	r.Set(model.ColStatus, model.Text(status))
	r.Set(model.ColDistrict, model.Text(district))
	r.Set(model.ColChannel, model.Text(channel))
	return r
}

func keys(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key()
	}
	return out
}

func sampleRows() []model.Row {
	return []model.Row{
		customer("KH01", "Hoạt động", "Quận 1", "GT"),
		customer("KH02", "Ngưng", "Quận 1", "MT"),
		customer("KH03", "Hoạt động", "Quận 10", "GT"),
		customer("KH04", "", "Quận 3", "GT"),
		customer("KH05", "Hoạt động", " quận 1 ", "MT"),
	}
}

func TestApply_TextMatchIsTrimmedCaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()

	got := keys(Apply(sampleRows(), Spec{model.ColDistrict: "  QUẬN 1"}, nil))
	want := []string{"KH01", "KH02", "KH03", "KH05"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestApply_ExactModeForEnumeratedField(t *testing.T) {
	t.Parallel()

	modes := Modes{model.ColDistrict: ModeExact}
	got := keys(Apply(sampleRows(), Spec{model.ColDistrict: "quận 1"}, modes))
	want := []string{"KH01", "KH02", "KH05"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestApply_AllAndEmptyAreUnconstrained(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	for _, v := range []string{"", "all", " ALL "} {
		got := Apply(rows, Spec{model.ColStatus: v}, nil)
		if len(got) != len(rows) {
			t.Fatalf("value %q should not constrain: %d rows", v, len(got))
		}
	}
}

func TestApply_EmptyCellNeverMatchesValue(t *testing.T) {
	t.Parallel()

	got := keys(Apply(sampleRows(), Spec{model.ColStatus: "h"}, nil))
	for _, k := range got {
		if k == "KH04" {
			t.Fatalf("row with empty status matched")
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	spec := Spec{model.ColStatus: "hoạt", model.ColChannel: "gt"}
	once := Apply(sampleRows(), spec, nil)
	twice := Apply(once, spec, nil)
	if !reflect.DeepEqual(keys(once), keys(twice)) {
		t.Fatalf("not idempotent: %v vs %v", keys(once), keys(twice))
	}
}

func TestApply_AndComposition(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	both := Apply(rows, Spec{model.ColStatus: "hoạt", model.ColChannel: "mt"}, nil)
	chained := Apply(Apply(rows, Spec{model.ColStatus: "hoạt"}, nil), Spec{model.ColChannel: "mt"}, nil)
	if !reflect.DeepEqual(keys(both), keys(chained)) {
		t.Fatalf("AND composition differs: %v vs %v", keys(both), keys(chained))
	}
	if !reflect.DeepEqual(keys(both), []string{"KH05"}) {
		t.Fatalf("unexpected result: %v", keys(both))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	before := keys(rows)
	_ = Apply(rows, Spec{model.ColChannel: "mt"}, nil)
	if !reflect.DeepEqual(before, keys(rows)) {
		t.Fatalf("input mutated")
	}
}

func TestComputeOptions_FirstSeenOrder(t *testing.T) {
	t.Parallel()

	opts := ComputeOptions(sampleRows(), []string{model.ColChannel, model.ColStatus}, 0)
	ch, _ := opts.Get(model.ColChannel)
	if !reflect.DeepEqual(ch.Values, []string{"GT", "MT"}) || !ch.Enumerated {
		t.Fatalf("unexpected channel options: %+v", ch)
	}
	st, _ := opts.Get(model.ColStatus)
	if !reflect.DeepEqual(st.Values, []string{"Hoạt động", "Ngưng"}) {
		t.Fatalf("empty values should be skipped: %+v", st)
	}
}

func TestComputeOptions_CapAffectsDisplayOnly(t *testing.T) {
	t.Parallel()

	var rows []model.Row
	for i := 1; i <= 80; i++ {
		rows = append(rows, customer(fmt.Sprintf("KH-%03d", i), "", "", ""))
	}
	opts := ComputeOptions(rows, []string{model.ColCustomerCode}, DefaultOptionCap)
	o, _ := opts.Get(model.ColCustomerCode)
	if len(o.Values) != 50 || o.Total != 80 || o.Enumerated {
		t.Fatalf("unexpected options: len=%d total=%d enumerated=%v", len(o.Values), o.Total, o.Enumerated)
	}

	got := keys(Apply(rows, Spec{model.ColCustomerCode: "KH-051"}, opts.Modes()))
	if !reflect.DeepEqual(got, []string{"KH-051"}) {
		t.Fatalf("51st value should still match: %v", got)
	}
}

func TestParseQuery_RevenueSpecialParams(t *testing.T) {
	t.Parallel()

	q := url.Values{"custcode": {"kh"}, "classification": {"VIP"}, "page": {"2"}, "Unknown": {"x"}}
	spec, modes := ParseQuery(model.SheetRevenue, q, []string{model.ColCustCode, model.ColClass})
	if spec[model.ColCustCode] != "kh" || spec[model.ColClass] != "VIP" || len(spec) != 2 {
		t.Fatalf("unexpected spec: %v", spec)
	}
	if modes[model.ColClass] != ModeExact || modes[model.ColCustCode] != ModeText {
		t.Fatalf("unexpected modes: %v", modes)
	}
}

func TestSpecCanonical_StableAndIgnoresUnconstrained(t *testing.T) {
	t.Parallel()

	a := Spec{"b": "Y", "a": "x", "c": "all"}
	b := Spec{"a": " X ", "b": "y"}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("canonical differs: %q vs %q", a.Canonical(), b.Canonical())
	}
}
