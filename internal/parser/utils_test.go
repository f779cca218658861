package parser

import (
	"strings"
	"testing"
)

func TestFoldKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Tần suất GSBH chia lại": "tan suat gsbh chia lai",
		"Đường_Số  1":            "duong so 1",
		" Mã\nkhách hàng ":       "ma khach hang",
		"Quận/huyện":             "quan/huyen",
	}
	for in, want := range cases {
		if got := FoldKey(in); got != want {
			t.Fatalf("FoldKey(%q) want=%q got=%q", in, want, got)
		}
	}
}

func TestDedupeHeaders(t *testing.T) {
	t.Parallel()

	got := DedupeHeaders([]string{"T2", "T2", "", "T2.1", "T2"})
	want := []string{"T2", "T2.2", "Unnamed_3", "T2.1", "T2.3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d want=%q got=%q (%v)", i, want[i], got[i], got)
		}
	}
}

func TestFlattenHeaders(t *testing.T) {
	t.Parallel()

	got := FlattenHeaders(
		[]string{"STT", "Lộ trình DMS", "", "", "Ghi chú"},
		[]string{"", "T2", "T3", "", ""},
	)
	want := []string{"STT", "Lộ trình DMS T2", "Lộ trình DMS T3", "", "Ghi chú"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("want=%v got=%v", want, got)
	}
}

func TestRenameDetailColumns(t *testing.T) {
	t.Parallel()

	headers := []string{
		"STT",
		"Mã khách hàng",
		"Lộ trình DMS T8",
		"Tần suất DMS W2",
		"Tần suất gợi ý W1",
		"Tần suất gợi ý",
		"Tần suất gợi ý (tham khảo)",
		"Kênh hàng",
		"Kênh",
		"Mã khách hàng",
		"Cột lạ",
	}
	got := RenameDetailColumns(headers)
	want := map[int]string{
		0: "STT",
		1: "MaKhachHang",
		3: "W2_TanSuatDMS",
		4: "W1_TanSuatGoiY_Mapping",
		5: "TanSuatGoiYValue",
		6: "TanSuatGoiY",
		7: "KenhHang",
		8: "KenhPhanPhoi",
	}
	if len(got) != len(want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("column %d want=%q got=%q", i, name, got[i])
		}
	}
}

func TestReadCSV_Windows1258(t *testing.T) {
	t.Parallel()

	// "Mã khách hàng" 以 Windows-1258 编码，ã 为 a + 组合波浪号
	raw := "Ma\xde kh\xe1ch h\xe0ng,T\nKH01,100\n"
	g, err := ReadCSV("Chi tiet tuyen.csv", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if g.Name != "Chi tiet tuyen" {
		t.Fatalf("name: %q", g.Name)
	}
	if got := g.Cell(0, 0); got != "Mã khách hàng" {
		t.Fatalf("header: %q", got)
	}
	if got := g.Cell(1, 1); got != "100" {
		t.Fatalf("cell: %q", got)
	}
	if got := g.Cell(5, 5); got != "" {
		t.Fatalf("out of range: %q", got)
	}
}

func TestReadCSV_UTF8BOM(t *testing.T) {
	t.Parallel()

	g, err := ReadCSV("dskh.csv", strings.NewReader("\xEF\xBB\xBFMã khách hàng,Kênh\nKH01"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if g.Cell(0, 0) != "Mã khách hàng" || g.Cell(1, 0) != "KH01" {
		t.Fatalf("rows: %v", g.Rows)
	}
}

func TestReadGrids_Unsupported(t *testing.T) {
	t.Parallel()

	if IsSupported("a.txt") || !IsSupported("A.XLSX") {
		t.Fatalf("unexpected IsSupported result")
	}
	if _, err := ReadGrids("a.txt", strings.NewReader("")); err == nil {
		t.Fatalf("expected error")
	}
}
