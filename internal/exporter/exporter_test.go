package exporter

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/huuly01092003/Smart-bi/internal/importer"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
	"github.com/huuly01092003/Smart-bi/internal/testfixture"
)

func loadWorkbook(t *testing.T) *model.Workbook {
	t.Helper()
	out, _, err := importer.NewCoordinator(nil, recalc.DefaultThresholds()).Run(context.Background(), importer.ImportOptions{
		Files: []importer.Input{{Filename: "data.xlsx", Data: testfixture.Full(t)}},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return out.Workbook
}

func TestExport_SheetsAndValues(t *testing.T) {
	t.Parallel()

	wb := loadWorkbook(t)
	var percents []int
	var stages []string
	f, err := NewExporter().Export(context.Background(), wb, ExportOptions{
		Progress: func(p ProgressEvent) {
			percents = append(percents, p.Percent)
			stages = append(stages, p.Stage)
			if p.Steps != 6 || p.Step != len(percents) {
				t.Errorf("step %d/%d at event %d", p.Step, p.Steps, len(percents))
			}
		},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = back.Close() })

	want := []string{"Doanh số khách hàng", "DSKH", "Tuyến và nhân viên", "Chi tiết tuyến", BalanceSheet, MasterSheet}
	got := back.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sheet %d: want=%s got=%s", i, want[i], got[i])
		}
	}

	rows, err := back.GetRows("Doanh số khách hàng")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("revenue rows: %d", len(rows))
	}
	header := map[string]int{}
	for i, h := range rows[0] {
		header[h] = i
	}
	col, ok := header[model.ColClass]
	if !ok {
		t.Fatalf("missing class column: %v", rows[0])
	}
	if rows[1][col] != recalc.ClassHigh {
		t.Fatalf("class: %v", rows[1])
	}

	balance, _ := back.GetRows(BalanceSheet)
	if len(balance) != 1+len(wb.Balance) {
		t.Fatalf("balance rows: %d", len(balance))
	}
	master, _ := back.GetRows(MasterSheet)
	if len(master) != 1+len(model.MasterKeys()) || master[4][0] != "KH_Max_NVBH" || master[4][1] != "2" {
		t.Fatalf("master: %v", master)
	}

	if !reflect.DeepEqual(percents, []int{16, 33, 50, 66, 83, 100}) {
		t.Fatalf("progress: %v", percents)
	}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages: %v", stages)
	}
}

func TestProgress_NilCallbackAndOverrun(t *testing.T) {
	t.Parallel()

	newProgress(nil, 2).advance("x")

	var events []ProgressEvent
	p := newProgress(func(e ProgressEvent) { events = append(events, e) }, 0)
	p.advance("a")
	p.advance("b")
	want := []ProgressEvent{{Percent: 100, Stage: "a", Step: 1, Steps: 1}, {Percent: 100, Stage: "b", Step: 1, Steps: 1}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events: %+v", events)
	}
}

func TestExport_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewExporter().Export(context.Background(), model.NewWorkbook(), ExportOptions{})
	if !errors.Is(err, model.ErrSheetNotLoaded) {
		t.Fatalf("want not loaded got %v", err)
	}
}

func TestFilenameAndDisposition(t *testing.T) {
	t.Parallel()

	name := Filename(3, time.Date(2025, 12, 1, 8, 30, 0, 0, time.UTC))
	if name != "smartbi-v3-20251201-083000.xlsx" {
		t.Fatalf("filename: %s", name)
	}
	got := ContentDisposition("báo cáo.xlsx")
	want := "attachment; filename=\"báo cáo.xlsx\"; filename*=UTF-8''b%C3%A1o%20c%C3%A1o.xlsx"
	if got != want {
		t.Fatalf("content-disposition mismatch:\n got: %s\nwant: %s", got, want)
	}
}
