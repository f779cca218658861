package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "data", "smartbi.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImportLogLifecycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateImportLog(ctx, "imp-1", "sess-a", "data.xlsx", 1024, "abc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateImportLog(ctx, "imp-2", "sess-b", "other.csv", 10, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	stats := ImportStats{TotalSheets: 5, ImportedSheets: 4, SkippedSheets: 1, TotalRows: 100, ImportedRows: 98, ErrorRows: 2}
	if err := s.UpdateImportLog(ctx, id, stats, ImportPartial, ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	logs, err := s.ListImportLogs(ctx, "sess-a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("want 1 log got %d", len(logs))
	}
	got := logs[0]
	if got.ImportID != "imp-1" || got.Status != ImportPartial || got.ImportedRows != 98 || got.SkippedSheets != 1 {
		t.Fatalf("unexpected log: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at")
	}

	all, err := s.ListImportLogs(ctx, "", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ImportID != "imp-2" {
		t.Fatalf("expected newest first: %+v", all)
	}
	if all[0].CompletedAt != nil || all[0].Status != ImportProcessing {
		t.Fatalf("pending log: %+v", all[0])
	}
}

func TestSheetMeta(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateImportLog(ctx, "imp-1", "sess-a", "data.xlsx", 1, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	meta := SheetMeta{
		ImportLogID:  id,
		SourceFile:   "data.xlsx",
		SheetName:    "DSKH",
		SheetType:    "customers",
		Confidence:   1,
		ByName:       true,
		TotalRows:    3,
		ImportedRows: 3,
		Columns:      []string{"Mã khách hàng", "Kênh"},
		Status:       "imported",
	}
	if err := s.InsertSheetMeta(ctx, meta); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertSheetMeta(ctx, SheetMeta{ImportLogID: id, SourceFile: "data.xlsx", SheetName: "Notes", SheetType: "unknown", Status: "skipped"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := s.ListSheetMeta(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 got %d", len(list))
	}
	if !list[0].ByName || len(list[0].Columns) != 2 || list[0].Columns[0] != "Mã khách hàng" {
		t.Fatalf("unexpected meta: %+v", list[0])
	}
	if len(list[1].Columns) != 0 || list[1].Status != "skipped" {
		t.Fatalf("unexpected meta: %+v", list[1])
	}
}

func TestRecalcLog(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	entries := []RecalcLog{
		{SessionID: "s1", Version: 2, Changes: 1, Master: map[string]float64{"Call_Min_Thang": 800}, UpdatedRows: []string{"KH01"}, Status: "success", Duration: time.Millisecond},
		{SessionID: "s1", Version: 2, Status: "failed", ErrorMessage: "invalid change"},
		{SessionID: "s2", Version: 1, Status: "success"},
	}
	for _, e := range entries {
		if err := s.InsertRecalcLog(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := s.CountRecalcLogs(ctx, "s1", "success")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 got %d", n)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
