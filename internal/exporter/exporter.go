package exporter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/columns"
	"github.com/huuly01092003/Smart-bi/internal/service/table"
)

// 附加工作表名称
const (
	BalanceSheet = "Balance Load"
	MasterSheet  = "Master"
)

// balanceHeaders Balance Load 表头（与 JSON 字段名一致）
var balanceHeaders = []string{
	"Mã tuyến", "Mã nhân viên phụ trách", "Tong_KH", "Tong_Calls", "Tong_DoanhSo",
	"KH_Min", "KH_Max", "Call_Min", "Call_Max", "Trang_Thai_KH", "Trang_Thai_Call",
}

// Exporter 工作簿导出器：每个已加载工作表一个 sheet，附加 Balance Load 与 Master
type Exporter struct{}

// NewExporter 创建导出器
func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportOptions 导出选项
type ExportOptions struct {
	Progress func(ProgressEvent) // 每写完一个工作表回调一次
}

// Export 导出工作簿；ctx 在每个工作表之间检查
func (e *Exporter) Export(ctx context.Context, wb *model.Workbook, opts ExportOptions) (*excelize.File, error) {
	if wb == nil {
		return nil, model.ErrSheetNotLoaded
	}
	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("nothing to export: %w", model.ErrSheetNotLoaded)
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	prog := newProgress(opts.Progress, len(sheets)+2)
	for i, t := range sheets {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("export aborted: %w", err)
		}
		ds, _ := wb.Dataset(t)
		name := t.Title()
		if i == 0 {
			err = f.SetSheetName("Sheet1", name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeDataset(f, name, ds, headerStyle); err != nil {
			_ = f.Close()
			return nil, err
		}
		prog.advance(name)
	}

	if err := writeBalance(f, wb.Balance, headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}
	prog.advance(BalanceSheet)

	if err := writeMaster(f, wb.Master, headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}
	prog.advance(MasterSheet)

	f.SetActiveSheet(0)
	return f, nil
}

// writeDataset 写入一个数据集：第一行为展示表头，列顺序与表格视图一致
func writeDataset(f *excelize.File, sheet string, ds *model.Dataset, style int) error {
	cls := columns.Classify(ds.Type, ds.Columns)
	_, cols := table.Headers(cls)

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = exportLabel(cls, c)
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, r := range ds.Rows {
		values := make([]interface{}, len(cols))
		for j, c := range cols {
			values[j] = cellValue(r.Get(c))
		}
		if err := writeRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return decorate(f, sheet, len(cols), style)
}

func writeBalance(f *excelize.File, rows []model.BalanceLoad, style int) error {
	if _, err := f.NewSheet(BalanceSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", BalanceSheet, err)
	}
	header := make([]interface{}, len(balanceHeaders))
	for i, h := range balanceHeaders {
		header[i] = h
	}
	if err := writeRow(f, BalanceSheet, 1, header); err != nil {
		return err
	}
	for i, b := range rows {
		values := []interface{}{
			b.RouteCode, b.StaffCode, b.TotalCust, b.TotalCalls, b.TotalRevenue,
			b.CustMin, b.CustMax, b.CallMin, b.CallMax, b.CustStatus, b.CallStatus,
		}
		if err := writeRow(f, BalanceSheet, i+2, values); err != nil {
			return err
		}
	}
	return decorate(f, BalanceSheet, len(balanceHeaders), style)
}

func writeMaster(f *excelize.File, p model.MasterParams, style int) error {
	if _, err := f.NewSheet(MasterSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", MasterSheet, err)
	}
	if err := writeRow(f, MasterSheet, 1, []interface{}{"Tham số", "Giá trị"}); err != nil {
		return err
	}
	for i, key := range model.MasterKeys() {
		v, _ := p.Get(key)
		if err := writeRow(f, MasterSheet, i+2, []interface{}{key, v}); err != nil {
			return err
		}
	}
	return decorate(f, MasterSheet, 2, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// decorate 表头样式、冻结首行、列宽
func decorate(f *excelize.File, sheet string, cols int, style int) error {
	if cols == 0 {
		return nil
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// exportLabel 日列保留原始列名（T2.1 等），避免不同周的表头重名
func exportLabel(cls columns.Classification, column string) string {
	if _, ok := columns.ParseDay(column); ok {
		return column
	}
	return cls.Label(column)
}

// cellValue 数字按数字写入，文本保持原样（保留前导零）
func cellValue(v model.Value) interface{} {
	switch v.Kind {
	case model.KindNumber:
		return v.Num
	case model.KindEmpty:
		return nil
	}
	return v.Str
}

// Filename 导出文件名
func Filename(version uint64, now time.Time) string {
	return fmt.Sprintf("smartbi-v%d-%s.xlsx", version, now.Format("20060102-150405"))
}

// ContentDisposition 附件下载头（含 UTF-8 文件名）
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", filename, url.PathEscape(filename))
}
