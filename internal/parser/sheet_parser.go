package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// SheetParser 表格类工作表解析器
type SheetParser struct {
	source string
}

// NewSheetParser 创建解析器；source 为上传文件名
func NewSheetParser(source string) *SheetParser {
	return &SheetParser{source: source}
}

// mappedColumn 数据列：网格列下标 → 规范列名
type mappedColumn struct {
	index int
	name  string
}

// Parse 将网格解析为数据集
func (p *SheetParser) Parse(g Grid, t model.SheetType) (*model.Dataset, ParseResult, error) {
	start := time.Now()
	result := ParseResult{SheetName: g.Name, SheetType: t}

	var (
		columns []mappedColumn
		dataRow int
		err     error
	)
	if t == model.SheetRouteDetail {
		columns, dataRow, err = detailLayout(g)
	} else {
		columns, dataRow, err = genericLayout(g, t)
	}
	if err != nil {
		result.Status = StatusError
		result.addError(err.Error())
		result.Duration = time.Since(start)
		return nil, result, err
	}

	ds := &model.Dataset{
		Type:      t,
		SheetName: g.Name,
		Source:    p.source,
		Columns:   make([]string, len(columns)),
	}
	for i, c := range columns {
		ds.Columns[i] = c.name
	}

	for r := dataRow; r < len(g.Rows); r++ {
		raw := g.Rows[r]
		if t == model.SheetRouteDetail {
			if blankAt(raw, columns) {
				continue
			}
		} else if isBlankRow(raw) {
			continue
		}

		row := model.NewRow(t)
		bad := false
		for _, c := range columns {
			v := p.cellValue(t, c.name, g.Cell(r, c.index))
			if v.Kind == model.KindText && model.IsNumericColumn(t, c.name) {
				bad = true
				result.addError(fmt.Sprintf("row %d: column %s: not a number: %q", r+1, c.name, v.Str))
			}
			row.Set(c.name, v)
		}
		if bad {
			result.ErrorRows++
		}
		ds.Rows = append(ds.Rows, row)
	}

	result.ImportedRows = len(ds.Rows)
	result.Status = StatusImported
	result.Duration = time.Since(start)
	return ds, result, nil
}

// cellValue 单元格取值；路线明细 "-" 视为空，标记列 x → 1、空 → 0
func (p *SheetParser) cellValue(t model.SheetType, column, raw string) model.Value {
	if t != model.SheetRouteDetail {
		return model.ParseValue(raw)
	}
	s := strings.TrimSpace(raw)
	if s == "-" {
		s = ""
	}
	if isDetailFlag(column) {
		switch strings.ToLower(s) {
		case "x":
			return model.Number(1)
		case "":
			return model.Number(0)
		}
	}
	return model.ParseValue(s)
}

// genericLayout 单行表头：在标准表头行附近选取识别出最多强类型列的一行
func genericLayout(g Grid, t model.SheetType) ([]mappedColumn, int, error) {
	h := HeaderRow(t)
	best, bestScore := -1, -1
	for _, i := range []int{h, h - 1, h + 1} {
		if i < 0 || i >= len(g.Rows) || isBlankRow(g.Rows[i]) {
			continue
		}
		if score := typedMatches(t, g.Rows[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, 0, fmt.Errorf("%w: sheet %s has no header row", model.ErrInvalidUpload, g.Name)
	}

	headers := DedupeHeaders(g.Rows[best])
	used := make(map[string]bool, len(headers))
	columns := make([]mappedColumn, 0, len(headers))
	for i, h := range headers {
		name := canonicalHeader(t, h)
		if used[name] {
			name = h
		}
		used[name] = true
		columns = append(columns, mappedColumn{index: i, name: name})
	}
	return columns, best + 1, nil
}

// typedMatches 表头行中可识别为强类型列的数量
func typedMatches(t model.SheetType, headers []string) int {
	typed := make(map[string]bool)
	for _, c := range model.TypedColumns(t) {
		typed[c] = true
	}
	n := 0
	for _, h := range headers {
		if typed[canonicalHeader(t, NormalizeColumnName(h))] {
			n++
		}
	}
	return n
}

// detailLayout 路线明细表头：两行合并表头或单行表头（旧版 CSV），取识别列更多者
func detailLayout(g Grid) ([]mappedColumn, int, error) {
	h := HeaderRow(model.SheetRouteDetail)
	if h >= len(g.Rows) {
		return nil, 0, fmt.Errorf("%w: sheet %s has no header row", model.ErrInvalidUpload, g.Name)
	}

	single := RenameDetailColumns(g.Rows[h])
	columns, dataRow := single, h+1
	if h+1 < len(g.Rows) {
		flat := RenameDetailColumns(FlattenHeaders(g.Rows[h], g.Rows[h+1]))
		if len(flat) > len(single) || (len(flat) == len(single) && isSubHeader(g.Rows[h+1])) {
			columns, dataRow = flat, h+2
		}
	}
	if len(columns) == 0 {
		return nil, 0, fmt.Errorf("%w: sheet %s has no recognizable columns", model.ErrInvalidUpload, g.Name)
	}

	out := make([]mappedColumn, 0, len(columns))
	for i := 0; i <= maxIndex(columns); i++ {
		if name, ok := columns[i]; ok {
			out = append(out, mappedColumn{index: i, name: name})
		}
	}
	return out, dataRow, nil
}

// isSubHeader 第二行表头不含数字单元格
func isSubHeader(row []string) bool {
	nonEmpty := false
	for _, c := range row {
		s := strings.TrimSpace(c)
		if s == "" || s == "-" {
			continue
		}
		if _, ok := model.ParseNumber(s); ok {
			return false
		}
		nonEmpty = true
	}
	return nonEmpty
}

func maxIndex(m map[int]string) int {
	n := -1
	for i := range m {
		if i > n {
			n = i
		}
	}
	return n
}

// blankAt 保留列全部为空
func blankAt(row []string, columns []mappedColumn) bool {
	for _, c := range columns {
		if c.index >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[c.index]); v != "" && v != "-" {
			return false
		}
	}
	return true
}
