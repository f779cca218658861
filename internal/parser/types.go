package parser

import (
	"time"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

// 解析状态
const (
	StatusImported = "imported"
	StatusSkipped  = "skipped"
	StatusError    = "error"
)

// maxErrors 单个工作表最多记录的错误条数
const maxErrors = 20

// Grid 原始单元格网格（一个工作表或一个 CSV 文件）
type Grid struct {
	Name string     // 工作表名或文件名
	Rows [][]string // 行优先，行长度可能不同
}

// Cell 取单元格文本，越界返回空串
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g.Rows) || col < 0 || col >= len(g.Rows[row]) {
		return ""
	}
	return g.Rows[row][col]
}

// SheetRecognitionResult Sheet 识别结果
type SheetRecognitionResult struct {
	SheetName  string          `json:"sheetName"`
	SheetType  model.SheetType `json:"sheetType"`
	Confidence float64         `json:"confidence"` // 置信度 0-1
	ByName     bool            `json:"byName"`     // 按名称识别
}

// ParseResult 解析结果
type ParseResult struct {
	SheetName    string          `json:"sheetName"`
	SheetType    model.SheetType `json:"sheetType"`
	Status       string          `json:"status"` // imported/skipped/error
	ImportedRows int             `json:"importedRows"`
	ErrorRows    int             `json:"errorRows"`
	Errors       []string        `json:"errors,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

// addError 记录错误（超过上限只计数）
func (r *ParseResult) addError(msg string) {
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// ImportReport 导入报告
type ImportReport struct {
	Filename       string        `json:"filename"`
	TotalSheets    int           `json:"totalSheets"`
	ImportedSheets int           `json:"importedSheets"`
	SkippedSheets  int           `json:"skippedSheets"`
	TotalRows      int           `json:"totalRows"`
	ImportedRows   int           `json:"importedRows"`
	ErrorRows      int           `json:"errorRows"`
	Duration       time.Duration `json:"duration"`
	Sheets         []ParseResult `json:"sheets"`
}
