package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/huuly01092003/Smart-bi/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IsSupported 是否为支持的文件类型
func IsSupported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// ReadGrids 按扩展名读取上传文件中的全部网格
func ReadGrids(filename string, r io.Reader) ([]Grid, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(r)
	case ".csv":
		g, err := ReadCSV(filename, r)
		if err != nil {
			return nil, err
		}
		return []Grid{g}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", model.ErrInvalidUpload, filepath.Ext(filename))
	}
}

// ReadWorkbook 读取 Excel 工作簿的每个工作表
func ReadWorkbook(r io.Reader) ([]Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open excel: %v", model.ErrInvalidUpload, err)
	}
	defer f.Close()

	var grids []Grid
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read sheet %s: %v", model.ErrInvalidUpload, sheet, err)
		}
		grids = append(grids, Grid{Name: sheet, Rows: rows})
	}
	return grids, nil
}

// ReadCSV 读取 CSV；非 UTF-8 内容按 Windows-1258 解码
func ReadCSV(filename string, r io.Reader) (Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// Windows-1258 使用组合声调符号，解码后合成为 NFC
		src = transform.NewReader(src, transform.Chain(charmap.Windows1258.NewDecoder(), norm.NFC))
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return Grid{}, fmt.Errorf("%w: failed to parse csv: %v", model.ErrInvalidUpload, err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return Grid{Name: name, Rows: rows}, nil
}
