package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
)

// SheetMeta Sheet 元信息（用于追溯识别结果）
type SheetMeta struct {
	ImportLogID  int64    `json:"importLogId"`
	SourceFile   string   `json:"sourceFile"`
	SheetName    string   `json:"sheetName"`
	SheetType    string   `json:"sheetType"`
	Confidence   float64  `json:"confidence"`
	ByName       bool     `json:"byName"`
	TotalRows    int      `json:"totalRows"`
	ImportedRows int      `json:"importedRows"`
	Columns      []string `json:"columns"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// InsertSheetMeta 写入 Sheet 元信息
func (s *Store) InsertSheetMeta(ctx context.Context, meta SheetMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sheets_meta (
			import_log_id, source_file,
			sheet_name, sheet_type, confidence, by_name,
			total_rows, total_columns, imported_rows,
			columns_json, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		meta.ImportLogID, meta.SourceFile,
		meta.SheetName, meta.SheetType, meta.Confidence, meta.ByName,
		meta.TotalRows, len(meta.Columns), meta.ImportedRows,
		BuildColumnsJSON(meta.Columns), meta.Status, meta.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sheets_meta: %w", err)
	}
	return nil
}

// ListSheetMeta 某次导入的 Sheet 元信息
func (s *Store) ListSheetMeta(ctx context.Context, importLogID int64) ([]SheetMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_log_id, source_file, sheet_name, sheet_type, confidence, by_name,
			total_rows, imported_rows, columns_json, status, error_message
		FROM sheets_meta
		WHERE import_log_id = ?
		ORDER BY id
	`, importLogID)
	if err != nil {
		return nil, fmt.Errorf("query sheets_meta failed: %w", err)
	}
	defer rows.Close()

	var out []SheetMeta
	for rows.Next() {
		var (
			m       SheetMeta
			columns string
		)
		if err := rows.Scan(
			&m.ImportLogID, &m.SourceFile, &m.SheetName, &m.SheetType, &m.Confidence, &m.ByName,
			&m.TotalRows, &m.ImportedRows, &columns, &m.Status, &m.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan sheets_meta failed: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &m.Columns); err != nil {
			return nil, fmt.Errorf("decode columns_json failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets_meta failed: %w", err)
	}
	return out, nil
}

// BuildColumnsJSON 将列名序列化为 JSON
func BuildColumnsJSON(columns []string) string {
	if columns == nil {
		return "[]"
	}
	b, err := json.Marshal(columns)
	if err != nil {
		return "[]"
	}
	return string(b)
}
