package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// 导入状态
const (
	ImportProcessing = "processing"
	ImportSuccess    = "success"
	ImportPartial    = "partial"
	ImportFailed     = "failed"
)

// ImportLog 导入日志
type ImportLog struct {
	ID             int64      `json:"id"`
	ImportID       string     `json:"importId"`
	SessionID      string     `json:"sessionId"`
	Filename       string     `json:"filename"`
	FileSize       int64      `json:"fileSize"`
	FileHash       string     `json:"fileHash"`
	TotalSheets    int        `json:"totalSheets"`
	ImportedSheets int        `json:"importedSheets"`
	SkippedSheets  int        `json:"skippedSheets"`
	TotalRows      int        `json:"totalRows"`
	ImportedRows   int        `json:"importedRows"`
	ErrorRows      int        `json:"errorRows"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// ImportStats 导入完成时的统计
type ImportStats struct {
	TotalSheets    int
	ImportedSheets int
	SkippedSheets  int
	TotalRows      int
	ImportedRows   int
	ErrorRows      int
}

// CreateImportLog 创建导入日志，返回 import_log_id
func (s *Store) CreateImportLog(ctx context.Context, importID, sessionID, filename string, fileSize int64, fileHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (import_id, session_id, filename, file_size, file_hash, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, importID, sessionID, filename, fileSize, fileHash, ImportProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// UpdateImportLog 完成导入日志更新
func (s *Store) UpdateImportLog(ctx context.Context, id int64, stats ImportStats, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_logs SET
			total_sheets = ?,
			imported_sheets = ?,
			skipped_sheets = ?,
			total_rows = ?,
			imported_rows = ?,
			error_rows = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, stats.TotalSheets, stats.ImportedSheets, stats.SkippedSheets,
		stats.TotalRows, stats.ImportedRows, stats.ErrorRows,
		status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

// ListImportLogs 最近的导入日志（按时间倒序）；sessionID 为空时返回全部会话
func (s *Store) ListImportLogs(ctx context.Context, sessionID string, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, import_id, session_id, filename, file_size, file_hash,
			total_sheets, imported_sheets, skipped_sheets,
			total_rows, imported_rows, error_rows,
			status, error_message, created_at, completed_at
		FROM import_logs
		WHERE ? = '' OR session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query import logs failed: %w", err)
	}
	defer rows.Close()

	var out []ImportLog
	for rows.Next() {
		var (
			it        ImportLog
			completed sql.NullTime
		)
		if err := rows.Scan(
			&it.ID, &it.ImportID, &it.SessionID, &it.Filename, &it.FileSize, &it.FileHash,
			&it.TotalSheets, &it.ImportedSheets, &it.SkippedSheets,
			&it.TotalRows, &it.ImportedRows, &it.ErrorRows,
			&it.Status, &it.ErrorMessage, &it.CreatedAt, &completed,
		); err != nil {
			return nil, fmt.Errorf("scan import log failed: %w", err)
		}
		if completed.Valid {
			t := completed.Time
			it.CompletedAt = &t
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import logs failed: %w", err)
	}
	return out, nil
}
