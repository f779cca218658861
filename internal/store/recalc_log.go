package store

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// RecalcLog 重算日志
type RecalcLog struct {
	SessionID    string
	Version      uint64
	Changes      int
	Master       any
	UpdatedRows  []string
	Status       string
	ErrorMessage string
	Duration     time.Duration
}

// InsertRecalcLog 写入重算日志
func (s *Store) InsertRecalcLog(ctx context.Context, l RecalcLog) error {
	master, err := json.Marshal(l.Master)
	if err != nil {
		return fmt.Errorf("failed to encode master params: %w", err)
	}
	if l.UpdatedRows == nil {
		l.UpdatedRows = []string{}
	}
	updated, err := json.Marshal(l.UpdatedRows)
	if err != nil {
		return fmt.Errorf("failed to encode updated rows: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recalc_logs (
			session_id, version, changes, master_json, updated_rows_json,
			status, error_message, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.SessionID, int64(l.Version), l.Changes, string(master), string(updated),
		l.Status, l.ErrorMessage, l.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert recalc log: %w", err)
	}
	return nil
}

// CountRecalcLogs 会话的重算次数（按状态）
func (s *Store) CountRecalcLogs(ctx context.Context, sessionID, status string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM recalc_logs WHERE session_id = ? AND status = ?`,
		sessionID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recalc logs failed: %w", err)
	}
	return n, nil
}
