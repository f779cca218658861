package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor 定期清理空闲会话（作为 suture 服务运行）
type Janitor struct {
	manager  *Manager
	interval time.Duration
}

// NewJanitor 创建清理服务
func NewJanitor(m *Manager, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{manager: m, interval: interval}
}

// Serve 实现 suture.Service
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := j.manager.Sweep(); n > 0 {
				log.Info().Int("evicted", n).Int("active", j.manager.Len()).Msg("idle sessions evicted")
			}
		}
	}
}

// String 服务名
func (j *Janitor) String() string {
	return "session-janitor"
}
