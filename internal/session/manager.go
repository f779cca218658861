package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huuly01092003/Smart-bi/internal/metrics"
	"github.com/huuly01092003/Smart-bi/internal/model"
)

// Options 会话管理参数
type Options struct {
	TTL      time.Duration // 空闲过期时间
	MaxViews int           // 每个会话缓存的派生视图上限
}

// Manager 会话管理器（按会话 ID 隔离数据）
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	now      func() time.Time
}

// NewManager 创建会话管理器
func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.MaxViews <= 0 {
		opts.MaxViews = 256
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		now:      time.Now,
	}
}

// Create 创建新会话
func (m *Manager) Create() *Session {
	now := m.now()
	s := newSession(uuid.NewString(), now, m.opts.MaxViews)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return s
}

// Get 获取会话并刷新访问时间
func (m *Manager) Get(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("missing session id: %w", model.ErrNoSession)
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNoSession)
	}
	s.touch(m.now())
	return s, nil
}

// Acquire 获取会话，不存在时创建新会话；created 表示新建
func (m *Manager) Acquire(id string) (s *Session, created bool) {
	if s, err := m.Get(id); err == nil {
		return s, false
	}
	return m.Create(), true
}

// Remove 删除会话
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

// Len 当前会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep 清理空闲超过 TTL 的会话，返回清理数量
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.TTL)

	m.mu.Lock()
	evicted := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	metrics.SessionsEvicted.Add(float64(evicted))
	return evicted
}
