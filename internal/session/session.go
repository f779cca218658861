package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huuly01092003/Smart-bi/internal/metrics"
	"github.com/huuly01092003/Smart-bi/internal/model"
)

// 请求序列通道
const (
	ChannelView   = "view"
	ChannelRecalc = "recalc"
	ChannelUpload = "upload"
)

// Session 会话：持有当前工作簿；工作簿提交后不再原地修改
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	workbook *model.Workbook
	version  uint64

	// editMu 串行化上传与重算
	editMu sync.Mutex

	seqMu sync.Mutex
	seqs  map[string]uint64

	lastSeen atomic.Int64
	views    *memo
}

func newSession(id string, now time.Time, maxViews int) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		seqs:      make(map[string]uint64),
		views:     newMemo(maxViews),
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Workbook 当前工作簿（只读快照）
func (s *Session) Workbook() (*model.Workbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workbook == nil {
		return nil, fmt.Errorf("no data uploaded: %w", model.ErrSheetNotLoaded)
	}
	return s.workbook, nil
}

// Version 当前数据版本（0 表示尚未上传）
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Commit 整体替换工作簿，版本号加一并清空派生视图缓存
func (s *Session) Commit(wb *model.Workbook) uint64 {
	s.mu.Lock()
	s.version++
	wb.Version = s.version
	s.workbook = wb
	v := s.version
	s.mu.Unlock()

	s.views.clear()
	return v
}

// Update 基于当前工作簿计算新工作簿并提交；fn 出错、超时或请求已被取代时不提交
func (s *Session) Update(ctx context.Context, t Ticket, fn func(cur *model.Workbook) (*model.Workbook, error)) (*model.Workbook, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	cur, err := s.Workbook()
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update aborted: %w", err)
	}
	if !t.Current() {
		return nil, t.staleError()
	}
	s.Commit(next)
	return next, nil
}

// Replace 提交一个全新的工作簿（上传）；请求已被取代时不提交
func (s *Session) Replace(ctx context.Context, t Ticket, wb *model.Workbook) (uint64, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("upload aborted: %w", err)
	}
	if !t.Current() {
		return 0, t.staleError()
	}
	return s.Commit(wb), nil
}

// Ticket 一次带序号的请求
type Ticket struct {
	s       *Session
	channel string
	seq     uint64
}

// Begin 登记请求序号；序号小于该通道已见的最大序号时返回 ErrStaleRequest。
// seq 为 0 表示请求未携带序号，不参与排序
func (s *Session) Begin(channel string, seq uint64) (Ticket, error) {
	t := Ticket{s: s, channel: channel, seq: seq}
	if seq == 0 {
		return t, nil
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if seq < s.seqs[channel] {
		return t, t.staleError()
	}
	s.seqs[channel] = seq
	return t, nil
}

// Current 请求是否仍是该通道最新的请求
func (t Ticket) Current() bool {
	if t.seq == 0 || t.s == nil {
		return true
	}
	t.s.seqMu.Lock()
	defer t.s.seqMu.Unlock()
	return t.s.seqs[t.channel] == t.seq
}

func (t Ticket) staleError() error {
	metrics.StaleRequests.WithLabelValues(t.channel).Inc()
	return fmt.Errorf("request %d on %s superseded: %w", t.seq, t.channel, model.ErrStaleRequest)
}

// touch 刷新最近访问时间
func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen 最近访问时间
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// CachedViews 当前缓存的派生视图数量
func (s *Session) CachedViews() int {
	return s.views.len()
}

// Memo 以 (版本, key) 缓存派生视图；版本已过期时只计算不缓存
func Memo[T any](s *Session, version uint64, key string, compute func() (T, error)) (T, error) {
	k := fmt.Sprintf("%d|%s", version, key)
	if v, ok := s.views.get(k); ok {
		metrics.RecordViewCache(true)
		return v.(T), nil
	}
	metrics.RecordViewCache(false)

	v, err := compute()
	if err != nil {
		return v, err
	}
	if s.Version() == version {
		s.views.add(k, v)
	}
	return v, nil
}
