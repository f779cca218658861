package session

import (
	"container/list"
	"sync"
)

// memoEntry 缓存项
type memoEntry struct {
	key   string
	value any
}

// memo 派生视图缓存：固定容量，最近最少使用淘汰
type memo struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front 为最近使用
	items    map[string]*list.Element
}

func newMemo(capacity int) *memo {
	if capacity <= 0 {
		capacity = 256
	}
	return &memo{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (m *memo) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoEntry).value, true
}

func (m *memo) add(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		el.Value.(*memoEntry).value = value
		m.order.MoveToFront(el)
		return
	}
	m.items[key] = m.order.PushFront(&memoEntry{key: key, value: value})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoEntry).key)
	}
}

func (m *memo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.Init()
	m.items = make(map[string]*list.Element, m.capacity)
}

func (m *memo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
