package keylock

import "sync"

// KeyedMutex 按键加锁：同一个键上的操作串行执行，不同键互不阻塞
// 没有持有者的键会被立即回收，map 不会随键的数量无限增长
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New 创建KeyedMutex
func New[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{locks: make(map[K]*entry)}
}

// Lock 获取 key 对应的锁，返回解锁函数
func (m *KeyedMutex[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len 当前被持有或等待中的键数量
func (m *KeyedMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Pair 无序的用户对，(a,b) 与 (b,a) 是同一个键
type Pair struct {
	Low, High uint
}

// PairOf 构造规范化的用户对
func PairOf(a, b uint) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}
