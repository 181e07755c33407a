package websocket

import (
	"sort"
	"sync"
)

// Registry 用户ID到其所有在线连接的映射
// 同一用户可以同时有多个连接（多标签页、多设备）
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]map[*Client]struct{})}
}

// Add 登记连接，返回该连接是否是这个用户当前唯一的连接
func (r *Registry) Add(c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.UserID] = set
	}
	set[c] = struct{}{}
	return len(set) == 1
}

// Remove 注销连接，last 表示移除后该用户已没有任何连接
// 连接不在表中时 removed 为 false
func (r *Registry) Remove(c *Client) (last, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.UserID]
	if !ok {
		return false, false
	}
	if _, ok := set[c]; !ok {
		return false, false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.UserID)
		return true, true
	}
	return false, true
}

// Clients 某个用户的所有连接快照
func (r *Registry) Clients(userID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// All 所有连接快照
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, set := range r.conns {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

// UserIDs 有连接的用户ID，升序
func (r *Registry) UserIDs() []uint {
	r.mu.RLock()
	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count 某个用户的连接数
func (r *Registry) Count(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Len 连接总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
