package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chat-server/internal/model"
	"chat-server/pkg/jwt"

	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu     sync.Mutex
	online map[uint]bool
	writes map[uint]int
	err    error
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[uint]bool{}, writes: map[uint]int{}}
}

func (f *fakePresence) SetOnline(_ context.Context, id uint, online bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.online[id] = online
	f.writes[id]++
	return nil
}

func (f *fakePresence) isOnline(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[id]
}

func (f *fakePresence) writeCount(id uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[id]
}

type fakeMessages struct {
	mu        sync.Mutex
	nextID    uint
	messages  []model.Message
	createErr error
}

func (f *fakeMessages) Create(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	m.ID = f.nextID
	m.Status = model.MessageStatusSent
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessages) CountUnreadFrom(_ context.Context, receiverID, senderID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && m.Status != model.MessageStatusRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) UnreadCountsBySender(_ context.Context, receiverID uint) (map[uint]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[uint]int64{}
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && m.Status != model.MessageStatusRead {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (f *fakeMessages) MarkReadFrom(_ context.Context, receiverID, senderID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.messages {
		m := &f.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && m.Status != model.MessageStatusRead {
			m.Status = model.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) between(a, b uint) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}

type fakeMirror struct {
	mu      sync.Mutex
	events  []string
	refresh int
}

func (f *fakeMirror) SetOnline(context.Context, uint, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "online")
	return nil
}

func (f *fakeMirror) SetOffline(context.Context, uint, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "offline")
	return nil
}

func (f *fakeMirror) Refresh(context.Context, uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	return nil
}

type received struct {
	Type string
	Data json.RawMessage
}

// drain 取出当前发送队列里的所有帧
func drain(t *testing.T, c *Client) []received {
	t.Helper()
	var out []received
	for {
		select {
		case raw := <-c.send:
			var f received
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func ofType(frames []received, eventType string) []received {
	var out []received
	for _, f := range frames {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

func connect(t *testing.T, h *Hub, userID uint) *Client {
	t.Helper()
	c := newClient(h, nil, jwt.Identity{UserID: userID, Email: "u@example.com"})
	require.NoError(t, h.Join(context.Background(), c))
	return c
}
