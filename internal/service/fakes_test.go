package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-server/internal/model"
	"chat-server/pkg/apperr"
	"chat-server/pkg/mailer"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
	err    error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uint]*model.User)}
}

func (f *fakeUserStore) put(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserStore) snapshot(id uint) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperr.Conflict("User already exists")
		}
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (f *fakeUserStore) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) ListExcept(_ context.Context, id uint) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.ID != id {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, f.err
}

func (f *fakeUserStore) ListOnlineIDs(_ context.Context) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	for _, u := range f.users {
		if u.Online {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, f.err
}

func (f *fakeUserStore) SetVerificationToken(_ context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.VerificationToken = &tokenHash
	u.VerificationTokenExpires = &expiresAt
	return nil
}

func (f *fakeUserStore) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.VerificationToken != nil && *u.VerificationToken == tokenHash &&
			u.VerificationTokenExpires != nil && u.VerificationTokenExpires.After(now) {
			u.IsVerified = true
			u.VerificationToken = nil
			u.VerificationTokenExpires = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("Invalid or expired verification token")
}

func (f *fakeUserStore) SetResetToken(_ context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.ResetPasswordToken = &tokenHash
	u.ResetPasswordExpires = &expiresAt
	return nil
}

func (f *fakeUserStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now) {
			u.PasswordHash = passwordHash
			u.ResetPasswordToken = nil
			u.ResetPasswordExpires = nil
			return nil
		}
	}
	return apperr.NotFound("Invalid or expired reset token")
}

type sentMail struct {
	kind  string
	to    mailer.Recipient
	token string
}

// fakeSender 把发送记录推到 channel，release 关闭前一直阻塞
type fakeSender struct {
	sent    chan sentMail
	release chan struct{}
}

func newFakeSender() *fakeSender {
	release := make(chan struct{})
	close(release)
	return &fakeSender{sent: make(chan sentMail, 16), release: release}
}

func (f *fakeSender) SendVerification(_ context.Context, to mailer.Recipient, token string) error {
	<-f.release
	f.sent <- sentMail{kind: "verification", to: to, token: token}
	return nil
}

func (f *fakeSender) SendPasswordReset(_ context.Context, to mailer.Recipient, token string) error {
	<-f.release
	f.sent <- sentMail{kind: "reset", to: to, token: token}
	return nil
}

type fakeLockout struct {
	mu       sync.Mutex
	failures map[string]int
	limit    int
}

func (f *fakeLockout) IsLocked(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[email] >= f.limit, nil
}

func (f *fakeLockout) RecordFailure(_ context.Context, email string, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[email]++
	return int64(f.failures[email]), nil
}

func (f *fakeLockout) Clear(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, email)
	return nil
}

type fakeMessageStore struct {
	messages []model.Message
	err      error
}

func (f *fakeMessageStore) ListBetween(_ context.Context, a, b uint) ([]model.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) UnreadCountsBySender(_ context.Context, receiverID uint) (map[uint]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	counts := map[uint]int64{}
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && m.Status != model.MessageStatusRead {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}
