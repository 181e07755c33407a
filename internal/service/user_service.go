package service

import (
	"context"

	"chat-server/internal/model"
)

// UserService 用户查询
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// List 列出除调用者外的所有用户
func (s *UserService) List(ctx context.Context, callerID uint) ([]model.User, error) {
	users, err := s.users.ListExcept(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// Get 按ID获取用户
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// OnlineIDs 当前在线的用户ID
func (s *UserService) OnlineIDs(ctx context.Context) ([]uint, error) {
	ids, err := s.users.ListOnlineIDs(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}
