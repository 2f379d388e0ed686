package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/repository"
)

// UserService 用户管理业务接口（管理员）
type UserService interface {
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	// Create 创建任意角色的用户，供 cmd/admin 使用
	Create(ctx context.Context, name, email, password, role string) (*dto.UserResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, req.Role, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

func (s *userService) Create(ctx context.Context, name, email, password, role string) (*dto.UserResponse, error) {
	user, err := createUser(ctx, s.repo, s.logger, name, email, password, role)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}
