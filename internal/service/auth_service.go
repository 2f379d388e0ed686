package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	"github.com/taksh05/Assignment-Portal/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrEmailExists        = apperrors.New(apperrors.KindInvalid, 11001, "邮箱已被注册")
	ErrInvalidCredentials = apperrors.New(apperrors.KindUnauthenticated, 11002, "邮箱或密码错误")
	ErrUserNotFound       = apperrors.New(apperrors.KindNotFound, 11003, "用户不存在")
	ErrRoleNotAllowed     = apperrors.New(apperrors.KindInvalid, 11004, "不允许注册该角色")
	ErrInvalidUserInput   = apperrors.New(apperrors.KindInvalid, 11005, "用户信息不完整")
)

// AuthService 认证业务接口
type AuthService interface {
	// Signup 公开注册，仅允许学生与教师，注册后直接签发 Token
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error)
	// Logout 将当前 Token 加入黑名单直至其自然过期
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.AuthResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}
	if role != model.RoleStudent && role != model.RoleTeacher {
		return nil, ErrRoleNotAllowed
	}

	user, err := createUser(ctx, s.repo, s.logger, req.Name, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 签发 Token
	return s.issue(user)
}

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	if !validID(userID) {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil {
		s.logger.Warn("Token 黑名单不可用，登出仅由客户端丢弃 Token")
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("加入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) issue(user *model.User) (*dto.AuthResponse, error) {
	token, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.AuthResponse{
		Token:     token,
		ExpiresIn: int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:      toUserResponse(user),
	}, nil
}

// ── 用户创建（注册与管理员 CLI 共用）──

func createUser(
	ctx context.Context,
	repo *repository.Repository,
	logger *zap.Logger,
	name, email, password, role string,
) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" || !model.ValidRole(role) {
		return nil, ErrInvalidUserInput
	}

	_, err := repo.User.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := repo.User.Create(ctx, user); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailExists
		}
		logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	logger.Info("用户已创建", zap.String("user_id", user.UserID), zap.String("role", role))
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: dto.FormatTime(u.CreatedAt),
	}
}

// toUserRef 关联未预加载时返回 nil
func toUserRef(u *model.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	resp := toUserResponse(u)
	resp.CreatedAt = ""
	return &resp
}
