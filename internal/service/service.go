package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/config"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	"github.com/taksh05/Assignment-Portal/pkg/jwt"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

// ErrForbidden 资源存在但调用方无权操作，具体原因由授权策略给出
var ErrForbidden = apperrors.New(apperrors.KindForbidden, 10003, "无权限访问")

// FileStore 上传文件存储，由 pkg/storage.Store 实现
type FileStore interface {
	Save(ctx context.Context, namespace, owner string, up storage.Upload) (string, error)
	// Discard 异步删除，调用方不等待结果
	Discard(path string)
}

// TokenBlacklist Token 吊销，由 pkg/redis.Client 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Class      ClassService
	Assignment AssignmentService
	Submission SubmissionService
	Export     ExportService
	Calendar   CalendarService
}

// NewService 创建 Service 聚合
// blacklist 可为 nil（Redis 不可用时登出仅由客户端丢弃 Token）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	pol *policy.Policy,
	files FileStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		Class:      NewClassService(repo, pol, files, logger),
		Assignment: NewAssignmentService(repo, pol, files, cfg.Storage.AssignmentMaxBytes, logger),
		Submission: NewSubmissionService(repo, pol, files, cfg.Storage.SubmissionMaxBytes, cfg.Grading.MaxGrade, logger),
		Export:     NewExportService(repo, pol, logger),
		Calendar:   NewCalendarService(repo, cfg.Server.BaseURL, logger),
	}
}

// ── 公共辅助 ──

// denied 将授权拒绝转换为 403 业务错误
func denied(d policy.Decision) error {
	if d.Reason == "" {
		return ErrForbidden
	}
	return ErrForbidden.WithMessage(d.Reason)
}

// validID 资源 ID 均为 UUID，非法格式直接视为不存在，避免数据库类型错误
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// discardAll 异步清理一组文件
func discardAll(files FileStore, paths []string) {
	for _, p := range paths {
		files.Discard(p)
	}
}
