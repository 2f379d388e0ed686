package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
)

// ── 班级模块业务错误 ──

var (
	ErrClassNotFound     = apperrors.New(apperrors.KindNotFound, 12001, "班级不存在")
	ErrAlreadyMember     = apperrors.New(apperrors.KindInvalid, 12002, "已加入该班级")
	ErrClassTitleMissing = apperrors.New(apperrors.KindInvalid, 12003, "班级标题不能为空")
)

// ClassService 班级业务接口
type ClassService interface {
	Create(ctx context.Context, actor policy.Actor, req *dto.CreateClassRequest) (*dto.ClassResponse, error)
	Get(ctx context.Context, id string) (*dto.ClassResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req *dto.UpdateClassRequest) (*dto.ClassResponse, error)
	// ListMine 调用方任教或已加入的班级
	ListMine(ctx context.Context, actor policy.Actor) ([]dto.ClassResponse, error)
	ListAll(ctx context.Context) ([]dto.ClassResponse, error)
	Join(ctx context.Context, actor policy.Actor, id string) (*dto.ClassResponse, error)
	// Delete 级联删除作业与提交，并异步清理其文件
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

type classService struct {
	repo   *repository.Repository
	policy *policy.Policy
	files  FileStore
	logger *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(repo *repository.Repository, pol *policy.Policy, files FileStore, logger *zap.Logger) ClassService {
	return &classService{repo: repo, policy: pol, files: files, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *classService) Create(ctx context.Context, actor policy.Actor, req *dto.CreateClassRequest) (*dto.ClassResponse, error) {
	if d := s.policy.CanCreateClass(actor); !d.Allowed {
		return nil, denied(d)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrClassTitleMissing
	}

	class := &model.Class{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		TeacherID:   actor.ID,
	}
	if err := s.repo.Class.Create(ctx, class); err != nil {
		s.logger.Error("创建班级失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("班级已创建", zap.String("class_id", class.ClassID), zap.String("teacher_id", actor.ID))
	return s.Get(ctx, class.ClassID)
}

// ────────────────────── Get / List ──────────────────────

func (s *classService) Get(ctx context.Context, id string) (*dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *classService) ListMine(ctx context.Context, actor policy.Actor) ([]dto.ClassResponse, error) {
	classes, err := s.repo.Class.ListByMember(ctx, actor.ID)
	if err != nil {
		s.logger.Error("查询班级列表失败", zap.Error(err))
		return nil, err
	}
	return toClassResponses(classes), nil
}

func (s *classService) ListAll(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.repo.Class.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询班级列表失败", zap.Error(err))
		return nil, err
	}
	return toClassResponses(classes), nil
}

// ────────────────────── Update ──────────────────────

func (s *classService) Update(ctx context.Context, actor policy.Actor, id string, req *dto.UpdateClassRequest) (*dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanUpdateClass(actor, class.TeacherID); !d.Allowed {
		return nil, denied(d)
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrClassTitleMissing
		}
		class.Title = title
	}
	if req.Description != nil {
		class.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.repo.Class.Update(ctx, class); err != nil {
		s.logger.Error("更新班级失败", zap.Error(err))
		return nil, err
	}

	return s.Get(ctx, id)
}

// ────────────────────── Join ──────────────────────

func (s *classService) Join(ctx context.Context, actor policy.Actor, id string) (*dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanJoinClass(actor, class.TeacherID); !d.Allowed {
		return nil, denied(d)
	}
	if class.HasMember(actor.ID) {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.Class.AddMember(ctx, class.ClassID, actor.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return nil, ErrAlreadyMember
		}
		s.logger.Error("加入班级失败", zap.Error(err))
		return nil, err
	}

	return s.Get(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *classService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	class, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d := s.policy.CanDeleteClass(actor, class.TeacherID); !d.Allowed {
		return denied(d)
	}

	paths, err := s.repo.Class.Delete(ctx, class.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		s.logger.Error("删除班级失败", zap.Error(err))
		return err
	}

	discardAll(s.files, paths)
	s.logger.Info("班级已删除",
		zap.String("class_id", class.ClassID),
		zap.String("actor_id", actor.ID),
		zap.Int("discarded_files", len(paths)),
	)
	return nil
}

// ── 辅助函数 ──

func (s *classService) load(ctx context.Context, id string) (*model.Class, error) {
	if !validID(id) {
		return nil, ErrClassNotFound
	}
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Error(err))
		return nil, err
	}
	return class, nil
}

func toClassResponse(c *model.Class) dto.ClassResponse {
	members := make([]dto.UserResponse, 0, len(c.Members))
	for _, m := range c.Members {
		if ref := toUserRef(m.User); ref != nil {
			members = append(members, *ref)
		} else {
			members = append(members, dto.UserResponse{ID: m.UserID})
		}
	}

	return dto.ClassResponse{
		ID:          c.ClassID,
		Title:       c.Title,
		Description: c.Description,
		Teacher:     toUserRef(c.Teacher),
		Members:     members,
		CreatedAt:   dto.FormatTime(c.CreatedAt),
	}
}

func toClassResponses(classes []model.Class) []dto.ClassResponse {
	list := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		list = append(list, toClassResponse(&classes[i]))
	}
	return list
}
