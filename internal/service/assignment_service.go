package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

// ── 作业模块业务错误 ──

var (
	ErrAssignmentNotFound      = apperrors.New(apperrors.KindNotFound, 13001, "作业不存在")
	ErrInvalidDueDate          = apperrors.New(apperrors.KindInvalid, 13002, "截止时间格式无效")
	ErrAssignmentFileTooLarge  = apperrors.New(apperrors.KindTooLarge, 13003, "作业附件超过大小上限")
	ErrAssignmentTitleMissing  = apperrors.New(apperrors.KindInvalid, 13004, "作业标题不能为空")
	ErrAssignmentClassNotFound = apperrors.New(apperrors.KindNotFound, 13005, "作业所属班级不存在")
)

// dueDateLayouts 依次尝试的截止时间格式
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// AssignmentService 作业业务接口
// file 为 nil 表示本次请求未上传附件
type AssignmentService interface {
	Create(ctx context.Context, actor policy.Actor, req *dto.CreateAssignmentRequest, file *storage.Upload) (*dto.AssignmentResponse, error)
	Get(ctx context.Context, id string) (*dto.AssignmentResponse, error)
	// ListForActor 调用方任教或已加入班级下的作业，按截止时间升序
	ListForActor(ctx context.Context, actor policy.Actor) ([]dto.AssignmentResponse, error)
	// ListForClass 单个班级的作业，按截止时间降序
	ListForClass(ctx context.Context, classID string) ([]dto.AssignmentResponse, error)
	// Update 新附件替换旧附件；未上传新附件且 RemoveExistingFile 为 true 时移除附件
	Update(ctx context.Context, actor policy.Actor, id string, req *dto.UpdateAssignmentRequest, file *storage.Upload) (*dto.AssignmentResponse, error)
	// Delete 级联删除提交，并异步清理附件与提交文件
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

type assignmentService struct {
	repo     *repository.Repository
	policy   *policy.Policy
	files    FileStore
	maxBytes int64
	logger   *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(
	repo *repository.Repository,
	pol *policy.Policy,
	files FileStore,
	maxBytes int64,
	logger *zap.Logger,
) AssignmentService {
	return &assignmentService{
		repo:     repo,
		policy:   pol,
		files:    files,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *assignmentService) Create(ctx context.Context, actor policy.Actor, req *dto.CreateAssignmentRequest, file *storage.Upload) (*dto.AssignmentResponse, error) {
	// 1. 参数校验（写文件之前完成）
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrAssignmentTitleMissing
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	if file != nil && file.Size > s.maxBytes {
		return nil, ErrAssignmentFileTooLarge
	}

	// 2. 班级存在性与归属
	if !validID(req.ClassID) {
		return nil, ErrAssignmentClassNotFound
	}
	class, err := s.repo.Class.GetByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Error(err))
		return nil, err
	}
	if d := s.policy.CanCreateAssignment(actor, class.TeacherID); !d.Allowed {
		return nil, denied(d)
	}

	// 3. 写入附件
	var filePath string
	if file != nil {
		filePath, err = s.files.Save(ctx, storage.NamespaceAssignments, actor.ID, *file)
		if err != nil {
			s.logger.Error("保存作业附件失败", zap.Error(err))
			return nil, err
		}
	}

	// 4. 持久化，失败时清理刚写入的附件
	assignment := &model.Assignment{
		ClassID:     class.ClassID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     due,
		CreatorID:   actor.ID,
		FilePath:    filePath,
	}
	if err := s.repo.Assignment.Create(ctx, assignment); err != nil {
		s.logger.Error("创建作业失败", zap.Error(err))
		if filePath != "" {
			s.files.Discard(filePath)
		}
		return nil, err
	}

	s.logger.Info("作业已创建",
		zap.String("assignment_id", assignment.AssignmentID),
		zap.String("class_id", class.ClassID),
	)
	return s.Get(ctx, assignment.AssignmentID)
}

// ────────────────────── Get / List ──────────────────────

func (s *assignmentService) Get(ctx context.Context, id string) (*dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toAssignmentResponse(assignment)
	return &resp, nil
}

func (s *assignmentService) ListForActor(ctx context.Context, actor policy.Actor) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.Assignment.ListForUser(ctx, actor.ID)
	if err != nil {
		s.logger.Error("查询作业列表失败", zap.Error(err))
		return nil, err
	}
	return toAssignmentResponses(assignments), nil
}

func (s *assignmentService) ListForClass(ctx context.Context, classID string) ([]dto.AssignmentResponse, error) {
	if !validID(classID) {
		return nil, ErrClassNotFound
	}
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.Error(err))
		return nil, err
	}

	assignments, err := s.repo.Assignment.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询班级作业失败", zap.Error(err))
		return nil, err
	}
	return toAssignmentResponses(assignments), nil
}

// ────────────────────── Update ──────────────────────

func (s *assignmentService) Update(ctx context.Context, actor policy.Actor, id string, req *dto.UpdateAssignmentRequest, file *storage.Upload) (*dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanUpdateAssignment(actor, classTeacherOf(assignment)); !d.Allowed {
		return nil, denied(d)
	}

	// 参数校验（写文件之前完成）
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrAssignmentTitleMissing
		}
		assignment.Title = title
	}
	if req.Description != nil {
		assignment.Description = strings.TrimSpace(*req.Description)
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		assignment.DueDate = due
	}
	if file != nil && file.Size > s.maxBytes {
		return nil, ErrAssignmentFileTooLarge
	}

	// 附件变更：记录被替换的旧文件，持久化成功后再清理
	oldPath := assignment.FilePath
	var newPath string
	switch {
	case file != nil:
		newPath, err = s.files.Save(ctx, storage.NamespaceAssignments, actor.ID, *file)
		if err != nil {
			s.logger.Error("保存作业附件失败", zap.Error(err))
			return nil, err
		}
		assignment.FilePath = newPath
	case req.RemoveExistingFile:
		assignment.FilePath = ""
	}

	if err := s.repo.Assignment.Update(ctx, assignment); err != nil {
		s.logger.Error("更新作业失败", zap.Error(err))
		if newPath != "" {
			s.files.Discard(newPath)
		}
		return nil, err
	}

	if oldPath != "" && oldPath != assignment.FilePath {
		s.files.Discard(oldPath)
	}

	return s.Get(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *assignmentService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d := s.policy.CanDeleteAssignment(actor, classTeacherOf(assignment)); !d.Allowed {
		return denied(d)
	}

	paths, err := s.repo.Assignment.Delete(ctx, assignment.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		s.logger.Error("删除作业失败", zap.Error(err))
		return err
	}

	discardAll(s.files, paths)
	s.logger.Info("作业已删除",
		zap.String("assignment_id", assignment.AssignmentID),
		zap.String("actor_id", actor.ID),
		zap.Int("discarded_files", len(paths)),
	)
	return nil
}

// ── 辅助函数 ──

func (s *assignmentService) load(ctx context.Context, id string) (*model.Assignment, error) {
	if !validID(id) {
		return nil, ErrAssignmentNotFound
	}
	assignment, err := s.repo.Assignment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("查询作业失败", zap.Error(err))
		return nil, err
	}
	return assignment, nil
}

// classTeacherOf 作业所属班级的教师，班级未加载时返回空串（归属检查必然失败）
func classTeacherOf(a *model.Assignment) string {
	if a == nil || a.Class == nil {
		return ""
	}
	return a.Class.TeacherID
}

func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDueDate
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	ref := dto.ClassRef{ID: a.ClassID}
	if a.Class != nil {
		ref.Title = a.Class.Title
	}

	return dto.AssignmentResponse{
		ID:          a.AssignmentID,
		Class:       ref,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     dto.FormatTime(a.DueDate),
		CreatedBy:   toUserRef(a.Creator),
		FilePath:    a.FilePath,
		CreatedAt:   dto.FormatTime(a.CreatedAt),
	}
}

func toAssignmentResponses(assignments []model.Assignment) []dto.AssignmentResponse {
	list := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		list = append(list, toAssignmentResponse(&assignments[i]))
	}
	return list
}
