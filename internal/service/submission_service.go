package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

// ── 提交模块业务错误 ──

var (
	ErrSubmissionNotFound     = apperrors.New(apperrors.KindNotFound, 14001, "提交不存在")
	ErrSubmissionFileRequired = apperrors.New(apperrors.KindInvalid, 14002, "请上传作业文件")
	ErrGradeOutOfRange        = apperrors.New(apperrors.KindInvalid, 14003, "成绩超出允许范围")
	ErrSubmissionFileTooLarge = apperrors.New(apperrors.KindTooLarge, 14004, "提交文件超过大小上限")
)

// SubmissionService 提交与评分业务接口
//
// 状态只允许 submitted → graded，评分在一条 UPDATE 中同时写入成绩、评语与状态；
// 重复评分覆盖成绩与评语，状态保持 graded。
type SubmissionService interface {
	Create(ctx context.Context, actor policy.Actor, req *dto.CreateSubmissionRequest, file *storage.Upload) (*dto.SubmissionResponse, error)
	// ListForActor 学生：本人提交；教师：任教班级下的提交；管理员：全部
	ListForActor(ctx context.Context, actor policy.Actor) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, actor policy.Actor, id string) (*dto.SubmissionResponse, error)
	Grade(ctx context.Context, actor policy.Actor, id string, req *dto.GradeSubmissionRequest) (*dto.SubmissionResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

type submissionService struct {
	repo     *repository.Repository
	policy   *policy.Policy
	files    FileStore
	maxBytes int64
	maxGrade float64
	logger   *zap.Logger
}

// NewSubmissionService 创建 SubmissionService 实例
func NewSubmissionService(
	repo *repository.Repository,
	pol *policy.Policy,
	files FileStore,
	maxBytes int64,
	maxGrade float64,
	logger *zap.Logger,
) SubmissionService {
	return &submissionService{
		repo:     repo,
		policy:   pol,
		files:    files,
		maxBytes: maxBytes,
		maxGrade: maxGrade,
		logger:   logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *submissionService) Create(ctx context.Context, actor policy.Actor, req *dto.CreateSubmissionRequest, file *storage.Upload) (*dto.SubmissionResponse, error) {
	// 1. 参数校验（写文件之前完成）
	if file == nil {
		return nil, ErrSubmissionFileRequired
	}
	if file.Size > s.maxBytes {
		return nil, ErrSubmissionFileTooLarge
	}

	// 2. 作业存在性
	if !validID(req.AssignmentID) {
		return nil, ErrAssignmentNotFound
	}
	assignment, err := s.repo.Assignment.GetByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		s.logger.Error("查询作业失败", zap.Error(err))
		return nil, err
	}

	// 3. 角色与选课检查
	enrolled, err := s.repo.Class.IsMember(ctx, assignment.ClassID, actor.ID)
	if err != nil {
		s.logger.Error("查询班级成员失败", zap.Error(err))
		return nil, err
	}
	if d := s.policy.CanCreateSubmission(actor, enrolled); !d.Allowed {
		return nil, denied(d)
	}

	// 4. 写入文件
	filePath, err := s.files.Save(ctx, storage.NamespaceSubmissions, actor.ID, *file)
	if err != nil {
		s.logger.Error("保存提交文件失败", zap.Error(err))
		return nil, err
	}

	// 5. 持久化，失败时清理刚写入的文件
	submission := &model.Submission{
		AssignmentID: assignment.AssignmentID,
		StudentID:    actor.ID,
		FilePath:     filePath,
		Status:       model.SubmissionSubmitted,
	}
	if err := s.repo.Submission.Create(ctx, submission); err != nil {
		s.logger.Error("创建提交失败", zap.Error(err))
		s.files.Discard(filePath)
		return nil, err
	}

	s.logger.Info("作业已提交",
		zap.String("submission_id", submission.SubmissionID),
		zap.String("assignment_id", assignment.AssignmentID),
		zap.String("student_id", actor.ID),
	)

	created, err := s.load(ctx, submission.SubmissionID)
	if err != nil {
		return nil, err
	}
	resp := toSubmissionResponse(created)
	return &resp, nil
}

// ────────────────────── List / Get ──────────────────────

func (s *submissionService) ListForActor(ctx context.Context, actor policy.Actor) ([]dto.SubmissionResponse, error) {
	var (
		submissions []model.Submission
		err         error
	)
	switch actor.Role {
	case policy.RoleStudent:
		submissions, err = s.repo.Submission.ListByStudent(ctx, actor.ID)
	case policy.RoleTeacher:
		submissions, err = s.repo.Submission.ListByTeacher(ctx, actor.ID)
	default:
		submissions, err = s.repo.Submission.ListAll(ctx)
	}
	if err != nil {
		s.logger.Error("查询提交列表失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.SubmissionResponse, 0, len(submissions))
	for i := range submissions {
		list = append(list, toSubmissionResponse(&submissions[i]))
	}
	return list, nil
}

func (s *submissionService) Get(ctx context.Context, actor policy.Actor, id string) (*dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanViewSubmission(actor, submission.StudentID, submissionClassTeacher(submission)); !d.Allowed {
		return nil, denied(d)
	}
	resp := toSubmissionResponse(submission)
	return &resp, nil
}

// ────────────────────── Grade ──────────────────────

func (s *submissionService) Grade(ctx context.Context, actor policy.Actor, id string, req *dto.GradeSubmissionRequest) (*dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.CanGradeSubmission(actor, submissionClassTeacher(submission)); !d.Allowed {
		return nil, denied(d)
	}

	if req.Grade == nil {
		return nil, ErrGradeOutOfRange
	}
	grade := *req.Grade
	if math.IsNaN(grade) || grade < 0 || grade > s.maxGrade {
		return nil, ErrGradeOutOfRange
	}

	if err := s.repo.Submission.UpdateGrade(ctx, submission.SubmissionID, grade, strings.TrimSpace(req.Feedback)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("评分失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("提交已评分",
		zap.String("submission_id", submission.SubmissionID),
		zap.String("grader_id", actor.ID),
		zap.Float64("grade", grade),
	)

	graded, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toSubmissionResponse(graded)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *submissionService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	submission, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d := s.policy.CanDeleteSubmission(actor, submission.StudentID, submissionClassTeacher(submission)); !d.Allowed {
		return denied(d)
	}

	if err := s.repo.Submission.Delete(ctx, submission.SubmissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		s.logger.Error("删除提交失败", zap.Error(err))
		return err
	}

	if submission.FilePath != "" {
		s.files.Discard(submission.FilePath)
	}
	return nil
}

// ── 辅助函数 ──

func (s *submissionService) load(ctx context.Context, id string) (*model.Submission, error) {
	if !validID(id) {
		return nil, ErrSubmissionNotFound
	}
	submission, err := s.repo.Submission.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询提交失败", zap.Error(err))
		return nil, err
	}
	return submission, nil
}

// submissionClassTeacher 提交所属作业的班级教师（评分归属人）
func submissionClassTeacher(s *model.Submission) string {
	return classTeacherOf(s.Assignment)
}

func toSubmissionResponse(s *model.Submission) dto.SubmissionResponse {
	ref := dto.AssignmentRef{ID: s.AssignmentID}
	if a := s.Assignment; a != nil {
		ref.Title = a.Title
		ref.ClassID = a.ClassID
		ref.DueDate = dto.FormatTime(a.DueDate)
	}

	return dto.SubmissionResponse{
		ID:          s.SubmissionID,
		Assignment:  ref,
		Student:     toUserRef(s.Student),
		FilePath:    s.FilePath,
		Link:        s.Link,
		Status:      s.Status,
		Grade:       s.Grade,
		Feedback:    s.Feedback,
		SubmittedAt: dto.FormatTime(s.CreatedAt),
	}
}
