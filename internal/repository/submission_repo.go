package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taksh05/Assignment-Portal/internal/model"
)

// SubmissionRepository 提交数据访问接口
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.Submission) error
	// GetByID 预加载作业（含班级）与提交学生
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Submission, error)
	// ListByTeacher 教师任教班级下的全部提交
	ListByTeacher(ctx context.Context, teacherID string) ([]model.Submission, error)
	ListAll(ctx context.Context) ([]model.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error)
	// UpdateGrade 单条 UPDATE 同时写入成绩、评语与 graded 状态
	UpdateGrade(ctx context.Context, id string, grade float64, feedback string) error
	Delete(ctx context.Context, id string) error
	ListFilePaths(ctx context.Context) ([]string, error)
}

// submissionRepo SubmissionRepository 的 GORM 实现
type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var submission model.Submission
	err := r.withRelations(r.db.WithContext(ctx)).
		Preload("Assignment.Class").
		Where("submission_id = ?", id).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.withRelations(r.db.WithContext(ctx)).
		Joins("JOIN assignments a ON a.assignment_id = submissions.assignment_id").
		Joins("JOIN classes c ON c.class_id = a.class_id").
		Where("c.teacher_id = ?", teacherID).
		Order("submissions.created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) ListAll(ctx context.Context) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.withRelations(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) UpdateGrade(ctx context.Context, id string, grade float64, feedback string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"grade":      grade,
			"feedback":   feedback,
			"status":     model.SubmissionGraded,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("submission_id = ?", id).
		Delete(&model.Submission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepo) ListFilePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("file_path <> ''").
		Pluck("file_path", &paths).Error
	return paths, err
}

func (r *submissionRepo) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assignment").
		Preload("Student", omitPassword)
}
