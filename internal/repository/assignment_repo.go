package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taksh05/Assignment-Portal/internal/model"
)

// AssignmentRepository 作业数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.Assignment) error
	// GetByID 预加载所属班级与创建者
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	// ListForUser 用户任教或已加入班级下的作业，按截止时间升序
	ListForUser(ctx context.Context, userID string) ([]model.Assignment, error)
	// ListByClass 单个班级的作业，按截止时间降序
	ListByClass(ctx context.Context, classID string) ([]model.Assignment, error)
	// Update 更新标题、描述、截止时间与附件路径，class_id 不可变
	Update(ctx context.Context, assignment *model.Assignment) error
	// Delete 级联删除提交，返回作业附件与提交文件路径
	Delete(ctx context.Context, id string) ([]string, error)
	ListFilePaths(ctx context.Context) ([]string, error)
}

// assignmentRepo AssignmentRepository 的 GORM 实现
type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, assignment *model.Assignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(assignment).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Creator", omitPassword).
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) ListForUser(ctx context.Context, userID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Creator", omitPassword).
		Where("class_id IN (?)",
			r.db.Model(&model.Class{}).Select("class_id").
				Where("teacher_id = ? OR class_id IN (?)", userID,
					r.db.Model(&model.ClassMember{}).Select("class_id").Where("user_id = ?", userID))).
		Order("due_date ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListByClass(ctx context.Context, classID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Creator", omitPassword).
		Where("class_id = ?", classID).
		Order("due_date DESC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) Update(ctx context.Context, assignment *model.Assignment) error {
	return r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("assignment_id = ?", assignment.AssignmentID).
		Updates(map[string]interface{}{
			"title":       assignment.Title,
			"description": assignment.Description,
			"due_date":    assignment.DueDate,
			"file_path":   assignment.FilePath,
			"updated_at":  gorm.Expr("NOW()"),
		}).Error
}

func (r *assignmentRepo) Delete(ctx context.Context, id string) ([]string, error) {
	var paths []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var own []string
		if err := tx.Model(&model.Assignment{}).
			Where("assignment_id = ? AND file_path <> ''", id).
			Pluck("file_path", &own).Error; err != nil {
			return err
		}

		var submissionFiles []string
		if err := tx.Model(&model.Submission{}).
			Where("assignment_id = ? AND file_path <> ''", id).
			Pluck("file_path", &submissionFiles).Error; err != nil {
			return err
		}

		if err := tx.Where("assignment_id = ?", id).Delete(&model.Submission{}).Error; err != nil {
			return err
		}

		result := tx.Where("assignment_id = ?", id).Delete(&model.Assignment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		paths = append(own, submissionFiles...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *assignmentRepo) ListFilePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("file_path <> ''").
		Pluck("file_path", &paths).Error
	return paths, err
}
