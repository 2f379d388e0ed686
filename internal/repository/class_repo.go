package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taksh05/Assignment-Portal/internal/model"
)

// ErrAlreadyMember 用户已在班级中
var ErrAlreadyMember = errors.New("already a class member")

// ClassRepository 班级数据访问接口
type ClassRepository interface {
	// Create 在同一事务内写入班级与教师本人的成员记录
	Create(ctx context.Context, class *model.Class) error
	// GetByID 预加载教师与成员
	GetByID(ctx context.Context, id string) (*model.Class, error)
	// ListByMember 用户任教或已加入的班级
	ListByMember(ctx context.Context, userID string) ([]model.Class, error)
	ListAll(ctx context.Context) ([]model.Class, error)
	// Update 仅更新标题与描述，teacher_id 不可变
	Update(ctx context.Context, class *model.Class) error
	// AddMember 已是成员时返回 ErrAlreadyMember，不产生重复记录
	AddMember(ctx context.Context, classID, userID string) error
	IsMember(ctx context.Context, classID, userID string) (bool, error)
	// Delete 级联删除班级下的作业与提交，返回需要清理的文件路径
	Delete(ctx context.Context, id string) ([]string, error)
}

// classRepo ClassRepository 的 GORM 实现
type classRepo struct {
	db *gorm.DB
}

// NewClassRepo 创建 ClassRepository 实例
func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) Create(ctx context.Context, class *model.Class) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(class).Error; err != nil {
			return err
		}

		member := model.ClassMember{ClassID: class.ClassID, UserID: class.TeacherID}
		if err := tx.Omit(clause.Associations).Create(&member).Error; err != nil {
			return err
		}

		class.Members = []model.ClassMember{member}
		return nil
	})
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*model.Class, error) {
	var class model.Class
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) ListByMember(ctx context.Context, userID string) ([]model.Class, error) {
	var classes []model.Class
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("teacher_id = ? OR class_id IN (?)", userID,
			r.db.Model(&model.ClassMember{}).Select("class_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) ListAll(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	err := r.withRelations(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) Update(ctx context.Context, class *model.Class) error {
	return r.db.WithContext(ctx).
		Model(&model.Class{}).
		Where("class_id = ?", class.ClassID).
		Updates(map[string]interface{}{
			"title":       class.Title,
			"description": class.Description,
			"updated_at":  gorm.Expr("NOW()"),
		}).Error
}

func (r *classRepo) AddMember(ctx context.Context, classID, userID string) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&model.ClassMember{ClassID: classID, UserID: userID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (r *classRepo) IsMember(ctx context.Context, classID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ClassMember{}).
		Where("class_id = ? AND user_id = ?", classID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *classRepo) Delete(ctx context.Context, id string) ([]string, error) {
	var paths []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignmentIDs := func() *gorm.DB {
			return tx.Model(&model.Assignment{}).Select("assignment_id").Where("class_id = ?", id)
		}

		var assignmentFiles, submissionFiles []string
		if err := tx.Model(&model.Assignment{}).
			Where("class_id = ? AND file_path <> ''", id).
			Pluck("file_path", &assignmentFiles).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Submission{}).
			Where("assignment_id IN (?) AND file_path <> ''", assignmentIDs()).
			Pluck("file_path", &submissionFiles).Error; err != nil {
			return err
		}

		if err := tx.Where("assignment_id IN (?)", assignmentIDs()).Delete(&model.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ?", id).Delete(&model.Assignment{}).Error; err != nil {
			return err
		}

		// class_members 由外键 ON DELETE CASCADE 清理
		result := tx.Where("class_id = ?", id).Delete(&model.Class{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		paths = append(assignmentFiles, submissionFiles...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *classRepo) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Teacher", omitPassword).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User", omitPassword)
}

// omitPassword 预加载用户时不读取密码哈希
func omitPassword(db *gorm.DB) *gorm.DB {
	return db.Omit("password_hash")
}
